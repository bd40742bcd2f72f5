package service

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/cloo-solutions/companion/internal/domain"
	"github.com/cloo-solutions/companion/internal/rules"
)

//go:embed prompts/*.tmpl
var promptFS embed.FS

var promptTemplates = template.Must(
	template.New("prompts").
		Funcs(template.FuncMap{"join": strings.Join}).
		ParseFS(promptFS, "prompts/*.tmpl"),
)

// promptData is the input to every prompt template.
type promptData struct {
	Question          string
	Profile           string
	Skills            string
	Projects          string
	Activities        string
	ExperienceContext string
	Relevant          []string
	Results           []string
}

// PromptSelector classifies questions and renders the prompt and model
// parameters for a query type.
type PromptSelector struct {
	rules *rules.Rules
}

// NewPromptSelector creates a selector over the given rule tables.
func NewPromptSelector(r *rules.Rules) *PromptSelector {
	return &PromptSelector{rules: r}
}

// Classify returns the first query type whose trigger phrases occur in the
// question, or general_question.
func (p *PromptSelector) Classify(question string) domain.QueryType {
	lowered := strings.ToLower(question)
	for _, rule := range p.rules.QueryTypes {
		if rules.ContainsAny(lowered, rule.Phrases) {
			return rule.Type
		}
	}
	return domain.QueryTypeGeneralQuestion
}

// Params returns the model parameters for a query type. Context quality below
// the configured threshold lowers temperature and caps max tokens.
func (p *PromptSelector) Params(qt domain.QueryType, quality float64) domain.ModelParams {
	params := p.rules.ParamsFor(qt)
	low := p.rules.ModelParams.LowQuality
	if quality < low.Threshold {
		params.Temperature *= low.TemperatureFactor
		params.MaxTokens = min(params.MaxTokens, low.MaxTokens)
	}
	return params
}

// Render builds the prompt for qt from the formatted context sections.
// Unknown query types fall back to the general question template.
func (p *PromptSelector) Render(qt domain.QueryType, sections domain.Sections, question string, quality float64) (string, domain.ModelParams, error) {
	if !qt.IsValid() || qt == domain.QueryTypeSearchResponse {
		qt = domain.QueryTypeGeneralQuestion
	}

	data := promptData{
		Question:   question,
		Profile:    sections.Get(domain.SourceProfile),
		Skills:     sections.Get(domain.SourceSkills),
		Projects:   sections.Get(domain.SourceProjects),
		Activities: sections.Get(domain.SourceActivities),
	}
	switch qt {
	case domain.QueryTypeGeneralQuestion:
		data.Relevant = p.generalSections(sections, question)
	case domain.QueryTypeTechnicalQuestion:
		if rules.ContainsAny(strings.ToLower(data.Profile), p.rules.Prompts.ExperienceMarkers) {
			data.ExperienceContext = data.Profile
		}
	}

	prompt, err := execute(qt, data)
	if err != nil {
		return "", domain.ModelParams{}, err
	}
	return prompt, p.Params(qt, quality), nil
}

// RenderSearch builds a prompt from raw search results when no structured
// context is available.
func (p *PromptSelector) RenderSearch(results []string, question string, quality float64) (string, domain.ModelParams, error) {
	prompt, err := execute(domain.QueryTypeSearchResponse, promptData{Question: question, Results: results})
	if err != nil {
		return "", domain.ModelParams{}, err
	}
	return prompt, p.Params(domain.QueryTypeSearchResponse, quality), nil
}

// generalSections picks labelled sections by the first matching focus
// group, falling back to profile and skills.
func (p *PromptSelector) generalSections(sections domain.Sections, question string) []string {
	lowered := strings.ToLower(question)
	cfg := p.rules.Prompts

	var out []string
	for _, focus := range cfg.GeneralFocus {
		if !rules.ContainsAny(lowered, focus.Keywords) {
			continue
		}
		out = labelled(sections, focus.Sections)
		break
	}
	if len(out) == 0 {
		out = labelled(sections, cfg.GeneralFallback)
	}
	return out
}

func labelled(sections domain.Sections, wanted []rules.PromptSection) []string {
	var out []string
	for _, sec := range wanted {
		if v := sections.Get(sec.Source); v != "" {
			out = append(out, fmt.Sprintf("%s: %s", sec.Label, v))
		}
	}
	return out
}

func execute(qt domain.QueryType, data promptData) (string, error) {
	var buf bytes.Buffer
	if err := promptTemplates.ExecuteTemplate(&buf, string(qt)+".tmpl", data); err != nil {
		return "", fmt.Errorf("failed to render %s prompt: %w", qt, err)
	}
	return strings.TrimSpace(buf.String()), nil
}
