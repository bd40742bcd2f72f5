// Package rules holds the static heuristic tables used by the context
// pipeline. The defaults are embedded; an override file with the same
// shape can replace them at startup.
package rules

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"

	"github.com/cloo-solutions/companion/internal/domain"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

// Relationship links a technology to technologies commonly used with it.
type Relationship struct {
	Tech    string   `yaml:"tech"`
	Related []string `yaml:"related"`
}

// CriticalPair says that context mentioning Tech should also mention Requires.
type CriticalPair struct {
	Tech        string `yaml:"tech"`
	Requires    string `yaml:"requires"`
	Description string `yaml:"description"`
}

// TermGroup maps a generic parent term to the specific technologies it implies.
type TermGroup struct {
	Term    string   `yaml:"term"`
	Related []string `yaml:"related"`
}

// QueryKindRule tags a query with a coarse intent.
type QueryKindRule struct {
	Kind     string   `yaml:"kind"`
	Keywords []string `yaml:"keywords"`
}

// QueryTypeRule maps trigger phrases to a query type. Rules are evaluated in order.
type QueryTypeRule struct {
	Type    domain.QueryType `yaml:"type"`
	Phrases []string         `yaml:"phrases"`
}

type Indicators struct {
	Technical  []string `yaml:"technical"`
	Project    []string `yaml:"project"`
	Experience []string `yaml:"experience"`
}

type QueryAnalysis struct {
	Complex     []string        `yaml:"complex"`
	Simple      []string        `yaml:"simple"`
	Technical   []string        `yaml:"technical"`
	Project     []string        `yaml:"project"`
	Experience  []string        `yaml:"experience"`
	Kinds       []QueryKindRule `yaml:"kinds"`
	DefaultKind string          `yaml:"default_kind"`
}

type Completeness struct {
	ProjectWords []string `yaml:"project_words"`
	SkillWords   []string `yaml:"skill_words"`
	ProfileWords []string `yaml:"profile_words"`
}

type Validation struct {
	CriticalPairs            []CriticalPair `yaml:"critical_pairs"`
	ContextDependentTerms    []TermGroup    `yaml:"context_dependent_terms"`
	ConsistencyPattern       string         `yaml:"consistency_pattern"`
	MaxConsistencyMismatches int            `yaml:"max_consistency_mismatches"`
	MinContextLength         int            `yaml:"min_context_length"`
	Completeness             Completeness   `yaml:"completeness"`
	ExperienceQueryWords     []string       `yaml:"experience_query_words"`
	ExperiencePatterns       []string       `yaml:"experience_patterns"`
	RoleQueryWords           []string       `yaml:"role_query_words"`
	RoleIndicators           []string       `yaml:"role_indicators"`
	StackQueryWords          []string       `yaml:"stack_query_words"`
	StackMarkers             []string       `yaml:"stack_markers"`
	SparseTechnicalWords     []string       `yaml:"sparse_technical_words"`
	SparseTechnicalChars     int            `yaml:"sparse_technical_chars"`
	SparseTechnicalHint      string         `yaml:"sparse_technical_hint"`
	SparseProjectChars       int            `yaml:"sparse_project_chars"`
	SparseProjectHint        string         `yaml:"sparse_project_hint"`
}

type LowQuality struct {
	Threshold         float64 `yaml:"threshold"`
	TemperatureFactor float64 `yaml:"temperature_factor"`
	MaxTokens         int     `yaml:"max_tokens"`
}

type ModelParams struct {
	Default    domain.ModelParams                      `yaml:"default"`
	ByType     map[domain.QueryType]domain.ModelParams `yaml:"by_type"`
	LowQuality LowQuality                              `yaml:"low_quality"`
}

type Cache struct {
	CacheableTypes           []domain.QueryType `yaml:"cacheable_types"`
	ProfileKeywords          []string           `yaml:"profile_keywords"`
	BlockedPhrases           []string           `yaml:"blocked_phrases"`
	FillerPhrases            []string           `yaml:"filler_phrases"`
	Punctuation              string             `yaml:"punctuation"`
	MinQuestionLength        int                `yaml:"min_question_length"`
	MaxQuestionLength        int                `yaml:"max_question_length"`
	MinResponseLength        int                `yaml:"min_response_length"`
	RejectResponseSubstrings []string           `yaml:"reject_response_substrings"`
	RejectResponsePrefixes   []string           `yaml:"reject_response_prefixes"`
}

// PromptSection labels a context section inside a prompt.
type PromptSection struct {
	Label  string               `yaml:"label"`
	Source domain.ContextSource `yaml:"source"`
}

// PromptFocus picks sections for a general question when any keyword matches.
type PromptFocus struct {
	Keywords []string        `yaml:"keywords"`
	Sections []PromptSection `yaml:"sections"`
}

type Prompts struct {
	GeneralFocus      []PromptFocus   `yaml:"general_focus"`
	GeneralFallback   []PromptSection `yaml:"general_fallback"`
	ExperienceMarkers []string        `yaml:"experience_markers"`
}

// Plan lists the keywords that add optional steps to an answer plan.
type Plan struct {
	SearchKeywords   []string `yaml:"search_keywords"`
	AnalysisKeywords []string `yaml:"analysis_keywords"`
}

// Rules is the full set of heuristic tables. Treat it as read-only once loaded.
type Rules struct {
	TechRelationships  []Relationship  `yaml:"tech_relationships"`
	TechPatterns       []string        `yaml:"tech_patterns"`
	Indicators         Indicators      `yaml:"indicators"`
	ProjectIntentWords []string        `yaml:"project_intent_words"`
	QueryAnalysis      QueryAnalysis   `yaml:"query_analysis"`
	Validation         Validation      `yaml:"validation"`
	QueryTypes         []QueryTypeRule `yaml:"query_types"`
	ModelParams        ModelParams     `yaml:"model_params"`
	Cache              Cache           `yaml:"cache"`
	Prompts            Prompts         `yaml:"prompts"`
	Plan               Plan            `yaml:"plan"`

	related            map[string][]string
	techPatterns       []*regexp.Regexp
	consistencyPattern *regexp.Regexp
	experiencePatterns []*regexp.Regexp
}

var (
	defaultOnce  sync.Once
	defaultRules *Rules
)

// Default returns the embedded rule set. It panics if the embedded table is
// malformed, which is a build-time defect.
func Default() *Rules {
	defaultOnce.Do(func() {
		r, err := Parse(defaultYAML)
		if err != nil {
			panic(fmt.Sprintf("rules: embedded defaults are invalid: %v", err))
		}
		defaultRules = r
	})
	return defaultRules
}

// Load reads a rule set from path. An empty path returns the defaults.
func Load(path string) (*Rules, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML rule set.
func Parse(data []byte) (*Rules, error) {
	var r Rules
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse rules: %w", err)
	}
	if err := r.compile(); err != nil {
		return nil, err
	}
	return &r, nil
}

// YAML renders the rule set back to YAML.
func (r *Rules) YAML() ([]byte, error) {
	return yaml.Marshal(r)
}

func (r *Rules) compile() error {
	if len(r.TechRelationships) == 0 {
		return fmt.Errorf("rules: tech_relationships must not be empty")
	}
	if len(r.QueryTypes) == 0 {
		return fmt.Errorf("rules: query_types must not be empty")
	}
	for _, qt := range r.QueryTypes {
		if !qt.Type.IsValid() {
			return fmt.Errorf("rules: unknown query type %q", qt.Type)
		}
	}
	for _, focus := range r.Prompts.GeneralFocus {
		for _, sec := range focus.Sections {
			if !sec.Source.IsValid() {
				return fmt.Errorf("rules: unknown prompt section source %q", sec.Source)
			}
		}
	}
	if r.Cache.MaxQuestionLength < r.Cache.MinQuestionLength {
		return fmt.Errorf("rules: max_question_length must be >= min_question_length")
	}

	r.related = make(map[string][]string, len(r.TechRelationships))
	for i := range r.TechRelationships {
		rel := &r.TechRelationships[i]
		rel.Tech = strings.ToLower(strings.TrimSpace(rel.Tech))
		if rel.Tech == "" {
			return fmt.Errorf("rules: tech relationship %d has empty tech", i)
		}
		for j := range rel.Related {
			rel.Related[j] = strings.ToLower(rel.Related[j])
		}
		r.related[rel.Tech] = rel.Related
	}

	var err error
	r.techPatterns, err = compileAll(r.TechPatterns)
	if err != nil {
		return err
	}
	r.experiencePatterns, err = compileAll(r.Validation.ExperiencePatterns)
	if err != nil {
		return err
	}
	if r.Validation.ConsistencyPattern != "" {
		r.consistencyPattern, err = regexp.Compile(r.Validation.ConsistencyPattern)
		if err != nil {
			return fmt.Errorf("rules: invalid consistency_pattern: %w", err)
		}
	}
	return nil
}

func compileAll(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("rules: invalid pattern %q: %w", p, err)
		}
		out = append(out, re)
	}
	return out, nil
}

// KnownTechnologies returns the relationship keys in table order.
func (r *Rules) KnownTechnologies() []string {
	out := make([]string, len(r.TechRelationships))
	for i, rel := range r.TechRelationships {
		out[i] = rel.Tech
	}
	return out
}

// Related returns technologies related to tech, or nil.
func (r *Rules) Related(tech string) []string {
	return r.related[strings.ToLower(tech)]
}

// TechPatternRegexps returns compiled technical-term patterns.
func (r *Rules) TechPatternRegexps() []*regexp.Regexp {
	return r.techPatterns
}

// ConsistencyRegexp matches technology names in project text.
func (r *Rules) ConsistencyRegexp() *regexp.Regexp {
	return r.consistencyPattern
}

// ExperienceRegexps match experience-level statements.
func (r *Rules) ExperienceRegexps() []*regexp.Regexp {
	return r.experiencePatterns
}

// ParamsFor returns model parameters for a query type.
func (r *Rules) ParamsFor(qt domain.QueryType) domain.ModelParams {
	if p, ok := r.ModelParams.ByType[qt]; ok {
		return p
	}
	return r.ModelParams.Default
}
