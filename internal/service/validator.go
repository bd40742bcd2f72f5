package service

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/cloo-solutions/companion/internal/domain"
	"github.com/cloo-solutions/companion/internal/rules"
)

const (
	maxSuggestions  = 5
	maxRepairSkills = 3
	maxRepairTechs  = 3
)

// Score penalties per issue category and severity.
var severityPenalties = map[domain.IssueCategory]map[domain.Severity]float64{
	domain.CategoryTechnicalAccuracy: {domain.SeverityCritical: 0.3, domain.SeverityWarning: 0.2, domain.SeverityInfo: 0.1},
	domain.CategoryCompleteness:      {domain.SeverityCritical: 0.4, domain.SeverityWarning: 0.2, domain.SeverityInfo: 0.1},
	domain.CategoryConsistency:       {domain.SeverityCritical: 0.3, domain.SeverityWarning: 0.2, domain.SeverityInfo: 0.1},
}

// ContextValidator audits formatted context for technical, completeness and
// consistency gaps.
type ContextValidator struct {
	rules  *rules.Rules
	checks []validationRule
}

// NewContextValidator creates a validator over the given rule tables.
func NewContextValidator(r *rules.Rules) *ContextValidator {
	v := &ContextValidator{rules: r}
	v.checks = v.validationRules()
	return v
}

// validationInput holds the lowercased views shared by every check.
type validationInput struct {
	sections domain.Sections
	query    string
	text     string
	skills   string
	projects string
	length   int
}

func newValidationInput(sections domain.Sections, query string) *validationInput {
	in := &validationInput{
		sections: sections,
		query:    strings.ToLower(query),
		text:     strings.ToLower(sections.Text()),
		skills:   strings.ToLower(sections.Get(domain.SourceSkills)),
		projects: strings.ToLower(sections.Get(domain.SourceProjects)),
	}
	for _, v := range sections {
		in.length += utf8.RuneCountInString(v)
	}
	return in
}

// Validate runs every check against the bundle's sections.
func (v *ContextValidator) Validate(bundle *domain.ContextBundle, query string) *domain.ValidationReport {
	in := newValidationInput(bundle.Sections, query)

	issues := make([]domain.ValidationIssue, 0)
	for _, check := range v.checks {
		issues = append(issues, check(in)...)
	}

	report := &domain.ValidationReport{
		Issues:               issues,
		TechnicalAccuracy:    categoryScore(issues, domain.CategoryTechnicalAccuracy),
		Completeness:         categoryScore(issues, domain.CategoryCompleteness),
		Consistency:          categoryScore(issues, domain.CategoryConsistency),
		HasTechnicalContext:  bundle.Critical.HasTechnical,
		HasProjectContext:    bundle.Critical.HasProject,
		HasExperienceContext: bundle.Critical.HasExperience,
	}
	report.QualityScore = (report.TechnicalAccuracy + report.Completeness + report.Consistency) / 3
	report.OverallQuality = domain.LabelForScore(report.QualityScore)
	report.Suggestions = v.suggestions(issues, in)
	return report
}

// categoryScore starts at 1 and subtracts the penalty of every issue in
// category, flooring at 0.
func categoryScore(issues []domain.ValidationIssue, category domain.IssueCategory) float64 {
	penalties := severityPenalties[category]
	score := 1.0
	for _, issue := range issues {
		if issue.Category == category {
			score -= penalties[issue.Severity]
		}
	}
	return max(score, 0)
}

func (v *ContextValidator) suggestions(issues []domain.ValidationIssue, in *validationInput) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(s string) {
		if s == "" || seen[s] {
			return
		}
		seen[s] = true
		out = append(out, s)
	}

	for _, issue := range issues {
		add(issue.Suggestion)
	}

	val := v.rules.Validation
	if rules.ContainsAny(in.query, val.SparseTechnicalWords) && utf8.RuneCountInString(in.text) < val.SparseTechnicalChars {
		add(val.SparseTechnicalHint)
	}
	if strings.Contains(in.query, "project") && in.projects != "" && utf8.RuneCountInString(in.projects) < val.SparseProjectChars {
		add(val.SparseProjectHint)
	}

	if len(out) > maxSuggestions {
		out = out[:maxSuggestions]
	}
	return out
}

// Repair fills empty sections named by critical completeness issues with a
// minimal fragment taken directly from the profile. The input map is not
// modified. Repairing an already repaired map is a no-op.
func (v *ContextValidator) Repair(sections domain.Sections, report *domain.ValidationReport, profile *domain.Profile) domain.Sections {
	fixed := sections.Clone()
	if profile == nil {
		return fixed
	}

	for _, issue := range report.CriticalIssues() {
		if issue.Category != domain.CategoryCompleteness || fixed.Get(issue.Section) != "" {
			continue
		}
		switch issue.Section {
		case domain.SourceProjects:
			if fragment := projectFallback(profile); fragment != "" {
				fixed[string(domain.SourceProjects)] = fragment
			}
		case domain.SourceSkills:
			if fragment := skillsFallback(profile); fragment != "" {
				fixed[string(domain.SourceSkills)] = fragment
			}
		}
	}
	return fixed
}

func projectFallback(p *domain.Profile) string {
	if len(p.Projects) == 0 {
		return ""
	}
	proj := p.Projects[0]
	stack := proj.Stack()
	if len(stack) == 0 {
		return "Project: " + proj.Title()
	}
	return fmt.Sprintf("Project: %s - Technologies: %s", proj.Title(), strings.Join(stack[:min(len(stack), maxRepairTechs)], ", "))
}

func skillsFallback(p *domain.Profile) string {
	cat, ok := p.Skills.FirstNonEmpty()
	if !ok {
		return ""
	}
	return fmt.Sprintf("%s: %s", cat.Name, strings.Join(cat.Skills[:min(len(cat.Skills), maxRepairSkills)], ", "))
}
