package service

import (
	"fmt"
	"strings"

	"github.com/cloo-solutions/companion/internal/domain"
	"github.com/cloo-solutions/companion/internal/rules"
)

const (
	isolatedTermExamples = 3
	consistencySuggest   = "Keep project technologies reflected in the skills section"
)

// validationRule inspects the context and returns zero or more issues.
type validationRule func(in *validationInput) []domain.ValidationIssue

func (v *ContextValidator) validationRules() []validationRule {
	return []validationRule{
		v.criticalPairRule,
		v.isolatedTermRule,
		v.completenessRule,
		v.consistencyRule,
		v.experienceRule,
		v.projectDetailRule,
	}
}

// criticalPairRule warns when the question and context mention a technology
// whose companion technology is absent from the context.
func (v *ContextValidator) criticalPairRule(in *validationInput) []domain.ValidationIssue {
	var issues []domain.ValidationIssue
	for _, pair := range v.rules.Validation.CriticalPairs {
		if !rules.ContainsTerm(in.query, pair.Tech) || !rules.ContainsTerm(in.text, pair.Tech) {
			continue
		}
		if rules.ContainsTerm(in.text, pair.Requires) {
			continue
		}
		issues = append(issues, domain.ValidationIssue{
			Severity:   domain.SeverityWarning,
			Category:   domain.CategoryTechnicalAccuracy,
			Message:    fmt.Sprintf("question mentions %s but related %s context is missing", pair.Tech, pair.Requires),
			Suggestion: fmt.Sprintf("Include %s context: %s", pair.Requires, pair.Description),
		})
	}
	return issues
}

// isolatedTermRule flags generic terms in the skills section that carry none
// of their specific technologies.
func (v *ContextValidator) isolatedTermRule(in *validationInput) []domain.ValidationIssue {
	var issues []domain.ValidationIssue
	for _, group := range v.rules.Validation.ContextDependentTerms {
		if !rules.ContainsTerm(in.query, group.Term) || !rules.ContainsTerm(in.skills, group.Term) {
			continue
		}
		if rules.ContainsAnyTerm(in.skills, group.Related) {
			continue
		}
		examples := group.Related[:min(len(group.Related), isolatedTermExamples)]
		issues = append(issues, domain.ValidationIssue{
			Severity:   domain.SeverityInfo,
			Category:   domain.CategoryTechnicalAccuracy,
			Message:    fmt.Sprintf("%s mentioned without specific technologies", group.Term),
			Suggestion: fmt.Sprintf("Include specific %s technologies: %s", group.Term, strings.Join(examples, ", ")),
		})
	}
	return issues
}

func (v *ContextValidator) completenessRule(in *validationInput) []domain.ValidationIssue {
	words := v.rules.Validation.Completeness
	var issues []domain.ValidationIssue

	if rules.ContainsAny(in.query, words.ProjectWords) && in.sections.Get(domain.SourceProjects) == "" {
		issues = append(issues, domain.ValidationIssue{
			Severity:   domain.SeverityCritical,
			Category:   domain.CategoryCompleteness,
			Section:    domain.SourceProjects,
			Message:    "question asks about projects but no project context was selected",
			Suggestion: "Include relevant project information",
		})
	}
	if rules.ContainsAny(in.query, words.SkillWords) && in.sections.Get(domain.SourceSkills) == "" {
		issues = append(issues, domain.ValidationIssue{
			Severity:   domain.SeverityCritical,
			Category:   domain.CategoryCompleteness,
			Section:    domain.SourceSkills,
			Message:    "question asks about skills but no skills context was selected",
			Suggestion: "Include relevant technical skills",
		})
	}
	if rules.ContainsAny(in.query, words.ProfileWords) && in.sections.Get(domain.SourceProfile) == "" {
		issues = append(issues, domain.ValidationIssue{
			Severity:   domain.SeverityWarning,
			Category:   domain.CategoryCompleteness,
			Section:    domain.SourceProfile,
			Message:    "question asks about background but little profile context was selected",
			Suggestion: "Include more profile information",
		})
	}
	if in.length < v.rules.Validation.MinContextLength {
		issues = append(issues, domain.ValidationIssue{
			Severity:   domain.SeverityWarning,
			Category:   domain.CategoryCompleteness,
			Message:    "context is too brief for an accurate answer",
			Suggestion: "Include more detailed context",
		})
	}
	return issues
}

// consistencyRule reports technologies named in projects but not in skills,
// as long as only a handful are missing.
func (v *ContextValidator) consistencyRule(in *validationInput) []domain.ValidationIssue {
	re := v.rules.ConsistencyRegexp()
	if re == nil || in.projects == "" || in.skills == "" {
		return nil
	}

	var missing []string
	seen := make(map[string]bool)
	for _, tech := range re.FindAllString(in.projects, -1) {
		if seen[tech] {
			continue
		}
		seen[tech] = true
		if !strings.Contains(in.skills, tech) {
			missing = append(missing, tech)
		}
	}
	if len(missing) == 0 || len(missing) > v.rules.Validation.MaxConsistencyMismatches {
		return nil
	}
	return []domain.ValidationIssue{{
		Severity:   domain.SeverityInfo,
		Category:   domain.CategoryConsistency,
		Message:    "technologies mentioned in projects but not in skills: " + strings.Join(missing, ", "),
		Suggestion: consistencySuggest,
	}}
}

func (v *ContextValidator) experienceRule(in *validationInput) []domain.ValidationIssue {
	if !rules.ContainsAny(in.query, v.rules.Validation.ExperienceQueryWords) {
		return nil
	}
	for _, re := range v.rules.ExperienceRegexps() {
		if re.MatchString(in.text) {
			return nil
		}
	}
	return []domain.ValidationIssue{{
		Severity:   domain.SeverityWarning,
		Category:   domain.CategoryExperience,
		Message:    "question asks about experience but the context has no experience indicators",
		Suggestion: "Include experience levels or years of experience",
	}}
}

func (v *ContextValidator) projectDetailRule(in *validationInput) []domain.ValidationIssue {
	if in.projects == "" {
		return nil
	}
	val := v.rules.Validation
	var issues []domain.ValidationIssue

	if rules.ContainsAny(in.query, val.RoleQueryWords) && !rules.ContainsAny(in.projects, val.RoleIndicators) {
		issues = append(issues, domain.ValidationIssue{
			Severity:   domain.SeverityInfo,
			Category:   domain.CategoryProjectDetail,
			Message:    "question asks about roles but project context lacks role information",
			Suggestion: "Include roles and responsibilities in project descriptions",
		})
	}
	if rules.ContainsAny(in.query, val.StackQueryWords) && !rules.ContainsAny(in.projects, val.StackMarkers) {
		issues = append(issues, domain.ValidationIssue{
			Severity:   domain.SeverityInfo,
			Category:   domain.CategoryProjectDetail,
			Message:    "question asks about technologies but project context lacks a technology stack",
			Suggestion: "Include the technology stack used in each project",
		})
	}
	return issues
}
