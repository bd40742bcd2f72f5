package service

import (
	"github.com/cloo-solutions/companion/internal/domain"
	"github.com/cloo-solutions/companion/internal/rules"
)

// Boost and multiplier constants for the scoring rules.
const (
	longContentChars       = 50
	longContentBoost       = 0.1
	technicalContentBoost  = 0.2
	projectContentBoost    = 0.15
	experienceContentBoost = 0.1
	profileSummaryKey      = "profile_summary"
	profileSummaryMult     = 1.5
	exactSkillMult         = 2.0
	relatedTechStep        = 0.1
	projectIntentMult      = 2.5
	projectTechTermMult    = 1.8
	projectQueryWordMult   = 1.5
	projectBaseScore       = 0.4
	projectIntentScore     = 0.3
	projectTechMatchScore  = 0.15
	projectRoleScore       = 0.1
	activityProjectScore   = 0.2
)

// qualityRule adds a fixed boost when content carries a quality signal.
type qualityRule struct {
	boost   float64
	applies func(content, lowered string) bool
}

// multiplierRule returns a factor applied to the base relevance. Rules that
// do not apply return 1.
type multiplierRule func(c *candidate, q *queryTerms) float64

// projectRule returns an additive contribution to project_score.
type projectRule func(c *candidate, q *queryTerms) float64

func (s *ContextScorer) qualityRules() []qualityRule {
	ind := s.rules.Indicators
	return []qualityRule{
		{longContentBoost, func(content, _ string) bool { return len(content) > longContentChars }},
		{technicalContentBoost, func(_, lowered string) bool { return rules.ContainsAny(lowered, ind.Technical) }},
		{projectContentBoost, func(_, lowered string) bool { return rules.ContainsAny(lowered, ind.Project) }},
		{experienceContentBoost, func(_, lowered string) bool { return rules.ContainsAny(lowered, ind.Experience) }},
	}
}

func (s *ContextScorer) multiplierRules() []multiplierRule {
	return []multiplierRule{
		profileSummaryRule,
		exactSkillRule,
		s.relatedTechRule,
		projectIntentRule,
		projectStackRule,
	}
}

func (s *ContextScorer) projectRules() []projectRule {
	return []projectRule{
		projectBaseRule,
		projectIntentScoreRule,
		projectTechMatchRule,
		projectRoleRule,
		activityRule,
	}
}

func profileSummaryRule(c *candidate, _ *queryTerms) float64 {
	if c.item.Source == domain.SourceProfile && c.profileKey == profileSummaryKey {
		return profileSummaryMult
	}
	return 1
}

func exactSkillRule(c *candidate, q *queryTerms) float64 {
	if c.skill != "" && q.techSet[c.skill] {
		return exactSkillMult
	}
	return 1
}

func (s *ContextScorer) relatedTechRule(c *candidate, q *queryTerms) float64 {
	if c.skill == "" {
		return 1
	}
	matches := 0
	for _, rel := range s.rules.Related(c.skill) {
		if q.techSet[rel] {
			matches++
		}
	}
	return 1 + relatedTechStep*float64(matches)
}

func projectIntentRule(c *candidate, q *queryTerms) float64 {
	if c.item.Source == domain.SourceProjects && q.projectIntent {
		return projectIntentMult
	}
	return 1
}

func projectStackRule(c *candidate, q *queryTerms) float64 {
	factor := 1.0
	for _, tech := range c.stack {
		switch {
		case q.techSet[tech]:
			factor *= projectTechTermMult
		case q.words[tech]:
			factor *= projectQueryWordMult
		}
	}
	return factor
}

func projectBaseRule(c *candidate, _ *queryTerms) float64 {
	if c.item.Source != domain.SourceProjects {
		return 0
	}
	return projectBaseScore
}

func projectIntentScoreRule(c *candidate, q *queryTerms) float64 {
	if c.item.Source == domain.SourceProjects && q.projectIntent {
		return projectIntentScore
	}
	return 0
}

func projectTechMatchRule(c *candidate, q *queryTerms) float64 {
	matched := 0
	for _, tech := range c.stack {
		if q.techSet[tech] || q.words[tech] {
			matched++
		}
	}
	return projectTechMatchScore * float64(matched)
}

func projectRoleRule(c *candidate, _ *queryTerms) float64 {
	if c.role != "" {
		return projectRoleScore
	}
	return 0
}

func activityRule(c *candidate, _ *queryTerms) float64 {
	if c.item.Source == domain.SourceActivities {
		return activityProjectScore
	}
	return 0
}
