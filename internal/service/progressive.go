package service

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/cloo-solutions/companion/internal/domain"
	"github.com/cloo-solutions/companion/internal/rules"
)

const (
	highRelevance       = 0.7
	minHighForComplex   = 2
	maxHighForMinimal   = 8
	axisThreshold       = 0.3
	backfillThreshold   = 0.2
	backfillPerCategory = 2
)

// ContextBuilder selects a bounded, diverse subset of scored profile items
// for a question.
type ContextBuilder struct {
	rules  *rules.Rules
	scorer *ContextScorer
}

// NewContextBuilder creates a builder. A nil scorer is replaced with one
// over the same rules.
func NewContextBuilder(r *rules.Rules, scorer *ContextScorer) *ContextBuilder {
	if scorer == nil {
		scorer = NewContextScorer(r)
	}
	return &ContextBuilder{rules: r, scorer: scorer}
}

// Analyze classifies a question's complexity and context needs.
func (b *ContextBuilder) Analyze(query string) domain.QueryAnalysis {
	lowered := strings.ToLower(query)
	qa := b.rules.QueryAnalysis

	a := domain.QueryAnalysis{Complexity: domain.LevelStandard}
	switch {
	case rules.ContainsAny(lowered, qa.Complex):
		a.Complexity = domain.LevelComprehensive
	case rules.ContainsAny(lowered, qa.Simple):
		a.Complexity = domain.LevelMinimal
	}

	a.NeedsTechnical = rules.ContainsAny(lowered, qa.Technical)
	a.NeedsProject = rules.ContainsAny(lowered, qa.Project)
	a.NeedsExperience = rules.ContainsAny(lowered, qa.Experience)

	a.Level = a.Complexity
	if a.NeedsTechnical {
		a.Level = domain.LevelTechnicalDeep
	} else if a.NeedsProject {
		a.Level = domain.LevelProjectFocused
	}

	for _, tech := range b.rules.KnownTechnologies() {
		if rules.ContainsTerm(lowered, tech) {
			a.Technologies = append(a.Technologies, tech)
		}
	}

	a.QueryKind = qa.DefaultKind
	for _, k := range qa.Kinds {
		if rules.ContainsAny(lowered, k.Keywords) {
			a.QueryKind = k.Kind
			break
		}
	}
	return a
}

// Build scores the profile and hits against query and assembles a bundle.
// Identical inputs always produce identical bundles.
func (b *ContextBuilder) Build(profile *domain.Profile, query string, hits []domain.SearchHit) *domain.ContextBundle {
	analysis := b.Analyze(query)
	items := b.scorer.Score(profile, query, hits)

	analysis.Level = adjustLevel(analysis.Level, items)
	level := domain.LevelFor(analysis.Level)

	selected := selectItems(items, level, analysis)

	critical := b.criticalContext(selected, query, analysis)
	if len(critical.Missing) > 0 {
		selected = backfill(items, selected, critical.Missing, level)
		critical = b.criticalContext(selected, query, analysis)
	}

	bundle := &domain.ContextBundle{
		Level:    level,
		Analysis: analysis,
		Items:    selected,
		Sections: formatSections(selected),
		Critical: critical,
	}
	bundle.Metadata = buildMetadata(len(items), selected, critical)
	return bundle
}

// adjustLevel moves away from comprehensive or minimal when the number of
// highly relevant items does not support them.
func adjustLevel(name domain.ContextLevelName, items []domain.ContextItem) domain.ContextLevelName {
	high := 0
	for _, item := range items {
		if item.RelevanceScore > highRelevance {
			high++
		}
	}
	switch {
	case name == domain.LevelComprehensive && high < minHighForComplex:
		return domain.LevelStandard
	case name == domain.LevelMinimal && high > maxHighForMinimal:
		return domain.LevelStandard
	}
	return name
}

func selectItems(items []domain.ContextItem, level domain.ContextLevel, a domain.QueryAnalysis) []domain.ContextItem {
	var filtered []domain.ContextItem
	for _, item := range items {
		if item.RelevanceScore < level.MinScoreThreshold {
			continue
		}
		if item.Source == domain.SourceActivities && !level.IncludeActivities {
			continue
		}
		filtered = append(filtered, item)
	}

	half := level.MaxItems / 2
	var prioritized []domain.ContextItem
	if a.NeedsTechnical {
		prioritized = append(prioritized, topBy(filtered, half, technicalAxis)...)
	}
	if a.NeedsProject {
		prioritized = append(prioritized, topBy(filtered, half, projectAxis)...)
	}

	selected := make([]domain.ContextItem, 0, level.MaxItems)
	seen := make(map[string]bool)
	for _, item := range append(prioritized, filtered...) {
		if len(selected) == level.MaxItems {
			break
		}
		if seen[item.Content] {
			continue
		}
		seen[item.Content] = true
		selected = append(selected, item)
	}
	return selected
}

func technicalAxis(item domain.ContextItem) float64 { return item.TechnicalScore }

func projectAxis(item domain.ContextItem) float64 { return item.ProjectScore }

// byAxis returns a copy of items ordered by descending axis score. Equal
// scores keep their input (relevance) order.
func byAxis(items []domain.ContextItem, axis func(domain.ContextItem) float64) []domain.ContextItem {
	out := slices.Clone(items)
	slices.SortStableFunc(out, func(a, b domain.ContextItem) int {
		return cmp.Compare(axis(b), axis(a))
	})
	return out
}

// topBy returns up to n items with the highest axis scores above the axis
// threshold.
func topBy(items []domain.ContextItem, n int, axis func(domain.ContextItem) float64) []domain.ContextItem {
	var out []domain.ContextItem
	for _, item := range byAxis(items, axis) {
		if len(out) == n || axis(item) <= axisThreshold {
			break
		}
		out = append(out, item)
	}
	return out
}

func (b *ContextBuilder) criticalContext(selected []domain.ContextItem, query string, a domain.QueryAnalysis) domain.CriticalContext {
	var c domain.CriticalContext
	for _, item := range selected {
		if item.TechnicalScore > axisThreshold {
			c.HasTechnical = true
		}
		if item.ProjectScore > axisThreshold {
			c.HasProject = true
		}
		if rules.ContainsAny(strings.ToLower(item.Content), b.rules.Indicators.Experience) {
			c.HasExperience = true
		}
	}

	if strings.Contains(strings.ToLower(query), "project") && !c.HasProject {
		c.Missing = append(c.Missing, domain.MissingProjectDetails)
	}
	if len(a.Technologies) > 0 && !c.HasTechnical {
		c.Missing = append(c.Missing, domain.MissingTechnicalDetails)
	}
	return c
}

// backfill appends up to backfillPerCategory of the highest scoring
// unselected items per missing category, technical first, and truncates to
// the level's item cap.
func backfill(all, selected []domain.ContextItem, missing []string, level domain.ContextLevel) []domain.ContextItem {
	seen := make(map[string]bool, len(selected))
	for _, item := range selected {
		seen[item.Content] = true
	}

	out := append([]domain.ContextItem(nil), selected...)
	add := func(axis func(domain.ContextItem) float64) {
		added := 0
		for _, item := range byAxis(all, axis) {
			if added == backfillPerCategory || axis(item) <= backfillThreshold {
				return
			}
			if seen[item.Content] {
				continue
			}
			seen[item.Content] = true
			out = append(out, item)
			added++
		}
	}

	if slices.Contains(missing, domain.MissingTechnicalDetails) {
		add(technicalAxis)
	}
	if slices.Contains(missing, domain.MissingProjectDetails) {
		add(projectAxis)
	}

	if limit := level.ItemCap(); len(out) > limit {
		out = out[:limit]
	}
	return out
}

// formatSections groups items by source into the text consumed by the
// validator and prompt templates.
func formatSections(items []domain.ContextItem) domain.Sections {
	bySource := make(map[domain.ContextSource][]domain.ContextItem)
	for _, item := range items {
		bySource[item.Source] = append(bySource[item.Source], item)
	}

	sections := make(domain.Sections)
	if group := bySource[domain.SourceProfile]; len(group) > 0 {
		parts := make([]string, 0, len(group))
		for _, item := range group {
			key, value, ok := strings.Cut(item.Content, ": ")
			if ok && strings.EqualFold(key, profileSummaryKey) {
				parts = append(parts, "Background: "+value)
				continue
			}
			parts = append(parts, item.Content)
		}
		sections[string(domain.SourceProfile)] = strings.Join(parts, " | ")
	}

	if group := bySource[domain.SourceSkills]; len(group) > 0 {
		var order []string
		byCategory := make(map[string][]string)
		for _, item := range group {
			category := item.Metadata[domain.MetaCategory]
			if category == "" {
				category = "General"
			}
			skill := item.Metadata[domain.MetaSkill]
			if skill == "" {
				skill = item.Content
			}
			if _, ok := byCategory[category]; !ok {
				order = append(order, category)
			}
			byCategory[category] = append(byCategory[category], skill)
		}
		parts := make([]string, 0, len(order))
		for _, category := range order {
			parts = append(parts, fmt.Sprintf("%s: %s", category, strings.Join(byCategory[category], ", ")))
		}
		sections[string(domain.SourceSkills)] = strings.Join(parts, " | ")
	}

	if group := bySource[domain.SourceProjects]; len(group) > 0 {
		parts := make([]string, 0, len(group))
		for _, item := range group {
			if strings.Contains(item.Content, "Project:") {
				parts = append(parts, strings.ReplaceAll(item.Content, " | ", " - "))
				continue
			}
			parts = append(parts, item.Content)
		}
		sections[string(domain.SourceProjects)] = strings.Join(parts, " | ")
	}

	if group := bySource[domain.SourceActivities]; len(group) > 0 {
		parts := make([]string, 0, len(group))
		for _, item := range group {
			parts = append(parts, item.Content)
		}
		sections[string(domain.SourceActivities)] = strings.Join(parts, " | ")
	}

	return sections
}

func buildMetadata(total int, selected []domain.ContextItem, critical domain.CriticalContext) domain.BuildMetadata {
	m := domain.BuildMetadata{
		TotalItemsAvailable: total,
		SelectedItems:       len(selected),
		SourceDistribution:  make(map[string]int),
	}
	var sum float64
	for _, item := range selected {
		sum += item.RelevanceScore
		m.SourceDistribution[string(item.Source)]++
		if item.TechnicalScore > axisThreshold {
			m.TechnicalItems++
		}
		if item.ProjectScore > axisThreshold {
			m.ProjectItems++
		}
	}
	if len(selected) > 0 {
		m.AvgRelevance = sum / float64(len(selected))
	}

	score := m.AvgRelevance*0.4 + 0.1
	if critical.HasTechnical {
		score += 0.2
	}
	if critical.HasProject {
		score += 0.2
	}
	score -= 0.1 * float64(len(critical.Missing))
	if m.TechnicalItems > 0 && m.ProjectItems > 0 {
		score += 0.1
	}
	m.QualityScore = domain.Clamp(score)
	return m
}
