package service

import (
	"testing"

	"github.com/cloo-solutions/companion/internal/domain"
	"github.com/cloo-solutions/companion/internal/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextScorer_TechnicalTerms(t *testing.T) {
	s := NewContextScorer(rules.Default())

	tests := []struct {
		query    string
		expected []string
	}{
		{"What Angular projects have I worked on?", []string{"angular"}},
		{"Do I know C# and .NET?", []string{".net", "c#"}},
		{"experience with mysql and dynamodb", []string{"dynamodb", "mysql"}},
		{"used express.js for REST API work", []string{"express.js", "rest api"}},
		{"what are my hobbies", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.expected, s.TechnicalTerms(tt.query))
		})
	}
}

func TestContextScorer_Score(t *testing.T) {
	s := NewContextScorer(rules.Default())

	t.Run("scores stay within bounds", func(t *testing.T) {
		p := loadProfile(t, fullProfileJSON)
		queries := []string{
			"",
			"What Angular projects have I worked on?",
			"angular angular typescript rxjs projects built developed worked",
			"analyze my cloud experience with azure docker .net c# sql server",
		}
		for _, q := range queries {
			for _, item := range s.Score(p, q, nil) {
				assert.GreaterOrEqual(t, item.RelevanceScore, 0.0, q)
				assert.LessOrEqual(t, item.RelevanceScore, 1.0, q)
				assert.GreaterOrEqual(t, item.TechnicalScore, 0.0, q)
				assert.LessOrEqual(t, item.TechnicalScore, 1.0, q)
				assert.GreaterOrEqual(t, item.ProjectScore, 0.0, q)
				assert.LessOrEqual(t, item.ProjectScore, 1.0, q)
			}
		}
	})

	t.Run("enumerates every renderable fragment", func(t *testing.T) {
		p := loadProfile(t, fullProfileJSON)
		items := s.Score(p, "anything", nil)

		counts := make(map[domain.ContextSource]int)
		for _, item := range items {
			counts[item.Source]++
		}
		assert.Equal(t, 3, counts[domain.SourceProfile])
		assert.Equal(t, 10, counts[domain.SourceSkills])
		assert.Equal(t, 3, counts[domain.SourceProjects])
		assert.Equal(t, 2, counts[domain.SourceActivities])
	})

	t.Run("relevance is non-decreasing as matched terms are added", func(t *testing.T) {
		p := &domain.Profile{Skills: domain.SkillCategories{{Name: "Frontend", Skills: []string{"Angular"}}}}
		queries := []string{
			"hello",
			"technical hello",
			"technical skill hello",
			"technical skill frontend hello",
			"technical skill frontend angular hello",
		}

		prev := 0.0
		for _, q := range queries {
			items := s.Score(p, q, nil)
			require.Len(t, items, 1)
			assert.GreaterOrEqual(t, items[0].RelevanceScore, prev, q)
			prev = items[0].RelevanceScore
		}
	})

	t.Run("is deterministic", func(t *testing.T) {
		p := loadProfile(t, fullProfileJSON)
		q := "Which projects used Angular or .NET?"
		first := s.Score(p, q, nil)
		for i := 0; i < 5; i++ {
			assert.Equal(t, first, s.Score(p, q, nil))
		}
	})

	t.Run("ties keep enumeration order", func(t *testing.T) {
		p := &domain.Profile{
			Activities: []domain.Activity{
				{Name: "first"},
				{Name: "second"},
				{Name: "third"},
			},
		}
		items := s.Score(p, "unrelated", nil)
		require.Len(t, items, 3)
		assert.Equal(t, "Activity: first", items[0].Content)
		assert.Equal(t, "Activity: second", items[1].Content)
		assert.Equal(t, "Activity: third", items[2].Content)
	})

	t.Run("exact skill match outranks other skills", func(t *testing.T) {
		p := loadProfile(t, fullProfileJSON)
		items := s.Score(p, "Do I know Angular?", nil)

		var angular, csharp float64
		for _, item := range items {
			switch item.Metadata[domain.MetaSkill] {
			case "Angular":
				angular = item.RelevanceScore
			case "C#":
				csharp = item.RelevanceScore
			}
		}
		assert.Greater(t, angular, csharp)
	})

	t.Run("angular project scenario", func(t *testing.T) {
		p := loadProfile(t, angularProfileJSON)
		items := s.Score(p, "What Angular projects have I worked on?", nil)

		proj := findItem(items, domain.SourceProjects, domain.ItemTypeProject)
		require.NotNil(t, proj)
		assert.Equal(t, "Project: Angular dashboard | Technologies: Angular, TypeScript", proj.Content)
		assert.Equal(t, 1.0, proj.RelevanceScore)
		assert.InDelta(t, 0.85, proj.ProjectScore, 1e-9)
		assert.InDelta(t, 0.3, proj.TechnicalScore, 1e-9)

		act := findItem(items, domain.SourceActivities, domain.ItemTypeActivity)
		require.NotNil(t, act)
		assert.InDelta(t, 0.2, act.ProjectScore, 1e-9)

		skill := findItem(items, domain.SourceSkills, domain.ItemTypeSkill)
		require.NotNil(t, skill)
		assert.Zero(t, skill.ProjectScore)
	})

	t.Run("nil profile yields only hits", func(t *testing.T) {
		hits := []domain.SearchHit{{Text: "Resume: led a platform team", Score: 0.8}}
		items := s.Score(nil, "platform", hits)
		require.Len(t, items, 1)
		assert.Equal(t, domain.ItemTypeSearchHit, items[0].ItemType)
		assert.Equal(t, domain.SourceProfile, items[0].Source)
		assert.GreaterOrEqual(t, items[0].RelevanceScore, 0.8)
		assert.Equal(t, "0.8000", items[0].Metadata["similarity"])
	})
}

func TestContextScorer_Hits(t *testing.T) {
	s := NewContextScorer(rules.Default())
	p := loadProfile(t, angularProfileJSON)

	t.Run("hit matching a structured item raises its relevance", func(t *testing.T) {
		base := s.Score(p, "hobbies", nil)
		act := findItem(base, domain.SourceActivities, domain.ItemTypeActivity)
		require.NotNil(t, act)
		require.Less(t, act.RelevanceScore, 0.95)

		hits := []domain.SearchHit{{
			Text:     act.Content,
			Score:    0.95,
			Metadata: map[string]string{domain.MetaSource: string(domain.SourceActivities)},
		}}
		items := s.Score(p, "hobbies", hits)
		assert.Len(t, items, len(base))

		merged := findItem(items, domain.SourceActivities, domain.ItemTypeActivity)
		require.NotNil(t, merged)
		assert.Equal(t, 0.95, merged.RelevanceScore)
		assert.Equal(t, merged.Content, items[0].Content)
	})

	t.Run("unmatched hits become search_hit items", func(t *testing.T) {
		hits := []domain.SearchHit{
			{Text: "Resume excerpt about Angular", Score: 0.5, Metadata: map[string]string{domain.MetaSource: "projects"}},
			{Text: "", Score: 0.9},
		}
		items := s.Score(p, "angular", hits)

		hit := findItem(items, domain.SourceProjects, domain.ItemTypeSearchHit)
		require.NotNil(t, hit)
		assert.GreaterOrEqual(t, hit.RelevanceScore, 0.5)
		assert.InDelta(t, 0.4, hit.ProjectScore, 1e-9)
	})

	t.Run("duplicate hits collapse", func(t *testing.T) {
		hits := []domain.SearchHit{
			{Text: "Resume excerpt", Score: 0.4},
			{Text: "Resume excerpt", Score: 0.6},
		}
		items := s.Score(p, "resume", hits)

		count := 0
		for _, item := range items {
			if item.Content == "Resume excerpt" {
				count++
				assert.GreaterOrEqual(t, item.RelevanceScore, 0.6)
			}
		}
		assert.Equal(t, 1, count)
	})
}
