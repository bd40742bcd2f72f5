package service

import (
	"testing"

	"github.com/cloo-solutions/companion/internal/domain"
	"github.com/cloo-solutions/companion/internal/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPromptSelector_Classify(t *testing.T) {
	p := NewPromptSelector(rules.Default())

	tests := []struct {
		question string
		expected domain.QueryType
	}{
		{"What programming languages do I know?", domain.QueryTypeTechnicalQuestion},
		{"Am I familiar with Docker?", domain.QueryTypeTechnicalQuestion},
		{"Which project used Angular?", domain.QueryTypeProjectSpecificQuestion},
		{"Analyze my profile", domain.QueryTypeProfileAnalysis},
		{"What job should I apply for?", domain.QueryTypeCareerSuggestions},
		{"Give me a project idea", domain.QueryTypeProjectIdeas},
		{"Where are my skill gaps?", domain.QueryTypeSkillAnalysis},
		{"What Angular projects have I worked on?", domain.QueryTypeGeneralQuestion},
		{"Hello there", domain.QueryTypeGeneralQuestion},
	}

	for _, tt := range tests {
		t.Run(tt.question, func(t *testing.T) {
			assert.Equal(t, tt.expected, p.Classify(tt.question))
		})
	}
}

func TestPromptSelector_Params(t *testing.T) {
	p := NewPromptSelector(rules.Default())

	t.Run("fixed parameters per type", func(t *testing.T) {
		assert.Equal(t, domain.ModelParams{Temperature: 0.3, MaxTokens: 180}, p.Params(domain.QueryTypeSkillAnalysis, 0.9))
		assert.Equal(t, domain.ModelParams{Temperature: 0.7, MaxTokens: 250}, p.Params(domain.QueryTypeProjectIdeas, 0.6))
	})

	t.Run("low quality is conservative", func(t *testing.T) {
		params := p.Params(domain.QueryTypeProjectIdeas, 0.59)
		assert.InDelta(t, 0.56, params.Temperature, 1e-9)
		assert.Equal(t, 150, params.MaxTokens)

		params = p.Params(domain.QueryTypeSearchResponse, 0)
		assert.InDelta(t, 0.16, params.Temperature, 1e-9)
		assert.Equal(t, 150, params.MaxTokens)
	})
}

func TestPromptSelector_Render(t *testing.T) {
	p := NewPromptSelector(rules.Default())
	sections := domain.Sections{
		"profile":  "Background: Engineer with 8 years of experience",
		"skills":   "Frontend: Angular, TypeScript",
		"projects": "Project: Angular dashboard - Technologies: Angular, TypeScript",
	}

	t.Run("every query type renders", func(t *testing.T) {
		for _, qt := range []domain.QueryType{
			domain.QueryTypeProfileAnalysis, domain.QueryTypeCareerSuggestions, domain.QueryTypeProjectIdeas,
			domain.QueryTypeSkillAnalysis, domain.QueryTypeGeneralQuestion, domain.QueryTypeTechnicalQuestion,
			domain.QueryTypeProjectSpecificQuestion,
		} {
			prompt, params, err := p.Render(qt, sections, "question?", 1)
			require.NoError(t, err, qt)
			assert.NotEmpty(t, prompt, qt)
			assert.Equal(t, p.Params(qt, 1), params, qt)
		}
	})

	t.Run("general question focuses on matching sections", func(t *testing.T) {
		prompt, _, err := p.Render(domain.QueryTypeGeneralQuestion, sections, "What Angular projects have I worked on?", 1)
		require.NoError(t, err)
		assert.Equal(t, "Projects: Project: Angular dashboard - Technologies: Angular, TypeScript | Related Skills: Frontend: Angular, TypeScript\n\n"+
			"Question: What Angular projects have I worked on?\n\n"+
			"Task: Give an accurate, specific answer based on the profile information above.\n"+
			"Be precise about technical details. If the information is not available, say so clearly.", prompt)
	})

	t.Run("general question falls back to profile and skills", func(t *testing.T) {
		prompt, _, err := p.Render(domain.QueryTypeGeneralQuestion, sections, "hello", 1)
		require.NoError(t, err)
		assert.Contains(t, prompt, "Profile: Background: Engineer with 8 years of experience | Skills: Frontend: Angular, TypeScript")
	})

	t.Run("general question without context", func(t *testing.T) {
		prompt, _, err := p.Render(domain.QueryTypeGeneralQuestion, domain.Sections{}, "hello", 1)
		require.NoError(t, err)
		assert.Contains(t, prompt, "No relevant information available.")
	})

	t.Run("technical question includes experience context", func(t *testing.T) {
		prompt, _, err := p.Render(domain.QueryTypeTechnicalQuestion, sections, "Do I know Angular?", 1)
		require.NoError(t, err)
		assert.Contains(t, prompt, "Technical Skills: Frontend: Angular, TypeScript\nProject Experience: ")
		assert.Contains(t, prompt, "Experience Context: Background: Engineer with 8 years of experience")
		assert.Contains(t, prompt, "Technical Question: Do I know Angular?")
	})

	t.Run("missing sections render as N/A", func(t *testing.T) {
		prompt, _, err := p.Render(domain.QueryTypeProfileAnalysis, domain.Sections{}, "", 1)
		require.NoError(t, err)
		assert.Contains(t, prompt, "Profile: N/A\nSkills: N/A\n\nTask:")
	})

	t.Run("unknown type uses the general template", func(t *testing.T) {
		prompt, params, err := p.Render("bogus", sections, "hello", 1)
		require.NoError(t, err)
		assert.Contains(t, prompt, "Question: hello")
		assert.Equal(t, p.Params(domain.QueryTypeGeneralQuestion, 1), params)
	})
}

func TestPromptSelector_RenderSearch(t *testing.T) {
	p := NewPromptSelector(rules.Default())

	prompt, params, err := p.RenderSearch([]string{"a fact", "another fact"}, "what?", 1)
	require.NoError(t, err)
	assert.Contains(t, prompt, "Relevant Profile Information: a fact | another fact")
	assert.Equal(t, domain.ModelParams{Temperature: 0.2, MaxTokens: 150}, params)

	prompt, _, err = p.RenderSearch(nil, "what?", 1)
	require.NoError(t, err)
	assert.Contains(t, prompt, "No specific information was found in the profile.")
}
