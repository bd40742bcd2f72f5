package domain

// QueryType selects a prompt template and model parameters.
type QueryType string

const (
	QueryTypeProfileAnalysis         QueryType = "profile_analysis"
	QueryTypeCareerSuggestions       QueryType = "career_suggestions"
	QueryTypeProjectIdeas            QueryType = "project_ideas"
	QueryTypeSkillAnalysis           QueryType = "skill_analysis"
	QueryTypeGeneralQuestion         QueryType = "general_question"
	QueryTypeSearchResponse          QueryType = "search_response"
	QueryTypeTechnicalQuestion       QueryType = "technical_question"
	QueryTypeProjectSpecificQuestion QueryType = "project_specific_question"
)

// IsValid checks if the query type is known
func (t QueryType) IsValid() bool {
	switch t {
	case QueryTypeProfileAnalysis, QueryTypeCareerSuggestions, QueryTypeProjectIdeas,
		QueryTypeSkillAnalysis, QueryTypeGeneralQuestion, QueryTypeSearchResponse,
		QueryTypeTechnicalQuestion, QueryTypeProjectSpecificQuestion:
		return true
	default:
		return false
	}
}

// ModelParams are the sampling parameters for a single completion.
type ModelParams struct {
	Temperature float64 `json:"temperature" yaml:"temperature"`
	MaxTokens   int     `json:"max_tokens" yaml:"max_tokens"`
}

// Document is a text fragment queued for embedding.
type Document struct {
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata"`
}

// Metadata keys used on documents and index records.
const (
	MetaSource   = "source"
	MetaType     = "type"
	MetaKey      = "key"
	MetaName     = "name"
	MetaCategory = "category"
	MetaSkill    = "skill"
)

// SearchHit is a single similarity-search result.
type SearchHit struct {
	Text     string            `json:"text"`
	Snippet  string            `json:"snippet"`
	Score    float64           `json:"score"`
	Metadata map[string]string `json:"metadata"`
}

// Source returns the hit's context source, defaulting to profile.
func (h SearchHit) Source() ContextSource {
	src := ContextSource(h.Metadata[MetaSource])
	if src.IsValid() {
		return src
	}
	return SourceProfile
}
