package domain

import "strings"

// ContextSource identifies which profile section an item was derived from.
type ContextSource string

const (
	SourceProfile    ContextSource = "profile"
	SourceSkills     ContextSource = "skills"
	SourceProjects   ContextSource = "projects"
	SourceActivities ContextSource = "activities"
)

// Sources lists every source in formatting order.
var Sources = []ContextSource{SourceProfile, SourceSkills, SourceProjects, SourceActivities}

// IsValid checks if the source is known
func (s ContextSource) IsValid() bool {
	switch s {
	case SourceProfile, SourceSkills, SourceProjects, SourceActivities:
		return true
	default:
		return false
	}
}

// Item types produced by the scorer.
const (
	ItemTypeProfileInfo = "profile_info"
	ItemTypeSkill       = "technical_skill"
	ItemTypeProject     = "project"
	ItemTypeActivity    = "activity"
	ItemTypeAttachment  = "attachment"
	ItemTypeSearchHit   = "search_hit"
)

// ContextItem is a scored, renderable fragment of profile data.
type ContextItem struct {
	Content        string            `json:"content"`
	Source         ContextSource     `json:"source"`
	ItemType       string            `json:"item_type"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	RelevanceScore float64           `json:"relevance_score"`
	TechnicalScore float64           `json:"technical_score"`
	ProjectScore   float64           `json:"project_score"`
}

// Clamp bounds v to [0,1].
func Clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// ContextLevelName names a context budget.
type ContextLevelName string

const (
	LevelMinimal        ContextLevelName = "minimal"
	LevelStandard       ContextLevelName = "standard"
	LevelComprehensive  ContextLevelName = "comprehensive"
	LevelTechnicalDeep  ContextLevelName = "technical_deep"
	LevelProjectFocused ContextLevelName = "project_focused"
)

// ContextLevel bounds how much context is assembled.
type ContextLevel struct {
	Name              ContextLevelName
	MaxItems          int
	MinScoreThreshold float64
	IncludeActivities bool
}

// MaxSelectedItems is the hard cap on items after backfill.
const MaxSelectedItems = 12

// BackfillAllowance is how far backfill may exceed a level's MaxItems.
const BackfillAllowance = 2

var contextLevels = map[ContextLevelName]ContextLevel{
	LevelMinimal:        {Name: LevelMinimal, MaxItems: 3, MinScoreThreshold: 0.6, IncludeActivities: false},
	LevelStandard:       {Name: LevelStandard, MaxItems: 6, MinScoreThreshold: 0.4, IncludeActivities: true},
	LevelComprehensive:  {Name: LevelComprehensive, MaxItems: 10, MinScoreThreshold: 0.2, IncludeActivities: true},
	LevelTechnicalDeep:  {Name: LevelTechnicalDeep, MaxItems: 8, MinScoreThreshold: 0.3, IncludeActivities: false},
	LevelProjectFocused: {Name: LevelProjectFocused, MaxItems: 7, MinScoreThreshold: 0.3, IncludeActivities: false},
}

// LevelFor returns the static configuration for name, falling back to standard.
func LevelFor(name ContextLevelName) ContextLevel {
	if lvl, ok := contextLevels[name]; ok {
		return lvl
	}
	return contextLevels[LevelStandard]
}

// ItemCap is the maximum number of items a bundle at this level may hold.
func (l ContextLevel) ItemCap() int {
	return min(l.MaxItems+BackfillAllowance, MaxSelectedItems)
}

// Sections maps a source name to its formatted context text.
type Sections map[string]string

// Get returns the trimmed text for source.
func (s Sections) Get(src ContextSource) string {
	return strings.TrimSpace(s[string(src)])
}

// Clone returns an independent copy.
func (s Sections) Clone() Sections {
	out := make(Sections, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Text joins every non-empty section in source order.
func (s Sections) Text() string {
	var parts []string
	for _, src := range Sources {
		if v := s.Get(src); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, " ")
}

// Empty reports whether no section has content.
func (s Sections) Empty() bool {
	return strings.TrimSpace(s.Text()) == ""
}

// QueryAnalysis is the builder's classification of a question.
type QueryAnalysis struct {
	Complexity      ContextLevelName `json:"complexity"`
	Level           ContextLevelName `json:"level"`
	NeedsTechnical  bool             `json:"needs_technical"`
	NeedsProject    bool             `json:"needs_project"`
	NeedsExperience bool             `json:"needs_experience"`
	Technologies    []string         `json:"technologies,omitempty"`
	QueryKind       string           `json:"query_kind"`
}

// CriticalContext records which axes are covered by the selection.
type CriticalContext struct {
	HasTechnical  bool     `json:"has_technical_context"`
	HasProject    bool     `json:"has_project_context"`
	HasExperience bool     `json:"has_experience_context"`
	Missing       []string `json:"missing,omitempty"`
}

// Missing context categories.
const (
	MissingProjectDetails   = "project_details"
	MissingTechnicalDetails = "technical_details"
)

// BuildMetadata summarizes a bundle for diagnostics.
type BuildMetadata struct {
	TotalItemsAvailable int            `json:"total_items_available"`
	SelectedItems       int            `json:"selected_items"`
	AvgRelevance        float64        `json:"avg_relevance"`
	TechnicalItems      int            `json:"technical_items"`
	ProjectItems        int            `json:"project_items"`
	SourceDistribution  map[string]int `json:"source_distribution"`
	QualityScore        float64        `json:"quality_score"`
}

// ContextBundle is the builder's output for a single question.
type ContextBundle struct {
	Level    ContextLevel    `json:"-"`
	Analysis QueryAnalysis   `json:"analysis"`
	Items    []ContextItem   `json:"items"`
	Sections Sections        `json:"sections"`
	Critical CriticalContext `json:"critical"`
	Metadata BuildMetadata   `json:"metadata"`
}
