package domain

// Severity of a validation finding.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// IssueCategory groups validation findings.
type IssueCategory string

const (
	CategoryTechnicalAccuracy IssueCategory = "technical_accuracy"
	CategoryCompleteness      IssueCategory = "completeness"
	CategoryConsistency       IssueCategory = "consistency"
	CategoryExperience        IssueCategory = "experience"
	CategoryProjectDetail     IssueCategory = "project_detail"
)

// ValidationIssue is a single finding produced by the validator.
type ValidationIssue struct {
	Severity   Severity      `json:"severity"`
	Category   IssueCategory `json:"category"`
	Message    string        `json:"message"`
	Suggestion string        `json:"suggestion,omitempty"`
	// Section is the context section a completeness issue refers to.
	Section ContextSource `json:"section,omitempty"`
}

// QualityLabel is a coarse band over the quality score.
type QualityLabel string

const (
	QualityExcellent QualityLabel = "excellent"
	QualityGood      QualityLabel = "good"
	QualityFair      QualityLabel = "fair"
	QualityPoor      QualityLabel = "poor"
)

// LabelForScore maps a quality score to its band.
func LabelForScore(score float64) QualityLabel {
	switch {
	case score >= 0.9:
		return QualityExcellent
	case score >= 0.7:
		return QualityGood
	case score >= 0.5:
		return QualityFair
	default:
		return QualityPoor
	}
}

// ValidationReport is the outcome of validating a context bundle.
type ValidationReport struct {
	Issues               []ValidationIssue `json:"issues"`
	TechnicalAccuracy    float64           `json:"technical_accuracy"`
	Completeness         float64           `json:"completeness"`
	Consistency          float64           `json:"consistency"`
	QualityScore         float64           `json:"quality_score"`
	OverallQuality       QualityLabel      `json:"overall_quality"`
	Suggestions          []string          `json:"suggestions,omitempty"`
	HasTechnicalContext  bool              `json:"has_technical_context"`
	HasProjectContext    bool              `json:"has_project_context"`
	HasExperienceContext bool              `json:"has_experience_context"`
}

// CriticalIssues returns only critical findings.
func (r *ValidationReport) CriticalIssues() []ValidationIssue {
	if r == nil {
		return nil
	}
	var out []ValidationIssue
	for _, issue := range r.Issues {
		if issue.Severity == SeverityCritical {
			out = append(out, issue)
		}
	}
	return out
}

// HasCritical reports whether any critical issue was found.
func (r *ValidationReport) HasCritical() bool {
	return len(r.CriticalIssues()) > 0
}
