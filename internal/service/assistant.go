package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"maps"
	"strings"
	"sync"
	"time"

	"github.com/cloo-solutions/companion/internal/cache"
	"github.com/cloo-solutions/companion/internal/domain"
	"github.com/cloo-solutions/companion/internal/rules"
	"github.com/cloo-solutions/companion/internal/telemetry"
	"github.com/google/uuid"
)

const (
	DefaultTopK         = 5
	DefaultHistorySize  = 20
	MaxQuestionLength   = 2000
	defaultModelTimeout = 30 * time.Second
	defaultEmbedTimeout = 10 * time.Second

	fallbackResponse = "Sorry, I couldn't generate an answer right now. Please try again in a moment."
)

// Plan steps reported with every answer.
const (
	StepUnderstand = "understand_question"
	StepSearch     = "search_knowledge"
	StepAnalyze    = "analyze_data"
	StepGenerate   = "generate_response"
)

// LanguageModel generates a completion for a prompt.
type LanguageModel interface {
	Complete(ctx context.Context, prompt string, params domain.ModelParams) (string, error)
}

// ProfileSource provides the current profile snapshot.
type ProfileSource interface {
	Snapshot(ctx context.Context) (*domain.Profile, error)
}

// SearchIndex finds profile fragments similar to a question.
type SearchIndex interface {
	SearchText(ctx context.Context, query string, k int) ([]domain.SearchHit, error)
	Len() int
}

// ResponseCache memoizes answers by question, query type and context
// fingerprint.
type ResponseCache interface {
	Get(question string, qt domain.QueryType, fingerprint string) (string, bool)
	Put(question string, qt domain.QueryType, response, fingerprint string) bool
	InvalidateAll()
}

// Message is one turn of the conversation history.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ValidationSummary is the part of a validation report returned to callers.
type ValidationSummary struct {
	Quality       domain.QualityLabel `json:"quality"`
	QualityScore  float64             `json:"quality_score"`
	Issues        int                 `json:"issues"`
	CriticalCount int                 `json:"critical_issues"`
	Repaired      bool                `json:"repaired"`
	Suggestions   []string            `json:"suggestions,omitempty"`
}

// AskResult is the outcome of a single question.
type AskResult struct {
	ID             string                  `json:"id"`
	Success        bool                    `json:"success"`
	Response       string                  `json:"response"`
	Error          string                  `json:"error,omitempty"`
	ErrorCode      string                  `json:"error_code,omitempty"`
	Cached         bool                    `json:"cached"`
	QueryType      domain.QueryType        `json:"query_type"`
	Level          domain.ContextLevelName `json:"level"`
	Plan           []string                `json:"plan"`
	ContextUsed    int                     `json:"context_used"`
	SearchHits     int                     `json:"search_hits"`
	SearchDegraded bool                    `json:"search_degraded,omitempty"`
	Validation     ValidationSummary       `json:"validation"`
	Params         domain.ModelParams      `json:"params"`
	ExecutionTime  string                  `json:"execution_time"`
}

// AssistantConfig configures an Assistant.
type AssistantConfig struct {
	TopK             int
	HistorySize      int
	ModelTimeout     time.Duration
	EmbeddingTimeout time.Duration
}

// Assistant answers questions about the profile by assembling context and
// calling the language model.
type Assistant struct {
	rules     *rules.Rules
	profiles  ProfileSource
	index     SearchIndex
	cache     ResponseCache
	llm       LanguageModel
	builder   *ContextBuilder
	validator *ContextValidator
	prompts   *PromptSelector
	cfg       AssistantConfig

	mu      sync.Mutex
	history []Message
}

// NewAssistant creates an Assistant. index and responses may be nil, which
// disables vector search and caching respectively. A nil llm makes every
// uncached answer fail with ErrModelUnavailable.
func NewAssistant(
	r *rules.Rules,
	profiles ProfileSource,
	index SearchIndex,
	responses ResponseCache,
	llm LanguageModel,
	cfg AssistantConfig,
) *Assistant {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = DefaultHistorySize
	}
	if cfg.ModelTimeout <= 0 {
		cfg.ModelTimeout = defaultModelTimeout
	}
	if cfg.EmbeddingTimeout <= 0 {
		cfg.EmbeddingTimeout = defaultEmbedTimeout
	}
	return &Assistant{
		rules:     r,
		profiles:  profiles,
		index:     index,
		cache:     responses,
		llm:       llm,
		builder:   NewContextBuilder(r, nil),
		validator: NewContextValidator(r),
		prompts:   NewPromptSelector(r),
		cfg:       cfg,
	}
}

// Ask answers question. Model failures do not produce an error; they yield
// an unsuccessful result carrying a fallback response. Errors are returned
// only for invalid questions or an unreadable profile.
func (a *Assistant) Ask(ctx context.Context, question string) (*AskResult, error) {
	start := time.Now()
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, domain.ErrEmptyQuestion
	}
	if len(question) > MaxQuestionLength {
		return nil, domain.ErrQuestionTooLong
	}

	qt := a.prompts.Classify(question)
	ctx, span := telemetry.StartSpan(ctx, "Assistant.Ask", telemetry.SpanAttributes{
		QueryType: string(qt),
		Operation: "ask",
	})
	defer span.End()

	profile, err := a.profiles.Snapshot(ctx)
	if err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}

	a.remember("user", question)
	result := &AskResult{
		ID:        uuid.NewString(),
		QueryType: qt,
		Plan:      a.plan(question),
	}
	defer func() {
		result.ExecutionTime = fmt.Sprintf("%.2fs", time.Since(start).Seconds())
		a.remember("assistant", result.Response)
	}()

	hits, degraded := a.search(ctx, question)
	result.SearchHits = len(hits)
	result.SearchDegraded = degraded

	bundle, report, repaired := a.assemble(ctx, profile, question, hits)
	result.Level = bundle.Level.Name
	span.SetAttributes(telemetry.SpanAttributes{Level: string(result.Level)})
	result.ContextUsed = len(bundle.Items)
	result.Validation = summarize(report, repaired)

	fingerprint := cache.Fingerprint(bundle.Sections)
	if a.cache != nil {
		if response, ok := a.cache.Get(question, qt, fingerprint); ok {
			telemetry.AddBreadcrumb(ctx, "cache", "hit "+string(qt))
			result.Success = true
			result.Cached = true
			result.Response = response
			result.Params = a.prompts.Params(qt, report.QualityScore)
			return result, nil
		}
		telemetry.AddBreadcrumb(ctx, "cache", "miss "+string(qt))
	}

	prompt, params, err := a.render(qt, bundle, hits, question, report.QualityScore)
	if err != nil {
		span.SetError(err)
		a.fail(result, domain.Wrap(domain.ErrModelUnavailable, err))
		return result, nil
	}
	result.Params = params

	response, err := a.complete(ctx, prompt, params)
	if err != nil {
		log.Printf("assistant: model call failed: %v", err)
		a.fail(result, err)
		return result, nil
	}

	result.Success = true
	result.Response = response
	if a.cache != nil {
		a.cache.Put(question, qt, response, fingerprint)
	}
	return result, nil
}

// plan lists the steps taken to answer question.
func (a *Assistant) plan(question string) []string {
	lowered := strings.ToLower(question)
	steps := []string{StepUnderstand}
	if rules.ContainsAny(lowered, a.rules.Plan.SearchKeywords) {
		steps = append(steps, StepSearch)
	}
	if rules.ContainsAny(lowered, a.rules.Plan.AnalysisKeywords) {
		steps = append(steps, StepAnalyze)
	}
	return append(steps, StepGenerate)
}

// search returns vector hits for question. Failures are logged and reported
// as degraded; the caller continues with lexical scoring only.
func (a *Assistant) search(ctx context.Context, question string) ([]domain.SearchHit, bool) {
	if a.index == nil || a.index.Len() == 0 {
		return nil, false
	}
	ctx, cancel := context.WithTimeout(ctx, a.cfg.EmbeddingTimeout)
	defer cancel()

	hits, err := a.index.SearchText(ctx, question, a.cfg.TopK)
	if err != nil {
		log.Printf("assistant: vector search unavailable, using lexical context only: %v", err)
		telemetry.CaptureError(ctx, err)
		return nil, true
	}
	return hits, false
}

// assemble builds and validates the context, repairing critical gaps once.
func (a *Assistant) assemble(ctx context.Context, profile *domain.Profile, question string, hits []domain.SearchHit) (*domain.ContextBundle, *domain.ValidationReport, bool) {
	_, span := telemetry.StartSpan(ctx, "Assistant.BuildContext", telemetry.SpanAttributes{Operation: "build"})
	bundle := a.builder.Build(profile, question, hits)
	span.End()

	_, span = telemetry.StartSpan(ctx, "Assistant.ValidateContext", telemetry.SpanAttributes{
		Level:     string(bundle.Level.Name),
		Operation: "validate",
	})
	defer span.End()

	report := a.validator.Validate(bundle, question)
	if !report.HasCritical() {
		return bundle, report, false
	}
	repaired := a.validator.Repair(bundle.Sections, report, profile)
	if maps.Equal(repaired, bundle.Sections) {
		return bundle, report, false
	}
	bundle.Sections = repaired
	return bundle, a.validator.Validate(bundle, question), true
}

func (a *Assistant) render(qt domain.QueryType, bundle *domain.ContextBundle, hits []domain.SearchHit, question string, quality float64) (string, domain.ModelParams, error) {
	if len(bundle.Sections) == 0 && len(hits) > 0 {
		results := make([]string, len(hits))
		for i, hit := range hits {
			results[i] = hit.Text
		}
		return a.prompts.RenderSearch(results, question, quality)
	}
	return a.prompts.Render(qt, bundle.Sections, question, quality)
}

func (a *Assistant) complete(ctx context.Context, prompt string, params domain.ModelParams) (string, error) {
	ctx, span := telemetry.StartSpan(ctx, "Assistant.Complete", telemetry.SpanAttributes{Operation: "complete"})
	defer span.End()

	if a.llm == nil {
		return "", domain.Wrap(domain.ErrModelUnavailable, errors.New("no language model configured"))
	}

	ctx, cancel := context.WithTimeout(ctx, a.cfg.ModelTimeout)
	defer cancel()

	response, err := a.llm.Complete(ctx, prompt, params)
	if err != nil {
		if domain.CodeOf(err) == "" {
			if errors.Is(err, context.DeadlineExceeded) {
				err = domain.Wrap(domain.ErrModelTimeout, err)
			} else {
				err = domain.Wrap(domain.ErrModelUnavailable, err)
			}
		}
		span.SetError(err)
		return "", err
	}
	response = strings.TrimSpace(response)
	if response == "" {
		return "", domain.Wrap(domain.ErrModelUnavailable, errors.New("empty completion"))
	}
	return response, nil
}

func (a *Assistant) fail(result *AskResult, err error) {
	result.Success = false
	result.Response = fallbackResponse
	result.Error = err.Error()
	result.ErrorCode = domain.CodeOf(err)
}

func summarize(report *domain.ValidationReport, repaired bool) ValidationSummary {
	return ValidationSummary{
		Quality:       report.OverallQuality,
		QualityScore:  report.QualityScore,
		Issues:        len(report.Issues),
		CriticalCount: len(report.CriticalIssues()),
		Repaired:      repaired,
		Suggestions:   report.Suggestions,
	}
}

func (a *Assistant) remember(role, content string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.history = append(a.history, Message{Role: role, Content: content, Timestamp: time.Now().UTC()})
	if over := len(a.history) - a.cfg.HistorySize; over > 0 {
		a.history = append([]Message(nil), a.history[over:]...)
	}
}

// History returns the most recent messages, oldest first.
func (a *Assistant) History() []Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Message{}, a.history...)
}

// ClearHistory forgets the conversation.
func (a *Assistant) ClearHistory() {
	a.mu.Lock()
	a.history = nil
	a.mu.Unlock()
}

// HistoryLen returns the number of stored messages.
func (a *Assistant) HistoryLen() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.history)
}
