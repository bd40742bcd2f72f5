package server

import (
	"bytes"
	"context"
	"encoding/json"
	"hash/fnv"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/cloo-solutions/companion/internal/api/handlers"
	"github.com/cloo-solutions/companion/internal/api/middleware"
	"github.com/cloo-solutions/companion/internal/cache"
	"github.com/cloo-solutions/companion/internal/domain"
	"github.com/cloo-solutions/companion/internal/rules"
	"github.com/cloo-solutions/companion/internal/service"
	"github.com/cloo-solutions/companion/internal/vectorindex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testProfile = `{
	"user_profile": {
		"name": "Sam Doe",
		"profile_summary": "Frontend engineer with 6 years of experience"
	},
	"technical_skills": {
		"Frontend": ["Angular", "TypeScript"]
	},
	"projects": [
		{"name": "Angular dashboard", "role": "Lead developer", "description": "Built an analytics dashboard", "technologies": ["Angular", "TypeScript"]}
	],
	"other_activities": [
		{"title": "Meetup talk", "description": "Spoke about state management"}
	]
}`

// bagOfWordsEmbedder hashes words into a small vector so similar texts share
// dimensions.
type bagOfWordsEmbedder struct{}

func (bagOfWordsEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float32, 16)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(strings.Trim(word, ".,:?!()|")))
		vec[h.Sum32()%16]++
	}
	return vec, nil
}

type stubLLM struct {
	mu      sync.Mutex
	calls   int
	answer  string
	prompts []string
}

func (s *stubLLM) Complete(ctx context.Context, prompt string, params domain.ModelParams) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.prompts = append(s.prompts, prompt)
	return s.answer, nil
}

type memoryProfiles struct {
	mu      sync.Mutex
	profile *domain.Profile
}

func (m *memoryProfiles) Load(ctx context.Context) (*domain.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.profile, nil
}

func (m *memoryProfiles) Save(ctx context.Context, p *domain.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profile = p
	return nil
}

type rebuildCounter struct {
	mu    sync.Mutex
	count int
}

func (r *rebuildCounter) RequestRebuild() {
	r.mu.Lock()
	r.count++
	r.mu.Unlock()
}

type testApp struct {
	router   http.Handler
	llm      *stubLLM
	index    *vectorindex.Index
	rebuilds *rebuildCounter
}

func setupRouter(t *testing.T, auth middleware.AuthValidator) *testApp {
	t.Helper()

	var profile domain.Profile
	require.NoError(t, json.Unmarshal([]byte(testProfile), &profile))

	r := rules.Default()
	responses := cache.New(r, cache.Config{})
	idx := vectorindex.New(bagOfWordsEmbedder{}, nil, vectorindex.Config{Model: "bag-of-words"})
	llm := &stubLLM{answer: "You led the Angular dashboard project, built with Angular and TypeScript."}
	rebuilds := &rebuildCounter{}

	profiles := service.NewProfileService(&memoryProfiles{profile: &profile}, responses, rebuilds)
	indexSvc := service.NewIndexService(profiles, idx)
	assistant := service.NewAssistant(r, profiles, idx, responses, llm, service.AssistantConfig{})

	_, err := indexSvc.Rebuild(context.Background())
	require.NoError(t, err)

	router := NewRouter(RouterConfig{
		AuthValidator:    auth,
		AssistantHandler: handlers.NewAssistantHandler(assistant),
		ProfileHandler:   handlers.NewProfileHandler(profiles),
		IndexHandler:     handlers.NewIndexHandler(indexSvc, responses, assistant),
	})
	return &testApp{router: router, llm: llm, index: idx, rebuilds: rebuilds}
}

func (a *testApp) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, into any) {
	t.Helper()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NoError(t, json.Unmarshal(envelope.Data, into))
}

func TestRouter_HealthEndpoint(t *testing.T) {
	app := setupRouter(t, nil)

	w := app.do(t, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	var data map[string]string
	decodeData(t, w, &data)
	assert.Equal(t, "ok", data["status"])
}

func TestRouter_AskAndCache(t *testing.T) {
	app := setupRouter(t, nil)
	body := `{"question":"What Angular projects have I worked on?"}`

	w := app.do(t, http.MethodPost, "/ask", body)
	require.Equal(t, http.StatusOK, w.Code)

	var first service.AskResult
	decodeData(t, w, &first)
	assert.True(t, first.Success)
	assert.False(t, first.Cached)
	assert.Equal(t, app.llm.answer, first.Response)
	assert.Equal(t, domain.LevelProjectFocused, first.Level)
	assert.Positive(t, first.ContextUsed)
	require.Len(t, app.llm.prompts, 1)
	assert.Contains(t, app.llm.prompts[0], "Angular dashboard")

	w = app.do(t, http.MethodPost, "/ask", body)
	require.Equal(t, http.StatusOK, w.Code)

	var second service.AskResult
	decodeData(t, w, &second)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Response, second.Response)
	assert.Equal(t, 1, app.llm.calls)

	w = app.do(t, http.MethodGet, "/history", "")
	require.Equal(t, http.StatusOK, w.Code)
	var history handlers.HistoryResponse
	decodeData(t, w, &history)
	assert.Len(t, history.Messages, 4)

	w = app.do(t, http.MethodGet, "/stats", "")
	require.Equal(t, http.StatusOK, w.Code)
	var stats handlers.StatsResponse
	decodeData(t, w, &stats)
	assert.Equal(t, app.index.Len(), stats.Index.TotalDocuments)
	assert.Equal(t, 1, stats.Cache.TotalEntries)
	assert.Equal(t, int64(1), stats.Cache.Hits)
	assert.Equal(t, 4, stats.HistoryLength)

	w = app.do(t, http.MethodDelete, "/history", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = app.do(t, http.MethodPost, "/cache/invalidate", "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = app.do(t, http.MethodGet, "/stats", "")
	decodeData(t, w, &stats)
	assert.Equal(t, 0, stats.Cache.TotalEntries)
	assert.Equal(t, 0, stats.HistoryLength)
}

func TestRouter_AskValidation(t *testing.T) {
	app := setupRouter(t, nil)

	w := app.do(t, http.MethodPost, "/ask", `{"question":"   "}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = app.do(t, http.MethodPost, "/ask", `{"question":"`+strings.Repeat("a", service.MaxQuestionLength+1)+`"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, app.llm.calls)
}

func TestRouter_SearchAndRebuild(t *testing.T) {
	app := setupRouter(t, nil)

	w := app.do(t, http.MethodGet, "/search?q=Angular+TypeScript&k=2", "")
	require.Equal(t, http.StatusOK, w.Code)
	var search handlers.SearchResponse
	decodeData(t, w, &search)
	assert.LessOrEqual(t, len(search.Results), 2)
	for _, hit := range search.Results {
		assert.GreaterOrEqual(t, hit.Score, vectorindex.DefaultMinScore)
	}

	w = app.do(t, http.MethodPost, "/index/rebuild", "")
	require.Equal(t, http.StatusOK, w.Code)
	var rebuild handlers.RebuildResponse
	decodeData(t, w, &rebuild)
	assert.Equal(t, app.index.Len(), rebuild.DocumentsAdded)
}

func TestRouter_ProfileUpdate(t *testing.T) {
	app := setupRouter(t, nil)

	w := app.do(t, http.MethodPost, "/ask", `{"question":"What Angular projects have I worked on?"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = app.do(t, http.MethodPut, "/profile", `{
		"user_profile": {"name": "Sam Doe"},
		"technical_skills": {"Backend": ["Go"]},
		"projects": [],
		"other_activities": []
	}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, app.rebuilds.count)

	w = app.do(t, http.MethodGet, "/profile", "")
	require.Equal(t, http.StatusOK, w.Code)
	var profile domain.Profile
	decodeData(t, w, &profile)
	require.Len(t, profile.Skills, 1)
	assert.Equal(t, "Backend", profile.Skills[0].Name)

	w = app.do(t, http.MethodGet, "/stats", "")
	var stats handlers.StatsResponse
	decodeData(t, w, &stats)
	assert.Equal(t, 0, stats.Cache.TotalEntries)

	w = app.do(t, http.MethodPut, "/profile", `{"technical_skills": {"": ["Go"]}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_RequireAuth(t *testing.T) {
	app := setupRouter(t, middleware.NewStaticKey("secret-token", "api-key"))

	routes := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/ask"},
		{http.MethodGet, "/history"},
		{http.MethodDelete, "/history"},
		{http.MethodGet, "/profile"},
		{http.MethodPut, "/profile"},
		{http.MethodPost, "/index/rebuild"},
		{http.MethodGet, "/search"},
		{http.MethodGet, "/stats"},
		{http.MethodPost, "/cache/invalidate"},
	}

	for _, route := range routes {
		t.Run(route.method+" "+route.path, func(t *testing.T) {
			w := app.do(t, route.method, route.path, "")
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}

	t.Run("health stays public", func(t *testing.T) {
		w := app.do(t, http.MethodGet, "/health", "")
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("valid key", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/stats", nil)
		req.Header.Set("Authorization", "Bearer secret-token")
		w := httptest.NewRecorder()
		app.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestRouter_BodyLimit(t *testing.T) {
	app := setupRouter(t, nil)

	w := app.do(t, http.MethodPost, "/ask", `{"question":"`+strings.Repeat("a", 2*1024*1024)+`"}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}
