//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cloo-solutions/companion/internal/api/handlers"
	"github.com/cloo-solutions/companion/internal/api/middleware"
	"github.com/cloo-solutions/companion/internal/cache"
	"github.com/cloo-solutions/companion/internal/domain"
	"github.com/cloo-solutions/companion/internal/jobs"
	"github.com/cloo-solutions/companion/internal/repository"
	"github.com/cloo-solutions/companion/internal/rules"
	"github.com/cloo-solutions/companion/internal/server"
	"github.com/cloo-solutions/companion/internal/service"
	"github.com/cloo-solutions/companion/internal/storage"
	"github.com/cloo-solutions/companion/internal/testutil"
	"github.com/cloo-solutions/companion/internal/vectorindex"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	testAPIKey = "e2e-secret-key-0123456789"

	testProfile = `{
	"user_profile": {
		"name": "Sam Doe",
		"current_role": "Senior Engineer",
		"profile_summary": "Full-stack engineer with 8 years of experience"
	},
	"technical_skills": {
		"Frontend": ["Angular", "TypeScript"],
		"Backend": [".NET", "C#"]
	},
	"projects": [
		{"name": "Angular dashboard", "role": "Lead developer", "description": "Built an analytics dashboard", "technologies": ["Angular", "TypeScript"]},
		{"name": "Billing API", "role": "Backend developer", "description": "Developed invoicing services", "technologies": [".NET", "C#", "SQL Server"]}
	],
	"other_activities": [
		{"title": "Meetup talk", "description": "Spoke about state management"}
	]
}`
)

// hashEmbedder hashes words into a fixed-size vector so similar texts share
// dimensions without calling a model.
type hashEmbedder struct{}

func (hashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float32, 32)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(strings.Trim(word, ".,:?!()|")))
		vec[h.Sum32()%32]++
	}
	return vec, nil
}

// scriptedLLM answers every prompt with a fixed reply and counts calls.
type scriptedLLM struct {
	mu     sync.Mutex
	calls  int
	answer string
}

func (s *scriptedLLM) Complete(ctx context.Context, prompt string, params domain.ModelParams) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.answer, nil
}

func (s *scriptedLLM) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T            *testing.T
	Ctx          context.Context
	PostgresC    *testutil.PostgresContainer
	RustFSC      *testutil.RustFSContainer
	Pool         *pgxpool.Pool
	S3Client     *storage.S3Client
	ServerURL    string
	ServerCloser func()
	Index        *vectorindex.Index
	Store        vectorindex.Store
	LLM          *scriptedLLM
	BinaryDir    string
	HTTPClient   *http.Client
}

// SetupE2EEnv starts Postgres and RustFS containers and serves the full
// pipeline with the index stored in Postgres.
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	s3C := testutil.NewRustFSContainer(ctx, t)
	pool := testutil.NewTestPool(ctx, t, pgC, testutil.MigrationsDir)

	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        s3C.Endpoint(),
		Region:          testutil.RustFSRegion,
		AccessKeyID:     testutil.RustFSAccessKey,
		SecretAccessKey: testutil.RustFSSecretKey,
		Bucket:          "e2e-index",
		UsePathStyle:    true,
	})
	if err != nil {
		t.Fatalf("failed to create S3 client: %v", err)
	}
	if err := s3Client.EnsureBucket(ctx); err != nil {
		t.Fatalf("failed to create bucket: %v", err)
	}

	port, err := getFreePort()
	if err != nil {
		t.Fatalf("failed to get free port: %v", err)
	}

	env := &E2ETestEnv{
		T:          t,
		Ctx:        ctx,
		PostgresC:  pgC,
		RustFSC:    s3C,
		Pool:       pool,
		S3Client:   s3Client,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
	env.Store = service.NewDatabaseIndexStore(repository.NewTxRunner(pool), repository.NewEmbeddingRecordRepository(pool))
	env.startServer(port)

	return env
}

// Cleanup releases all resources
func (e *E2ETestEnv) Cleanup() {
	if e.ServerCloser != nil {
		e.ServerCloser()
	}
	if e.BinaryDir != "" {
		os.RemoveAll(e.BinaryDir)
	}
}

func (e *E2ETestEnv) startServer(port int) {
	t := e.T

	profilePath := filepath.Join(t.TempDir(), "profile.json")
	if err := os.WriteFile(profilePath, []byte(testProfile), 0o644); err != nil {
		t.Fatalf("failed to write profile: %v", err)
	}

	r := rules.Default()
	responses := cache.New(r, cache.Config{})
	e.Index = vectorindex.New(hashEmbedder{}, e.Store, vectorindex.Config{Model: "hash-32"})
	e.LLM = &scriptedLLM{answer: "You led the Angular dashboard project using Angular and TypeScript."}

	profiles := service.NewProfileService(repository.NewProfileFileRepository(profilePath), responses, nil)
	indexSvc := service.NewIndexService(profiles, e.Index)
	processor := jobs.NewIndexRebuildProcessor(indexSvc)
	profiles.SetRebuildRequester(processor)
	processor.RequestRebuild()

	workerCtx, stopWorker := context.WithCancel(e.Ctx)
	worker := jobs.NewNamedWorker("index-rebuild", processor, 100*time.Millisecond)
	go worker.Start(workerCtx)

	assistant := service.NewAssistant(r, profiles, e.Index, responses, e.LLM, service.AssistantConfig{})

	router := server.NewRouter(server.RouterConfig{
		AuthValidator:    middleware.NewStaticKey(testAPIKey, "e2e"),
		AssistantHandler: handlers.NewAssistantHandler(assistant),
		ProfileHandler:   handlers.NewProfileHandler(profiles),
		IndexHandler:     handlers.NewIndexHandler(indexSvc, responses, assistant),
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			t.Logf("server error: %v", err)
		}
	}()

	e.ServerURL = fmt.Sprintf("http://localhost:%d", port)
	waitForServer(t, e.ServerURL, 10*time.Second)

	e.ServerCloser = func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
		stopWorker()
		worker.Stop()
	}
}

// WaitForIndex blocks until the index holds at least n records.
func (e *E2ETestEnv) WaitForIndex(n int, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if e.Index.Len() >= n {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	e.T.Fatalf("index did not reach %d records within %v (have %d)", n, timeout, e.Index.Len())
}

// BuildBinaries builds the companion CLI
func (e *E2ETestEnv) BuildBinaries() {
	tmpDir, err := os.MkdirTemp("", "companion-e2e-*")
	if err != nil {
		e.T.Fatalf("failed to create temp dir: %v", err)
	}
	e.BinaryDir = tmpDir

	cmd := exec.Command("go", "build", "-o", filepath.Join(tmpDir, "companion"), "./cmd/companion")
	cmd.Dir = "../.."
	if out, err := cmd.CombinedOutput(); err != nil {
		e.T.Fatalf("failed to build companion: %v\n%s", err, out)
	}
}

// RunCompanion runs the companion CLI against the test server
func (e *E2ETestEnv) RunCompanion(args ...string) (string, error) {
	cmd := exec.Command(filepath.Join(e.BinaryDir, "companion"), args...)
	cmd.Env = append(os.Environ(),
		fmt.Sprintf("COMPANION_API_KEY=%s", testAPIKey),
		fmt.Sprintf("COMPANION_API_URL=%s", e.ServerURL),
		fmt.Sprintf("XDG_CONFIG_HOME=%s", e.T.TempDir()),
	)
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// APIResponse represents a standard API response
type APIResponse struct {
	StatusCode int
	Data       json.RawMessage `json:"data"`
	Error      string          `json:"error,omitempty"`
	Code       string          `json:"code,omitempty"`
}

// Get performs an authenticated GET request
func (e *E2ETestEnv) Get(path string) (*APIResponse, error) {
	return e.doRequest(http.MethodGet, path, nil, testAPIKey)
}

// Post performs an authenticated POST request
func (e *E2ETestEnv) Post(path string, body interface{}) (*APIResponse, error) {
	return e.doRequest(http.MethodPost, path, body, testAPIKey)
}

// Put performs an authenticated PUT request
func (e *E2ETestEnv) Put(path string, body interface{}) (*APIResponse, error) {
	return e.doRequest(http.MethodPut, path, body, testAPIKey)
}

// Delete performs an authenticated DELETE request
func (e *E2ETestEnv) Delete(path string) (*APIResponse, error) {
	return e.doRequest(http.MethodDelete, path, nil, testAPIKey)
}

// Raw performs a request with an explicit token, returning error statuses
// instead of failing on them.
func (e *E2ETestEnv) Raw(method, path string, body interface{}, authToken string) (*APIResponse, error) {
	return e.doRequest(method, path, body, authToken)
}

func (e *E2ETestEnv) doRequest(method, path string, body interface{}, authToken string) (*APIResponse, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequest(method, e.ServerURL+path, reqBody)
	if err != nil {
		return nil, err
	}

	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	apiResp := &APIResponse{StatusCode: resp.StatusCode}
	if len(bytes.TrimSpace(respBody)) == 0 {
		return apiResp, nil
	}
	if err := json.Unmarshal(respBody, apiResp); err != nil {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}
	return apiResp, nil
}

func waitForServer(t *testing.T, url string, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("server did not start within %v", timeout)
}

func getFreePort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

func mustProfile(t *testing.T, data json.RawMessage) *domain.Profile {
	t.Helper()
	var p domain.Profile
	if err := json.Unmarshal(data, &p); err != nil {
		t.Fatalf("failed to decode profile: %v", err)
	}
	return &p
}
