package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/domainrank/api"
	"github.com/use-agent/domainrank/config"
	"github.com/use-agent/domainrank/engine"
	"github.com/use-agent/domainrank/models"
	"github.com/use-agent/domainrank/pool"
	"github.com/use-agent/domainrank/scheduler"
	"github.com/use-agent/domainrank/store"
	"github.com/ysmood/gson"
)

type nopSession struct{}

func (nopSession) NewContext(proxy *models.Proxy) (engine.Context, error) {
	return nopContext{}, nil
}
func (nopSession) Close() error { return nil }

type nopContext struct{}

func (nopContext) NewPage() (engine.Page, error) { return nopPage{}, nil }
func (nopContext) Close() error                  { return nil }

type nopPage struct{}

func (nopPage) Navigate(ctx context.Context, url string, timeout time.Duration) error { return nil }
func (nopPage) WaitNetworkIdle(timeout time.Duration) error                           { return nil }
func (nopPage) Screenshot() ([]byte, error)                                           { return nil, nil }
func (nopPage) Eval(js string) (gson.JSON, error)                                     { return gson.New(nil), nil }
func (nopPage) Click(x, y float64) error                                              { return nil }
func (nopPage) Close() error                                                          { return nil }

// instantRun completes every task immediately with a fixed rating.
func instantRun(ctx context.Context, domain string, proxy *models.Proxy, checkpoint chan<- struct{}) (*models.ScrapeResult, error) {
	defer close(checkpoint)
	dr := int64(42)
	return &models.ScrapeResult{
		Domain:  domain,
		Metrics: models.Metrics{DomainRating: &dr},
	}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Server:    config.ServerConfig{Mode: gin.TestMode},
		Scheduler: config.SchedulerConfig{MaxActive: 2, RestartThreshold: 5},
		RateLimit: config.RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000},
		Store:     config.StoreConfig{TTL: time.Hour},
	}
}

func newTestServer(t *testing.T, cfg *config.Config, run scheduler.RunFunc) (*gin.Engine, *store.TaskStore) {
	t.Helper()
	st := store.New(cfg.Store.TTL)
	sched := scheduler.New(run, st, cfg.Scheduler)
	p := pool.New(nopSession{})
	return api.NewRouter(sched, p, st, cfg, time.Now(), "test"), st
}

func doJSON(t *testing.T, r *gin.Engine, method, path, body string, headers map[string]string) (*httptest.ResponseRecorder, gson.JSON) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var parsed interface{}
	if len(w.Body.Bytes()) > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &parsed); err != nil {
			t.Fatalf("response is not JSON: %v\n%s", err, w.Body.String())
		}
	}
	return w, gson.New(parsed)
}

func TestScrapeSubmitAndPollResult(t *testing.T) {
	r, st := newTestServer(t, testConfig(), instantRun)

	w, body := doJSON(t, r, http.MethodPost, "/api/v1/scrape",
		`{"domain": "example.com"}`, nil)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", w.Code, w.Body.String())
	}
	taskID := body.Get("task_id").Str()
	if taskID == "" {
		t.Fatal("no task_id in response")
	}

	// instantRun resolves almost immediately; wait for the record.
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, ok := st.Get(taskID); ok || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	w, body = doJSON(t, r, http.MethodGet, "/api/v1/result/"+taskID, "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("result status = %d: %s", w.Code, w.Body.String())
	}
	if got := body.Get("task.status").Str(); got != "completed" {
		t.Errorf("task status = %q, want completed", got)
	}
	if got := body.Get("result.metrics.domain_rating").Int(); got != 42 {
		t.Errorf("domain_rating = %d, want 42", got)
	}
}

func TestScrapeValidation(t *testing.T) {
	r, _ := newTestServer(t, testConfig(), instantRun)

	tests := []struct {
		name string
		body string
	}{
		{"missing domain", `{}`},
		{"proxy ip without port", `{"domain": "a.com", "proxy_ip": "10.0.0.1"}`},
		{"proxy port without ip", `{"domain": "a.com", "proxy_port": 8080}`},
		{"malformed json", `{"domain": `},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, body := doJSON(t, r, http.MethodPost, "/api/v1/scrape", tt.body, nil)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400: %s", w.Code, w.Body.String())
			}
			if code := body.Get("error.code").Str(); code != models.ErrCodeInvalidInput {
				t.Errorf("error code = %q, want %s", code, models.ErrCodeInvalidInput)
			}
		})
	}
}

func TestBatchAcceptsMixedEntries(t *testing.T) {
	r, _ := newTestServer(t, testConfig(), instantRun)

	w, body := doJSON(t, r, http.MethodPost, "/api/v1/batch",
		`{"domains": ["a.com", {"domain": "b.com", "proxy_ip": "10.0.0.1", "proxy_port": 8080}]}`, nil)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", w.Code, w.Body.String())
	}
	if n := len(body.Get("task_ids").Arr()); n != 2 {
		t.Errorf("task_ids = %d entries, want 2", n)
	}
}

func TestBatchRejectsEmptyAndBadEntries(t *testing.T) {
	r, _ := newTestServer(t, testConfig(), instantRun)

	for name, payload := range map[string]string{
		"no domains":   `{"domains": []}`,
		"empty string": `{"domains": [""]}`,
		"bad entry":    `{"domains": [42]}`,
	} {
		t.Run(name, func(t *testing.T) {
			w, _ := doJSON(t, r, http.MethodPost, "/api/v1/batch", payload, nil)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400: %s", w.Code, w.Body.String())
			}
		})
	}
}

func TestJobsStatusFilter(t *testing.T) {
	r, st := newTestServer(t, testConfig(), instantRun)

	_, body := doJSON(t, r, http.MethodPost, "/api/v1/scrape", `{"domain": "a.com"}`, nil)
	taskID := body.Get("task_id").Str()

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, ok := st.Get(taskID); ok || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	_, body = doJSON(t, r, http.MethodGet, "/api/v1/jobs?status=completed", "", nil)
	if n := body.Get("total").Int(); n != 1 {
		t.Errorf("completed total = %d, want 1", n)
	}
	_, body = doJSON(t, r, http.MethodGet, "/api/v1/jobs?status=failed", "", nil)
	if n := body.Get("total").Int(); n != 0 {
		t.Errorf("failed total = %d, want 0", n)
	}
}

func TestResultUnknownID(t *testing.T) {
	r, _ := newTestServer(t, testConfig(), instantRun)

	w, _ := doJSON(t, r, http.MethodGet, "/api/v1/result/nope", "", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestHealth(t *testing.T) {
	r, _ := newTestServer(t, testConfig(), instantRun)

	w, body := doJSON(t, r, http.MethodGet, "/api/v1/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got := body.Get("status").Str(); got != "healthy" {
		t.Errorf("status = %q, want healthy", got)
	}
	if body.Get("needs_restart").Bool() {
		t.Error("fresh scheduler must not need a restart")
	}
}

func TestAuthGuardsSubmission(t *testing.T) {
	cfg := testConfig()
	cfg.Auth = config.AuthConfig{Enabled: true, APIKeys: []string{"secret"}}
	r, _ := newTestServer(t, cfg, instantRun)

	w, _ := doJSON(t, r, http.MethodPost, "/api/v1/scrape", `{"domain": "a.com"}`, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status without key = %d, want 401", w.Code)
	}

	w, _ = doJSON(t, r, http.MethodPost, "/api/v1/scrape", `{"domain": "a.com"}`,
		map[string]string{"X-API-Key": "secret"})
	if w.Code != http.StatusAccepted {
		t.Fatalf("status with key = %d, want 202: %s", w.Code, w.Body.String())
	}

	// Health stays open for probes.
	w, _ = doJSON(t, r, http.MethodGet, "/api/v1/health", "", nil)
	if w.Code != http.StatusOK {
		t.Errorf("health status = %d, want 200 without auth", w.Code)
	}
}
