package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/GuillaumeRedon/hackathon-IBM-DIA-E22/internal/index"
	"github.com/GuillaumeRedon/hackathon-IBM-DIA-E22/internal/llm"
	"github.com/GuillaumeRedon/hackathon-IBM-DIA-E22/internal/qa"
	"github.com/GuillaumeRedon/hackathon-IBM-DIA-E22/internal/rag"
)

// okHandler is a trivial downstream handler for middleware tests.
var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

// fakeEngine satisfies answerer with canned behavior.
type fakeEngine struct {
	answer    string
	answerErr error
	results   []index.Result
	searchErr error
	lastTurns []qa.Turn
	lastK     int
}

func (f *fakeEngine) Answer(_ context.Context, turns []qa.Turn) (string, error) {
	f.lastTurns = turns
	if f.answerErr != nil {
		return "", f.answerErr
	}
	return f.answer, nil
}

func (f *fakeEngine) Search(_ context.Context, query string, k int) ([]index.Result, error) {
	f.lastK = k
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.results, nil
}

// fakeIdx satisfies index.Index for handler tests.
type fakeIdx struct {
	upserted  []index.Document
	upsertErr error
}

func (f *fakeIdx) Upsert(_ context.Context, doc index.Document) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserted = append(f.upserted, doc)
	return nil
}
func (f *fakeIdx) Search(context.Context, string, int) ([]index.Result, error) { return nil, nil }
func (f *fakeIdx) Count(context.Context) (int, error)                          { return len(f.upserted), nil }
func (f *fakeIdx) Close() error                                                { return nil }

// fakeCatalog satisfies recordStore.
type fakeCatalog struct {
	saved   []qa.Record
	recent  []qa.Record
	saveErr error
}

func (f *fakeCatalog) Save(_ context.Context, rec qa.Record) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, rec)
	return nil
}

func (f *fakeCatalog) Recent(_ context.Context, n int) ([]qa.Record, error) {
	if n < len(f.recent) {
		return f.recent[:n], nil
	}
	return f.recent, nil
}

func newTestServer(t *testing.T, engine *fakeEngine, idx *fakeIdx, cat *fakeCatalog, cfg *Config) *Server {
	t.Helper()
	if cfg == nil {
		cfg = &Config{}
	}
	srv, err := New(engine, idx, cat, cfg, prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(srv.stopRL)
	return srv
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

// TestHandleHealth verifies the liveness endpoint.
func TestHandleHealth(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &fakeEngine{}, &fakeIdx{}, &fakeCatalog{}, nil)
	w := doJSON(t, srv, http.MethodGet, "/api/health", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"ok"`) {
		t.Errorf("unexpected body %q", w.Body.String())
	}
}

// failingPinger always reports its dependency down.
type failingPinger struct{}

func (failingPinger) Name() string               { return "index" }
func (failingPinger) Ping(context.Context) error { return errors.New("unreachable") }

// TestHandleReady_DependencyDown verifies the 503 path with per-check detail.
func TestHandleReady_DependencyDown(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &fakeEngine{}, &fakeIdx{}, &fakeCatalog{}, &Config{
		Pingers: []Pinger{failingPinger{}},
	})
	w := doJSON(t, srv, http.MethodGet, "/api/ready", nil)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}

	var resp readyResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Ready {
		t.Error("expected ready=false")
	}
	if len(resp.Checks) != 1 || resp.Checks[0].Name != "index" || resp.Checks[0].OK {
		t.Errorf("unexpected checks %+v", resp.Checks)
	}
}

// TestHandleReady_NoPingers verifies liveness-only mode returns 200.
func TestHandleReady_NoPingers(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &fakeEngine{}, &fakeIdx{}, &fakeCatalog{}, nil)
	w := doJSON(t, srv, http.MethodGet, "/api/ready", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

// TestHandleAsk verifies the happy path and that turns reach the engine.
func TestHandleAsk(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{answer: "Voici la réponse."}
	srv := newTestServer(t, engine, &fakeIdx{}, &fakeCatalog{}, nil)

	w := doJSON(t, srv, http.MethodPost, "/api/v1/ask", askRequest{Messages: []turnPayload{
		{Role: "user", Content: "Q1"},
		{Role: "agent", Content: "A1"},
		{Role: "user", Content: "Q2"},
	}})

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp askResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Answer != "Voici la réponse." {
		t.Errorf("unexpected answer %q", resp.Answer)
	}
	if len(engine.lastTurns) != 3 || engine.lastTurns[2].Content != "Q2" {
		t.Errorf("turns not forwarded: %+v", engine.lastTurns)
	}
}

// TestHandleAsk_ErrorMapping verifies the typed-error to status mapping.
func TestHandleAsk_ErrorMapping(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		want int
	}{
		{"validation", &rag.ValidationError{Reason: "no user question present"}, http.StatusBadRequest},
		{"generation", &llm.GenerationError{Reason: "rejected", Status: 500}, http.StatusBadGateway},
		{"timeout", &llm.GenerationError{Reason: "timeout", Timeout: true}, http.StatusGatewayTimeout},
		{"store", &index.StoreError{Op: "search", Err: errors.New("down")}, http.StatusInternalServerError},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			srv := newTestServer(t, &fakeEngine{answerErr: tc.err}, &fakeIdx{}, &fakeCatalog{}, nil)
			w := doJSON(t, srv, http.MethodPost, "/api/v1/ask", askRequest{Messages: []turnPayload{
				{Role: "user", Content: "q"},
			}})
			if w.Code != tc.want {
				t.Errorf("expected %d, got %d", tc.want, w.Code)
			}
		})
	}
}

// TestHandleAsk_BadRequest verifies the request validation paths.
func TestHandleAsk_BadRequest(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &fakeEngine{}, &fakeIdx{}, &fakeCatalog{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/ask", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for malformed body, got %d", w.Code)
	}

	w2 := doJSON(t, srv, http.MethodPost, "/api/v1/ask", askRequest{})
	if w2.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for empty conversation, got %d", w2.Code)
	}
}

// TestHandleAddQuestion verifies index upsert, catalog mirror, and response.
func TestHandleAddQuestion(t *testing.T) {
	t.Parallel()

	idx := &fakeIdx{}
	cat := &fakeCatalog{}
	srv := newTestServer(t, &fakeEngine{}, idx, cat, nil)

	w := doJSON(t, srv, http.MethodPost, "/api/v1/questions", addQuestionRequest{
		Title:    "Quand ont lieu les rattrapages ?",
		Content:  "En juin.",
		Topic:    "Examens",
		School:   "EMLV",
		Audience: "student",
	})

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp addQuestionResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "success" || resp.ID == "" {
		t.Errorf("unexpected response %+v", resp)
	}
	if len(idx.upserted) != 1 {
		t.Fatalf("expected 1 upserted document, got %d", len(idx.upserted))
	}
	if idx.upserted[0].ID != resp.ID {
		t.Errorf("document id %q does not match response id %q", idx.upserted[0].ID, resp.ID)
	}
	if !strings.Contains(idx.upserted[0].Text, "Question: Quand ont lieu les rattrapages ?") {
		t.Errorf("document text missing question: %q", idx.upserted[0].Text)
	}
	if len(cat.saved) != 1 || cat.saved[0].ID != resp.ID {
		t.Errorf("catalog not mirrored: %+v", cat.saved)
	}
}

// TestHandleAddQuestion_Invalid verifies enum validation at the boundary.
func TestHandleAddQuestion_Invalid(t *testing.T) {
	t.Parallel()

	idx := &fakeIdx{}
	srv := newTestServer(t, &fakeEngine{}, idx, &fakeCatalog{}, nil)

	w := doJSON(t, srv, http.MethodPost, "/api/v1/questions", addQuestionRequest{
		Title:   "q",
		Content: "a",
		School:  "HARVARD",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown school, got %d", w.Code)
	}
	if len(idx.upserted) != 0 {
		t.Error("expected no upsert for an invalid record")
	}

	w2 := doJSON(t, srv, http.MethodPost, "/api/v1/questions", addQuestionRequest{Content: "a"})
	if w2.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing title, got %d", w2.Code)
	}
}

// TestHandleListQuestions verifies the recent-records listing.
func TestHandleListQuestions(t *testing.T) {
	t.Parallel()

	cat := &fakeCatalog{recent: []qa.Record{
		{ID: "b", Title: "t2", Topic: "x", Language: qa.LanguageFrench, Date: "2024-02-01"},
		{ID: "a", Title: "t1", Topic: "y", Language: qa.LanguageFrench, Date: "2024-01-01"},
	}}
	srv := newTestServer(t, &fakeEngine{}, &fakeIdx{}, cat, nil)

	w := doJSON(t, srv, http.MethodGet, "/api/v1/questions", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var out []questionSummary
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 || out[0].ID != "b" {
		t.Errorf("unexpected listing %+v", out)
	}
}

// TestHandleSearch verifies query parsing, defaults, and hit shape.
func TestHandleSearch(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{results: []index.Result{
		{Document: index.Document{ID: "r1", Text: "doc text", Metadata: map[string]string{"id": "r1"}}, Score: 0.87},
	}}
	srv := newTestServer(t, engine, &fakeIdx{}, &fakeCatalog{}, nil)

	w := doJSON(t, srv, http.MethodGet, "/api/v1/search?q=rattrapages", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if engine.lastK != defaultSearchK {
		t.Errorf("expected default k=%d, got %d", defaultSearchK, engine.lastK)
	}

	var hits []searchHit
	if err := json.Unmarshal(w.Body.Bytes(), &hits); err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].ID != "r1" || hits[0].Score != 0.87 {
		t.Errorf("unexpected hits %+v", hits)
	}

	w2 := doJSON(t, srv, http.MethodGet, "/api/v1/search?q=x&k=6", nil)
	if w2.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w2.Code)
	}
	if engine.lastK != 6 {
		t.Errorf("expected k=6, got %d", engine.lastK)
	}
}

// TestHandleSearch_BadRequest verifies parameter validation.
func TestHandleSearch_BadRequest(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &fakeEngine{}, &fakeIdx{}, &fakeCatalog{}, nil)

	if w := doJSON(t, srv, http.MethodGet, "/api/v1/search", nil); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing q, got %d", w.Code)
	}
	if w := doJSON(t, srv, http.MethodGet, "/api/v1/search?q=x&k=zero", nil); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for non-integer k, got %d", w.Code)
	}
	if w := doJSON(t, srv, http.MethodGet, "/api/v1/search?q=x&k=-1", nil); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for negative k, got %d", w.Code)
	}
}

// TestProtectedRoutes_RequireAuth verifies the bearer gate on /api/v1.
func TestProtectedRoutes_RequireAuth(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &fakeEngine{results: []index.Result{}}, &fakeIdx{}, &fakeCatalog{}, &Config{
		APIKey: "secret",
	})

	w := doJSON(t, srv, http.MethodGet, "/api/v1/search?q=x", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/search?q=x", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 with token, got %d", rec.Code)
	}

	// Health stays public.
	if w := doJSON(t, srv, http.MethodGet, "/api/health", nil); w.Code != http.StatusOK {
		t.Errorf("expected public health endpoint, got %d", w.Code)
	}
}

// TestRateLimit verifies that a burst beyond the allowance receives 429.
func TestRateLimit(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &fakeEngine{results: []index.Result{}}, &fakeIdx{}, &fakeCatalog{}, &Config{
		RateLimit: 0.001,
		RateBurst: 1,
	})

	first := doJSON(t, srv, http.MethodGet, "/api/v1/search?q=x", nil)
	if first.Code != http.StatusOK {
		t.Fatalf("expected first request to pass, got %d", first.Code)
	}

	second := doJSON(t, srv, http.MethodGet, "/api/v1/search?q=x", nil)
	if second.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429 on burst, got %d", second.Code)
	}
	if second.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header on 429")
	}
}

// TestCORSPreflight verifies OPTIONS short-circuits before auth.
func TestCORSPreflight(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &fakeEngine{}, &fakeIdx{}, &fakeCatalog{}, &Config{APIKey: "secret"})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/ask", nil)
	req.Header.Set("Origin", "https://helpdesk.example")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204 preflight, got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("expected allow-all origin, got %q", w.Header().Get("Access-Control-Allow-Origin"))
	}
	if w.Header().Get("Access-Control-Allow-Methods") == "" {
		t.Error("expected allow-methods header on preflight")
	}
}

// TestCORS_AllowList verifies origin matching against a configured list.
func TestCORS_AllowList(t *testing.T) {
	t.Parallel()

	h := corsMiddleware([]string{"https://intra.example"}, okHandler)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "https://intra.example")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://intra.example" {
		t.Errorf("expected origin echoed, got %q", got)
	}

	req2 := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req2.Header.Set("Origin", "https://evil.example")
	w2 := httptest.NewRecorder()
	h.ServeHTTP(w2, req2)
	if got := w2.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("expected no allow-origin for unlisted origin, got %q", got)
	}
}
