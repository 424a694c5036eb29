package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"OpenMCP-Intent/internal/cache"
	"OpenMCP-Intent/internal/corpus"
	xerrors "OpenMCP-Intent/internal/errors"
	"OpenMCP-Intent/internal/intent"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, opts Options) (*Server, *corpus.FileStore) {
	t.Helper()
	store, err := corpus.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	svc, err := corpus.NewService(store, corpus.WithLogger(discardLogger()))
	if err != nil {
		t.Fatalf("new corpus service: %v", err)
	}
	if opts.Corpus == nil {
		opts.Corpus = svc
	}
	opts.Logger = discardLogger()
	return NewServer(opts), store
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, reader))
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestParseSingleIntent(t *testing.T) {
	server, _ := newTestServer(t, Options{})
	rec := do(t, server.Handler(), http.MethodPost, "/api/v1/parse", `{"prompt":"Send 200 ETH to Sophie on Base"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}

	want := `{"status":"success","result":{"intent_count":1,"intent":"Transfer","parameters":` +
		`{"from":"User","to":"Sophie","source_network":"Base","dest_network":"Base",` +
		`"tokens":[{"amount":"200","token":"ETH"}],"token2":null,"query_type":null}}}`
	if got := strings.TrimSpace(rec.Body.String()); got != want {
		t.Fatalf("unexpected body:\n got %s\nwant %s", got, want)
	}
}

func TestParseMultiIntent(t *testing.T) {
	server, _ := newTestServer(t, Options{})
	rec := do(t, server.Handler(), http.MethodPost, "/process_prompt",
		`{"prompt":"Send 1 ETH to Ann, check balance"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}

	body := decodeBody(t, rec)
	result := body["result"].(map[string]any)
	if result["intent"] != "Multi" || result["intent_count"] != float64(2) {
		t.Fatalf("unexpected result: %v", result)
	}
	params := result["parameters"].(map[string]any)
	if params["intent_count"] != float64(2) || len(params["intents"].([]any)) != 2 {
		t.Fatalf("unexpected multi parameters: %v", params)
	}
}

func TestParseNoIntent(t *testing.T) {
	server, _ := newTestServer(t, Options{})
	rec := do(t, server.Handler(), http.MethodPost, "/api/v1/parse", `{"prompt":"Hello there"}`)
	result := decodeBody(t, rec)["result"].(map[string]any)
	if result["intent"] != nil || result["intent_count"] != float64(1) {
		t.Fatalf("unexpected none result: %v", result)
	}
	params := result["parameters"].(map[string]any)
	if params["from"] != "User" || params["tokens"] == nil {
		t.Fatalf("unexpected default parameters: %v", params)
	}
}

type countingParser struct {
	calls atomic.Int32
	inner *intent.Parser
}

func (p *countingParser) Parse(text string) (intent.Result, error) {
	p.calls.Add(1)
	return p.inner.Parse(text)
}

func TestParseUsesCache(t *testing.T) {
	mem, err := cache.NewMemoryCache(cache.MemoryConfig{})
	if err != nil {
		t.Fatalf("new memory cache: %v", err)
	}
	defer mem.Close()

	parser := &countingParser{inner: intent.New(intent.Options{})}
	server, _ := newTestServer(t, Options{Parser: parser, Cache: mem})
	h := server.Handler()

	first := do(t, h, http.MethodPost, "/api/v1/parse", `{"prompt":"Check balance"}`)
	mem.Wait()
	second := do(t, h, http.MethodPost, "/api/v1/parse", `{"prompt":"Check balance"}`)

	if first.Body.String() != second.Body.String() {
		t.Fatalf("cached body differs:\n%s\n%s", first.Body.String(), second.Body.String())
	}
	if got := parser.calls.Load(); got != 1 {
		t.Fatalf("expected one parser call, got %d", got)
	}
}

type brokenParser struct{}

func (brokenParser) Parse(string) (intent.Result, error) {
	return intent.Result{}, xerrors.New(xerrors.CodeMalformedInput, "输入不是合法的 UTF-8 文本")
}

func TestParseErrors(t *testing.T) {
	server, _ := newTestServer(t, Options{Parser: brokenParser{}, MaxBodyBytes: 64})
	h := server.Handler()

	cases := []struct {
		name   string
		method string
		body   string
		status int
		code   string
	}{
		{"malformed input", http.MethodPost, `{"prompt":"x"}`, http.StatusBadRequest, "MALFORMED_INPUT"},
		{"invalid json", http.MethodPost, `{"prompt":`, http.StatusBadRequest, "INVALID_ARGUMENT"},
		{"unknown field", http.MethodPost, `{"text":"x"}`, http.StatusBadRequest, "INVALID_ARGUMENT"},
		{"too large", http.MethodPost, `{"prompt":"` + strings.Repeat("a", 128) + `"}`, http.StatusBadRequest, "INVALID_ARGUMENT"},
		{"wrong method", http.MethodGet, "", http.StatusMethodNotAllowed, "INVALID_ARGUMENT"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, h, tc.method, "/api/v1/parse", tc.body)
			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, rec.Code, rec.Body.String())
			}
			errBody := decodeBody(t, rec)["error"].(map[string]any)
			if errBody["code"] != tc.code || errBody["message"] == "" {
				t.Fatalf("unexpected error body: %v", errBody)
			}
		})
	}
}

func TestInvalidUTF8BodyIsMalformed(t *testing.T) {
	server, _ := newTestServer(t, Options{})
	h := server.Handler()

	for _, path := range []string{"/api/v1/parse", "/process_prompt", "/api/v1/prompts"} {
		rec := do(t, h, http.MethodPost, path, "{\"prompt\":\"send \xff ETH\"}")
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d: %s", path, rec.Code, rec.Body.String())
		}
		if code := decodeBody(t, rec)["error"].(map[string]any)["code"]; code != "MALFORMED_INPUT" {
			t.Fatalf("%s: expected MALFORMED_INPUT, got %v", path, code)
		}
	}
}

func TestLogAndAnnotatePrompts(t *testing.T) {
	server, store := newTestServer(t, Options{})
	h := server.Handler()

	rec := do(t, h, http.MethodPost, "/api/v1/prompts", `{"prompt":"swap 1 ETH for USDC"}`)
	if rec.Code != http.StatusOK || decodeBody(t, rec)["status"] != "logged" {
		t.Fatalf("unexpected log response %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(t, h, http.MethodPost, "/add_annotated_prompt",
		`{"prompt":"Check balance","entities":[{"start":6,"end":13,"label":"QUERY_TYPE"}],"intent":"Query"}`)
	if rec.Code != http.StatusOK || decodeBody(t, rec)["status"] != "annotated prompt added" {
		t.Fatalf("unexpected annotate response %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(t, h, http.MethodPost, "/api/v1/prompts/annotated",
		`{"prompt":"Check balance","entities":[{"start":6,"end":40,"label":"QUERY_TYPE"}],"intent":"Query"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("out of range entity must be rejected, got %d", rec.Code)
	}

	records, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 stored records, got %d", len(records))
	}

	rec = do(t, h, http.MethodGet, "/api/v1/prompts?limit=1&annotated=true", "")
	listed := decodeBody(t, rec)["records"].([]any)
	if len(listed) != 1 || listed[0].(map[string]any)["prompt"] != "Check balance" {
		t.Fatalf("unexpected listing: %v", listed)
	}

	if rec := do(t, h, http.MethodGet, "/api/v1/prompts?limit=abc", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid limit must be rejected, got %d", rec.Code)
	}
}

type downCorpus struct{ *corpus.Service }

func (downCorpus) Ping(context.Context) error { return errors.New("connection refused") }

func TestHealth(t *testing.T) {
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	server, _ := newTestServer(t, Options{Clock: func() time.Time { return fixed }})

	rec := do(t, server.Handler(), http.MethodGet, "/health", "")
	body := decodeBody(t, rec)
	if rec.Code != http.StatusOK || body["status"] != "healthy" || body["corpus"] != "ok" {
		t.Fatalf("unexpected health %d: %v", rec.Code, body)
	}
	if body["timestamp"] != "2026-01-02T03:04:05Z" {
		t.Fatalf("unexpected timestamp %v", body["timestamp"])
	}
	vocab := body["vocabulary"].(map[string]any)
	if vocab["networks"] != float64(4) || vocab["tokens"] != float64(4) {
		t.Fatalf("unexpected vocabulary summary: %v", vocab)
	}

	unhealthy, _ := newTestServer(t, Options{Corpus: downCorpus{}})
	rec = do(t, unhealthy.Handler(), http.MethodGet, "/health", "")
	if rec.Code != http.StatusServiceUnavailable || decodeBody(t, rec)["status"] != "unhealthy" {
		t.Fatalf("unexpected unhealthy response %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHomeAndNotFound(t *testing.T) {
	server, _ := newTestServer(t, Options{})
	h := server.Handler()

	rec := do(t, h, http.MethodGet, "/", "")
	if rec.Code != http.StatusOK || decodeBody(t, rec)["message"] != "Hello" {
		t.Fatalf("unexpected home response %d: %s", rec.Code, rec.Body.String())
	}
	if rec := do(t, h, http.MethodGet, "/missing", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestRateLimit(t *testing.T) {
	server, _ := newTestServer(t, Options{RateLimit: RateLimit{RequestsPerSecond: 0.001, Burst: 2}})
	h := server.Handler()

	for i := 0; i < 2; i++ {
		if rec := do(t, h, http.MethodGet, "/", ""); rec.Code != http.StatusOK {
			t.Fatalf("request %d should pass, got %d", i, rec.Code)
		}
	}
	rec := do(t, h, http.MethodGet, "/", "")
	if rec.Code != http.StatusTooManyRequests || rec.Header().Get("Retry-After") == "" {
		t.Fatalf("expected 429 with Retry-After, got %d", rec.Code)
	}
	if decodeBody(t, rec)["error"].(map[string]any)["code"] != "RATE_LIMITED" {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestStartStopsOnCancel(t *testing.T) {
	server, _ := newTestServer(t, Options{Address: "127.0.0.1:0"})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Start(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("server did not stop")
	}
}
