package endpoints

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackzampolin/assessor/internal/api"
	"github.com/jackzampolin/assessor/internal/assessment"
	"github.com/jackzampolin/assessor/internal/config"
	"github.com/jackzampolin/assessor/internal/providers"
	"github.com/jackzampolin/assessor/internal/recordstore"
	"github.com/jackzampolin/assessor/internal/svcctx"
	"github.com/jackzampolin/assessor/internal/testutil"
)

type stubStore struct {
	fetchErr error
	writeErr error
	written  atomic.Int32
}

func (s *stubStore) UploadAttachment(_ context.Context, _ string) (*recordstore.Attachment, error) {
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	return &recordstore.Attachment{URL: "https://files.example/F.pdf", Type: "application/pdf"}, nil
}

func (s *stubStore) WriteOutput(_ context.Context, _ string, _ json.RawMessage) error {
	if s.writeErr != nil {
		return s.writeErr
	}
	s.written.Add(1)
	return nil
}

// newMux serves every endpoint with services injected the way the server does.
func newMux(t *testing.T, services *svcctx.Services) http.Handler {
	t.Helper()
	reg := api.NewRegistry()
	for _, ep := range All() {
		reg.Register(ep)
	}
	mux := http.NewServeMux()
	reg.RegisterRoutes(mux, func(next http.HandlerFunc) http.HandlerFunc { return next })
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if services != nil {
			r = r.WithContext(svcctx.WithServices(r.Context(), services))
		}
		mux.ServeHTTP(w, r)
	})
}

func newServices(t *testing.T, store assessment.RecordStore, ext providers.Extractor, rpm int) *svcctx.Services {
	t.Helper()
	stub := testutil.NewRecordStoreStub(t)
	mgr, err := config.NewManager(testutil.WriteConfig(t, testutil.ConfigOptions{
		RecordStoreURL: stub.URL,
		RateLimitRPM:   rpm,
	}))
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	ecfg := mgr.Get().ToExtractorConfig()
	if rpm > 0 {
		ext = providers.NewRateLimitedExtractor(ext, rpm)
	}
	registry := providers.NewRegistry(ext, ecfg, assessment.Bundle())

	return &svcctx.Services{
		Processor: assessment.NewProcessor(assessment.Config{
			Store:     store,
			Extractor: registry,
			Validator: providers.NewSchemaValidator(assessment.Bundle().Schema),
			Logger:    testutil.Logger(t),
		}),
		Registry: registry,
		Config:   mgr,
		Logger:   testutil.Logger(t),
		Version:  "test",
	}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func jsonEqual(t *testing.T, want, got string) {
	t.Helper()
	var w, g any
	if err := json.Unmarshal([]byte(want), &w); err != nil {
		t.Fatalf("invalid expected JSON: %v", err)
	}
	if err := json.Unmarshal([]byte(got), &g); err != nil {
		t.Fatalf("invalid JSON %q: %v", got, err)
	}
	if !reflect.DeepEqual(w, g) {
		t.Errorf("body = %s, want %s", got, want)
	}
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	rec := do(t, newMux(t, nil), http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	jsonEqual(t, `{"status":"ok"}`, rec.Body.String())
}

func TestReadyEndpoint(t *testing.T) {
	t.Run("not initialized", func(t *testing.T) {
		rec := do(t, newMux(t, nil), http.MethodGet, "/ready", "")
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("status = %d, want 503", rec.Code)
		}
	})

	t.Run("ready", func(t *testing.T) {
		services := newServices(t, &stubStore{}, providers.NewMockExtractor(), 0)
		rec := do(t, newMux(t, services), http.MethodGet, "/ready", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}

		var resp HealthResponse
		decode(t, rec, &resp)
		if resp.Status != "ok" {
			t.Errorf("Status = %q, want ok", resp.Status)
		}
		if resp.Extractor != providers.MockExtractorName {
			t.Errorf("Extractor = %q, want %q", resp.Extractor, providers.MockExtractorName)
		}
	})
}

func TestStatusEndpoint(t *testing.T) {
	services := newServices(t, &stubStore{}, providers.NewMockExtractor(), 20)
	rec := do(t, newMux(t, services), http.MethodGet, "/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp StatusResponse
	decode(t, rec, &resp)
	if resp.Server != "running" {
		t.Errorf("Server = %q", resp.Server)
	}
	if resp.Version != "test" {
		t.Errorf("Version = %q", resp.Version)
	}
	if resp.Extractor.Name != providers.MockExtractorName {
		t.Errorf("Extractor.Name = %q", resp.Extractor.Name)
	}
	if resp.Extractor.Provider != "mock" {
		t.Errorf("Extractor.Provider = %q", resp.Extractor.Provider)
	}
	if resp.Extractor.DocumentMode != providers.DocumentModeURL {
		t.Errorf("Extractor.DocumentMode = %q", resp.Extractor.DocumentMode)
	}
	if resp.RecordStore.Table != "Assessment converter" {
		t.Errorf("RecordStore.Table = %q", resp.RecordStore.Table)
	}
	if resp.RecordStore.OutputField != "Output" {
		t.Errorf("RecordStore.OutputField = %q", resp.RecordStore.OutputField)
	}
	if resp.RateLimiter == nil {
		t.Fatal("expected rate limiter status")
	}
	if resp.RateLimiter.TokensLimit != 20 {
		t.Errorf("RateLimiter.TokensLimit = %d, want 20", resp.RateLimiter.TokensLimit)
	}
}

func TestProcessEndpoint(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		store := &stubStore{}
		ext := providers.NewMockExtractor()
		ext.Output = json.RawMessage(`{"question":[{"question_number":"1","total_marks":"2","question_text":"Q","marking_guide":null}],"answer":[]}`)

		rec := do(t, newMux(t, newServices(t, store, ext, 0)), http.MethodPost, "/process-assessment", `{"recordId":"rec1"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
		}
		jsonEqual(t, `{"success":true,"output":`+string(ext.Output)+`}`, rec.Body.String())
		if n := store.written.Load(); n != 1 {
			t.Errorf("writes = %d, want 1", n)
		}
	})

	failures := []struct {
		name    string
		store   *stubStore
		extErr  error
		message string
	}{
		{
			name:    "fetch",
			store:   &stubStore{fetchErr: &recordstore.StatusError{Method: http.MethodGet, StatusCode: 404, Body: "NOT_FOUND"}},
			message: "failed to fetch record",
		},
		{
			name:    "extract",
			store:   &stubStore{},
			extErr:  errors.New("gemini error (status 400): bad document"),
			message: "failed to extract assessment",
		},
		{
			name:    "persist",
			store:   &stubStore{writeErr: errors.New("connection reset")},
			message: "failed to update record",
		},
	}
	for _, tt := range failures {
		t.Run(tt.name+" failure", func(t *testing.T) {
			ext := providers.NewMockExtractor()
			ext.Err = tt.extErr

			rec := do(t, newMux(t, newServices(t, tt.store, ext, 0)), http.MethodPost, "/process-assessment", `{"recordId":"rec1"}`)
			if rec.Code != http.StatusInternalServerError {
				t.Errorf("status = %d, want 500", rec.Code)
			}

			var resp ProcessResponse
			decode(t, rec, &resp)
			if resp.Success {
				t.Error("Success = true, want false")
			}
			if !strings.Contains(resp.Error, tt.message) {
				t.Errorf("Error = %q, want it to contain %q", resp.Error, tt.message)
			}
			if len(resp.Output) != 0 {
				t.Errorf("Output = %s, want empty", resp.Output)
			}
		})
	}

	t.Run("bad requests", func(t *testing.T) {
		h := newMux(t, newServices(t, &stubStore{}, providers.NewMockExtractor(), 0))
		for _, body := range []string{``, `not json`, `{}`, `{"recordId":""}`} {
			rec := do(t, h, http.MethodPost, "/process-assessment", body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("body %q: status = %d, want 400", body, rec.Code)
			}
			if !strings.Contains(rec.Body.String(), `"success":false`) {
				t.Errorf("body %q: response = %s", body, rec.Body.String())
			}
		}
	})

	t.Run("no processor", func(t *testing.T) {
		rec := do(t, newMux(t, nil), http.MethodPost, "/process-assessment", `{"recordId":"rec1"}`)
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("status = %d, want 503", rec.Code)
		}
	})
}

func TestConfigEndpoint(t *testing.T) {
	services := newServices(t, &stubStore{}, providers.NewMockExtractor(), 0)
	rec := do(t, newMux(t, services), http.MethodGet, "/config", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var cfg config.Config
	decode(t, rec, &cfg)
	if cfg.RecordStore.APIKey != "********" {
		t.Errorf("RecordStore.APIKey = %q, want redacted", cfg.RecordStore.APIKey)
	}
	if cfg.Extraction.Provider != "mock" {
		t.Errorf("Extraction.Provider = %q", cfg.Extraction.Provider)
	}
	if strings.Contains(rec.Body.String(), "test-key") {
		t.Errorf("response leaks the API key: %s", rec.Body.String())
	}
}

func TestSwaggerEndpoint(t *testing.T) {
	rec := do(t, newMux(t, nil), http.MethodGet, "/swagger.json", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var doc map[string]any
	decode(t, rec, &doc)
	paths, ok := doc["paths"].(map[string]any)
	if !ok {
		t.Fatalf("paths = %T", doc["paths"])
	}
	for _, p := range []string{"/process-assessment", "/health"} {
		if _, ok := paths[p]; !ok {
			t.Errorf("swagger paths missing %s", p)
		}
	}
}

func TestProcessCommand(t *testing.T) {
	store := &stubStore{}
	ts := httptest.NewServer(newMux(t, newServices(t, store, providers.NewMockExtractor(), 0)))
	defer ts.Close()

	cmd := (&ProcessEndpoint{}).Command(func() string { return ts.URL })
	cmd.SetArgs([]string{"rec1"})
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if n := store.written.Load(); n != 1 {
		t.Errorf("writes = %d, want 1", n)
	}

	failing := httptest.NewServer(newMux(t, newServices(t, &stubStore{fetchErr: errors.New("boom")}, providers.NewMockExtractor(), 0)))
	defer failing.Close()

	cmd = (&ProcessEndpoint{}).Command(func() string { return failing.URL })
	cmd.SetArgs([]string{"rec1"})
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	err := cmd.ExecuteContext(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "failed to fetch record: boom") {
		t.Errorf("error = %q", err)
	}
}

func TestWaitReady(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "not_initialized"})
			return
		}
		writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Extractor: "mock"})
	}))
	defer ts.Close()

	client := api.NewClient(ts.URL)

	// A zero wait makes a single attempt.
	if _, err := waitReady(context.Background(), client, 0); err == nil {
		t.Fatal("expected error with zero wait")
	}

	resp, err := waitReady(context.Background(), client, 5*time.Second)
	if err != nil {
		t.Fatalf("waitReady() error = %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("Status = %q, want ok", resp.Status)
	}
	if n := calls.Load(); n != 3 {
		t.Errorf("calls = %d, want 3", n)
	}
}
