package assessment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/jackzampolin/assessor/internal/providers"
	"github.com/jackzampolin/assessor/internal/recordstore"
)

type fakeStore struct {
	mu         sync.Mutex
	attachment *recordstore.Attachment
	fetchErr   error
	writeErr   error
	fetches    int
	writes     int
	written    map[string]json.RawMessage
}

func newFakeStore(url string) *fakeStore {
	return &fakeStore{
		attachment: &recordstore.Attachment{URL: url, Type: "application/pdf"},
		written:    make(map[string]json.RawMessage),
	}
}

func (s *fakeStore) UploadAttachment(_ context.Context, _ string) (*recordstore.Attachment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetches++
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	return s.attachment, nil
}

func (s *fakeStore) WriteOutput(_ context.Context, recordID string, output json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	if s.writeErr != nil {
		return s.writeErr
	}
	s.written[recordID] = output
	return nil
}

// nilResultExtractor answers every call with neither a result nor an error.
type nilResultExtractor struct {
	calls int
}

func (e *nilResultExtractor) Name() string { return "nil-result" }

func (e *nilResultExtractor) Extract(context.Context, providers.DocumentRef) (*providers.ExtractionResult, error) {
	e.calls++
	return nil, nil
}

const sampleOutput = `{"question":[{"question_number":"1","total_marks":"5","question_text":"Define photosynthesis.","marking_guide":null}],"answer":[{"question_number":"1","student_answer":"Plants make food from light."}]}`

func newTestProcessor(store *fakeStore, ext providers.Extractor, validate bool) *Processor {
	cfg := Config{
		Store:     store,
		Extractor: ext,
		Logger:    slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)),
	}
	if validate {
		cfg.Validator = providers.NewSchemaValidator(Bundle().Schema)
	}
	return NewProcessor(cfg)
}

func assertJSONEqual(t *testing.T, want, got string) {
	t.Helper()
	var w, g any
	if err := json.Unmarshal([]byte(want), &w); err != nil {
		t.Fatalf("invalid expected JSON: %v", err)
	}
	if err := json.Unmarshal([]byte(got), &g); err != nil {
		t.Fatalf("invalid JSON %q: %v", got, err)
	}
	if !reflect.DeepEqual(w, g) {
		t.Errorf("JSON = %s, want %s", got, want)
	}
}

func assertCounts(t *testing.T, store *fakeStore, calls, fetches, extracts, writes int) {
	t.Helper()
	if store.fetches != fetches {
		t.Errorf("fetches = %d, want %d", store.fetches, fetches)
	}
	if calls != extracts {
		t.Errorf("extract calls = %d, want %d", calls, extracts)
	}
	if store.writes != writes {
		t.Errorf("writes = %d, want %d", store.writes, writes)
	}
}

func TestProcess_HappyPath(t *testing.T) {
	store := newFakeStore("https://files.example/F.pdf")
	ext := providers.NewMockExtractor()
	ext.Output = json.RawMessage(sampleOutput)

	result, err := newTestProcessor(store, ext, true).Process(context.Background(), "rec1")
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	assertJSONEqual(t, sampleOutput, string(result.Output))
	if result.RecordID != "rec1" {
		t.Errorf("RecordID = %q, want rec1", result.RecordID)
	}
	if result.RequestID == "" {
		t.Error("expected a request id")
	}
	if got := ext.LastDocument().URL; got != "https://files.example/F.pdf" {
		t.Errorf("document URL = %q", got)
	}
	if got := ext.LastDocument().MIMEType; got != "application/pdf" {
		t.Errorf("document MIME type = %q", got)
	}

	assertCounts(t, store, ext.Calls(), 1, 1, 1)
	assertJSONEqual(t, sampleOutput, string(store.written["rec1"]))
}

func TestProcess_KeepsRequestIDFromContext(t *testing.T) {
	store := newFakeStore("https://files.example/F.pdf")
	ctx := WithRequestID(context.Background(), "req-42")

	result, err := newTestProcessor(store, providers.NewMockExtractor(), false).Process(ctx, "rec1")
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if result.RequestID != "req-42" {
		t.Errorf("RequestID = %q, want req-42", result.RequestID)
	}
}

func TestProcess_EmptyRecordID(t *testing.T) {
	store := newFakeStore("u")
	ext := providers.NewMockExtractor()

	for _, id := range []string{"", "   "} {
		_, err := newTestProcessor(store, ext, true).Process(context.Background(), id)
		if !errors.Is(err, ErrEmptyRecordID) {
			t.Errorf("Process(%q) error = %v, want ErrEmptyRecordID", id, err)
		}
	}
	assertCounts(t, store, ext.Calls(), 0, 0, 0)
}

func TestProcess_FetchFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "not found", err: &recordstore.StatusError{Method: http.MethodGet, StatusCode: 404, Body: `{"error":"NOT_FOUND"}`}},
		{name: "no attachment", err: recordstore.ErrNoAttachment},
		{name: "network", err: errors.New("dial tcp: connection refused")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore("u")
			store.fetchErr = tt.err
			ext := providers.NewMockExtractor()

			_, err := newTestProcessor(store, ext, true).Process(context.Background(), "rec1")
			if err == nil {
				t.Fatal("expected error")
			}
			if KindOf(err) != KindUpstreamFetch {
				t.Errorf("KindOf() = %q, want %q", KindOf(err), KindUpstreamFetch)
			}
			if !errors.Is(err, tt.err) {
				t.Errorf("error %v does not wrap %v", err, tt.err)
			}
			if !strings.Contains(err.Error(), tt.err.Error()) {
				t.Errorf("error = %q, want it to contain %q", err, tt.err)
			}

			assertCounts(t, store, ext.Calls(), 1, 0, 0)
		})
	}
}

func TestProcess_ExtractionFailure(t *testing.T) {
	t.Run("call error", func(t *testing.T) {
		store := newFakeStore("u")
		ext := providers.NewMockExtractor()
		ext.Err = errors.New("gemini error (status 429): quota")

		_, err := newTestProcessor(store, ext, true).Process(context.Background(), "rec1")
		if err == nil {
			t.Fatal("expected error")
		}
		if KindOf(err) != KindExtraction {
			t.Errorf("KindOf() = %q, want %q", KindOf(err), KindExtraction)
		}
		if !strings.Contains(err.Error(), "quota") {
			t.Errorf("error = %q, want upstream message", err)
		}
		assertCounts(t, store, ext.Calls(), 1, 1, 0)
	})

	t.Run("empty output", func(t *testing.T) {
		store := newFakeStore("u")
		ext := providers.NewMockExtractor()
		ext.Output = nil

		_, err := newTestProcessor(store, ext, true).Process(context.Background(), "rec1")
		if !errors.Is(err, providers.ErrEmptyOutput) {
			t.Fatalf("error = %v, want ErrEmptyOutput", err)
		}
		if KindOf(err) != KindExtraction {
			t.Errorf("KindOf() = %q, want %q", KindOf(err), KindExtraction)
		}
		if store.writes != 0 {
			t.Errorf("writes = %d, want 0", store.writes)
		}
	})

	t.Run("nil result without error", func(t *testing.T) {
		store := newFakeStore("u")
		ext := &nilResultExtractor{}

		_, err := newTestProcessor(store, ext, true).Process(context.Background(), "rec1")
		if !errors.Is(err, providers.ErrEmptyOutput) {
			t.Fatalf("error = %v, want ErrEmptyOutput", err)
		}
		if KindOf(err) != KindExtraction {
			t.Errorf("KindOf() = %q, want %q", KindOf(err), KindExtraction)
		}
		assertCounts(t, store, ext.calls, 1, 1, 0)
	})

	t.Run("schema-invalid output with validation", func(t *testing.T) {
		store := newFakeStore("u")
		ext := providers.NewMockExtractor()
		ext.Output = json.RawMessage(`{"questions":"wrong shape"}`)

		_, err := newTestProcessor(store, ext, true).Process(context.Background(), "rec1")
		if err == nil {
			t.Fatal("expected error")
		}
		if KindOf(err) != KindExtraction {
			t.Errorf("KindOf() = %q, want %q", KindOf(err), KindExtraction)
		}
		if store.writes != 0 {
			t.Errorf("writes = %d, want 0", store.writes)
		}
	})

	t.Run("schema-invalid output without validation passes through", func(t *testing.T) {
		store := newFakeStore("u")
		ext := providers.NewMockExtractor()
		ext.Output = json.RawMessage(`{"questions":"wrong shape"}`)

		result, err := newTestProcessor(store, ext, false).Process(context.Background(), "rec1")
		if err != nil {
			t.Fatalf("Process() error = %v", err)
		}
		assertJSONEqual(t, `{"questions":"wrong shape"}`, string(result.Output))
		if store.writes != 1 {
			t.Errorf("writes = %d, want 1", store.writes)
		}
	})

	t.Run("numeric marks accepted", func(t *testing.T) {
		store := newFakeStore("u")
		ext := providers.NewMockExtractor()
		ext.Output = json.RawMessage(`{"question":[{"question_number":1,"total_marks":5,"question_text":"Q","marking_guide":null}],"answer":null}`)

		if _, err := newTestProcessor(store, ext, true).Process(context.Background(), "rec1"); err != nil {
			t.Fatalf("Process() error = %v", err)
		}
	})
}

func TestProcess_PersistFailure(t *testing.T) {
	store := newFakeStore("u")
	store.writeErr = &recordstore.StatusError{Method: http.MethodPatch, StatusCode: 422, Body: `{"error":"INVALID_VALUE_FOR_COLUMN"}`}
	ext := providers.NewMockExtractor()

	var logs bytes.Buffer
	p := NewProcessor(Config{
		Store:     store,
		Extractor: ext,
		Logger:    slog.New(slog.NewTextHandler(&logs, nil)),
	})

	_, err := p.Process(context.Background(), "rec1")
	if err == nil {
		t.Fatal("expected error")
	}
	if KindOf(err) != KindUpstreamPersist {
		t.Errorf("KindOf() = %q, want %q", KindOf(err), KindUpstreamPersist)
	}
	if body := UpstreamBody(err); body != `{"error":"INVALID_VALUE_FOR_COLUMN"}` {
		t.Errorf("UpstreamBody() = %q", body)
	}

	assertCounts(t, store, ext.Calls(), 1, 1, 1)

	if !strings.Contains(logs.String(), "upstream_body") {
		t.Errorf("log should carry upstream body: %s", logs.String())
	}
	if !strings.Contains(logs.String(), "UpstreamPersistError") {
		t.Errorf("log should carry error kind: %s", logs.String())
	}
}

func TestProcess_Concurrent(t *testing.T) {
	store := newFakeStore("u")
	ext := providers.NewMockExtractor()
	p := newTestProcessor(store, ext, true)

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := p.Process(context.Background(), "rec1"); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("Process() error = %v", err)
	}
	assertCounts(t, store, ext.Calls(), 20, 20, 20)
}

func TestStepError_Message(t *testing.T) {
	err := &StepError{Kind: KindUpstreamFetch, Err: errors.New("boom")}
	if err.Error() != "failed to fetch record: boom" {
		t.Errorf("Error() = %q", err.Error())
	}
	if strings.Contains(err.Error(), string(KindUpstreamFetch)) {
		t.Errorf("Error() = %q should not carry the kind", err.Error())
	}
	if kind := KindOf(errors.New("plain")); kind != "" {
		t.Errorf("KindOf(plain) = %q, want empty", kind)
	}
}

func TestBundle(t *testing.T) {
	b := Bundle()
	if !strings.Contains(b.SystemInstruction, "document entity extraction specialist") {
		t.Errorf("SystemInstruction = %q", b.SystemInstruction)
	}
	if !reflect.DeepEqual(b.Generation, providers.DefaultGenerationConfig()) {
		t.Errorf("Generation = %+v", b.Generation)
	}
	if len(b.Safety) != 4 {
		t.Fatalf("Safety len = %d, want 4", len(b.Safety))
	}
	for _, s := range b.Safety {
		if s.Threshold != providers.BlockMediumAndAbove {
			t.Errorf("Threshold = %q for %q", s.Threshold, s.Category)
		}
	}
	if len(b.Schema) == 0 {
		t.Error("expected a response schema")
	}
	if b.UserPrompt == nil {
		t.Fatal("expected a user prompt builder")
	}
	if got := b.UserPrompt("https://files.example/F.pdf", ""); got != "https://files.example/F.pdf" {
		t.Errorf("UserPrompt() = %q", got)
	}
}
