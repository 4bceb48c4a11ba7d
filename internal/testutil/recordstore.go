package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// RecordStoreStub serves the Airtable record endpoints from memory.
type RecordStoreStub struct {
	*httptest.Server

	mu      sync.Mutex
	uploads map[string]string
	patches map[string]map[string]any
	gets    int
}

// NewRecordStoreStub starts a stub; it is closed when the test ends.
func NewRecordStoreStub(t testing.TB) *RecordStoreStub {
	t.Helper()
	s := &RecordStoreStub{
		uploads: make(map[string]string),
		patches: make(map[string]map[string]any),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

// AddRecord registers a record whose Upload field holds one attachment.
func (s *RecordStoreStub) AddRecord(id, attachmentURL string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads[id] = attachmentURL
}

// Patched returns the fields last written to a record.
func (s *RecordStoreStub) Patched(id string) (map[string]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fields, ok := s.patches[id]
	return fields, ok
}

// Gets returns how many record reads were served.
func (s *RecordStoreStub) Gets() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gets
}

func (s *RecordStoreStub) handle(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") == "" {
		writeStubError(w, http.StatusUnauthorized, "AUTHENTICATION_REQUIRED")
		return
	}
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	id := parts[len(parts)-1]

	s.mu.Lock()
	defer s.mu.Unlock()

	url, ok := s.uploads[id]
	if !ok {
		writeStubError(w, http.StatusNotFound, "NOT_FOUND")
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.gets++
		writeStubJSON(w, http.StatusOK, map[string]any{
			"id":          id,
			"createdTime": "2024-01-01T00:00:00.000Z",
			"fields": map[string]any{
				"Upload": []map[string]any{{"id": "att1", "url": url, "filename": "assessment.pdf", "type": "application/pdf"}},
			},
		})
	case http.MethodPatch:
		var body struct {
			Fields map[string]any `json:"fields"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeStubError(w, http.StatusUnprocessableEntity, "INVALID_REQUEST_BODY")
			return
		}
		s.patches[id] = body.Fields
		writeStubJSON(w, http.StatusOK, map[string]any{"id": id, "fields": body.Fields})
	default:
		writeStubError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED")
	}
}

func writeStubJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeStubError(w http.ResponseWriter, status int, kind string) {
	writeStubJSON(w, status, map[string]any{"error": map[string]string{"type": kind}})
}
