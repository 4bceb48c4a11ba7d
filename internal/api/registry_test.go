package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/spf13/cobra"
)

type fakeEndpoint struct {
	method, path string
	needsInit    bool
}

func (e *fakeEndpoint) Route() (string, string, http.HandlerFunc) {
	return e.method, e.path, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}
}

func (e *fakeEndpoint) RequiresInit() bool { return e.needsInit }

func (e *fakeEndpoint) Command(func() string) *cobra.Command {
	return &cobra.Command{Use: e.path[1:]}
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	reg.Register(
		&fakeEndpoint{method: "GET", path: "/open"},
		&fakeEndpoint{method: "POST", path: "/guarded", needsInit: true},
	)

	if got := reg.Patterns(); len(got) != 2 || got[0] != "GET /open" || got[1] != "POST /guarded" {
		t.Errorf("Patterns() = %v", got)
	}

	mux := http.NewServeMux()
	reg.RegisterRoutes(mux, func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/open", nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("GET /open = %d, want 204", rec.Code)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("POST", "/guarded", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("POST /guarded = %d, want 503 from requireInit", rec.Code)
	}

	cmd := reg.BuildCommands(func() string { return "" })
	if len(cmd.Commands()) != 2 {
		t.Errorf("api subcommands = %d, want 2", len(cmd.Commands()))
	}
}

func TestRegistry_DuplicatePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for duplicate endpoint")
		}
	}()
	reg := NewRegistry()
	reg.Register(&fakeEndpoint{method: "GET", path: "/x"}, &fakeEndpoint{method: "GET", path: "/x"})
}
