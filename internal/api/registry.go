package api

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/spf13/cobra"
)

// Registry holds all registered endpoints.
type Registry struct {
	endpoints []Endpoint
	patterns  map[string]bool
}

// NewRegistry creates a new endpoint registry.
func NewRegistry() *Registry {
	return &Registry{patterns: make(map[string]bool)}
}

// Register adds endpoints to the registry. A second endpoint for the same
// method and path is a programming error and panics, as ServeMux would.
func (r *Registry) Register(eps ...Endpoint) {
	for _, ep := range eps {
		method, path, _ := ep.Route()
		pattern := method + " " + path
		if r.patterns[pattern] {
			panic(fmt.Sprintf("api: duplicate endpoint %s", pattern))
		}
		r.patterns[pattern] = true
		r.endpoints = append(r.endpoints, ep)
	}
}

// RegisterRoutes registers all endpoint HTTP routes with the given mux.
// requireInit wraps handlers whose endpoint reports RequiresInit.
func (r *Registry) RegisterRoutes(mux *http.ServeMux, requireInit func(http.HandlerFunc) http.HandlerFunc) {
	for _, ep := range r.endpoints {
		method, path, handler := ep.Route()
		if ep.RequiresInit() && requireInit != nil {
			handler = requireInit(handler)
		}
		mux.HandleFunc(method+" "+path, handler)
	}
}

// Patterns returns the registered "METHOD /path" patterns, sorted.
func (r *Registry) Patterns() []string {
	out := make([]string, 0, len(r.patterns))
	for p := range r.patterns {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// BuildCommands returns the `api` command with one subcommand per
// endpoint. getServerURL is called at runtime to get the server URL.
func (r *Registry) BuildCommands(getServerURL func() string) *cobra.Command {
	apiCmd := &cobra.Command{
		Use:   "api",
		Short: "Commands that call the running server",
		Long: `API commands call the running assessor server via HTTP.

These commands require a running server (assessor serve).
Use --server to specify a custom server URL.

Examples:
  assessor api health                 # Check server health
  assessor api ready --wait 30s       # Block until the server is ready
  assessor api process recXXXXXXXX    # Process one assessment record`,
	}

	for _, ep := range r.endpoints {
		apiCmd.AddCommand(ep.Command(getServerURL))
	}

	return apiCmd
}
