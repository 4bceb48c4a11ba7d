package api

import (
	"net/http"

	"github.com/spf13/cobra"
)

// Endpoint pairs an HTTP route with the CLI command that calls it, so the
// server and `assessor api` never drift apart.
type Endpoint interface {
	// Route returns the method, path pattern and handler.
	Route() (method, path string, handler http.HandlerFunc)

	// RequiresInit reports whether the handler needs an active processor.
	RequiresInit() bool

	// Command builds the cobra command for this route. getServerURL is
	// read when the command runs, after flags are parsed.
	Command(getServerURL func() string) *cobra.Command
}
