package endpoints

import (
	"net/http"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/assessor/internal/api"
	"github.com/jackzampolin/assessor/internal/config"
	"github.com/jackzampolin/assessor/internal/svcctx"
)

// ConfigEndpoint handles GET /config.
type ConfigEndpoint struct{}

func (e *ConfigEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/config", e.handler
}

func (e *ConfigEndpoint) RequiresInit() bool { return false }

// handler godoc
//
//	@Summary		Active configuration
//	@Description	Returns the running configuration with credentials masked
//	@Tags			config
//	@Produce		json
//	@Success		200	{object}	config.Config
//	@Failure		503	{object}	ErrorResponse
//	@Router			/config [get]
func (e *ConfigEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	mgr := svcctx.ConfigFrom(r.Context())
	if mgr == nil {
		writeError(w, http.StatusServiceUnavailable, "config not loaded")
		return
	}
	writeJSON(w, http.StatusOK, mgr.Get().Redacted())
}

func (e *ConfigEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the server's active configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp config.Config
			if err := client.Get(cmd.Context(), "/config", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
