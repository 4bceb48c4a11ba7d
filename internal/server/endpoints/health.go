package endpoints

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/spf13/cobra"

	"github.com/jackzampolin/assessor/internal/api"
	"github.com/jackzampolin/assessor/internal/providers"
	"github.com/jackzampolin/assessor/internal/svcctx"
)

// HealthResponse is the response for health check endpoints.
type HealthResponse struct {
	Status    string `json:"status"`
	Extractor string `json:"extractor,omitempty"`
}

// HealthEndpoint handles GET /health.
type HealthEndpoint struct{}

func (e *HealthEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/health", e.handler
}

func (e *HealthEndpoint) RequiresInit() bool { return false }

// handler godoc
//
//	@Summary	Liveness check
//	@Tags		health
//	@Produce	json
//	@Success	200	{object}	HealthResponse
//	@Router		/health [get]
func (e *HealthEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func (e *HealthEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check server health",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp HealthResponse
			if err := client.Get(cmd.Context(), "/health", &resp); err != nil {
				return err
			}
			fmt.Printf("Status: %s\n", resp.Status)
			return nil
		},
	}
}

// ReadyEndpoint handles GET /ready.
type ReadyEndpoint struct{}

func (e *ReadyEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/ready", e.handler
}

func (e *ReadyEndpoint) RequiresInit() bool { return false }

// handler godoc
//
//	@Summary		Readiness check
//	@Description	Reports ok once a processor and extractor are configured
//	@Tags			health
//	@Produce		json
//	@Success		200	{object}	HealthResponse
//	@Failure		503	{object}	HealthResponse
//	@Router			/ready [get]
func (e *ReadyEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	registry := svcctx.RegistryFrom(r.Context())
	if svcctx.ProcessorFrom(r.Context()) == nil || registry == nil || registry.Get() == nil {
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "not_initialized"})
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Extractor: registry.Name()})
}

func (e *ReadyEndpoint) Command(getServerURL func() string) *cobra.Command {
	var wait time.Duration
	cmd := &cobra.Command{
		Use:   "ready",
		Short: "Check server readiness",
		Long: `Check server readiness.

With --wait the check is retried every 500ms until the server reports
ready or the wait elapses.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			resp, err := waitReady(cmd.Context(), client, wait)
			if err != nil {
				return err
			}
			fmt.Printf("Status:    %s\n", resp.Status)
			if resp.Extractor != "" {
				fmt.Printf("Extractor: %s\n", resp.Extractor)
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&wait, "wait", 0, "keep polling until ready or this duration elapses")
	return cmd
}

const readyPollInterval = 500 * time.Millisecond

// waitReady polls /ready until it succeeds. A zero wait makes one attempt.
func waitReady(ctx context.Context, client *api.Client, wait time.Duration) (*HealthResponse, error) {
	attempts := uint(wait/readyPollInterval) + 1
	var resp HealthResponse
	err := retry.Do(
		func() error {
			return client.Get(ctx, "/ready", &resp)
		},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(readyPollInterval),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// StatusResponse is the detailed status response.
type StatusResponse struct {
	Server      string                       `json:"server"`
	Version     string                       `json:"version"`
	Extractor   ExtractorStatus              `json:"extractor"`
	RecordStore RecordStoreStatus            `json:"record_store"`
	RateLimiter *providers.RateLimiterStatus `json:"rate_limiter,omitempty"`
}

// ExtractorStatus describes the active extraction client.
type ExtractorStatus struct {
	Name           string `json:"name"`
	Provider       string `json:"provider"`
	Model          string `json:"model,omitempty"`
	DocumentMode   string `json:"document_mode"`
	ValidateOutput bool   `json:"validate_output"`
}

// RecordStoreStatus describes the table records are read from.
type RecordStoreStatus struct {
	Table       string `json:"table"`
	UploadField string `json:"upload_field"`
	OutputField string `json:"output_field"`
}

// StatusEndpoint handles GET /status.
type StatusEndpoint struct{}

func (e *StatusEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/status", e.handler
}

func (e *StatusEndpoint) RequiresInit() bool { return false }

// handler godoc
//
//	@Summary		Server status
//	@Description	Active extractor, record store table and rate limiter state
//	@Tags			health
//	@Produce		json
//	@Success		200	{object}	StatusResponse
//	@Router			/status [get]
func (e *StatusEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{Server: "running"}
	if s := svcctx.ServicesFrom(r.Context()); s != nil {
		resp.Version = s.Version
	}

	if registry := svcctx.RegistryFrom(r.Context()); registry != nil {
		cfg := registry.Config()
		resp.Extractor = ExtractorStatus{
			Name:         registry.Name(),
			Provider:     cfg.Type,
			Model:        cfg.Model,
			DocumentMode: cfg.DocumentMode,
		}
		if st, ok := registry.LimiterStatus(); ok {
			resp.RateLimiter = &st
		}
	}

	if mgr := svcctx.ConfigFrom(r.Context()); mgr != nil {
		c := mgr.Get()
		resp.Extractor.ValidateOutput = c.Extraction.ValidateOutput
		resp.RecordStore = RecordStoreStatus{
			Table:       c.RecordStore.Table,
			UploadField: c.RecordStore.UploadField,
			OutputField: c.RecordStore.OutputField,
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (e *StatusEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Get detailed server status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp StatusResponse
			if err := client.Get(cmd.Context(), "/status", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// ErrorResponse is a standard error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
