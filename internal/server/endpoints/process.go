package endpoints

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/assessor/internal/api"
	"github.com/jackzampolin/assessor/internal/assessment"
	"github.com/jackzampolin/assessor/internal/svcctx"
)

// maxProcessBody caps the request body; it only ever carries a record id.
const maxProcessBody = 1 << 20

// ProcessRequest is the request body for processing an assessment.
type ProcessRequest struct {
	RecordID string `json:"recordId"`
}

// ProcessResponse is the reply for both outcomes. Output is set on
// success and Error on failure.
type ProcessResponse struct {
	Success bool            `json:"success"`
	Output  json.RawMessage `json:"output,omitempty" swaggertype:"object"`
	Error   string          `json:"error,omitempty"`
}

// ProcessEndpoint handles POST /process-assessment.
type ProcessEndpoint struct{}

func (e *ProcessEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/process-assessment", e.handler
}

func (e *ProcessEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Process an assessment record
//	@Description	Fetches the record's uploaded document, extracts questions and answers, and writes them to the record's Output field
//	@Tags			assessment
//	@Accept			json
//	@Produce		json
//	@Param			request	body		ProcessRequest	true	"Record to process"
//	@Success		200		{object}	ProcessResponse
//	@Failure		400		{object}	ProcessResponse
//	@Failure		500		{object}	ProcessResponse
//	@Failure		503		{object}	ProcessResponse
//	@Router			/process-assessment [post]
func (e *ProcessEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req ProcessRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxProcessBody)).Decode(&req); err != nil {
		rejectProcess(r, w, "invalid request body", err)
		return
	}
	if strings.TrimSpace(req.RecordID) == "" {
		rejectProcess(r, w, "recordId is required", nil)
		return
	}

	p := svcctx.ProcessorFrom(r.Context())
	if p == nil {
		writeProcessError(w, http.StatusServiceUnavailable, "processor not initialized")
		return
	}

	result, err := p.Process(r.Context(), req.RecordID)
	if err != nil {
		if errors.Is(err, assessment.ErrEmptyRecordID) {
			writeProcessError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeProcessError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, ProcessResponse{Success: true, Output: result.Output})
}

// rejectProcess answers 400 for a request that never reaches the pipeline.
func rejectProcess(r *http.Request, w http.ResponseWriter, msg string, err error) {
	if logger := svcctx.LoggerFrom(r.Context()); logger != nil {
		logger.Warn("rejected process request",
			"request_id", assessment.RequestIDFrom(r.Context()),
			"reason", msg,
			"error", err,
		)
	}
	writeProcessError(w, http.StatusBadRequest, msg)
}

func writeProcessError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ProcessResponse{Success: false, Error: msg})
}

func (e *ProcessEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "process <recordId>",
		Short: "Process one assessment record",
		Long: `Process one assessment record.

The server reads the record's uploaded document, extracts its questions
and student answers, writes the result to the record's Output field and
returns it here.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp ProcessResponse
			if err := client.Post(cmd.Context(), "/process-assessment", ProcessRequest{RecordID: args[0]}, &resp); err != nil {
				return err
			}
			if !resp.Success {
				return fmt.Errorf("processing failed: %s", resp.Error)
			}
			return api.Output(resp.Output)
		},
	}
}
