// Package assessment runs the fetch, extract and persist pipeline for one record.
package assessment

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/jackzampolin/assessor/internal/providers"
	"github.com/jackzampolin/assessor/internal/recordstore"
)

// RecordStore reads the uploaded attachment of a record and writes its output.
type RecordStore interface {
	UploadAttachment(ctx context.Context, recordID string) (*recordstore.Attachment, error)
	WriteOutput(ctx context.Context, recordID string, output json.RawMessage) error
}

// Validator checks extraction output before it is persisted.
type Validator interface {
	Validate(output json.RawMessage) error
}

// Config configures a Processor.
type Config struct {
	Store     RecordStore
	Extractor providers.Extractor
	// Validator is optional; nil persists outputs unchecked.
	Validator Validator
	Logger    *slog.Logger
}

// Processor runs the pipeline. It holds no per-request state and is safe
// for concurrent use.
type Processor struct {
	store     RecordStore
	extractor providers.Extractor
	validator Validator
	logger    *slog.Logger
}

// Result is a successful pipeline run.
type Result struct {
	RecordID      string          `json:"record_id"`
	RequestID     string          `json:"request_id"`
	DocumentURL   string          `json:"document_url"`
	Output        json.RawMessage `json:"output"`
	Provider      string          `json:"provider"`
	Model         string          `json:"model"`
	ExtractTime   time.Duration   `json:"extract_time"`
	TotalDuration time.Duration   `json:"total_duration"`
}

// NewProcessor creates a processor.
func NewProcessor(cfg Config) *Processor {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		store:     cfg.Store,
		extractor: cfg.Extractor,
		validator: cfg.Validator,
		logger:    logger,
	}
}

// Process fetches the record's first upload, extracts entities from it and
// writes them back to the record. Each upstream call is made at most once;
// the first failure ends the run and is returned as a *StepError.
func (p *Processor) Process(ctx context.Context, recordID string) (*Result, error) {
	start := time.Now()

	if strings.TrimSpace(recordID) == "" {
		return nil, ErrEmptyRecordID
	}

	requestID := RequestIDFrom(ctx)
	if requestID == "" {
		requestID = NewRequestID()
		ctx = WithRequestID(ctx, requestID)
	}
	logger := p.logger.With("record_id", recordID, "request_id", requestID)

	logger.Debug("fetching record", "step", "fetch")
	attachment, err := p.store.UploadAttachment(ctx, recordID)
	if err != nil {
		return nil, p.fail(logger, KindUpstreamFetch, err)
	}

	logger.Debug("extracting entities", "step", "extract", "provider", p.extractor.Name(), "document_url", attachment.URL)
	extracted, err := p.extractor.Extract(ctx, providers.DocumentRef{
		URL:      attachment.URL,
		MIMEType: attachment.Type,
	})
	if err != nil {
		return nil, p.fail(logger, KindExtraction, err)
	}
	if extracted == nil || len(extracted.Output) == 0 {
		return nil, p.fail(logger, KindExtraction, providers.ErrEmptyOutput)
	}
	if p.validator != nil {
		if err := p.validator.Validate(extracted.Output); err != nil {
			return nil, p.fail(logger, KindExtraction, err)
		}
	}

	logger.Debug("writing output", "step", "persist")
	if err := p.store.WriteOutput(ctx, recordID, extracted.Output); err != nil {
		return nil, p.fail(logger, KindUpstreamPersist, err)
	}

	result := &Result{
		RecordID:      recordID,
		RequestID:     requestID,
		DocumentURL:   attachment.URL,
		Output:        extracted.Output,
		Provider:      extracted.Provider,
		Model:         extracted.ModelUsed,
		ExtractTime:   extracted.ExecutionTime,
		TotalDuration: time.Since(start),
	}
	logger.Info("assessment processed",
		"provider", result.Provider,
		"model", result.Model,
		"extract_time", result.ExtractTime,
		"duration", result.TotalDuration,
	)
	return result, nil
}

func (p *Processor) fail(logger *slog.Logger, kind Kind, err error) error {
	stepErr := &StepError{Kind: kind, Err: err}
	attrs := []any{"kind", string(kind), "error", err}
	if body := UpstreamBody(err); body != "" {
		attrs = append(attrs, "upstream_body", body)
	}
	logger.Error("assessment processing failed", attrs...)
	return stepErr
}
