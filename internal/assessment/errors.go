package assessment

import (
	"errors"
	"fmt"

	"github.com/jackzampolin/assessor/internal/recordstore"
)

// Kind classifies which pipeline step failed.
type Kind string

const (
	KindUpstreamFetch   Kind = "UpstreamFetchError"
	KindExtraction      Kind = "ExtractionError"
	KindUpstreamPersist Kind = "UpstreamPersistError"
)

// ErrEmptyRecordID is returned before any upstream call when no record id is given.
var ErrEmptyRecordID = errors.New("recordId is required")

// StepError is a terminal failure of one pipeline step.
type StepError struct {
	Kind Kind
	Err  error
}

func (e *StepError) Error() string {
	switch e.Kind {
	case KindUpstreamFetch:
		return fmt.Sprintf("failed to fetch record: %v", e.Err)
	case KindExtraction:
		return fmt.Sprintf("failed to extract assessment: %v", e.Err)
	case KindUpstreamPersist:
		return fmt.Sprintf("failed to update record: %v", e.Err)
	default:
		return e.Err.Error()
	}
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// KindOf returns the step kind of err, or "" when err is not a StepError.
func KindOf(err error) Kind {
	var stepErr *StepError
	if errors.As(err, &stepErr) {
		return stepErr.Kind
	}
	return ""
}

// UpstreamBody returns the record store response body carried by err, if any.
func UpstreamBody(err error) string {
	var statusErr *recordstore.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Body
	}
	return ""
}
