package providers

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

const MockExtractorName = "mock"

// MockExtractor is an Extractor for testing.
type MockExtractor struct {
	// Configurable behavior
	Latency time.Duration
	Output  json.RawMessage
	Err     error

	// State
	callCount atomic.Int64
	mu        sync.Mutex
	lastDoc   DocumentRef
}

// NewMockExtractor creates a mock extractor returning an empty assessment.
func NewMockExtractor() *MockExtractor {
	return &MockExtractor{
		Output: json.RawMessage(`{"question":[],"answer":[]}`),
	}
}

// Name returns the extractor identifier.
func (m *MockExtractor) Name() string {
	return MockExtractorName
}

// Extract records the call and returns the configured output or error.
func (m *MockExtractor) Extract(ctx context.Context, doc DocumentRef) (*ExtractionResult, error) {
	m.callCount.Add(1)
	m.mu.Lock()
	m.lastDoc = doc
	m.mu.Unlock()

	if m.Latency > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(m.Latency):
		}
	}

	if m.Err != nil {
		return nil, m.Err
	}
	if len(m.Output) == 0 {
		return nil, ErrEmptyOutput
	}
	return &ExtractionResult{
		Output:        m.Output,
		Raw:           string(m.Output),
		ExecutionTime: m.Latency,
		Provider:      MockExtractorName,
		ModelUsed:     "mock-model",
	}, nil
}

// Calls returns how many times Extract was invoked.
func (m *MockExtractor) Calls() int {
	return int(m.callCount.Load())
}

// LastDocument returns the document passed to the most recent call.
func (m *MockExtractor) LastDocument() DocumentRef {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastDoc
}
