package recordstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultBaseURL     = "https://api.airtable.com/v0"
	DefaultTable       = "Assessment converter"
	DefaultUploadField = "Upload"
	DefaultOutputField = "Output"
)

// ErrNoAttachment is returned when the upload field holds no attachment.
var ErrNoAttachment = errors.New("record has no uploaded attachment")

// StatusError is a non-2xx response from the record store.
type StatusError struct {
	Method     string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("record store %s failed (status %d): %s", e.Method, e.StatusCode, e.Body)
}

// Config holds configuration for the record store client.
type Config struct {
	BaseURL     string
	BaseID      string
	APIKey      string
	Table       string
	UploadField string
	OutputField string
	Timeout     time.Duration
	HTTPClient  *http.Client // Optional (tests)
}

// Client reads and updates records in one Airtable table.
type Client struct {
	baseURL     string
	baseID      string
	apiKey      string
	table       string
	uploadField string
	outputField string
	httpClient  *http.Client
}

// Record is an Airtable record. Field values stay raw until asked for.
type Record struct {
	ID          string                     `json:"id"`
	CreatedTime string                     `json:"createdTime,omitempty"`
	Fields      map[string]json.RawMessage `json:"fields"`
}

// Attachment is one element of an attachment field.
type Attachment struct {
	ID       string `json:"id,omitempty"`
	URL      string `json:"url"`
	Filename string `json:"filename,omitempty"`
	Type     string `json:"type,omitempty"`
	Size     int64  `json:"size,omitempty"`
}

// NewClient creates a new record store client.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Table == "" {
		cfg.Table = DefaultTable
	}
	if cfg.UploadField == "" {
		cfg.UploadField = DefaultUploadField
	}
	if cfg.OutputField == "" {
		cfg.OutputField = DefaultOutputField
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		baseID:      cfg.BaseID,
		apiKey:      cfg.APIKey,
		table:       cfg.Table,
		uploadField: cfg.UploadField,
		outputField: cfg.OutputField,
		httpClient:  httpClient,
	}
}

func (c *Client) recordURL(recordID string) string {
	return fmt.Sprintf("%s/%s/%s/%s",
		c.baseURL,
		url.PathEscape(c.baseID),
		url.PathEscape(c.table),
		url.PathEscape(recordID),
	)
}

// GetRecord fetches one record.
func (c *Client) GetRecord(ctx context.Context, recordID string) (*Record, error) {
	var rec Record
	if err := c.do(ctx, http.MethodGet, recordID, nil, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// UploadAttachment fetches the record and returns the first attachment of
// the upload field. A missing or empty field yields ErrNoAttachment.
func (c *Client) UploadAttachment(ctx context.Context, recordID string) (*Attachment, error) {
	rec, err := c.GetRecord(ctx, recordID)
	if err != nil {
		return nil, err
	}
	attachments, err := rec.Attachments(c.uploadField)
	if err != nil {
		return nil, err
	}
	if len(attachments) == 0 || attachments[0].URL == "" {
		return nil, fmt.Errorf("field %q: %w", c.uploadField, ErrNoAttachment)
	}
	return &attachments[0], nil
}

// Attachments decodes an attachment field. A missing or null field is empty.
func (r *Record) Attachments(field string) ([]Attachment, error) {
	raw, ok := r.Fields[field]
	if !ok || len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var attachments []Attachment
	if err := json.Unmarshal(raw, &attachments); err != nil {
		return nil, fmt.Errorf("field %q is not an attachment list: %w", field, err)
	}
	return attachments, nil
}

// UpdateFields patches the given fields of one record.
func (c *Client) UpdateFields(ctx context.Context, recordID string, fields map[string]any) (*Record, error) {
	body := map[string]any{"fields": fields}
	var rec Record
	if err := c.do(ctx, http.MethodPatch, recordID, body, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// WriteOutput stores output as compact JSON text in the output field.
func (c *Client) WriteOutput(ctx context.Context, recordID string, output json.RawMessage) error {
	var compact bytes.Buffer
	if err := json.Compact(&compact, output); err != nil {
		return fmt.Errorf("failed to serialize output: %w", err)
	}
	_, err := c.UpdateFields(ctx, recordID, map[string]any{
		c.outputField: compact.String(),
	})
	return err
}

func (c *Client) do(ctx context.Context, method, recordID string, body any, result any) error {
	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.recordURL(recordID), bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("record store request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Method: method, StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
