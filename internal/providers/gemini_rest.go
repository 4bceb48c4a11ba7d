package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	GeminiRESTName    = "gemini-rest"
	GeminiRESTBaseURL = "https://gemini.googleapis.com/v1beta2"
)

// GeminiRESTConfig holds configuration for the raw generateText client.
type GeminiRESTConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
	Bundle  Bundle
}

// GeminiRESTClient implements Extractor by posting the document reference
// straight to a generateText endpoint. The document is never downloaded.
type GeminiRESTClient struct {
	apiKey  string
	baseURL string
	model   string
	bundle  Bundle
	client  *http.Client
}

type geminiRESTModel struct {
	Name              string           `json:"name"`
	GenerationConfig  GenerationConfig `json:"generation_config"`
	SystemInstruction string           `json:"system_instruction"`
	SafetySettings    []SafetySetting  `json:"safety_settings"`
}

type geminiRESTRequest struct {
	Model     geminiRESTModel `json:"model"`
	UserInput string          `json:"user_input"`
}

type geminiRESTResponse struct {
	Output json.RawMessage `json:"output"`
}

// NewGeminiRESTClient creates a new generateText client.
func NewGeminiRESTClient(cfg GeminiRESTConfig) *GeminiRESTClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = GeminiRESTBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = GeminiDefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 300 * time.Second
	}

	return &GeminiRESTClient{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
		bundle:  cfg.Bundle,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Name returns the client identifier.
func (c *GeminiRESTClient) Name() string {
	return GeminiRESTName
}

// Extract posts one generateText request and returns its output field.
func (c *GeminiRESTClient) Extract(ctx context.Context, doc DocumentRef) (*ExtractionResult, error) {
	start := time.Now()

	userInput := c.bundle.userPrompt(doc)
	if userInput == "" {
		return nil, fmt.Errorf("document reference has neither URL nor text")
	}

	bodyBytes, err := json.Marshal(&geminiRESTRequest{
		Model: geminiRESTModel{
			Name:              c.model,
			GenerationConfig:  c.bundle.Generation,
			SystemInstruction: c.bundle.SystemInstruction,
			SafetySettings:    c.bundle.Safety,
		},
		UserInput: userInput,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateText", c.baseURL, url.PathEscape(c.model))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("gemini error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var gr geminiRESTResponse
	if err := json.Unmarshal(respBody, &gr); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	output, raw, err := decodeRESTOutput(gr.Output)
	if err != nil {
		return nil, err
	}

	return &ExtractionResult{
		Output:        output,
		Raw:           raw,
		ExecutionTime: time.Since(start),
		Provider:      GeminiRESTName,
		ModelUsed:     c.model,
	}, nil
}

// decodeRESTOutput normalizes the output field. A string holding JSON is
// parsed; any other string is kept as a JSON string value.
func decodeRESTOutput(field json.RawMessage) (json.RawMessage, string, error) {
	trimmed := bytes.TrimSpace(field)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, "", ErrEmptyOutput
	}

	var text string
	if err := json.Unmarshal(trimmed, &text); err != nil {
		return json.RawMessage(trimmed), "", nil
	}
	if strings.TrimSpace(text) == "" {
		return nil, text, ErrEmptyOutput
	}
	if parsed, err := ParseStructuredJSON(text); err == nil {
		return parsed, text, nil
	}
	return json.RawMessage(trimmed), text, nil
}
