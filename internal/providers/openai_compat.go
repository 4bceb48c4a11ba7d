package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
)

const (
	OpenAICompatName    = "openai-compat"
	OpenAICompatBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"
)

// OpenAICompatConfig holds configuration for the OpenAI-compatible client.
type OpenAICompatConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	Bundle     Bundle
	HTTPClient *http.Client // Optional (tests)
}

// OpenAICompatClient implements Extractor against Gemini's OpenAI-compatible
// chat completions endpoint using the official OpenAI SDK.
type OpenAICompatClient struct {
	model  string
	bundle Bundle
	client openai.Client
}

// NewOpenAICompatClient creates a new OpenAI-compatible client.
// SDK retries are disabled; a failed call fails the extraction.
func NewOpenAICompatClient(cfg OpenAICompatConfig) *OpenAICompatClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = OpenAICompatBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = GeminiDefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 300 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	client := openai.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.BaseURL),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
	)

	return &OpenAICompatClient{
		model:  cfg.Model,
		bundle: cfg.Bundle,
		client: client,
	}
}

// Name returns the client identifier.
func (c *OpenAICompatClient) Name() string {
	return OpenAICompatName
}

// Extract sends one chat completion with the system instruction and the
// document reference, asking for a JSON object back.
func (c *OpenAICompatClient) Extract(ctx context.Context, doc DocumentRef) (*ExtractionResult, error) {
	start := time.Now()

	userInput := c.bundle.userPrompt(doc)
	if userInput == "" {
		return nil, fmt.Errorf("document reference has neither URL nor text")
	}

	gen := c.bundle.Generation
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(c.bundle.SystemInstruction),
			openai.UserMessage(userInput),
		},
		Temperature:         openai.Float(float64(gen.Temperature)),
		TopP:                openai.Float(float64(gen.TopP)),
		MaxCompletionTokens: openai.Int(int64(gen.MaxOutputTokens)),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	}

	// top_k and the safety table have no OpenAI field; Gemini reads them
	// from the google extension block.
	resp, err := c.client.Chat.Completions.New(ctx, params,
		option.WithJSONSet("extra_body", map[string]any{
			"google": map[string]any{
				"top_k":           gen.TopK,
				"safety_settings": c.bundle.Safety,
			},
		}),
	)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return nil, fmt.Errorf("openai-compat error (status %d): %s", apiErr.StatusCode, apiErr.RawJSON())
		}
		return nil, fmt.Errorf("openai-compat request failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, ErrEmptyOutput
	}
	text := resp.Choices[0].Message.Content
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyOutput
	}
	output, err := ParseStructuredJSON(text)
	if err != nil {
		return nil, err
	}

	return &ExtractionResult{
		Output:           output,
		Raw:              text,
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
		ExecutionTime:    time.Since(start),
		Provider:         OpenAICompatName,
		ModelUsed:        c.model,
	}, nil
}
