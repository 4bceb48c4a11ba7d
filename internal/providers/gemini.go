package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const (
	GeminiName         = "gemini"
	GeminiDefaultModel = "gemini-1.5-flash"
)

// GeminiConfig holds configuration for the Gemini SDK client.
type GeminiConfig struct {
	APIKey   string
	Model    string
	Endpoint string // optional API endpoint override
	Timeout  time.Duration
	Bundle   Bundle
	// HTTPClient downloads attachments in URL mode.
	HTTPClient *http.Client
}

// GeminiClient implements Extractor with the generative-ai-go SDK.
type GeminiClient struct {
	client     *genai.Client
	modelName  string
	bundle     Bundle
	timeout    time.Duration
	httpClient *http.Client
}

var geminiHarmCategories = map[string]genai.HarmCategory{
	HarmCategoryHarassment:       genai.HarmCategoryHarassment,
	HarmCategoryHateSpeech:       genai.HarmCategoryHateSpeech,
	HarmCategorySexuallyExplicit: genai.HarmCategorySexuallyExplicit,
	HarmCategoryDangerousContent: genai.HarmCategoryDangerousContent,
}

var geminiThresholds = map[string]genai.HarmBlockThreshold{
	"BLOCK_LOW_AND_ABOVE": genai.HarmBlockLowAndAbove,
	BlockMediumAndAbove:   genai.HarmBlockMediumAndAbove,
	"BLOCK_ONLY_HIGH":     genai.HarmBlockOnlyHigh,
	"BLOCK_NONE":          genai.HarmBlockNone,
}

// NewGeminiClient creates a new Gemini SDK client.
func NewGeminiClient(ctx context.Context, cfg GeminiConfig) (*GeminiClient, error) {
	if cfg.Model == "" {
		cfg.Model = GeminiDefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 300 * time.Second
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	// gax does not retry transport errors, so each Extract sends one request.
	opts := []option.ClientOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(&http.Client{
			Transport: &geminiTransport{apiKey: cfg.APIKey, base: http.DefaultTransport},
		}),
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &GeminiClient{
		client:     client,
		modelName:  cfg.Model,
		bundle:     cfg.Bundle,
		timeout:    cfg.Timeout,
		httpClient: cfg.HTTPClient,
	}, nil
}

// geminiStatusError is a non-2xx answer from the Gemini API.
type geminiStatusError struct {
	StatusCode int
	Body       string
}

func (e *geminiStatusError) Error() string {
	return fmt.Sprintf("gemini returned status %d: %s", e.StatusCode, e.Body)
}

// geminiTransport authenticates with the API key header and turns every
// non-2xx response into a geminiStatusError.
type geminiTransport struct {
	apiKey string
	base   http.RoundTripper
}

func (t *geminiTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("x-goog-api-key", t.apiKey)

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	return nil, &geminiStatusError{
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(body)),
	}
}

// Name returns the client identifier.
func (c *GeminiClient) Name() string {
	return GeminiName
}

// Close releases the underlying SDK client.
func (c *GeminiClient) Close() error {
	return c.client.Close()
}

// model returns a GenerativeModel carrying the fixed bundle.
func (c *GeminiClient) model() (*genai.GenerativeModel, error) {
	m := c.client.GenerativeModel(c.modelName)

	gen := c.bundle.Generation
	m.SetTemperature(gen.Temperature)
	m.SetTopP(gen.TopP)
	m.SetTopK(gen.TopK)
	m.SetMaxOutputTokens(gen.MaxOutputTokens)
	m.ResponseMIMEType = "application/json"

	if c.bundle.SystemInstruction != "" {
		m.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(c.bundle.SystemInstruction)},
		}
	}

	settings, err := geminiSafetySettings(c.bundle.Safety)
	if err != nil {
		return nil, err
	}
	m.SafetySettings = settings
	return m, nil
}

func geminiSafetySettings(table []SafetySetting) ([]*genai.SafetySetting, error) {
	out := make([]*genai.SafetySetting, 0, len(table))
	for _, s := range table {
		category, ok := geminiHarmCategories[s.Category]
		if !ok {
			return nil, fmt.Errorf("unknown harm category %q", s.Category)
		}
		threshold, ok := geminiThresholds[s.Threshold]
		if !ok {
			return nil, fmt.Errorf("unknown block threshold %q", s.Threshold)
		}
		out = append(out, &genai.SafetySetting{Category: category, Threshold: threshold})
	}
	return out, nil
}

// parts builds the request content. In URL mode the attachment is downloaded
// and sent inline since the API only accepts its own file URIs.
func (c *GeminiClient) parts(ctx context.Context, doc DocumentRef) ([]genai.Part, error) {
	if doc.Text != "" {
		return []genai.Part{genai.Text(c.bundle.userPrompt(doc))}, nil
	}
	if doc.URL == "" {
		return nil, fmt.Errorf("document reference has neither URL nor text")
	}

	data, mimeType, err := fetchDocument(ctx, c.httpClient, doc.URL)
	if err != nil {
		return nil, err
	}
	if doc.MIMEType != "" {
		mimeType = doc.MIMEType
	}
	return []genai.Part{
		genai.Blob{MIMEType: mimeType, Data: data},
		genai.Text(c.bundle.userPrompt(doc)),
	}, nil
}

// Extract sends the document to Gemini and parses the JSON answer.
func (c *GeminiClient) Extract(ctx context.Context, doc DocumentRef) (*ExtractionResult, error) {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	m, err := c.model()
	if err != nil {
		return nil, err
	}
	parts, err := c.parts(ctx, doc)
	if err != nil {
		return nil, err
	}

	resp, err := m.GenerateContent(ctx, parts...)
	if err != nil {
		var blocked *genai.BlockedError
		if errors.As(err, &blocked) {
			return nil, fmt.Errorf("gemini blocked the request: %w", err)
		}
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}

	text := candidateText(resp)
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyOutput
	}
	output, err := ParseStructuredJSON(text)
	if err != nil {
		return nil, err
	}

	result := &ExtractionResult{
		Output:        output,
		Raw:           text,
		ExecutionTime: time.Since(start),
		Provider:      GeminiName,
		ModelUsed:     c.modelName,
	}
	if resp.UsageMetadata != nil {
		result.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		result.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	return result, nil
}

func candidateText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	cand := resp.Candidates[0]
	if cand.Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range cand.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return sb.String()
}
