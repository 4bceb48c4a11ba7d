package providers

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrEmptyOutput is returned when the model answered without any usable output.
var ErrEmptyOutput = errors.New("extraction returned empty output")

// Extractor turns an assessment document into structured entities.
// Implementations make at most one upstream generate call per Extract.
type Extractor interface {
	// Name returns the provider identifier (e.g., "gemini").
	Name() string

	// Extract submits the document with the fixed bundle and returns the model output.
	Extract(ctx context.Context, doc DocumentRef) (*ExtractionResult, error)
}

// DocumentRef points at the document to extract from.
// Exactly one of URL or Text is normally set; Text wins when both are.
type DocumentRef struct {
	URL      string `json:"url,omitempty"`
	Text     string `json:"text,omitempty"`
	MIMEType string `json:"mime_type,omitempty"`
}

// ExtractionResult is the response from an extraction call.
type ExtractionResult struct {
	// Output is the parsed JSON value returned by the model.
	Output json.RawMessage `json:"output"`
	// Raw is the model text before parsing, when the provider returns text.
	Raw string `json:"raw,omitempty"`

	// Token counts
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`

	ExecutionTime time.Duration `json:"execution_time"`

	// Provider info
	Provider  string `json:"provider"`
	ModelUsed string `json:"model_used"`
}

// GenerationConfig holds the sampling parameters sent with every call.
type GenerationConfig struct {
	Temperature     float32 `json:"temperature"`
	TopP            float32 `json:"top_p"`
	TopK            int32   `json:"top_k"`
	MaxOutputTokens int32   `json:"max_output_tokens"`
}

// SafetySetting maps a harm category to a block threshold, using the
// Gemini wire names.
type SafetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

// Harm categories and the threshold applied to all of them.
const (
	HarmCategoryHarassment       = "HARM_CATEGORY_HARASSMENT"
	HarmCategoryHateSpeech       = "HARM_CATEGORY_HATE_SPEECH"
	HarmCategorySexuallyExplicit = "HARM_CATEGORY_SEXUALLY_EXPLICIT"
	HarmCategoryDangerousContent = "HARM_CATEGORY_DANGEROUS_CONTENT"

	BlockMediumAndAbove = "BLOCK_MEDIUM_AND_ABOVE"
)

// Bundle is the fixed request configuration every Extractor sends.
type Bundle struct {
	SystemInstruction string
	Generation        GenerationConfig
	Safety            []SafetySetting
	// Schema is the canonical output schema outputs are validated against.
	Schema json.RawMessage
	// UserPrompt renders the user turn for a document. When nil the
	// document text, or else its URL, is sent as is.
	UserPrompt func(documentURL, documentText string) string
}

func (b Bundle) userPrompt(doc DocumentRef) string {
	if b.UserPrompt != nil {
		return b.UserPrompt(doc.URL, doc.Text)
	}
	if doc.Text != "" {
		return doc.Text
	}
	return doc.URL
}

// DefaultGenerationConfig returns the fixed sampling parameters.
func DefaultGenerationConfig() GenerationConfig {
	return GenerationConfig{
		Temperature:     1,
		TopP:            0.95,
		TopK:            64,
		MaxOutputTokens: 8192,
	}
}

// DefaultSafetySettings returns the four-category safety table.
func DefaultSafetySettings() []SafetySetting {
	return []SafetySetting{
		{Category: HarmCategoryHarassment, Threshold: BlockMediumAndAbove},
		{Category: HarmCategoryHateSpeech, Threshold: BlockMediumAndAbove},
		{Category: HarmCategorySexuallyExplicit, Threshold: BlockMediumAndAbove},
		{Category: HarmCategoryDangerousContent, Threshold: BlockMediumAndAbove},
	}
}
