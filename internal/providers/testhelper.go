package providers

import (
	"context"
	"os"
)

// TestConfig holds provider credentials loaded from environment variables,
// for tests that talk to the real API.
type TestConfig struct {
	GeminiAPIKey string
	DocumentURL  string
}

// LoadTestConfig loads provider credentials from environment variables.
func LoadTestConfig() TestConfig {
	return TestConfig{
		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
		DocumentURL:  os.Getenv("ASSESSOR_TEST_DOCUMENT_URL"),
	}
}

// HasGemini returns true if a Gemini API key is configured.
func (c TestConfig) HasGemini() bool {
	return c.GeminiAPIKey != ""
}

// NewGeminiClient creates a Gemini SDK client from test config.
func (c TestConfig) NewGeminiClient(bundle Bundle) (*GeminiClient, error) {
	return NewGeminiClient(context.Background(), GeminiConfig{
		APIKey: c.GeminiAPIKey,
		Bundle: bundle,
	})
}
