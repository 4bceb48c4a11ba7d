package assessment

import (
	prompts "github.com/jackzampolin/assessor/internal/prompts/assessment"
	"github.com/jackzampolin/assessor/internal/providers"
)

// Bundle returns the fixed extraction request: system instruction,
// generation parameters, safety table and output schema.
func Bundle() providers.Bundle {
	return providers.Bundle{
		SystemInstruction: prompts.SystemPrompt(),
		Generation:        providers.DefaultGenerationConfig(),
		Safety:            providers.DefaultSafetySettings(),
		Schema:            prompts.SchemaJSON(),
		UserPrompt:        prompts.UserPrompt,
	}
}
