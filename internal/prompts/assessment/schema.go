package assessment

import "encoding/json"

// nullableText is a field that holds text found in the document, or null.
var nullableText = map[string]any{"type": []string{"string", "null"}}

// nullableLabel also accepts bare numbers, which models emit for marks and numbering.
var nullableLabel = map[string]any{"type": []string{"string", "number", "null"}}

// ExtractionSchema is the JSON schema for assessment extraction output.
var ExtractionSchema = map[string]any{
	"type": "json_schema",
	"json_schema": map[string]any{
		"name":   "assessment_entities",
		"strict": false,
		"schema": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"question": map[string]any{
					"type": []string{"array", "null"},
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"question_number": nullableLabel,
							"total_marks":     nullableLabel,
							"question_text":   nullableText,
							"marking_guide":   nullableText,
						},
					},
				},
				"answer": map[string]any{
					"type": []string{"array", "null"},
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"question_number": nullableLabel,
							"student_answer":  nullableText,
						},
					},
				},
			},
			"required": []string{"question", "answer"},
		},
	},
}

// SchemaJSON returns ExtractionSchema serialized for providers and validation.
func SchemaJSON() json.RawMessage {
	b, err := json.Marshal(ExtractionSchema)
	if err != nil {
		panic("assessment: invalid extraction schema: " + err.Error())
	}
	return b
}
