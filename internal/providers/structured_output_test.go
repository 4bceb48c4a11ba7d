package providers

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

const testSchema = `{
	"type":"json_schema",
	"json_schema":{
		"name":"test_schema",
		"strict":false,
		"schema":{
			"type":"object",
			"properties":{
				"question":{"type":["array","null"],"items":{"type":"object","properties":{"question_text":{"type":["string","null"]}}}}
			},
			"required":["question"]
		}
	}
}`

func TestParseStructuredJSON(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
		wantErr bool
	}{
		{name: "plain object", content: `{"ok":true}`, want: `{"ok":true}`},
		{name: "code fence", content: "```json\n{\"ok\":true}\n```", want: `{"ok":true}`},
		{name: "surrounding prose", content: "Here you go:\n{\"question\":null}\nThanks", want: `{"question":null}`},
		{name: "array", content: `[1, 2]`, want: `[1,2]`},
		{name: "not json", content: "no json here", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseStructuredJSON(tt.content)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %s", string(got))
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseStructuredJSON() error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("ParseStructuredJSON() = %s, want %s", string(got), tt.want)
			}
		})
	}
}

func TestParseStructuredJSON_Empty(t *testing.T) {
	for _, content := range []string{"", "   ", "null"} {
		if _, err := ParseStructuredJSON(content); !errors.Is(err, ErrEmptyOutput) {
			t.Errorf("ParseStructuredJSON(%q) error = %v, want ErrEmptyOutput", content, err)
		}
	}
}

func TestValidateStructuredJSON(t *testing.T) {
	t.Run("valid with null fields", func(t *testing.T) {
		out := json.RawMessage(`{"question":[{"question_text":null}]}`)
		if err := ValidateStructuredJSON(json.RawMessage(testSchema), out); err != nil {
			t.Fatalf("ValidateStructuredJSON() error = %v", err)
		}
	})

	t.Run("missing required key", func(t *testing.T) {
		out := json.RawMessage(`{"answer":[]}`)
		err := ValidateStructuredJSON(json.RawMessage(testSchema), out)
		if err == nil {
			t.Fatal("expected validation error")
		}
		if !strings.Contains(err.Error(), "does not match schema") {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("wrong field type", func(t *testing.T) {
		out := json.RawMessage(`{"question":[{"question_text":42}]}`)
		if err := ValidateStructuredJSON(json.RawMessage(testSchema), out); err == nil {
			t.Fatal("expected validation error")
		}
	})

	t.Run("empty schema accepts anything", func(t *testing.T) {
		if err := ValidateStructuredJSON(nil, json.RawMessage(`"anything"`)); err != nil {
			t.Fatalf("ValidateStructuredJSON() error = %v", err)
		}
	})

	t.Run("bare schema", func(t *testing.T) {
		bare := json.RawMessage(`{"type":"object","required":["a"]}`)
		if err := ValidateStructuredJSON(bare, json.RawMessage(`{"a":1}`)); err != nil {
			t.Fatalf("ValidateStructuredJSON() error = %v", err)
		}
		if err := ValidateStructuredJSON(bare, json.RawMessage(`{}`)); err == nil {
			t.Fatal("expected validation error")
		}
	})
}

func TestSchemaValidator_Reuse(t *testing.T) {
	v := NewSchemaValidator(json.RawMessage(testSchema))
	for i := 0; i < 3; i++ {
		if err := v.Validate(json.RawMessage(`{"question":null}`)); err != nil {
			t.Fatalf("Validate() iteration %d error = %v", i, err)
		}
	}
}
