// Package assessment holds the prompt and output schema for assessment entity extraction.
package assessment

import (
	"bytes"
	_ "embed"
	"text/template"
)

//go:embed system.tmpl
var systemPrompt string

//go:embed user.tmpl
var userPromptTmpl string

var userTemplate = template.Must(template.New("user").Parse(userPromptTmpl))

// SystemPrompt returns the entity-extraction system instruction.
func SystemPrompt() string {
	return systemPrompt
}

// UserPrompt builds the user turn. With document text it asks for extraction from
// that text; otherwise the document URL is sent on its own.
func UserPrompt(documentURL, documentText string) string {
	var buf bytes.Buffer
	data := struct {
		DocumentURL  string
		DocumentText string
	}{DocumentURL: documentURL, DocumentText: documentText}
	if err := userTemplate.Execute(&buf, data); err != nil {
		return documentURL
	}
	return buf.String()
}
