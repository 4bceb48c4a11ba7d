// Package docs provides generated OpenAPI documentation.
//
// Assessor API
//
//	@title			Assessor API
//	@version		1.0
//	@description	Extracts questions and student answers from uploaded assessment documents and writes them back to Airtable.
//
//	@contact.name	API Support
//	@contact.url	https://github.com/jackzampolin/assessor
//
//	@license.name	MIT
//	@license.url	https://opensource.org/licenses/MIT
//
//	@host		localhost:3000
//	@BasePath	/
//
//	@schemes	http https
package docs

//go:generate swag init -d .. -g docs/doc.go -o ./swagger --parseInternal
