package config

// Entry is a single configuration key with its default and description.
type Entry struct {
	Key         string
	Value       any
	Description string
	// Env lists environment variables read for this key in addition to
	// the ASSESSOR_ prefixed name.
	Env []string
}

// DefaultEntries returns the default configuration entries.
func DefaultEntries() []Entry {
	return []Entry{
		// ===================
		// Server
		// ===================
		{
			Key:         "server.host",
			Value:       "0.0.0.0",
			Description: "Interface the HTTP server listens on",
		},
		{
			Key:         "server.port",
			Value:       3000,
			Description: "Port the HTTP server listens on",
			Env:         []string{"PORT"},
		},

		// ===================
		// Record store
		// ===================
		{
			Key:         "record_store.base_url",
			Value:       "https://api.airtable.com/v0",
			Description: "Airtable API root",
		},
		{
			Key:         "record_store.base_id",
			Value:       "${AIRTABLE_BASE_ID}",
			Description: "Airtable base id (uses environment variable)",
			Env:         []string{"AIRTABLE_BASE_ID"},
		},
		{
			Key:         "record_store.api_key",
			Value:       "${AIRTABLE_API_KEY}",
			Description: "Airtable API key (uses environment variable)",
			Env:         []string{"AIRTABLE_API_KEY"},
		},
		{
			Key:         "record_store.table",
			Value:       "Assessment converter",
			Description: "Table holding assessment records",
		},
		{
			Key:         "record_store.upload_field",
			Value:       "Upload",
			Description: "Attachment field holding the assessment document",
		},
		{
			Key:         "record_store.output_field",
			Value:       "Output",
			Description: "Text field receiving the extracted JSON",
		},
		{
			Key:         "record_store.timeout_seconds",
			Value:       60,
			Description: "HTTP timeout in seconds for record store requests",
		},

		// ===================
		// Extraction
		// ===================
		{
			Key:         "extraction.provider",
			Value:       "gemini",
			Description: "Extraction client: gemini, gemini-rest or openai-compat",
		},
		{
			Key:         "extraction.model",
			Value:       "gemini-1.5-flash",
			Description: "Model id sent with every extraction call",
		},
		{
			Key:         "extraction.api_key",
			Value:       "${GEMINI_API_KEY}",
			Description: "Gemini API key (uses environment variable)",
			Env:         []string{"GEMINI_API_KEY"},
		},
		{
			Key:         "extraction.base_url",
			Value:       "",
			Description: "API endpoint override; empty uses the provider default",
		},
		{
			Key:         "extraction.document_mode",
			Value:       "url",
			Description: "url hands the attachment to the model; text sends PDF text instead",
		},
		{
			Key:         "extraction.validate_output",
			Value:       true,
			Description: "Reject outputs that do not match the question/answer schema",
		},
		{
			Key:         "extraction.timeout_seconds",
			Value:       300,
			Description: "HTTP timeout in seconds for extraction calls",
		},
		{
			Key:         "extraction.rate_limit_rpm",
			Value:       0,
			Description: "Maximum extraction calls per minute; 0 disables throttling",
		},
	}
}

// DefaultConfig returns configuration with the default values.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerCfg{
			Host: "0.0.0.0",
			Port: 3000,
		},
		RecordStore: RecordStoreCfg{
			BaseURL:        "https://api.airtable.com/v0",
			BaseID:         "${AIRTABLE_BASE_ID}",
			APIKey:         "${AIRTABLE_API_KEY}",
			Table:          "Assessment converter",
			UploadField:    "Upload",
			OutputField:    "Output",
			TimeoutSeconds: 60,
		},
		Extraction: ExtractionCfg{
			Provider:       "gemini",
			Model:          "gemini-1.5-flash",
			APIKey:         "${GEMINI_API_KEY}",
			DocumentMode:   "url",
			ValidateOutput: true,
			TimeoutSeconds: 300,
		},
	}
}
