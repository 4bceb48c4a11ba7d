package config

import (
	"net"
	"strconv"
)

// Config holds assessor configuration.
// Stored at: ./config.yaml or $HOME/.assessor/config.yaml
type Config struct {
	Server      ServerCfg      `mapstructure:"server" yaml:"server" json:"server"`
	RecordStore RecordStoreCfg `mapstructure:"record_store" yaml:"record_store" json:"record_store"`
	Extraction  ExtractionCfg  `mapstructure:"extraction" yaml:"extraction" json:"extraction"`
}

// ServerCfg configures the HTTP listener.
type ServerCfg struct {
	Host string `mapstructure:"host" yaml:"host" json:"host"`
	Port int    `mapstructure:"port" yaml:"port" json:"port"`
}

// Addr returns host:port.
func (s ServerCfg) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// RecordStoreCfg configures the Airtable table holding assessments.
type RecordStoreCfg struct {
	BaseURL        string `mapstructure:"base_url" yaml:"base_url" json:"base_url"`
	BaseID         string `mapstructure:"base_id" yaml:"base_id" json:"base_id"` // supports ${ENV_VAR} syntax
	APIKey         string `mapstructure:"api_key" yaml:"api_key" json:"api_key"` // supports ${ENV_VAR} syntax
	Table          string `mapstructure:"table" yaml:"table" json:"table"`
	UploadField    string `mapstructure:"upload_field" yaml:"upload_field" json:"upload_field"`
	OutputField    string `mapstructure:"output_field" yaml:"output_field" json:"output_field"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds" json:"timeout_seconds"`
}

// ExtractionCfg configures the generative model call.
type ExtractionCfg struct {
	Provider       string `mapstructure:"provider" yaml:"provider" json:"provider"` // "gemini", "gemini-rest", "openai-compat"
	Model          string `mapstructure:"model" yaml:"model" json:"model"`
	APIKey         string `mapstructure:"api_key" yaml:"api_key" json:"api_key"` // supports ${ENV_VAR} syntax
	BaseURL        string `mapstructure:"base_url" yaml:"base_url" json:"base_url"`
	DocumentMode   string `mapstructure:"document_mode" yaml:"document_mode" json:"document_mode"` // "url" or "text"
	ValidateOutput bool   `mapstructure:"validate_output" yaml:"validate_output" json:"validate_output"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds" json:"timeout_seconds"`
	RateLimitRPM   int    `mapstructure:"rate_limit_rpm" yaml:"rate_limit_rpm" json:"rate_limit_rpm"` // 0 disables throttling
}
