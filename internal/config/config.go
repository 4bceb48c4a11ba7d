package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"

	"github.com/jackzampolin/assessor/internal/providers"
	"github.com/jackzampolin/assessor/internal/recordstore"
)

// EnvPrefix is prepended to every config key read from the environment,
// e.g. ASSESSOR_EXTRACTION_MODEL.
const EnvPrefix = "ASSESSOR"

// Manager handles loading and hot-reloading configuration.
type Manager struct {
	mu        sync.RWMutex
	v         *viper.Viper
	config    *Config
	callbacks []func(*Config)
}

// NewManager creates a new config manager and loads initial config.
// An empty cfgFile searches ./config.yaml and $HOME/.assessor/config.yaml;
// a missing file is not an error.
func NewManager(cfgFile string) (*Manager, error) {
	cm := &Manager{
		v:         viper.New(),
		callbacks: make([]func(*Config), 0),
	}

	if err := cm.initViper(cfgFile); err != nil {
		return nil, err
	}

	cfg, err := cm.load()
	if err != nil {
		return nil, err
	}
	cm.config = cfg

	return cm, nil
}

// initViper sets up viper with defaults, environment and config file.
func (cm *Manager) initViper(cfgFile string) error {
	v := cm.v
	for _, e := range DefaultEntries() {
		v.SetDefault(e.Key, e.Value)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, e := range DefaultEntries() {
		if len(e.Env) == 0 {
			continue
		}
		names := append([]string{envName(e.Key)}, e.Env...)
		if err := v.BindEnv(append([]string{e.Key}, names...)...); err != nil {
			return fmt.Errorf("failed to bind env for %s: %w", e.Key, err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.assessor")
	}

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}

func envName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// load parses the current viper state into a Config struct.
func (cm *Manager) load() (*Config, error) {
	var cfg Config
	if err := cm.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Get returns the current configuration (thread-safe).
func (cm *Manager) Get() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

// ConfigFile returns the config file in use, or "" when running on defaults.
func (cm *Manager) ConfigFile() string {
	return cm.v.ConfigFileUsed()
}

// OnChange registers a callback for config changes.
func (cm *Manager) OnChange(fn func(*Config)) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.callbacks = append(cm.callbacks, fn)
}

// WatchConfig enables hot-reloading of configuration. It is a no-op when
// no config file was found.
func (cm *Manager) WatchConfig() {
	if cm.v.ConfigFileUsed() == "" {
		return
	}
	cm.v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := cm.load()
		if err != nil {
			return
		}

		cm.mu.Lock()
		cm.config = cfg
		callbacks := make([]func(*Config), len(cm.callbacks))
		copy(callbacks, cm.callbacks)
		cm.mu.Unlock()

		for _, fn := range callbacks {
			fn(cfg)
		}
	})
	cm.v.WatchConfig()
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// ResolveEnvVars expands ${ENV_VAR} references in a string.
func ResolveEnvVars(value string) string {
	if value == "" {
		return value
	}
	return envVarPattern.ReplaceAllStringFunc(value, func(match string) string {
		return os.Getenv(match[2 : len(match)-1])
	})
}

// LoadDotEnv loads environment variables from the given .env files, or
// ./.env when none are given. Missing files are skipped; variables already
// set in the environment win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// Validate reports settings the service cannot start without.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if ResolveEnvVars(c.RecordStore.BaseID) == "" {
		errs = append(errs, errors.New("record_store.base_id is empty (set AIRTABLE_BASE_ID)"))
	}
	if ResolveEnvVars(c.RecordStore.APIKey) == "" {
		errs = append(errs, errors.New("record_store.api_key is empty (set AIRTABLE_API_KEY)"))
	}
	if c.Extraction.Provider != providers.MockExtractorName && ResolveEnvVars(c.Extraction.APIKey) == "" {
		errs = append(errs, errors.New("extraction.api_key is empty (set GEMINI_API_KEY)"))
	}

	known := false
	for _, t := range providers.ExtractorTypes() {
		if c.Extraction.Provider == t {
			known = true
			break
		}
	}
	if !known {
		errs = append(errs, fmt.Errorf("extraction.provider %q is not one of %s",
			c.Extraction.Provider, strings.Join(providers.ExtractorTypes(), ", ")))
	}
	switch c.Extraction.DocumentMode {
	case "", providers.DocumentModeURL, providers.DocumentModeText:
	default:
		errs = append(errs, fmt.Errorf("extraction.document_mode %q must be url or text", c.Extraction.DocumentMode))
	}
	return errors.Join(errs...)
}

// ToRecordStoreConfig converts the config for recordstore.NewClient,
// resolving ${ENV_VAR} references.
func (c *Config) ToRecordStoreConfig() recordstore.Config {
	rs := c.RecordStore
	return recordstore.Config{
		BaseURL:     rs.BaseURL,
		BaseID:      ResolveEnvVars(rs.BaseID),
		APIKey:      ResolveEnvVars(rs.APIKey),
		Table:       rs.Table,
		UploadField: rs.UploadField,
		OutputField: rs.OutputField,
		Timeout:     time.Duration(rs.TimeoutSeconds) * time.Second,
	}
}

// ToExtractorConfig converts the config for providers.NewExtractor,
// resolving ${ENV_VAR} references.
func (c *Config) ToExtractorConfig() providers.ExtractorConfig {
	ex := c.Extraction
	return providers.ExtractorConfig{
		Type:         ex.Provider,
		Model:        ex.Model,
		APIKey:       ResolveEnvVars(ex.APIKey),
		BaseURL:      ex.BaseURL,
		DocumentMode: ex.DocumentMode,
		Timeout:      time.Duration(ex.TimeoutSeconds) * time.Second,
		RateLimitRPM: ex.RateLimitRPM,
	}
}

// Redacted returns a copy with credentials masked, for display.
func (c *Config) Redacted() *Config {
	out := *c
	out.RecordStore.APIKey = redact(c.RecordStore.APIKey)
	out.Extraction.APIKey = redact(c.Extraction.APIKey)
	return &out
}

// redact keeps empty values and bare ${VAR} references, masking literals.
func redact(value string) string {
	if value == "" || envVarPattern.FindString(value) == value {
		return value
	}
	return "********"
}

// WriteDefault writes the default configuration to the specified path.
func WriteDefault(path string) error {
	cfg := DefaultConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# Assessor configuration
# Credentials use ${ENV_VAR} syntax to reference environment variables
# Set these in your shell or a .env file: GEMINI_API_KEY, AIRTABLE_BASE_ID, AIRTABLE_API_KEY

`)
	return os.WriteFile(path, append(header, data...), 0o644)
}
