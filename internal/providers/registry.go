package providers

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Document modes.
const (
	DocumentModeURL  = "url"
	DocumentModeText = "text"
)

// ExtractorConfig matches config.ExtractionCfg with a resolved API key.
type ExtractorConfig struct {
	Type         string // "gemini", "gemini-rest", "openai-compat"
	Model        string
	APIKey       string
	BaseURL      string
	DocumentMode string // "url" (default) or "text"
	Timeout      time.Duration
	RateLimitRPM int // 0 disables throttling
}

type extractorFactory func(ctx context.Context, cfg ExtractorConfig, bundle Bundle) (Extractor, error)

var extractorFactories = map[string]extractorFactory{
	GeminiName: func(ctx context.Context, cfg ExtractorConfig, bundle Bundle) (Extractor, error) {
		return NewGeminiClient(ctx, GeminiConfig{
			APIKey:   cfg.APIKey,
			Model:    cfg.Model,
			Endpoint: cfg.BaseURL,
			Timeout:  cfg.Timeout,
			Bundle:   bundle,
		})
	},
	GeminiRESTName: func(_ context.Context, cfg ExtractorConfig, bundle Bundle) (Extractor, error) {
		return NewGeminiRESTClient(GeminiRESTConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
			Bundle:  bundle,
		}), nil
	},
	MockExtractorName: func(_ context.Context, _ ExtractorConfig, _ Bundle) (Extractor, error) {
		return NewMockExtractor(), nil
	},
	OpenAICompatName: func(_ context.Context, cfg ExtractorConfig, bundle Bundle) (Extractor, error) {
		return NewOpenAICompatClient(OpenAICompatConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
			Bundle:  bundle,
		}), nil
	},
}

// ExtractorTypes returns the supported provider types, sorted.
func ExtractorTypes() []string {
	types := make([]string, 0, len(extractorFactories))
	for name := range extractorFactories {
		types = append(types, name)
	}
	sort.Strings(types)
	return types
}

// NewExtractor creates an Extractor for cfg. Text mode wraps the provider
// in a PDFTextExtractor; a positive RateLimitRPM adds a RateLimitedExtractor
// outermost so downloads are throttled too.
func NewExtractor(ctx context.Context, cfg ExtractorConfig, bundle Bundle) (Extractor, error) {
	factory, ok := extractorFactories[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("unknown extraction provider: %q", cfg.Type)
	}
	ext, err := factory(ctx, cfg, bundle)
	if err != nil {
		return nil, err
	}

	switch cfg.DocumentMode {
	case "", DocumentModeURL:
	case DocumentModeText:
		ext = NewPDFTextExtractor(ext, nil)
	default:
		closeExtractor(ext)
		return nil, fmt.Errorf("unknown document mode: %q", cfg.DocumentMode)
	}

	if cfg.RateLimitRPM > 0 {
		ext = NewRateLimitedExtractor(ext, cfg.RateLimitRPM)
	}
	return ext, nil
}

// Registry holds the active Extractor and swaps it on config reload.
// It implements Extractor itself, so callers keep one reference across reloads.
type Registry struct {
	mu      sync.RWMutex
	current *activeExtractor
	cfg     ExtractorConfig
	bundle  Bundle
	logger  *slog.Logger
}

// activeExtractor counts the calls running on one extractor so a retired
// extractor is closed only after they finish.
type activeExtractor struct {
	ext      Extractor
	inflight sync.WaitGroup
}

// NewRegistry creates a registry with an already-built extractor.
func NewRegistry(ext Extractor, cfg ExtractorConfig, bundle Bundle) *Registry {
	return &Registry{
		current: &activeExtractor{ext: ext},
		cfg:     cfg,
		bundle:  bundle,
		logger:  slog.Default(),
	}
}

// NewRegistryFromConfig builds the extractor for cfg and wraps it in a registry.
func NewRegistryFromConfig(ctx context.Context, cfg ExtractorConfig, bundle Bundle) (*Registry, error) {
	ext, err := NewExtractor(ctx, cfg, bundle)
	if err != nil {
		return nil, err
	}
	return NewRegistry(ext, cfg, bundle), nil
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger *slog.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = logger
}

// Name returns the active extractor's name.
func (r *Registry) Name() string {
	return r.Get().Name()
}

// Extract delegates to the active extractor.
func (r *Registry) Extract(ctx context.Context, doc DocumentRef) (*ExtractionResult, error) {
	r.mu.RLock()
	active := r.current
	active.inflight.Add(1)
	r.mu.RUnlock()
	defer active.inflight.Done()

	return active.ext.Extract(ctx, doc)
}

// Get returns the active extractor.
func (r *Registry) Get() Extractor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current.ext
}

// Config returns the config the active extractor was built from.
func (r *Registry) Config() ExtractorConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cfg
}

// LimiterStatus returns the rate limiter status when throttling is enabled.
func (r *Registry) LimiterStatus() (RateLimiterStatus, bool) {
	if rl, ok := r.Get().(*RateLimitedExtractor); ok {
		return rl.Status(), true
	}
	return RateLimiterStatus{}, false
}

// Reload rebuilds the extractor when cfg differs from the active one.
// On error the previous extractor stays active. A replaced extractor is
// closed once the calls already running on it return.
func (r *Registry) Reload(ctx context.Context, cfg ExtractorConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cfg == r.cfg && r.current.ext != nil {
		return nil
	}

	ext, err := NewExtractor(ctx, cfg, r.bundle)
	if err != nil {
		return err
	}

	old := r.current
	r.current = &activeExtractor{ext: ext}
	r.cfg = cfg
	go func() {
		old.inflight.Wait()
		closeExtractor(old.ext)
	}()

	if r.logger != nil {
		r.logger.Info("reloaded extractor", "provider", cfg.Type, "model", cfg.Model, "document_mode", cfg.DocumentMode)
	}
	return nil
}

// Close releases the active extractor.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.current.ext.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func closeExtractor(ext Extractor) {
	if c, ok := ext.(io.Closer); ok {
		_ = c.Close()
	}
}
