package providers

import (
	"context"
	"io"
	"sync"
	"time"
)

// RateLimiter is a token bucket refilled continuously over a one-minute window.
type RateLimiter struct {
	mu sync.Mutex

	requestsPerMinute int
	tokens            float64
	lastUpdate        time.Time

	totalConsumed int64
	totalWaited   time.Duration
}

// RateLimiterStatus reports current limiter state.
type RateLimiterStatus struct {
	TokensAvailable int           `json:"tokens_available"`
	TokensLimit     int           `json:"tokens_limit"`
	TotalConsumed   int64         `json:"total_consumed"`
	TotalWaited     time.Duration `json:"total_waited"`
}

// NewRateLimiter creates a limiter allowing requestsPerMinute calls, starting full.
func NewRateLimiter(requestsPerMinute int) *RateLimiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 60
	}
	return &RateLimiter{
		requestsPerMinute: requestsPerMinute,
		tokens:            float64(requestsPerMinute),
		lastUpdate:        time.Now(),
	}
}

// Wait blocks until a token is available or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	for {
		r.mu.Lock()
		r.refill()
		if r.tokens >= 1.0 {
			r.tokens--
			r.totalConsumed++
			r.mu.Unlock()
			return nil
		}
		wait := r.untilNextToken()
		r.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			r.mu.Lock()
			r.totalWaited += wait
			r.mu.Unlock()
		}
	}
}

// Status returns current limiter status.
func (r *RateLimiter) Status() RateLimiterStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refill()
	return RateLimiterStatus{
		TokensAvailable: int(r.tokens),
		TokensLimit:     r.requestsPerMinute,
		TotalConsumed:   r.totalConsumed,
		TotalWaited:     r.totalWaited,
	}
}

// refill must be called with the lock held.
func (r *RateLimiter) refill() {
	now := time.Now()
	elapsed := now.Sub(r.lastUpdate).Seconds()
	r.lastUpdate = now

	r.tokens += elapsed * r.perSecond()
	if r.tokens > float64(r.requestsPerMinute) {
		r.tokens = float64(r.requestsPerMinute)
	}
}

func (r *RateLimiter) perSecond() float64 {
	return float64(r.requestsPerMinute) / 60.0
}

func (r *RateLimiter) untilNextToken() time.Duration {
	needed := 1.0 - r.tokens
	return time.Duration(needed / r.perSecond() * float64(time.Second))
}

// RateLimitedExtractor delays calls so the wrapped Extractor stays under a
// per-minute budget. It never repeats a call.
type RateLimitedExtractor struct {
	inner   Extractor
	limiter *RateLimiter
}

// NewRateLimitedExtractor wraps inner with a limiter of requestsPerMinute.
func NewRateLimitedExtractor(inner Extractor, requestsPerMinute int) *RateLimitedExtractor {
	return &RateLimitedExtractor{inner: inner, limiter: NewRateLimiter(requestsPerMinute)}
}

// Name returns the wrapped extractor's name.
func (e *RateLimitedExtractor) Name() string {
	return e.inner.Name()
}

// Extract waits for a token, then delegates.
func (e *RateLimitedExtractor) Extract(ctx context.Context, doc DocumentRef) (*ExtractionResult, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return e.inner.Extract(ctx, doc)
}

// Status returns the limiter status.
func (e *RateLimitedExtractor) Status() RateLimiterStatus {
	return e.limiter.Status()
}

// Close closes the wrapped extractor when it holds resources.
func (e *RateLimitedExtractor) Close() error {
	if c, ok := e.inner.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
