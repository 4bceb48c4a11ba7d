package providers

import (
	"context"
	"testing"
	"time"
)

func TestRateLimiter(t *testing.T) {
	t.Run("allows burst up to limit", func(t *testing.T) {
		rl := NewRateLimiter(3)
		ctx := context.Background()
		for i := 0; i < 3; i++ {
			if err := rl.Wait(ctx); err != nil {
				t.Fatalf("Wait() %d error = %v", i, err)
			}
		}
		status := rl.Status()
		if status.TotalConsumed != 3 {
			t.Errorf("TotalConsumed = %d, want 3", status.TotalConsumed)
		}
		if status.TokensAvailable != 0 {
			t.Errorf("TokensAvailable = %d, want 0", status.TokensAvailable)
		}
	})

	t.Run("wait honors context", func(t *testing.T) {
		rl := NewRateLimiter(1)
		if err := rl.Wait(context.Background()); err != nil {
			t.Fatalf("Wait() error = %v", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		if err := rl.Wait(ctx); err == nil {
			t.Fatal("expected context error")
		}
	})
}

func TestRateLimitedExtractor(t *testing.T) {
	inner := NewMockExtractor()
	ext := NewRateLimitedExtractor(inner, 2)

	for i := 0; i < 2; i++ {
		if _, err := ext.Extract(context.Background(), DocumentRef{URL: "u"}); err != nil {
			t.Fatalf("Extract() error = %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := ext.Extract(ctx, DocumentRef{URL: "u"}); err == nil {
		t.Fatal("expected throttled call to fail on deadline")
	}
	if inner.Calls() != 2 {
		t.Errorf("inner calls = %d, want 2", inner.Calls())
	}
	if ext.Name() != MockExtractorName {
		t.Errorf("Name() = %q", ext.Name())
	}
}
