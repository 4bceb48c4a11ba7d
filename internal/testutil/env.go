// Package testutil holds helpers shared by server and endpoint tests.
package testutil

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// Logger returns a logger that writes through t.Log.
func Logger(t testing.TB) *slog.Logger {
	return slog.New(slog.NewTextHandler(testWriter{t}, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

type testWriter struct{ t testing.TB }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

// ConfigOptions selects values for a test config file.
type ConfigOptions struct {
	Port           string
	RecordStoreURL string
	Provider       string
	RateLimitRPM   int
	// Validate sets extraction.validate_output.
	Validate bool
}

// WriteConfig writes a config file pointing the record store at a stub
// and selecting the given extractor, and returns its path.
func WriteConfig(t testing.TB, opts ConfigOptions) string {
	t.Helper()
	if opts.Provider == "" {
		opts.Provider = "mock"
	}
	if opts.Port == "" {
		opts.Port = "3000"
	}
	content := fmt.Sprintf(`server:
  host: 127.0.0.1
  port: %s
record_store:
  base_url: %s
  base_id: appTest
  api_key: test-key
extraction:
  provider: %s
  api_key: test-key
  validate_output: %t
  rate_limit_rpm: %d
`, opts.Port, opts.RecordStoreURL, opts.Provider, opts.Validate, opts.RateLimitRPM)

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

// FindFreePort finds an available TCP port and returns it as a string.
func FindFreePort() (string, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", err
	}
	defer listener.Close()
	return fmt.Sprintf("%d", listener.Addr().(*net.TCPAddr).Port), nil
}

// WaitForServer polls /ready until it answers 200.
func WaitForServer(ctx context.Context, url string, timeout time.Duration) error {
	client := &http.Client{Timeout: 2 * time.Second}
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url+"/ready", nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}

	return fmt.Errorf("server not ready after %v", timeout)
}

// WaitForShutdown waits for a channel to receive a value or timeout.
func WaitForShutdown(done <-chan error, timeout time.Duration) error {
	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		return fmt.Errorf("timeout waiting for shutdown")
	}
}
