package providers

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
)

// maxDocumentBytes caps how much of an attachment is downloaded.
const maxDocumentBytes = 50 << 20

// fetchDocument downloads the attachment at url and returns its bytes and
// MIME type. The type comes from the response header, falling back to
// content sniffing.
func fetchDocument(ctx context.Context, client *http.Client, url string) ([]byte, string, error) {
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create document request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("document download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, "", fmt.Errorf("document download failed (status %d): %s", resp.StatusCode, string(body))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read document: %w", err)
	}
	if len(data) > maxDocumentBytes {
		return nil, "", fmt.Errorf("document exceeds %d bytes", maxDocumentBytes)
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("document is empty")
	}

	return data, detectMIMEType(resp.Header.Get("Content-Type"), data), nil
}

func detectMIMEType(header string, data []byte) string {
	if header != "" {
		if mt, _, err := mime.ParseMediaType(header); err == nil && mt != "application/octet-stream" {
			return mt
		}
	}
	mt, _, err := mime.ParseMediaType(http.DetectContentType(data))
	if err != nil {
		return "application/octet-stream"
	}
	return mt
}

func isPDF(data []byte) bool {
	return len(data) >= 5 && string(data[:5]) == "%PDF-"
}
