package sources

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

const userAgent = "digestbot/1.0"

// MirrorSource fetches the digest text from one mirror URL.
type MirrorSource struct {
	url    string
	client *http.Client
}

// NewMirrorSource creates a mirror source. A nil client means http.DefaultClient.
func NewMirrorSource(url string, client *http.Client) *MirrorSource {
	if client == nil {
		client = http.DefaultClient
	}
	return &MirrorSource{url: url, client: client}
}

func (m *MirrorSource) Name() string { return m.url }

// Fetch performs a single GET. Transport errors and non-2xx statuses are
// returned as errors.
func (m *MirrorSource) Fetch(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", m.url, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := m.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", m.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &StatusError{URL: m.url, StatusCode: resp.StatusCode, Status: resp.Status}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", m.url, err)
	}
	return string(body), nil
}

// StatusError reports a non-2xx mirror response.
type StatusError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: unexpected status %s", e.URL, e.Status)
}
