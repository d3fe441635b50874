// Package ipapi implements the IP API source.
package ipapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/database64128/dyns-go/internal/httphelper"
	"github.com/database64128/dyns-go/producer"
)

// DefaultURL is the text-based IP address API used when none is configured.
const DefaultURL = "https://api.ipify.org/"

// TextSource obtains the public IP address from a text-based IP address API.
// The whole response body, with surrounding whitespace trimmed, is taken as the address.
//
// TextSource implements [producer.Source].
type TextSource struct {
	client *http.Client
	url    string
}

// NewTextSource creates a new [TextSource].
//
//   - If client is nil, [http.DefaultClient] is used.
//   - If url is empty, it defaults to [DefaultURL].
func NewTextSource(client *http.Client, url string) *TextSource {
	if client == nil {
		client = http.DefaultClient
	}
	if url == "" {
		url = DefaultURL
	}
	return &TextSource{client: client, url: url}
}

var _ producer.Source = (*TextSource)(nil)

// URL returns the URL of the IP address API.
func (s *TextSource) URL() string {
	return s.url
}

// Snapshot returns the current public IP address.
//
// Snapshot implements [producer.Source.Snapshot].
func (s *TextSource) Snapshot(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: failed to get IP address: %w", producer.ErrNetwork, err)
	}

	body, err := httphelper.ReadBody(resp)
	if err != nil {
		return "", fmt.Errorf("%w: failed to read response body: %w", producer.ErrResponse, err)
	}
	if !httphelper.IsSuccess(resp.StatusCode) {
		return "", fmt.Errorf("%w: unexpected status code %d: %q", producer.ErrResponse, resp.StatusCode, body)
	}

	ip := strings.TrimSpace(string(body))
	if ip == "" {
		return "", fmt.Errorf("%w: empty response body", producer.ErrResponse)
	}
	return ip, nil
}
