package data

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// DefaultFetchTimeout bounds a single endpoint request.
const DefaultFetchTimeout = 30 * time.Second

// maxPayloadSize caps endpoint responses.
const maxPayloadSize = 32 << 20

// Payload is a raw endpoint response.
type Payload struct {
	Body        []byte
	ContentType string
}

// Fetcher downloads domain payloads from external endpoints.
type Fetcher struct {
	client *http.Client
}

// NewFetcher creates a fetcher. A nil client gets DefaultFetchTimeout and a
// traced transport.
func NewFetcher(client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{
			Timeout:   DefaultFetchTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	return &Fetcher{client: client}
}

// Fetch performs a GET against url and returns the body on a 2xx status.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Payload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json, text/csv")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return &Payload{Body: body, ContentType: resp.Header.Get("Content-Type")}, nil
}
