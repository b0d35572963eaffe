// Package fetch retrieves remote CSV datasets over HTTP.
package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/aqi-correlation/internal/dataset"
)

// Responses larger than this are rejected rather than buffered.
const defaultMaxBytes = 64 << 20

// Client downloads datasets from http(s) URLs.
type Client struct {
	httpClient *http.Client
	maxBytes   int64
	logger     *slog.Logger
}

// NewClient creates a dataset fetch client.
func NewClient(timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		maxBytes: defaultMaxBytes,
		logger:   logger,
	}
}

// Fetch downloads the resource at rawURL. Any status other than 200 OK is an
// error, with the start of the response body included for diagnosis.
func (c *Client) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/csv")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch dataset: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("fetch dataset: status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read dataset body: %w", err)
	}
	if int64(len(data)) > c.maxBytes {
		return nil, fmt.Errorf("dataset at %s exceeds %d byte limit", rawURL, c.maxBytes)
	}

	c.logger.Debug("dataset fetched", "url", rawURL, "bytes", len(data))
	return data, nil
}

// Loader fetches and parses a remote dataset. It implements the pipeline's
// Loader for URL inputs.
type Loader struct {
	client *Client
	url    string
}

// NewLoader creates a Loader that reads from url on every Load call.
func NewLoader(client *Client, url string) *Loader {
	return &Loader{client: client, url: url}
}

// Load downloads and parses the dataset.
func (l *Loader) Load(ctx context.Context) (*dataset.Dataset, error) {
	data, err := l.client.Fetch(ctx, l.url)
	if err != nil {
		return nil, err
	}
	return dataset.ReadBytes(data, l.url)
}
