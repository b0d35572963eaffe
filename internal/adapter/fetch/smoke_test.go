//go:build online

package fetch

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests download a real dataset and require an AQI_DATASET_URL env var
// pointing at a CSV with a header row.
// Run with: go test -tags=online ./internal/adapter/fetch/ -v -count=1

func smokeClient(t *testing.T) (*Client, string) {
	t.Helper()
	url := os.Getenv("AQI_DATASET_URL")
	if url == "" {
		t.Fatal("AQI_DATASET_URL must be set to run smoke tests")
	}
	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		maxBytes:   defaultMaxBytes,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	return c, url
}

func TestSmoke_Fetch(t *testing.T) {
	c, url := smokeClient(t)

	data, err := c.Fetch(context.Background(), url)
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}

func TestSmoke_Load(t *testing.T) {
	c, url := smokeClient(t)

	d, err := NewLoader(c, url).Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, url, d.Source())
	assert.Positive(t, d.Rows())
	assert.NotEmpty(t, d.Columns())
}
