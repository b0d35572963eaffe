package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/couchcryptid/aqi-correlation/internal/adapter/http"
	"github.com/couchcryptid/aqi-correlation/internal/corr"
	"github.com/couchcryptid/aqi-correlation/internal/dataset"
	"github.com/couchcryptid/aqi-correlation/internal/heatmap"
	"github.com/couchcryptid/aqi-correlation/internal/pipeline"
)

type mockProvider struct {
	err error
	res *pipeline.Result
}

func (m *mockProvider) CheckReadiness(_ context.Context) error { return m.err }

func (m *mockProvider) Latest() (*pipeline.Result, bool) { return m.res, m.res != nil }

func baseOpts() heatmap.Options {
	return heatmap.Options{
		Title:    "AQI Correlations",
		WidthIn:  4,
		HeightIn: 3,
		Palette:  "blackbody",
		Annotate: true,
		Format:   "png",
	}
}

func testResult(t *testing.T) *pipeline.Result {
	t.Helper()

	table, err := dataset.NewNumericTable(
		[]string{"PM2.5", "PM10", "AQI"},
		[][]float64{
			{10, 20, 30, 40},
			{22, 41, 63, 78},
			{20, 40, 60, 80},
		},
	)
	require.NoError(t, err)
	m, err := corr.Compute(table)
	require.NoError(t, err)

	r, err := heatmap.New(baseOpts())
	require.NoError(t, err)
	img, err := r.Render(m)
	require.NoError(t, err)

	return &pipeline.Result{
		Source:      "testdata/aqi.csv",
		Rows:        4,
		Columns:     m.Columns(),
		Excluded:    []string{"Date", "City"},
		Matrix:      m,
		Image:       img,
		ImageFormat: "png",
		GeneratedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func newTestServer(p *mockProvider) *httpadapter.Server {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return httpadapter.NewServer(":0", p, baseOpts(), logger)
}

func get(srv *httpadapter.Server, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	srv.ServeHTTP(rec, req)
	return rec
}

func TestHealthzReturns200(t *testing.T) {
	srv := newTestServer(&mockProvider{})

	rec := get(srv, "/healthz")

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	srv := newTestServer(&mockProvider{res: testResult(t)})

	rec := get(srv, "/readyz")

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ready", body["status"])
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	srv := newTestServer(&mockProvider{err: fmt.Errorf("no correlation result available yet")})

	rec := get(srv, "/readyz")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "no correlation result available yet", body["error"])
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(&mockProvider{})

	rec := get(srv, "/metrics")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestHeatmapReturns503BeforeFirstResult(t *testing.T) {
	srv := newTestServer(&mockProvider{err: fmt.Errorf("no result")})

	rec := get(srv, "/heatmap")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHeatmapServesStoredImage(t *testing.T) {
	res := testResult(t)
	srv := newTestServer(&mockProvider{res: res})

	rec := get(srv, "/heatmap")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, res.Image, rec.Body.Bytes())
}

func TestHeatmapRerendersWithParams(t *testing.T) {
	res := testResult(t)
	srv := newTestServer(&mockProvider{res: res})

	rec := get(srv, "/heatmap?palette=kindlmann&invert=true")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Body.Bytes())
	assert.NotEqual(t, res.Image, rec.Body.Bytes(), "override should produce a different render")

	// Same parameters again hit the render cache and return identical bytes.
	rec2 := get(srv, "/heatmap?palette=kindlmann&invert=true")
	assert.Equal(t, http.StatusOK, rec2.Code)
	assert.Equal(t, rec.Body.Bytes(), rec2.Body.Bytes())
}

func TestHeatmapRejectsUnknownPalette(t *testing.T) {
	srv := newTestServer(&mockProvider{res: testResult(t)})

	rec := get(srv, "/heatmap?palette=viridis")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "palette")
}

func TestHeatmapRejectsBadSize(t *testing.T) {
	srv := newTestServer(&mockProvider{res: testResult(t)})

	for _, target := range []string{"/heatmap?w=abc", "/heatmap?w=-3", "/heatmap?h=0", "/heatmap?h=5000"} {
		rec := get(srv, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestMatrixReturnsSummary(t *testing.T) {
	res := testResult(t)
	srv := newTestServer(&mockProvider{res: res})

	rec := get(srv, "/matrix")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body struct {
		Source      string    `json:"source"`
		Rows        int       `json:"rows"`
		Columns     []string  `json:"columns"`
		Excluded    []string  `json:"excluded"`
		GeneratedAt time.Time `json:"generated_at"`
		Matrix      struct {
			Columns []string     `json:"columns"`
			Values  [][]*float64 `json:"values"`
		} `json:"matrix"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	assert.Equal(t, "testdata/aqi.csv", body.Source)
	assert.Equal(t, 4, body.Rows)
	assert.Equal(t, []string{"PM2.5", "PM10", "AQI"}, body.Columns)
	assert.Equal(t, []string{"Date", "City"}, body.Excluded)
	assert.Equal(t, res.GeneratedAt, body.GeneratedAt)
	require.Len(t, body.Matrix.Values, 3)
	require.NotNil(t, body.Matrix.Values[0][0])
	assert.Equal(t, 1.0, *body.Matrix.Values[0][0])
	require.NotNil(t, body.Matrix.Values[0][2])
	assert.InDelta(t, 1.0, *body.Matrix.Values[0][2], 1e-12, "PM2.5 and AQI are perfectly correlated here")
}

func TestMatrixUndefinedCoefficientIsNull(t *testing.T) {
	table, err := dataset.NewNumericTable(
		[]string{"PM2.5", "Constant"},
		[][]float64{
			{10, 20, 30},
			{5, 5, 5},
		},
	)
	require.NoError(t, err)
	m, err := corr.Compute(table)
	require.NoError(t, err)

	res := testResult(t)
	res.Matrix = m
	res.Columns = m.Columns()
	srv := newTestServer(&mockProvider{res: res})

	rec := get(srv, "/matrix")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Matrix struct {
			Values [][]*float64 `json:"values"`
		} `json:"matrix"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Nil(t, body.Matrix.Values[0][1], "constant column coefficient should be null")
	require.NotNil(t, body.Matrix.Values[0][0])
	assert.Equal(t, 1.0, *body.Matrix.Values[0][0])
}

func TestPairsReturnsStrongestFirst(t *testing.T) {
	srv := newTestServer(&mockProvider{res: testResult(t)})

	rec := get(srv, "/pairs")

	assert.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Source string `json:"source"`
		Pairs  []struct {
			A string  `json:"a"`
			B string  `json:"b"`
			R float64 `json:"r"`
		} `json:"pairs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	assert.Equal(t, "testdata/aqi.csv", body.Source)
	require.Len(t, body.Pairs, 3)
	assert.InDelta(t, 1.0, body.Pairs[0].R, 1e-12)
	for i := 1; i < len(body.Pairs); i++ {
		assert.GreaterOrEqual(t, abs(body.Pairs[i-1].R), abs(body.Pairs[i].R))
	}
}

func TestPairsLimitParam(t *testing.T) {
	srv := newTestServer(&mockProvider{res: testResult(t)})

	rec := get(srv, "/pairs?limit=1")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Pairs []json.RawMessage `json:"pairs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Pairs, 1)
}

func TestPairsRejectsBadLimit(t *testing.T) {
	srv := newTestServer(&mockProvider{res: testResult(t)})

	for _, target := range []string{"/pairs?limit=abc", "/pairs?limit=-1"} {
		rec := get(srv, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
