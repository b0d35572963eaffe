package pipeline_test

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/aqi-correlation/internal/corr"
	"github.com/couchcryptid/aqi-correlation/internal/dataset"
	"github.com/couchcryptid/aqi-correlation/internal/observability"
	"github.com/couchcryptid/aqi-correlation/internal/pipeline"
)

// AQI is exactly twice PM2.5 so that pair correlates at 1.0, and one PM10
// cell is missing to exercise pairwise-complete handling.
const sampleCSV = `Date,City,Station,PM2.5,PM10,AQI
2024-03-01,Delhi,Anand Vihar,120.5,210.1,241
2024-03-01,Mumbai,Bandra,60.2,,120.4
2024-03-02,Delhi,Anand Vihar,95.0,180.4,190
2024-03-02,Mumbai,Bandra,55.1,98.7,110.2
`

// --- mocks ---

type stubLoader struct {
	data  string
	err   error
	calls int
}

func (l *stubLoader) Load(_ context.Context) (*dataset.Dataset, error) {
	l.calls++
	if l.err != nil {
		return nil, l.err
	}
	return dataset.Read(strings.NewReader(l.data), "stub.csv")
}

type fakeRenderer struct {
	err   error
	calls int
}

func (r *fakeRenderer) Render(_ *corr.Matrix) ([]byte, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return []byte("png-bytes"), nil
}

func (r *fakeRenderer) Format() string { return "png" }

type capturePublisher struct {
	res *pipeline.Result
	err error
}

func (p *capturePublisher) PublishResult(_ context.Context, res *pipeline.Result) error {
	if p.err != nil {
		return p.err
	}
	p.res = res
	return nil
}

func newTestMetrics() *observability.Metrics {
	// Fresh registry per test to avoid "already registered" panics.
	return observability.NewMetricsForTesting()
}

func newAnalyzer(l pipeline.Loader, r pipeline.Renderer, pub pipeline.Publisher, metrics *observability.Metrics) *pipeline.Analyzer {
	return pipeline.New(
		l,
		pipeline.NewProjector(dataset.ProjectOptions{
			Exclude:    []string{"Date", "City"},
			NonNumeric: dataset.DropNonNumeric,
		}),
		pipeline.PearsonCorrelator{},
		r,
		pub,
		slog.Default(),
		metrics,
	)
}

// --- tests ---

func TestAnalyzer_Analyze_HappyPath(t *testing.T) {
	frozen := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	pipeline.SetClock(clockwork.NewFakeClockAt(frozen))
	t.Cleanup(func() { pipeline.SetClock(nil) })

	a := newAnalyzer(&stubLoader{data: sampleCSV}, &fakeRenderer{}, nil, newTestMetrics())

	res, err := a.Analyze(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "stub.csv", res.Source)
	assert.Equal(t, 4, res.Rows)
	if diff := cmp.Diff([]string{"PM2.5", "PM10", "AQI"}, res.Columns); diff != "" {
		t.Fatalf("columns mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"Date", "City"}, res.Excluded)
	assert.Equal(t, []string{"Station"}, res.Dropped)
	assert.Equal(t, []byte("png-bytes"), res.Image)
	assert.Equal(t, "png", res.ImageFormat)
	assert.True(t, res.GeneratedAt.Equal(frozen))

	r, err := res.Matrix.ByName("PM2.5", "AQI")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, r, 1e-9)

	latest, ok := a.Latest()
	require.True(t, ok)
	assert.Same(t, res, latest)
	assert.NoError(t, a.CheckReadiness(context.Background()))
}

func TestAnalyzer_NotReadyBeforeFirstSuccess(t *testing.T) {
	a := newAnalyzer(&stubLoader{data: sampleCSV}, &fakeRenderer{}, nil, newTestMetrics())

	assert.Error(t, a.CheckReadiness(context.Background()))
	_, ok := a.Latest()
	assert.False(t, ok)
}

func TestAnalyzer_Analyze_LoadError(t *testing.T) {
	metrics := newTestMetrics()
	renderer := &fakeRenderer{}
	a := newAnalyzer(&stubLoader{err: errors.New("disk gone")}, renderer, nil, metrics)

	_, err := a.Analyze(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load dataset")
	assert.Zero(t, renderer.calls, "nothing should be rendered when loading fails")
	assert.Error(t, a.CheckReadiness(context.Background()))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.AnalysisErrors))
}

func TestAnalyzer_Analyze_MissingExcludeColumn(t *testing.T) {
	// No City column: every configured identifier exclusion must exist.
	data := "Date,PM2.5,AQI\n2024-03-01,120.5,241\n2024-03-02,95.0,190\n"
	a := newAnalyzer(&stubLoader{data: data}, &fakeRenderer{}, nil, newTestMetrics())

	_, err := a.Analyze(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, dataset.ErrColumnNotFound)
	assert.Contains(t, err.Error(), "City")
}

func TestAnalyzer_Analyze_RenderError(t *testing.T) {
	a := newAnalyzer(&stubLoader{data: sampleCSV}, &fakeRenderer{err: errors.New("canvas boom")}, nil, newTestMetrics())

	_, err := a.Analyze(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "render heatmap")
	assert.Error(t, a.CheckReadiness(context.Background()))
}

func TestAnalyzer_FailureKeepsPreviousResult(t *testing.T) {
	loader := &stubLoader{data: sampleCSV}
	a := newAnalyzer(loader, &fakeRenderer{}, nil, newTestMetrics())

	first, err := a.Analyze(context.Background())
	require.NoError(t, err)

	loader.err = errors.New("input vanished")
	_, err = a.Analyze(context.Background())
	require.Error(t, err)

	latest, ok := a.Latest()
	require.True(t, ok)
	assert.Same(t, first, latest)
	assert.NoError(t, a.CheckReadiness(context.Background()))
	assert.Equal(t, 2, loader.calls)
}

func TestAnalyzer_PublishReceivesResult(t *testing.T) {
	pub := &capturePublisher{}
	metrics := newTestMetrics()
	a := newAnalyzer(&stubLoader{data: sampleCSV}, &fakeRenderer{}, pub, metrics)

	res, err := a.Analyze(context.Background())
	require.NoError(t, err)
	assert.Same(t, res, pub.res)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ResultsPublished))
}

func TestAnalyzer_PublishFailureIsNotFatal(t *testing.T) {
	pub := &capturePublisher{err: errors.New("broker down")}
	metrics := newTestMetrics()
	a := newAnalyzer(&stubLoader{data: sampleCSV}, &fakeRenderer{}, pub, metrics)

	res, err := a.Analyze(context.Background())
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.NoError(t, a.CheckReadiness(context.Background()))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.PublishErrors))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.ResultsPublished))
}
