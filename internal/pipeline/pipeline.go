package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/aqi-correlation/internal/corr"
	"github.com/couchcryptid/aqi-correlation/internal/dataset"
	"github.com/couchcryptid/aqi-correlation/internal/observability"
)

// Loader reads the source dataset.
type Loader interface {
	Load(ctx context.Context) (*dataset.Dataset, error)
}

// Projector reduces a dataset to its numeric measurement columns.
type Projector interface {
	Project(d *dataset.Dataset) (*dataset.NumericTable, error)
}

// Correlator computes the correlation matrix for a numeric table.
type Correlator interface {
	Correlate(t *dataset.NumericTable) (*corr.Matrix, error)
}

// Renderer encodes a correlation matrix as an image.
type Renderer interface {
	Render(m *corr.Matrix) ([]byte, error)
	Format() string
}

// Publisher delivers a finished result downstream.
type Publisher interface {
	PublishResult(ctx context.Context, res *Result) error
}

// Result is one completed analysis.
type Result struct {
	Source      string
	Rows        int
	Columns     []string
	Excluded    []string
	Dropped     []string
	Matrix      *corr.Matrix
	Image       []byte
	ImageFormat string
	GeneratedAt time.Time
	Elapsed     time.Duration
}

// Analyzer orchestrates the load-project-correlate-render pipeline and
// retains the latest result for readers.
type Analyzer struct {
	loader     Loader
	projector  Projector
	correlator Correlator
	renderer   Renderer
	publisher  Publisher
	logger     *slog.Logger
	metrics    *observability.Metrics

	runMu  sync.Mutex   // serializes analyses
	mu     sync.RWMutex // guards latest
	latest *Result
	ready  atomic.Bool
}

// New creates an Analyzer with the given stages and observability. Pass a
// nil publisher to disable downstream publishing.
func New(l Loader, p Projector, c Correlator, r Renderer, pub Publisher, logger *slog.Logger, metrics *observability.Metrics) *Analyzer {
	return &Analyzer{
		loader:     l,
		projector:  p,
		correlator: c,
		renderer:   r,
		publisher:  pub,
		logger:     logger,
		metrics:    metrics,
	}
}

// CheckReadiness returns nil once a correlation result is available, or an
// error describing why the service is not yet ready.
func (a *Analyzer) CheckReadiness(_ context.Context) error {
	if !a.ready.Load() {
		return errors.New("no correlation result available yet")
	}
	return nil
}

// Latest returns the most recent successful result.
func (a *Analyzer) Latest() (*Result, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.latest, a.latest != nil
}

// Analyze runs one complete pipeline cycle. On success the result becomes
// the latest and is published if a publisher is configured; on failure any
// previous result keeps serving.
func (a *Analyzer) Analyze(ctx context.Context) (*Result, error) {
	a.runMu.Lock()
	defer a.runMu.Unlock()

	res, err := a.analyze(ctx)
	if err != nil {
		a.metrics.AnalysisErrors.Inc()
		return nil, err
	}

	a.metrics.AnalysesTotal.Inc()
	a.metrics.AnalysisDuration.Observe(res.Elapsed.Seconds())
	a.metrics.DatasetRows.Set(float64(res.Rows))
	a.metrics.NumericColumns.Set(float64(len(res.Columns)))

	a.mu.Lock()
	a.latest = res
	a.mu.Unlock()
	a.ready.Store(true)
	a.metrics.AnalyzerReady.Set(1)

	a.logger.Info("analysis complete",
		"source", res.Source,
		"rows", res.Rows,
		"columns", len(res.Columns),
		"elapsed", res.Elapsed,
	)

	a.publish(ctx, res)
	return res, nil
}

func (a *Analyzer) analyze(ctx context.Context) (*Result, error) {
	start := clock.Now()

	d, err := a.loader.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load dataset: %w", err)
	}

	table, err := a.projector.Project(d)
	if err != nil {
		return nil, fmt.Errorf("project %s: %w", d.Source(), err)
	}

	m, err := a.correlator.Correlate(table)
	if err != nil {
		return nil, fmt.Errorf("correlate %s: %w", d.Source(), err)
	}

	renderStart := clock.Now()
	img, err := a.renderer.Render(m)
	if err != nil {
		return nil, fmt.Errorf("render heatmap: %w", err)
	}
	a.metrics.RenderDuration.Observe(clock.Since(renderStart).Seconds())

	return &Result{
		Source:      d.Source(),
		Rows:        d.Rows(),
		Columns:     m.Columns(),
		Excluded:    table.Excluded(),
		Dropped:     table.Dropped(),
		Matrix:      m,
		Image:       img,
		ImageFormat: a.renderer.Format(),
		GeneratedAt: clock.Now(),
		Elapsed:     clock.Since(start),
	}, nil
}

// publish sends the result downstream. A publish failure does not fail the
// analysis; the result is already serving locally.
func (a *Analyzer) publish(ctx context.Context, res *Result) {
	if a.publisher == nil {
		return
	}
	if err := a.publisher.PublishResult(ctx, res); err != nil {
		a.logger.Error("publish result failed", "error", err, "source", res.Source)
		a.metrics.PublishErrors.Inc()
		return
	}
	a.metrics.ResultsPublished.Inc()
}
