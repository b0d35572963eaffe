package pipeline

import (
	"context"

	"github.com/couchcryptid/aqi-correlation/internal/corr"
	"github.com/couchcryptid/aqi-correlation/internal/dataset"
)

// FileLoader implements Loader for a local CSV file.
type FileLoader struct {
	path string
}

// NewFileLoader creates a loader for the given path.
func NewFileLoader(path string) *FileLoader {
	return &FileLoader{path: path}
}

func (l *FileLoader) Load(_ context.Context) (*dataset.Dataset, error) {
	return dataset.LoadFile(l.path)
}

// TableProjector implements Projector with fixed projection options.
type TableProjector struct {
	opts dataset.ProjectOptions
}

// NewProjector creates a projector that excludes the configured identifier
// columns and applies the configured non-numeric policy.
func NewProjector(opts dataset.ProjectOptions) *TableProjector {
	return &TableProjector{opts: opts}
}

func (p *TableProjector) Project(d *dataset.Dataset) (*dataset.NumericTable, error) {
	return d.NumericProjection(p.opts)
}

// PearsonCorrelator implements Correlator with the pairwise-complete
// Pearson computation.
type PearsonCorrelator struct{}

func (PearsonCorrelator) Correlate(t *dataset.NumericTable) (*corr.Matrix, error) {
	return corr.Compute(t)
}
