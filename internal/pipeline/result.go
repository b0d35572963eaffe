package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/couchcryptid/aqi-correlation/internal/corr"
)

// Summary is the canonical JSON document for a completed analysis. The same
// shape is written to the matrix JSON file, served over HTTP, and published
// to Kafka. Undefined coefficients appear as null.
type Summary struct {
	Source      string       `json:"source"`
	Rows        int          `json:"rows"`
	Columns     []string     `json:"columns"`
	Excluded    []string     `json:"excluded,omitempty"`
	Dropped     []string     `json:"dropped,omitempty"`
	GeneratedAt time.Time    `json:"generated_at"`
	Matrix      *corr.Matrix `json:"matrix"`
}

// Summary returns the result in its exchange form.
func (r *Result) Summary() Summary {
	return Summary{
		Source:      r.Source,
		Rows:        r.Rows,
		Columns:     r.Columns,
		Excluded:    r.Excluded,
		Dropped:     r.Dropped,
		GeneratedAt: r.GeneratedAt,
		Matrix:      r.Matrix,
	}
}

// WriteImage writes the rendered heatmap to path, creating parent
// directories as needed.
func (r *Result) WriteImage(path string) error {
	return writeFile(path, r.Image)
}

// WriteMatrixJSON writes the result summary as indented JSON to path.
func (r *Result) WriteMatrixJSON(path string) error {
	data, err := json.MarshalIndent(r.Summary(), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	return writeFile(path, append(data, '\n'))
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
