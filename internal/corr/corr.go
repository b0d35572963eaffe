// Package corr computes pairwise-complete Pearson correlation matrices
// over numeric tables.
package corr

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/couchcryptid/aqi-correlation/internal/dataset"
)

// Matrix is a symmetric Pearson correlation matrix indexed by column name
// on both axes. Diagonal entries are exactly 1; off-diagonal entries are
// in [-1, 1] or NaN where a pair has fewer than two complete rows or zero
// variance.
type Matrix struct {
	cols  []string
	index map[string]int
	sym   *mat.SymDense
}

// Pair is one off-diagonal correlation, for summaries.
type Pair struct {
	A string  `json:"a"`
	B string  `json:"b"`
	R float64 `json:"r"`
}

// Compute builds the correlation matrix for a numeric table. Each column
// pair is evaluated over its pairwise-complete rows only, so missing
// values in one column do not discard rows for unrelated pairs. The result
// is deterministic for identical input.
func Compute(t *dataset.NumericTable) (*Matrix, error) {
	cols := t.Columns()
	n := len(cols)
	if n == 0 {
		return nil, errors.New("no columns to correlate")
	}

	sym := mat.NewSymDense(n, nil)
	xs := make([]float64, 0, t.Rows())
	ys := make([]float64, 0, t.Rows())

	for i := 0; i < n; i++ {
		sym.SetSym(i, i, 1)
		for j := i + 1; j < n; j++ {
			xs, ys = completeCases(t.Column(i), t.Column(j), xs[:0], ys[:0])
			sym.SetSym(i, j, pearson(xs, ys))
		}
	}

	index := make(map[string]int, n)
	for i, c := range cols {
		index[c] = i
	}
	return &Matrix{
		cols:  append([]string(nil), cols...),
		index: index,
		sym:   sym,
	}, nil
}

// completeCases appends the rows where both columns are present.
func completeCases(x, y, dstX, dstY []float64) ([]float64, []float64) {
	for r := range x {
		if math.IsNaN(x[r]) || math.IsNaN(y[r]) {
			continue
		}
		dstX = append(dstX, x[r])
		dstY = append(dstY, y[r])
	}
	return dstX, dstY
}

// pearson returns the correlation of two aligned complete columns. NaN
// when fewer than two rows remain or either column has zero variance.
// Floating-point overshoot is clamped into [-1, 1]; NaN is preserved.
func pearson(x, y []float64) float64 {
	if len(x) < 2 {
		return math.NaN()
	}
	r := stat.Correlation(x, y, nil)
	switch {
	case math.IsNaN(r):
		return r
	case r > 1:
		return 1
	case r < -1:
		return -1
	}
	return r
}

// Len returns the number of columns on each axis.
func (m *Matrix) Len() int { return len(m.cols) }

// Columns returns the column names in axis order.
func (m *Matrix) Columns() []string { return m.cols }

// At returns the coefficient at (i, j). Symmetric: At(i, j) == At(j, i).
func (m *Matrix) At(i, j int) float64 { return m.sym.At(i, j) }

// ByName returns the coefficient for a named column pair.
func (m *Matrix) ByName(a, b string) (float64, error) {
	i, ok := m.index[a]
	if !ok {
		return 0, fmt.Errorf("unknown column %q", a)
	}
	j, ok := m.index[b]
	if !ok {
		return 0, fmt.Errorf("unknown column %q", b)
	}
	return m.sym.At(i, j), nil
}

// StrongestPairs returns the off-diagonal pairs ranked by |r| descending,
// NaN pairs skipped. A non-positive limit returns all pairs. Ties keep
// axis order, so the ranking is deterministic.
func (m *Matrix) StrongestPairs(limit int) []Pair {
	var pairs []Pair
	for i := 0; i < m.Len(); i++ {
		for j := i + 1; j < m.Len(); j++ {
			r := m.sym.At(i, j)
			if math.IsNaN(r) {
				continue
			}
			pairs = append(pairs, Pair{A: m.cols[i], B: m.cols[j], R: r})
		}
	}
	sort.SliceStable(pairs, func(a, b int) bool {
		return math.Abs(pairs[a].R) > math.Abs(pairs[b].R)
	})
	if limit > 0 && len(pairs) > limit {
		pairs = pairs[:limit]
	}
	return pairs
}

// MarshalJSON encodes the matrix as {"columns": [...], "values": [[...]]}
// with NaN cells encoded as null, since JSON has no NaN literal.
func (m *Matrix) MarshalJSON() ([]byte, error) {
	values := make([][]*float64, m.Len())
	for i := range values {
		row := make([]*float64, m.Len())
		for j := range row {
			v := m.sym.At(i, j)
			if !math.IsNaN(v) {
				row[j] = &v
			}
		}
		values[i] = row
	}
	return json.Marshal(struct {
		Columns []string     `json:"columns"`
		Values  [][]*float64 `json:"values"`
	}{
		Columns: m.cols,
		Values:  values,
	})
}
