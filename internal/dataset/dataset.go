package dataset

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// Sentinel errors for projection failures. Wrapped errors carry the
// offending column names; match with errors.Is.
var (
	ErrColumnNotFound       = errors.New("column not found")
	ErrNonNumericColumns    = errors.New("non-numeric columns present")
	ErrTooFewNumericColumns = errors.New("fewer than two numeric columns")
)

// nanMarkers are the cell values read as missing.
var nanMarkers = []string{"", "NA", "NaN", "null", "n/a"}

// NonNumericPolicy controls what happens to non-numeric columns that
// survive exclusion.
type NonNumericPolicy int

const (
	// RejectNonNumeric fails the projection, naming the offending columns.
	RejectNonNumeric NonNumericPolicy = iota
	// DropNonNumeric removes them and records them on the NumericTable.
	DropNonNumeric
)

// ProjectOptions configures NumericProjection.
type ProjectOptions struct {
	// Exclude lists identifier columns to remove. Every entry must exist
	// in the dataset.
	Exclude []string
	// NonNumeric is the policy for non-numeric columns left after
	// exclusion.
	NonNumeric NonNumericPolicy
}

// Dataset is an immutable tabular dataset with typed columns.
type Dataset struct {
	df     dataframe.DataFrame
	source string
}

// Read parses delimited text with a header row. source names the origin
// for error messages and result metadata.
func Read(r io.Reader, source string) (*Dataset, error) {
	df := dataframe.ReadCSV(r,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(true),
		dataframe.DefaultType(series.String),
		dataframe.NaNValues(nanMarkers),
	)
	if df.Err != nil {
		return nil, fmt.Errorf("parse %s: %w", source, df.Err)
	}
	if df.Nrow() == 0 {
		return nil, fmt.Errorf("parse %s: no data rows", source)
	}
	return &Dataset{df: df, source: source}, nil
}

// ReadBytes parses an in-memory CSV payload.
func ReadBytes(data []byte, source string) (*Dataset, error) {
	return Read(bytes.NewReader(data), source)
}

// LoadFile opens and parses a CSV file.
func LoadFile(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()
	return Read(f, path)
}

// Source returns the origin label given at load time.
func (d *Dataset) Source() string { return d.source }

// Rows returns the number of data rows.
func (d *Dataset) Rows() int { return d.df.Nrow() }

// Columns returns the column names in header order.
func (d *Dataset) Columns() []string { return d.df.Names() }

// HasColumn reports whether a column exists.
func (d *Dataset) HasColumn(name string) bool {
	for _, n := range d.df.Names() {
		if n == name {
			return true
		}
	}
	return false
}

// NumericColumns returns the names of numeric columns in header order.
func (d *Dataset) NumericColumns() []string {
	names := d.df.Names()
	types := d.df.Types()
	var out []string
	for i, name := range names {
		if isNumeric(types[i]) {
			out = append(out, name)
		}
	}
	return out
}

// NumericProjection removes the excluded columns and returns the numeric
// remainder. The dataset itself is untouched.
func (d *Dataset) NumericProjection(opts ProjectOptions) (*NumericTable, error) {
	names := d.df.Names()
	present := make(map[string]bool, len(names))
	for _, n := range names {
		present[n] = true
	}

	var missing []string
	excluded := make(map[string]bool, len(opts.Exclude))
	for _, ex := range opts.Exclude {
		if !present[ex] {
			missing = append(missing, ex)
			continue
		}
		excluded[ex] = true
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrColumnNotFound, strings.Join(missing, ", "))
	}

	types := d.df.Types()
	var cols, dropped []string
	for i, name := range names {
		if excluded[name] {
			continue
		}
		if isNumeric(types[i]) {
			cols = append(cols, name)
		} else {
			dropped = append(dropped, name)
		}
	}

	if len(dropped) > 0 && opts.NonNumeric == RejectNonNumeric {
		return nil, fmt.Errorf("%w: %s", ErrNonNumericColumns, strings.Join(dropped, ", "))
	}
	if len(cols) < 2 {
		return nil, fmt.Errorf("%w: found %d", ErrTooFewNumericColumns, len(cols))
	}

	data := make([][]float64, len(cols))
	for i, name := range cols {
		col := d.df.Col(name)
		if col.Err != nil {
			return nil, fmt.Errorf("column %s: %w", name, col.Err)
		}
		data[i] = col.Float()
	}

	return &NumericTable{
		cols:     cols,
		data:     data,
		rows:     d.df.Nrow(),
		excluded: append([]string(nil), opts.Exclude...),
		dropped:  dropped,
	}, nil
}

func isNumeric(t series.Type) bool {
	return t == series.Int || t == series.Float
}

// NumericTable is the numeric projection of a dataset: aligned float64
// columns with NaN for missing values.
type NumericTable struct {
	cols     []string
	data     [][]float64
	rows     int
	excluded []string
	dropped  []string
}

// NewNumericTable builds a table directly from column slices, for callers
// that assemble data in memory rather than loading a file. All columns
// must have the same length.
func NewNumericTable(names []string, columns [][]float64) (*NumericTable, error) {
	if len(names) != len(columns) {
		return nil, fmt.Errorf("got %d names for %d columns", len(names), len(columns))
	}
	rows := 0
	if len(columns) > 0 {
		rows = len(columns[0])
	}
	for i, col := range columns {
		if len(col) != rows {
			return nil, fmt.Errorf("column %s has %d rows, want %d", names[i], len(col), rows)
		}
	}
	return &NumericTable{cols: names, data: columns, rows: rows}, nil
}

// Columns returns the column names.
func (t *NumericTable) Columns() []string { return t.cols }

// Rows returns the row count.
func (t *NumericTable) Rows() int { return t.rows }

// Column returns the values of column i. Callers must not modify the
// returned slice.
func (t *NumericTable) Column(i int) []float64 { return t.data[i] }

// Excluded returns the identifier columns removed by the projection.
func (t *NumericTable) Excluded() []string { return t.excluded }

// Dropped returns the non-numeric columns removed under DropNonNumeric,
// in header order.
func (t *NumericTable) Dropped() []string { return t.dropped }
