// Command validate runs readiness checks against an air-quality CSV before
// it is fed to the correlation pipeline. It verifies dataset shape,
// identifier columns, the numeric projection under the configured policy,
// and that every remaining column pair yields a defined Pearson
// coefficient.
//
// Usage:
//
//	go run ./cmd/validate -input generated_aqi_data.csv
package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/couchcryptid/aqi-correlation/internal/config"
	"github.com/couchcryptid/aqi-correlation/internal/corr"
	"github.com/couchcryptid/aqi-correlation/internal/dataset"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load config: %v\n", err)
		os.Exit(1)
	}

	input := flag.String("input", cfg.InputPath, "path to the CSV dataset")
	flag.Parse()

	if code := run(cfg, *input); code != 0 {
		os.Exit(code)
	}
}

func run(cfg *config.Config, input string) int {
	fmt.Println("=== AQI Dataset Validation ===")
	fmt.Println()

	if strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://") {
		fmt.Fprintln(os.Stderr, "FATAL: validate reads local files; download the dataset first or point -input at a copy on disk")
		return 1
	}

	ds, err := dataset.LoadFile(input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load dataset: %v\n", err)
		return 1
	}
	fmt.Printf("Input: %s\n", input)

	opts := dataset.ProjectOptions{Exclude: cfg.ExcludeColumns}
	if cfg.NonNumeric == config.NonNumericDrop {
		opts.NonNumeric = dataset.DropNonNumeric
	}

	// ── Run validation phases ──
	projection, table := validateNumericProjection(ds, opts)
	phases := []*phase{
		validateShape(ds, cfg.ExcludeColumns),
		validateIdentifierColumns(ds, cfg.ExcludeColumns),
		projection,
		validateCorrelationHealth(table),
	}

	// ── Report results ──
	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	numeric := 0
	if table != nil {
		numeric = len(table.Columns())
	}
	fmt.Printf("Rows: %d, columns: %d, numeric after exclusions: %d\n",
		ds.Rows(), len(ds.Columns()), numeric)

	// Print detailed errors.
	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Phase 1: Dataset Shape ──
// A Pearson coefficient needs at least two complete observations, and a
// matrix needs at least two columns beyond the identifiers.

func validateShape(ds *dataset.Dataset, exclude []string) *phase {
	p := &phase{name: "Phase 1: Dataset Shape"}

	if ds.Rows() < 2 {
		p.errorf("dataset has %d rows, need at least 2", ds.Rows())
	}
	if min := len(exclude) + 2; len(ds.Columns()) < min {
		p.errorf("dataset has %d columns, need at least %d (%d identifiers plus 2 measurements)",
			len(ds.Columns()), min, len(exclude))
	}
	return p
}

// ── Phase 2: Identifier Columns ──
// The configured identifier columns must all be present; a missing one
// usually means the header changed upstream.

func validateIdentifierColumns(ds *dataset.Dataset, exclude []string) *phase {
	p := &phase{name: "Phase 2: Identifier Columns"}
	for _, name := range exclude {
		if !ds.HasColumn(name) {
			p.errorf("configured identifier column %q not in header (have: %s)",
				name, strings.Join(ds.Columns(), ", "))
		}
	}
	return p
}

// ── Phase 3: Numeric Projection ──
// Applies the configured non-numeric policy and reports what it removes.

func validateNumericProjection(ds *dataset.Dataset, opts dataset.ProjectOptions) (*phase, *dataset.NumericTable) {
	p := &phase{name: "Phase 3: Numeric Projection"}

	table, err := ds.NumericProjection(opts)
	if err != nil {
		p.errorf("%v", err)
		return p, nil
	}
	if dropped := table.Dropped(); len(dropped) > 0 {
		fmt.Printf("  Note: dropped non-numeric column(s): %s\n", strings.Join(dropped, ", "))
	}
	return p, table
}

// ── Phase 4: Correlation Health ──
// Every remaining column pair must yield a defined coefficient. Undefined
// pairs are traced back to short or constant columns where possible.

func validateCorrelationHealth(table *dataset.NumericTable) *phase {
	p := &phase{name: "Phase 4: Correlation Health"}
	if table == nil {
		p.errorf("skipped: numeric projection failed")
		return p
	}

	for i, name := range table.Columns() {
		usable, constant := columnProfile(table.Column(i))
		if usable < 2 {
			p.errorf("column %q has %d usable values, need at least 2", name, usable)
		} else if constant {
			p.errorf("column %q is constant; its coefficients are undefined", name)
		}
	}

	m, err := corr.Compute(table)
	if err != nil {
		p.errorf("compute correlations: %v", err)
		return p
	}
	cols := m.Columns()
	for i := 0; i < m.Len(); i++ {
		for j := i + 1; j < m.Len(); j++ {
			if math.IsNaN(m.At(i, j)) {
				p.errorf("%s ~ %s has no defined coefficient", cols[i], cols[j])
			}
		}
	}

	if pairs := m.StrongestPairs(1); len(pairs) > 0 && p.passed() {
		fmt.Printf("  Note: strongest pair %s ~ %s at %+.4f\n", pairs[0].A, pairs[0].B, pairs[0].R)
	}
	return p
}

// columnProfile reports how many values in a column are usable and whether
// they are all identical.
func columnProfile(values []float64) (usable int, constant bool) {
	first := math.NaN()
	constant = true
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		usable++
		if math.IsNaN(first) {
			first = v
		} else if v != first {
			constant = false
		}
	}
	return usable, constant
}
