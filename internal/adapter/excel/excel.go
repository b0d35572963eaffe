// Package excel exports analysis results as spreadsheet workbooks.
package excel

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/couchcryptid/aqi-correlation/internal/corr"
	"github.com/couchcryptid/aqi-correlation/internal/pipeline"
)

const (
	sheetMatrix = "Correlation"
	sheetPairs  = "Strongest Pairs"
	sheetRun    = "Run"
)

// WriteWorkbook writes res to path as a workbook with the labeled
// correlation matrix, the ranked pair list, and run metadata. Undefined
// coefficients are left blank.
func WriteWorkbook(path string, res *pipeline.Result) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetMatrix); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := writeMatrixSheet(f, res.Matrix); err != nil {
		return fmt.Errorf("matrix sheet: %w", err)
	}
	if err := writePairsSheet(f, res.Matrix); err != nil {
		return fmt.Errorf("pairs sheet: %w", err)
	}
	if err := writeRunSheet(f, res); err != nil {
		return fmt.Errorf("run sheet: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

// writeMatrixSheet lays out the matrix with column names on both axes,
// starting at B2 so row and column labels share the A1 corner.
func writeMatrixSheet(f *excelize.File, m *corr.Matrix) error {
	w := &sheetWriter{f: f, sheet: sheetMatrix}
	names := m.Columns()

	for i, name := range names {
		w.set(i+2, 1, name)
		w.set(1, i+2, name)
	}
	for i := range names {
		for j := range names {
			v := m.At(i, j)
			if math.IsNaN(v) {
				continue
			}
			w.set(j+2, i+2, v)
		}
	}
	if w.err != nil {
		return w.err
	}

	style, err := f.NewStyle(&excelize.Style{NumFmt: 2})
	if err != nil {
		return fmt.Errorf("cell style: %w", err)
	}
	last, err := excelize.CoordinatesToCellName(len(names)+1, len(names)+1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheetMatrix, "B2", last, style); err != nil {
		return fmt.Errorf("apply style: %w", err)
	}

	endCol, err := excelize.ColumnNumberToName(len(names) + 1)
	if err != nil {
		return err
	}
	if err := f.SetColWidth(sheetMatrix, "A", "A", 16); err != nil {
		return err
	}
	return f.SetColWidth(sheetMatrix, "B", endCol, 10)
}

func writePairsSheet(f *excelize.File, m *corr.Matrix) error {
	if _, err := f.NewSheet(sheetPairs); err != nil {
		return err
	}
	w := &sheetWriter{f: f, sheet: sheetPairs}

	for i, h := range []string{"Rank", "Column A", "Column B", "r"} {
		w.set(i+1, 1, h)
	}
	pairs := m.StrongestPairs(0)
	for i, p := range pairs {
		w.set(1, i+2, i+1)
		w.set(2, i+2, p.A)
		w.set(3, i+2, p.B)
		w.set(4, i+2, p.R)
	}
	if w.err != nil {
		return w.err
	}

	if len(pairs) > 0 {
		fourDecimals := "0.0000"
		style, err := f.NewStyle(&excelize.Style{CustomNumFmt: &fourDecimals})
		if err != nil {
			return fmt.Errorf("cell style: %w", err)
		}
		last, err := excelize.CoordinatesToCellName(4, len(pairs)+1)
		if err != nil {
			return err
		}
		if err := f.SetCellStyle(sheetPairs, "D2", last, style); err != nil {
			return fmt.Errorf("apply style: %w", err)
		}
	}
	return f.SetColWidth(sheetPairs, "B", "C", 16)
}

func writeRunSheet(f *excelize.File, res *pipeline.Result) error {
	if _, err := f.NewSheet(sheetRun); err != nil {
		return err
	}
	w := &sheetWriter{f: f, sheet: sheetRun}

	rows := [][2]any{
		{"Source", res.Source},
		{"Rows", res.Rows},
		{"Numeric columns", strings.Join(res.Columns, ", ")},
		{"Excluded columns", strings.Join(res.Excluded, ", ")},
		{"Dropped columns", strings.Join(res.Dropped, ", ")},
		{"Generated at", res.GeneratedAt.UTC().Format(time.RFC3339)},
		{"Elapsed", res.Elapsed.String()},
	}
	for i, row := range rows {
		w.set(1, i+1, row[0])
		w.set(2, i+1, row[1])
	}
	if w.err != nil {
		return w.err
	}
	return f.SetColWidth(sheetRun, "A", "B", 28)
}

// sheetWriter records the first cell write error so callers can batch writes
// and check once.
type sheetWriter struct {
	f     *excelize.File
	sheet string
	err   error
}

func (w *sheetWriter) set(col, row int, value any) {
	if w.err != nil {
		return
	}
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err == nil {
		err = w.f.SetCellValue(w.sheet, cell, value)
	}
	w.err = err
}
