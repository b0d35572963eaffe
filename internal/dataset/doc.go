// Package dataset loads tabular air-quality data and projects it down to
// the numeric measurement columns that correlation analysis consumes.
//
// The expected input is delimited text with a header row, conventionally
// produced by air-quality exports: identifier columns such as Date (a
// day-level timestamp) and City (a categorical station label), followed by
// numeric measurement columns such as PM2.5, PM10, NO2, SO2, CO, O3, and a
// composite AQI value. Column order is not significant; identifiers may
// appear anywhere in the header.
//
// Column types are detected from the data. The markers "", "NA", "NaN",
// "null", and "n/a" are treated as missing values and surface as NaN in
// numeric columns; they do not change a column's detected type. Boolean
// columns are not measurements and are treated as non-numeric.
//
// A NumericProjection removes the configured identifier columns and
// returns the remaining numeric columns as aligned float64 slices, row
// order preserved, missing values kept as NaN. Every excluded column must
// exist in the dataset. Non-numeric columns that survive exclusion are
// rejected by default; the drop policy removes them instead and records
// them on the projection. A projection with fewer than two numeric columns
// is refused, since no column pair remains to correlate.
package dataset
