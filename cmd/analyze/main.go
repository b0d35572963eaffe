// Command analyze runs the correlation pipeline once: it loads the
// configured CSV, computes the Pearson correlation matrix over its numeric
// columns, writes the annotated heatmap, and prints the strongest
// correlations. Flags override the corresponding environment settings.
//
// Usage:
//
//	go run ./cmd/analyze \
//	  -input generated_aqi_data.csv \
//	  -output aqi_correlation_heatmap.png \
//	  -json matrix.json -xlsx report.xlsx
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/couchcryptid/aqi-correlation/internal/adapter/excel"
	"github.com/couchcryptid/aqi-correlation/internal/adapter/fetch"
	"github.com/couchcryptid/aqi-correlation/internal/config"
	"github.com/couchcryptid/aqi-correlation/internal/dataset"
	"github.com/couchcryptid/aqi-correlation/internal/heatmap"
	"github.com/couchcryptid/aqi-correlation/internal/observability"
	"github.com/couchcryptid/aqi-correlation/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	input := flag.String("input", cfg.InputPath, "CSV file path or http(s) URL")
	output := flag.String("output", cfg.OutputPath, "heatmap image path, extension selects the format")
	matrixJSON := flag.String("json", cfg.MatrixJSONPath, "matrix JSON path (empty disables)")
	xlsxPath := flag.String("xlsx", cfg.ExcelPath, "workbook path (empty disables)")
	title := flag.String("title", cfg.PlotTitle, "figure title")
	palette := flag.String("palette", cfg.Palette, "color map, one of: "+strings.Join(heatmap.Palettes(), ", "))
	invert := flag.Bool("invert", cfg.InvertPalette, "reverse the color ramp")
	pairs := flag.Int("pairs", 10, "strongest pairs to print, 0 for none")
	flag.Parse()

	cfg.InputPath = *input
	cfg.OutputPath = *output
	cfg.MatrixJSONPath = *matrixJSON
	cfg.ExcelPath = *xlsxPath
	cfg.PlotTitle = *title
	cfg.Palette = *palette
	cfg.InvertPalette = *invert

	logger := observability.NewLogger(cfg)

	if err := run(cfg, logger, *pairs); err != nil {
		logger.Error("analysis failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger, pairLimit int) error {
	metrics := observability.NewMetrics()

	renderer, err := heatmap.New(renderOptions(cfg))
	if err != nil {
		return err
	}

	var loader pipeline.Loader
	if cfg.InputIsURL() {
		loader = fetch.NewLoader(fetch.NewClient(cfg.FetchTimeout, logger), cfg.InputPath)
	} else {
		loader = pipeline.NewFileLoader(cfg.InputPath)
	}

	analyzer := pipeline.New(
		loader,
		pipeline.NewProjector(projectOptions(cfg)),
		pipeline.PearsonCorrelator{},
		renderer,
		nil,
		logger,
		metrics,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res, err := analyzer.Analyze(ctx)
	if err != nil {
		return err
	}

	if err := res.WriteImage(cfg.OutputPath); err != nil {
		return fmt.Errorf("write heatmap: %w", err)
	}
	logger.Info("heatmap written", "path", cfg.OutputPath, "bytes", len(res.Image))

	if cfg.MatrixJSONPath != "" {
		if err := res.WriteMatrixJSON(cfg.MatrixJSONPath); err != nil {
			return fmt.Errorf("write matrix json: %w", err)
		}
		logger.Info("matrix json written", "path", cfg.MatrixJSONPath)
	}
	if cfg.ExcelPath != "" {
		if err := excel.WriteWorkbook(cfg.ExcelPath, res); err != nil {
			return fmt.Errorf("write workbook: %w", err)
		}
		logger.Info("workbook written", "path", cfg.ExcelPath)
	}

	printSummary(os.Stdout, res, pairLimit)
	return nil
}

func printSummary(w io.Writer, res *pipeline.Result, limit int) {
	fmt.Fprintf(w, "Analyzed %s: %d rows, %d numeric columns (%s)\n",
		res.Source, res.Rows, len(res.Columns), strings.Join(res.Columns, ", "))
	if len(res.Dropped) > 0 {
		fmt.Fprintf(w, "Dropped non-numeric columns: %s\n", strings.Join(res.Dropped, ", "))
	}
	if limit <= 0 {
		return
	}
	pairs := res.Matrix.StrongestPairs(limit)
	if len(pairs) == 0 {
		fmt.Fprintln(w, "No defined correlation pairs.")
		return
	}
	fmt.Fprintln(w, "\nStrongest correlations:")
	for i, p := range pairs {
		fmt.Fprintf(w, "%3d. %s ~ %s: %+.4f\n", i+1, p.A, p.B, p.R)
	}
}

func renderOptions(cfg *config.Config) heatmap.Options {
	return heatmap.Options{
		Title:    cfg.PlotTitle,
		WidthIn:  cfg.PlotWidthIn,
		HeightIn: cfg.PlotHeightIn,
		Palette:  cfg.Palette,
		Invert:   cfg.InvertPalette,
		Annotate: cfg.Annotate,
		Format:   heatmap.FormatFromPath(cfg.OutputPath),
	}
}

func projectOptions(cfg *config.Config) dataset.ProjectOptions {
	opts := dataset.ProjectOptions{Exclude: cfg.ExcludeColumns}
	if cfg.NonNumeric == config.NonNumericDrop {
		opts.NonNumeric = dataset.DropNonNumeric
	}
	return opts
}
