package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/aqi-correlation/internal/adapter/excel"
	"github.com/couchcryptid/aqi-correlation/internal/adapter/fetch"
	httpadapter "github.com/couchcryptid/aqi-correlation/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/aqi-correlation/internal/adapter/kafka"
	"github.com/couchcryptid/aqi-correlation/internal/config"
	"github.com/couchcryptid/aqi-correlation/internal/dataset"
	"github.com/couchcryptid/aqi-correlation/internal/heatmap"
	"github.com/couchcryptid/aqi-correlation/internal/observability"
	"github.com/couchcryptid/aqi-correlation/internal/pipeline"
	"github.com/couchcryptid/aqi-correlation/internal/watch"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	renderer, err := heatmap.New(renderOptions(cfg))
	if err != nil {
		logger.Error("invalid render options", "error", err)
		os.Exit(1)
	}

	var loader pipeline.Loader
	if cfg.InputIsURL() {
		loader = fetch.NewLoader(fetch.NewClient(cfg.FetchTimeout, logger), cfg.InputPath)
		logger.Info("loading dataset over http", "url", cfg.InputPath, "timeout", cfg.FetchTimeout)
	} else {
		loader = pipeline.NewFileLoader(cfg.InputPath)
	}

	// Result publishing is feature-flagged via KAFKA_BROKERS.
	var publisher pipeline.Publisher
	var kafkaWriter *kafkaadapter.Writer
	if cfg.KafkaEnabled() {
		kafkaWriter = kafkaadapter.NewWriter(cfg, logger)
		publisher = kafkaWriter
		metrics.PublishEnabled.Set(1)
		logger.Info("kafka publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	} else {
		logger.Info("kafka publishing disabled")
	}

	analyzer := pipeline.New(
		loader,
		pipeline.NewProjector(projectOptions(cfg)),
		pipeline.PearsonCorrelator{},
		renderer,
		publisher,
		logger,
		metrics,
	)

	srv := httpadapter.NewServer(cfg.HTTPAddr, analyzer, renderOptions(cfg), logger)

	var watcher *watch.Watcher
	if cfg.WatchEnabled() {
		watcher, err = watch.New(cfg.InputPath, cfg.WatchDebounce, logger)
		if err != nil {
			logger.Error("failed to create watcher", "error", err)
			os.Exit(1)
		}
	} else if cfg.Watch && cfg.InputIsURL() {
		logger.Warn("watch disabled for url input", "url", cfg.InputPath)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// First analysis. Failure is not fatal: the service starts not-ready
	// and a watched input file can still recover it.
	if res, err := analyzer.Analyze(ctx); err != nil {
		logger.Error("initial analysis failed", "error", err)
	} else {
		writeOutputs(logger, cfg, res)
	}

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	if watcher != nil {
		go func() {
			if err := watcher.Run(ctx); err != nil {
				logger.Error("watcher error", "error", err)
			}
		}()
		go reloadLoop(ctx, watcher, analyzer, cfg, logger, metrics)
		logger.Info("watching input file", "path", cfg.InputPath, "debounce", cfg.WatchDebounce)
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if watcher != nil {
		if err := watcher.Close(); err != nil {
			logger.Error("watcher close error", "error", err)
		}
	}
	if kafkaWriter != nil {
		if err := kafkaWriter.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}

// reloadLoop re-analyzes when the watcher reports a settled change. A failed
// re-analysis keeps the previous result serving.
func reloadLoop(ctx context.Context, w *watch.Watcher, analyzer *pipeline.Analyzer, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) {
	for {
		select {
		case <-ctx.Done():
			return
		case path := <-w.Events():
			logger.Info("input changed, re-analyzing", "path", path)
			metrics.FileReloads.Inc()
			res, err := analyzer.Analyze(ctx)
			if err != nil {
				logger.Error("re-analysis failed, keeping previous result", "error", err)
				continue
			}
			writeOutputs(logger, cfg, res)
		}
	}
}

// writeOutputs persists the configured artifacts. Failures are logged, not
// fatal: the in-memory result keeps serving over HTTP.
func writeOutputs(logger *slog.Logger, cfg *config.Config, res *pipeline.Result) {
	if err := res.WriteImage(cfg.OutputPath); err != nil {
		logger.Error("write heatmap failed", "error", err, "path", cfg.OutputPath)
	} else {
		logger.Info("heatmap written", "path", cfg.OutputPath, "bytes", len(res.Image))
	}
	if cfg.MatrixJSONPath != "" {
		if err := res.WriteMatrixJSON(cfg.MatrixJSONPath); err != nil {
			logger.Error("write matrix json failed", "error", err, "path", cfg.MatrixJSONPath)
		}
	}
	if cfg.ExcelPath != "" {
		if err := excel.WriteWorkbook(cfg.ExcelPath, res); err != nil {
			logger.Error("write workbook failed", "error", err, "path", cfg.ExcelPath)
		}
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
