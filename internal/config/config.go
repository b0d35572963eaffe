package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/couchcryptid/aqi-correlation/internal/heatmap"
)

// Policies for non-numeric columns left over after the identifier columns
// are excluded.
const (
	NonNumericError = "error"
	NonNumericDrop  = "drop"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	// Input selection. InputPath may be a local file or an http(s) URL.
	InputPath      string        `env:"INPUT_PATH" envDefault:"generated_aqi_data.csv"`
	ExcludeColumns []string      `env:"EXCLUDE_COLUMNS" envDefault:"Date,City" envSeparator:","`
	NonNumeric     string        `env:"NON_NUMERIC_COLUMNS" envDefault:"error"`
	FetchTimeout   time.Duration `env:"FETCH_TIMEOUT" envDefault:"30s"`

	// Output destinations. MatrixJSONPath and ExcelPath are optional.
	OutputPath     string `env:"OUTPUT_PATH" envDefault:"aqi_correlation_heatmap.png"`
	MatrixJSONPath string `env:"MATRIX_JSON_PATH"`
	ExcelPath      string `env:"XLSX_PATH"`

	// Rendering.
	PlotTitle     string  `env:"PLOT_TITLE" envDefault:"Correlation Heatmap of AQI Data"`
	PlotWidthIn   float64 `env:"PLOT_WIDTH_IN" envDefault:"12"`
	PlotHeightIn  float64 `env:"PLOT_HEIGHT_IN" envDefault:"10"`
	Palette       string  `env:"PALETTE" envDefault:"blackbody"`
	InvertPalette bool    `env:"INVERT_PALETTE" envDefault:"false"`
	Annotate      bool    `env:"ANNOTATE" envDefault:"true"`

	// Service.
	HTTPAddr        string        `env:"HTTP_ADDR" envDefault:":8080"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat       string        `env:"LOG_FORMAT" envDefault:"json"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	Watch         bool          `env:"WATCH" envDefault:"true"`
	WatchDebounce time.Duration `env:"WATCH_DEBOUNCE" envDefault:"500ms"`

	// Kafka result publishing. Disabled when no brokers are set.
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"KAFKA_TOPIC" envDefault:"aqi-correlation-results"`
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	cfg.ExcludeColumns = trimAll(cfg.ExcludeColumns)
	cfg.KafkaBrokers = trimAll(cfg.KafkaBrokers)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.InputPath == "" {
		return errors.New("INPUT_PATH is required")
	}
	if c.OutputPath == "" {
		return errors.New("OUTPUT_PATH is required")
	}
	if c.NonNumeric != NonNumericError && c.NonNumeric != NonNumericDrop {
		return fmt.Errorf("NON_NUMERIC_COLUMNS must be %q or %q, got %q", NonNumericError, NonNumericDrop, c.NonNumeric)
	}
	if !heatmap.KnownPalette(c.Palette) {
		return fmt.Errorf("PALETTE %q is not a known color map, valid: %s", c.Palette, strings.Join(heatmap.Palettes(), ", "))
	}
	if format := heatmap.FormatFromPath(c.OutputPath); !heatmap.SupportedFormat(format) {
		return fmt.Errorf("OUTPUT_PATH extension %q is not a supported image format", format)
	}
	if c.PlotWidthIn <= 0 || c.PlotHeightIn <= 0 {
		return errors.New("PLOT_WIDTH_IN and PLOT_HEIGHT_IN must be positive")
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("SHUTDOWN_TIMEOUT must be positive")
	}
	if c.WatchDebounce <= 0 {
		return errors.New("WATCH_DEBOUNCE must be positive")
	}
	if c.FetchTimeout <= 0 {
		return errors.New("FETCH_TIMEOUT must be positive")
	}
	if c.KafkaEnabled() && c.KafkaTopic == "" {
		return errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}
	return nil
}

// KafkaEnabled reports whether analysis results should be published to Kafka.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// InputIsURL reports whether the input is fetched over HTTP rather than read
// from disk.
func (c *Config) InputIsURL() bool {
	return strings.HasPrefix(c.InputPath, "http://") || strings.HasPrefix(c.InputPath, "https://")
}

// WatchEnabled reports whether serve mode should watch the input file for
// changes. URL inputs have nothing on disk to watch.
func (c *Config) WatchEnabled() bool {
	return c.Watch && !c.InputIsURL()
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
