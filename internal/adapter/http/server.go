package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/aqi-correlation/internal/corr"
	"github.com/couchcryptid/aqi-correlation/internal/heatmap"
	"github.com/couchcryptid/aqi-correlation/internal/pipeline"
)

// Parameterized re-renders kept in memory. Entries invalidate naturally when
// a new analysis changes the result timestamp.
const renderCacheSize = 32

// Query params may not request a canvas larger than this per side, in inches.
const maxCanvasIn = 100

// ResultProvider is the view of the analysis pipeline the HTTP layer
// consumes: readiness plus access to the latest result.
type ResultProvider interface {
	CheckReadiness(ctx context.Context) error
	Latest() (*pipeline.Result, bool)
}

// Server exposes the analysis results plus health, readiness, and metrics
// over HTTP.
type Server struct {
	httpServer *http.Server
	provider   ResultProvider
	baseOpts   heatmap.Options
	renders    *lruCache
	logger     *slog.Logger
}

// NewServer creates an HTTP server. base carries the render settings that
// /heatmap query parameters override per request.
func NewServer(addr string, provider ResultProvider, base heatmap.Options, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		provider: provider,
		baseOpts: base,
		renders:  newLRUCache(renderCacheSize),
		logger:   logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /heatmap", s.handleHeatmap)
	mux.HandleFunc("GET /matrix", s.handleMatrix)
	mux.HandleFunc("GET /pairs", s.handlePairs)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.provider.CheckReadiness(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleHeatmap serves the stored render, or re-renders when palette, invert,
// w, or h query parameters override the configured options.
func (s *Server) handleHeatmap(w http.ResponseWriter, r *http.Request) {
	res, ok := s.provider.Latest()
	if !ok {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "no analysis result available yet"})
		return
	}

	q := r.URL.Query()
	if len(q) == 0 {
		serveImage(w, res.ImageFormat, res.Image)
		return
	}

	opts, err := s.renderOptions(q)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	key := renderKey(res.GeneratedAt, opts)
	if img, ok := s.renders.get(key); ok {
		serveImage(w, opts.Format, img)
		return
	}

	renderer, err := heatmap.New(opts)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	img, err := renderer.Render(res.Matrix)
	if err != nil {
		s.logger.Error("parameterized render failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "render failed"})
		return
	}
	s.renders.put(key, img)
	serveImage(w, opts.Format, img)
}

func (s *Server) handleMatrix(w http.ResponseWriter, _ *http.Request) {
	res, ok := s.provider.Latest()
	if !ok {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "no analysis result available yet"})
		return
	}
	writeJSON(w, http.StatusOK, res.Summary())
}

// pairsResponse lists the strongest correlations of the latest result.
type pairsResponse struct {
	Source      string      `json:"source"`
	GeneratedAt time.Time   `json:"generated_at"`
	Pairs       []corr.Pair `json:"pairs"`
}

func (s *Server) handlePairs(w http.ResponseWriter, r *http.Request) {
	res, ok := s.provider.Latest()
	if !ok {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "no analysis result available yet"})
		return
	}

	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("invalid limit %q", v)})
			return
		}
		limit = n
	}

	writeJSON(w, http.StatusOK, pairsResponse{
		Source:      res.Source,
		GeneratedAt: res.GeneratedAt,
		Pairs:       res.Matrix.StrongestPairs(limit),
	})
}

// renderOptions applies query parameter overrides to the base options.
func (s *Server) renderOptions(q url.Values) (heatmap.Options, error) {
	opts := s.baseOpts
	if v := q.Get("palette"); v != "" {
		if !heatmap.KnownPalette(v) {
			return opts, fmt.Errorf("unknown palette %q, valid: %s", v, strings.Join(heatmap.Palettes(), ", "))
		}
		opts.Palette = v
	}
	if v := q.Get("invert"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return opts, fmt.Errorf("invalid invert %q", v)
		}
		opts.Invert = b
	}
	if v := q.Get("w"); v != "" {
		f, err := parseCanvasIn(v)
		if err != nil {
			return opts, fmt.Errorf("invalid w: %w", err)
		}
		opts.WidthIn = f
	}
	if v := q.Get("h"); v != "" {
		f, err := parseCanvasIn(v)
		if err != nil {
			return opts, fmt.Errorf("invalid h: %w", err)
		}
		opts.HeightIn = f
	}
	return opts, nil
}

func parseCanvasIn(v string) (float64, error) {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 || f > maxCanvasIn {
		return 0, fmt.Errorf("%q is not a size in (0, %d] inches", v, maxCanvasIn)
	}
	return f, nil
}

func renderKey(generatedAt time.Time, opts heatmap.Options) string {
	return fmt.Sprintf("%d|%s|%t|%gx%g", generatedAt.UnixNano(), opts.Palette, opts.Invert, opts.WidthIn, opts.HeightIn)
}

var contentTypes = map[string]string{
	"png":  "image/png",
	"svg":  "image/svg+xml",
	"pdf":  "application/pdf",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"tif":  "image/tiff",
	"tiff": "image/tiff",
	"eps":  "application/postscript",
}

func serveImage(w http.ResponseWriter, format string, img []byte) {
	ct := contentTypes[format]
	if ct == "" {
		ct = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Content-Length", strconv.Itoa(len(img)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response body
}
