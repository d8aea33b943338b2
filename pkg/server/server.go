// Package server serves a results page with the row filter applied on every request.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/CompassSecurity/scanview/pkg/filter"
	"github.com/CompassSecurity/scanview/pkg/report"
	"github.com/CompassSecurity/scanview/pkg/result"
	"github.com/rs/zerolog/log"
)

type Options struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// Handler renders the results page. defaults is used when a request carries no filter parameters.
type Handler struct {
	renderer *report.Renderer
	report   *result.Report
	defaults filter.Config
	served   atomic.Int64
}

func NewHandler(renderer *report.Renderer, rep *result.Report, defaults filter.Config) *Handler {
	return &Handler{
		renderer: renderer,
		report:   rep,
		defaults: defaults,
	}
}

// Routes registers the handlers.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", h.Results)
	mux.HandleFunc("/healthz", h.Health)
	return mux
}

// ConfigFromQuery reads showClosed and minConfidence from the query string.
// Once the filter form was submitted an absent showClosed means unchecked.
func ConfigFromQuery(r *http.Request, defaults filter.Config) filter.Config {
	q := r.URL.Query()
	if !q.Has("showClosed") && !q.Has("minConfidence") {
		return defaults
	}

	cfg := filter.Config{
		ShowClosed:    false,
		MinConfidence: defaults.MinConfidence,
	}
	switch q.Get("showClosed") {
	case "on", "true", "1":
		cfg.ShowClosed = true
	}
	if q.Has("minConfidence") {
		cfg.MinConfidence = filter.ParseThreshold(q.Get("minConfidence"))
	}
	return cfg
}

func (h *Handler) Results(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	cfg := ConfigFromQuery(r, h.defaults)
	data := report.PageData{
		Target:   h.report.Target,
		ReportID: h.report.ID,
		Action:   "/",
		Results:  h.report.Results,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	stats, err := h.renderer.RenderFiltered(w, data, cfg)
	if err != nil {
		log.Error().Err(err).Msg("Failed rendering results page")
		return
	}
	h.served.Add(1)

	log.Debug().
		Bool("showClosed", cfg.ShowClosed).
		Str("minConfidence", cfg.MinConfidence.String()).
		Int("visible", stats.Visible).
		Int("hidden", stats.Hidden).
		Msg("Served results page")
}

// Served is the number of results pages rendered so far.
func (h *Handler) Served() int64 {
	return h.served.Load()
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte("ok"))
}

// Run serves until ctx is canceled, then shuts down gracefully.
func Run(ctx context.Context, opts Options, handler http.Handler) error {
	srv := &http.Server{
		Addr:         opts.Addr,
		Handler:      handler,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
		IdleTimeout:  opts.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", opts.Addr).Msg("Starting web server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("web server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed shutting down web server: %w", err)
	}
	log.Info().Msg("Web server stopped")
	return nil
}
