// Package server exposes the bridge's operational HTTP surface: a liveness
// probe and delivery statistics from the audit index.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/nsrpetrol/pos-bridge/internal/audit"
)

// StatsSource answers delivery statistics queries.
type StatsSource interface {
	Stats(ctx context.Context) (audit.Stats, error)
}

type Server struct {
	http   *http.Server
	logger *slog.Logger
}

func New(port int, stats StatsSource, logger *slog.Logger) *Server {
	r := chi.NewRouter()
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, "pos-bridge")
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/api/stats", func(w http.ResponseWriter, r *http.Request) {
		if stats == nil {
			http.Error(w, "stats unavailable", http.StatusServiceUnavailable)
			return
		}
		s, err := stats.Stats(r.Context())
		if err != nil {
			logger.Error("stats query failed", slog.String("error", err.Error()))
			http.Error(w, "stats query failed", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(s)
	})

	return &Server{
		http: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// Start serves until Shutdown. It returns http.ErrServerClosed on a clean
// shutdown.
func (s *Server) Start() error {
	s.logger.Info("starting operational server", slog.String("addr", s.http.Addr))
	return s.http.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
