// Package server provides the HTTP server setup and wiring.
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

	"github.com/Holytrade/blockscout-rs/internal/config"
	"github.com/Holytrade/blockscout-rs/internal/middleware/logging"
	"github.com/Holytrade/blockscout-rs/internal/middleware/ratelimit"
	"github.com/Holytrade/blockscout-rs/internal/observability/metrics"
	"github.com/Holytrade/blockscout-rs/internal/solidity"
	"github.com/Holytrade/blockscout-rs/internal/solidity/compiler"
	solidityTransport "github.com/Holytrade/blockscout-rs/internal/solidity/transport"
	"github.com/Holytrade/blockscout-rs/internal/sourcify"
	sourcifyTransport "github.com/Holytrade/blockscout-rs/internal/sourcify/transport"
)

// Server is the HTTP server
type Server struct {
	cfg    *config.Config
	logger *slog.Logger
	router *chi.Mux

	// compilers is nil when the solidity protocol is disabled.
	compilers *compiler.Manager
}

// New creates a new server, starting the compiler manager (and its background
// refresher) when the solidity protocol is enabled.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...solidity.Option) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		logger: logger,
		router: chi.NewRouter(),
	}

	s.setupMiddleware()

	var soliditySvc solidityTransport.Service
	if cfg.Solidity.Enabled {
		fetcher, err := newFetcher(ctx, cfg.Solidity.Fetcher)
		if err != nil {
			return nil, err
		}
		manager, err := compiler.NewManager(ctx, compiler.ManagerSettings{
			Dir:             cfg.Solidity.CompilersDir,
			RefreshSchedule: cfg.Solidity.RefreshSchedule,
			FetchRetries:    cfg.Solidity.FetchRetries,
		}, fetcher, logger)
		if err != nil {
			return nil, err
		}
		s.compilers = manager

		if cfg.Solidity.MiddlewareFailClosed {
			opts = append(opts, solidity.WithFailClosedMiddleware())
		}
		soliditySvc = solidity.NewClient(manager, logger, opts...)
	}

	var sourcifySvc sourcifyTransport.Service
	if cfg.Sourcify.Enabled {
		sourcifySvc = sourcify.NewClient(sourcify.Settings{
			APIURL:         cfg.Sourcify.APIURL,
			Attempts:       cfg.Sourcify.VerificationAttempts,
			RequestTimeout: time.Duration(cfg.Sourcify.RequestTimeout) * time.Second,
		}, logger)
	}

	s.setupRoutes(soliditySvc, sourcifySvc)

	return s, nil
}

// newFetcher builds the configured fetch strategy. Settings were validated
// at load time; this only constructs.
func newFetcher(ctx context.Context, cfg config.FetcherConfig) (compiler.Fetcher, error) {
	switch cfg.Type {
	case config.FetcherList:
		return compiler.NewListFetcher(cfg.List.URL)
	case config.FetcherS3:
		return compiler.NewS3Fetcher(ctx, cfg.S3.Settings())
	default:
		return nil, fmt.Errorf("unknown fetcher type %q", cfg.Type)
	}
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// MetricsHandler returns the metrics HTTP handler for the separate metrics server
func (s *Server) MetricsHandler() http.Handler {
	return metrics.Handler()
}

// Close stops background work: the compiler version refresher.
func (s *Server) Close() {
	if s.compilers != nil {
		s.compilers.Shutdown()
	}
}

func (s *Server) setupMiddleware() {
	s.router.Use(ratelimit.Middleware(ratelimit.Config{
		Enabled:        s.cfg.RateLimit.Enabled,
		RequestsPerMin: s.cfg.RateLimit.RequestsPerMin,
		BurstSize:      s.cfg.RateLimit.BurstSize,
		CleanupMinutes: s.cfg.RateLimit.CleanupMinutes,
	}))

	s.router.Use(middleware.RequestID)
	s.router.Use(logging.Middleware(s.logger))
	s.router.Use(metrics.Middleware)
	s.router.Use(middleware.Recoverer)
}

func (s *Server) setupRoutes(soliditySvc solidityTransport.Service, sourcifySvc sourcifyTransport.Service) {
	// Health checks
	s.router.Get("/health", s.handleHealth)
	s.router.Get("/healthz", s.handleHealth)
	s.router.Get("/readyz", s.handleHealth)

	// API v1 routes; disabled protocols are simply not mounted.
	s.router.Route("/api/v1", func(r chi.Router) {
		if soliditySvc != nil {
			r.Route("/solidity", func(r chi.Router) {
				solidityTransport.NewHandler(soliditySvc).RegisterRoutes(r)
			})
		}
		if sourcifySvc != nil {
			r.Route("/sourcify", func(r chi.Router) {
				sourcifyTransport.NewHandler(sourcifySvc).RegisterRoutes(r)
			})
		}
	})
}

// Health check handler
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
