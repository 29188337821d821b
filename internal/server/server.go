// Package server exposes recommendations and Aadhaar verification over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/spigell/scheme-matcher/internal/aadhaar"
	"github.com/spigell/scheme-matcher/internal/logger"
	"github.com/spigell/scheme-matcher/internal/recommend"
	"github.com/spigell/scheme-matcher/internal/store"
)

const (
	recommendationsPath = "/get_recommendations"
	verifyPath          = "/verify_aadhaar"
	healthPath          = "/health"
	readyPath           = "/ready"
	metricsPath         = "/metrics"

	defaultAddress         = ":5000"
	defaultShutdownTimeout = 10 * time.Second
	defaultMaxBodyBytes    = 20 << 20
)

var DefaultAllowedOrigins = []string{"http://127.0.0.1:5173", "http://localhost:5173"}

type Config struct {
	Address         string        `mapstructure:"address"`
	AllowedOrigins  []string      `mapstructure:"allowed-origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown-timeout"`
	MaxBodyBytes    int64         `mapstructure:"max-body-bytes"`
}

type Recommender interface {
	Recommend(ctx context.Context, email string) (*recommend.Recommendation, error)
}

type Verifier interface {
	Verify(ctx context.Context, email string, front, back aadhaar.Image) (*aadhaar.Result, error)
}

type Server struct {
	config      Config
	recommender Recommender
	verifier    Verifier
	checks      map[string]store.Pinger
	logger      *zap.Logger
	server      *http.Server
}

// New creates the HTTP server. verifier may be nil, in which case the
// verification endpoint answers 503. checks are pinged by /ready.
func New(cfg Config, recommender Recommender, verifier Verifier, checks map[string]store.Pinger, log *zap.Logger) *Server {
	if cfg.Address == "" {
		cfg.Address = defaultAddress
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = DefaultAllowedOrigins
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}

	return &Server{
		config:      cfg,
		recommender: recommender,
		verifier:    verifier,
		checks:      checks,
		logger:      logger.WithFields(log, zap.String("component", "server")),
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+recommendationsPath, s.handleRecommendations)
	mux.HandleFunc("POST "+verifyPath, s.handleVerify)
	mux.HandleFunc("GET "+healthPath, s.handleHealth)
	mux.HandleFunc("GET "+readyPath, s.handleReady)
	mux.Handle("GET "+metricsPath, promhttp.Handler())

	return withRequestID(withCORS(s.config.AllowedOrigins, s.withLogging(mux)))
}

// Run serves until ctx is cancelled and then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              s.config.Address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting http server", zap.String("address", s.config.Address))
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	return s.Stop()
}

// Stop stops the server, waiting for in-flight requests up to the shutdown timeout.
func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	s.logger.Info("stopping http server")
	return s.server.Shutdown(ctx)
}
