// Package api provides the HTTP REST API server.
package api

import (
	"context"
	"crypto/tls"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/truthsource/syncwatch/internal/alerting"
	"github.com/truthsource/syncwatch/internal/api/health"
	"github.com/truthsource/syncwatch/internal/checker"
	"github.com/truthsource/syncwatch/internal/scoring"
	"github.com/truthsource/syncwatch/internal/storage"
)

// Config contains HTTP API server configuration.
type Config struct {
	Address         string
	HTTPTLSEnabled  bool   // enable HTTPS for the API server
	HTTPTLSCertFile string // HTTPS certificate file
	HTTPTLSKeyFile  string // HTTPS private key file
	RateLimitPerIP  int    // write-endpoint requests per IP per minute
	QueryTimeout    time.Duration
	Verbose         bool

	// Benchmark is the optional industry baseline used by the trend
	// endpoint. When nil, the benchmark percentile is the score itself.
	Benchmark *scoring.Baseline
}

// SetDefaults applies default values for missing configuration.
func (c *Config) SetDefaults() {
	if c.Address == "" {
		c.Address = ":8080"
	}
	if c.RateLimitPerIP == 0 {
		c.RateLimitPerIP = 60
	}
	if c.QueryTimeout == 0 {
		c.QueryTimeout = 10 * time.Second
	}
}

// Server is the HTTP API server.
type Server struct {
	config        *Config
	store         storage.Store
	metricStore   storage.MetricStore
	checker       *checker.Checker
	alerts        *alerting.Manager
	server        *http.Server
	healthHandler *health.Handler
}

// New creates a new API server. metricStore may be nil when the metric
// backend is disabled; the trend endpoint then returns 503.
func New(cfg *Config, store storage.Store, metricStore storage.MetricStore, chk *checker.Checker, alerts *alerting.Manager) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if store == nil {
		return nil, fmt.Errorf("storage is required")
	}
	if chk == nil {
		return nil, fmt.Errorf("checker is required")
	}
	if alerts == nil {
		return nil, fmt.Errorf("alert manager is required")
	}

	cfg.SetDefaults()

	s := &Server{
		config:        cfg,
		store:         store,
		metricStore:   metricStore,
		checker:       chk,
		alerts:        alerts,
		healthHandler: health.NewHandler(),
	}

	router := s.setupRouter()

	s.server = &http.Server{
		Addr:         cfg.Address,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	if cfg.HTTPTLSEnabled {
		s.server.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS13,
		}
	}

	return s, nil
}

// Run starts the HTTP server and blocks until context is canceled.
func (s *Server) Run(ctx context.Context) error {
	errChan := make(chan error, 1)

	go func() {
		log.Printf("HTTP API listening on %s", s.config.Address)
		var err error
		if s.config.HTTPTLSEnabled {
			err = s.server.ListenAndServeTLS(s.config.HTTPTLSCertFile, s.config.HTTPTLSKeyFile)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Printf("shutting down HTTP API server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	case err := <-errChan:
		return err
	}
}

// Address returns the configured listen address.
func (s *Server) Address() string {
	return s.config.Address
}

// RegisterHealthChecker adds a health checker to the server.
func (s *Server) RegisterHealthChecker(c health.Checker) {
	if s.healthHandler != nil {
		s.healthHandler.RegisterChecker(c)
	}
}
