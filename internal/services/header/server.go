// Package header hosts the navigation header HTTP service.
package header

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/louisbranch/navheader/internal/platform/i18n/catalog"
	"github.com/louisbranch/navheader/internal/platform/telemetry/metrics"
	"github.com/louisbranch/navheader/internal/platform/timeouts"
	"github.com/louisbranch/navheader/internal/services/header/platform/httpx"
	"github.com/louisbranch/navheader/internal/services/header/storage"
)

// Config defines startup inputs for the header service.
type Config struct {
	HTTPAddr string
	// Backends builds the per-viewer backend client for a request.
	Backends BackendFactory
	// Registry stores plugin contributed menus.
	Registry storage.PluginRegistry
	// ExpectedPlugins must register before the menu is considered final.
	ExpectedPlugins []string
	// PluginWait bounds how long a request waits for ExpectedPlugins.
	PluginWait time.Duration
	// BasePath overrides the backend's base path in generated URLs.
	BasePath string
	// SessionTTL is how long a viewer's header state is reused between
	// requests.
	SessionTTL time.Duration
	// ViewerSessions caps the number of cached viewer sessions.
	ViewerSessions int
	Catalog        *catalog.Bundle
	Metrics        *metrics.Recorder
	Logger         *log.Logger
}

// Server hosts the header HTTP surface and lifecycle.
type Server struct {
	httpAddr   string
	httpServer *http.Server
}

type service struct {
	backends        BackendFactory
	registry        storage.PluginRegistry
	expectedPlugins []string
	pluginWait      time.Duration
	basePath        string
	sessions        *viewerSessions
	catalog         *catalog.Bundle
	metrics         *metrics.Recorder
	logger          *log.Logger
}

// NewHandler builds the root handler.
func NewHandler(cfg Config) (http.Handler, error) {
	if cfg.Backends == nil {
		return nil, errors.New("backend factory is required")
	}
	svc := &service{
		backends:        cfg.Backends,
		registry:        cfg.Registry,
		expectedPlugins: cfg.ExpectedPlugins,
		pluginWait:      cfg.PluginWait,
		basePath:        strings.TrimRight(strings.TrimSpace(cfg.BasePath), "/"),
		catalog:         cfg.Catalog,
		metrics:         cfg.Metrics,
		logger:          cfg.Logger,
	}
	if svc.catalog == nil {
		svc.catalog = catalog.Default()
	}
	if svc.logger == nil {
		svc.logger = log.Default()
	}
	if svc.pluginWait <= 0 {
		svc.pluginWait = timeouts.PluginWait
	}
	sessionTTL := cfg.SessionTTL
	if sessionTTL <= 0 {
		sessionTTL = timeouts.ViewerSession
	}
	svc.sessions = newViewerSessions(cfg.ViewerSessions, sessionTTL)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /header", svc.handleHeader)
	mux.HandleFunc("GET /header.json", svc.handleHeaderJSON)
	if svc.registry != nil {
		mux.HandleFunc("GET /plugins/{plugin}", svc.handleGetPlugin)
		mux.HandleFunc("PUT /plugins/{plugin}/top-menus", svc.handlePutPlugin)
		mux.HandleFunc("DELETE /plugins/{plugin}", svc.handleDeletePlugin)
	}
	mux.Handle("GET /metrics", svc.metrics.Handler())

	return httpx.Chain(mux,
		httpx.RecoverPanic(svc.logger),
		httpx.RequestID(),
		httpx.RequestLogger(svc.logger),
	), nil
}

// NewServer validates config and constructs a header server.
func NewServer(_ context.Context, cfg Config) (*Server, error) {
	httpAddr := strings.TrimSpace(cfg.HTTPAddr)
	if httpAddr == "" {
		return nil, errors.New("http address is required")
	}
	handler, err := NewHandler(cfg)
	if err != nil {
		return nil, fmt.Errorf("compose header handler: %w", err)
	}
	return &Server{
		httpAddr: httpAddr,
		httpServer: &http.Server{
			Addr:              httpAddr,
			Handler:           handler,
			ReadHeaderTimeout: timeouts.ReadHeader,
		},
	}, nil
}

// ListenAndServe serves HTTP traffic until context cancellation or server stop.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s == nil {
		return errors.New("header server is nil")
	}
	if ctx == nil {
		return errors.New("context is required")
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Printf("header server listening at %s", s.httpAddr)
		serveErr <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		err := s.httpServer.Shutdown(shutdownCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("shutdown header http server: %w", err)
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve header http: %w", err)
	}
}

// Close closes open server resources.
func (s *Server) Close() {
	if s == nil || s.httpServer == nil {
		return
	}
	_ = s.httpServer.Close()
}
