// Package server exposes configured pipelines over HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/harshithgowdakt/blockexec/internal/config"
	"github.com/harshithgowdakt/blockexec/internal/exec"
	"github.com/harshithgowdakt/blockexec/internal/metrics"
)

// Server is the blockexec HTTP server.
type Server struct {
	addr      string
	handler   *QueryHandler
	collector *metrics.Collector
	logger    *zap.Logger
}

// NewServer creates a server running cfg's pipelines on e. Engine
// statistics are additionally exported through the collector.
func NewServer(cfg *config.Config, e *exec.Engine, collector *metrics.Collector) *Server {
	return &Server{
		addr:      cfg.Server.Addr,
		handler:   NewQueryHandler(cfg, e),
		collector: collector,
		logger:    e.Logger,
	}
}

// Mux returns the routes of the server.
func (s *Server) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/run", s.handler.HandleRun)
	mux.HandleFunc("/ping", s.handler.HandlePing)
	mux.Handle("/metrics", s.collector.Handler())
	return mux
}

// Start serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Mux(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("[server] shutdown", zap.Error(err))
		}
	}()

	s.logger.Info("[server] listening", zap.String("addr", s.addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
