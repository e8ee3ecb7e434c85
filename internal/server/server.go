package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// ShutdownTimeout bounds how long in-flight requests may take to drain.
const ShutdownTimeout = 5 * time.Second

// Server runs a Router until its context is cancelled.
type Server struct {
	addr    string
	handler http.Handler
}

// New registers the router's routes and wraps them with CORS for origins.
func New(addr string, router *Router, origins []string) *Server {
	router.RegisterRoutes()
	return &Server{addr: addr, handler: router.Handler(origins)}
}

// Run serves until ctx is done, then shuts down gracefully. It returns nil
// after a clean shutdown.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server: listening", "addr", s.addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("listening on %s: %w", s.addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("server: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	slog.Info("server: stopped")
	return nil
}
