package infra

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"
)

// HTTPServer wraps http.Server to provide graceful startup and shutdown helpers.
// It listens on a unix socket when one is configured so it can sit behind the
// reverse proxy the same way the previous application server did.
type HTTPServer struct {
	server *http.Server
	socket string
}

// NewHTTPServer creates a configured HTTP server instance.
func NewHTTPServer(cfg *Config, handler http.Handler) *HTTPServer {
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
	}

	return &HTTPServer{server: srv, socket: cfg.ListenSocket}
}

// Address describes where the server listens, for logging.
func (s *HTTPServer) Address() string {
	if s.socket != "" {
		return "unix:" + s.socket
	}
	return s.server.Addr
}

// Start runs the HTTP server in the current goroutine. http.ErrServerClosed is
// swallowed so callers only see real failures.
func (s *HTTPServer) Start() error {
	if s.server == nil {
		return nil
	}
	var err error
	if s.socket != "" {
		err = s.serveSocket()
	} else {
		err = s.server.ListenAndServe()
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *HTTPServer) serveSocket() error {
	if err := os.Remove(s.socket); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove stale socket: %w", err)
	}
	ln, err := net.Listen("unix", s.socket)
	if err != nil {
		return fmt.Errorf("listen on socket: %w", err)
	}
	if err := os.Chmod(s.socket, 0o660); err != nil {
		_ = ln.Close()
		return fmt.Errorf("chmod socket: %w", err)
	}
	return s.server.Serve(ln)
}

// Shutdown gracefully stops the HTTP server.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
