// Package server wraps http.Server with the gateway's timeouts, optional
// TLS, and graceful shutdown.
package server

import (
	"context"
	"crypto/tls"
	"net/http"
	"time"

	"crm-gateway/internal/common/logging"
)

// Server represents the gateway's HTTP server.
type Server struct {
	srv     *http.Server
	tlsCert string
	tlsKey  string
	logger  logging.Logger
}

// New creates a server. TLS is enabled when both cert and key paths are
// non-empty.
func New(handler http.Handler, port, tlsCert, tlsKey string, logger logging.Logger) *Server {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Server{
		srv: &http.Server{
			Addr:         ":" + port,
			Handler:      handler,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		tlsCert: tlsCert,
		tlsKey:  tlsKey,
		logger:  logger,
	}
}

// Start begins serving in a background goroutine. Listener failures other
// than a clean shutdown are fatal.
func (s *Server) Start() {
	if s.tlsCert != "" && s.tlsKey != "" {
		s.srv.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		s.logger.Info("Starting HTTPS server", logging.String("addr", s.srv.Addr))
		go func() {
			if err := s.srv.ListenAndServeTLS(s.tlsCert, s.tlsKey); err != nil && err != http.ErrServerClosed {
				s.logger.Error("HTTPS server failed", err)
				panic(err)
			}
		}()
		return
	}

	s.logger.Info("Starting HTTP server", logging.String("addr", s.srv.Addr))
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server failed", err)
			panic(err)
		}
	}()
}

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
