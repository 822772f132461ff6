// Package gateway exposes the service over HTTP: report upload, chat,
// session teardown, and a WebSocket endpoint for streamed answers.
package gateway

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/glunkad/caresimplfyservice/internal/agent"
	"github.com/glunkad/caresimplfyservice/internal/config"
	"github.com/glunkad/caresimplfyservice/internal/logging"
	"github.com/glunkad/caresimplfyservice/internal/version"
)

// llmCallTimeout caps one upload or chat turn end to end.
const llmCallTimeout = 5 * time.Minute

// maxUploadBytes bounds multipart report uploads.
const maxUploadBytes = 20 << 20 // 20MB

// Server is the Care Simplify HTTP + WebSocket server.
type Server struct {
	cfg     config.Config
	runner  *agent.Runner
	log     *logging.Logger
	version string

	startedAt  time.Time
	httpServer *http.Server
	upgrader   websocket.Upgrader
}

// New creates a gateway server around the runner.
func New(cfg config.Config, runner *agent.Runner, log *logging.Logger) *Server {
	allowedOrigins := cfg.Server.AllowedOrigins
	return &Server{
		cfg:     cfg,
		runner:  runner,
		log:     log.Sub("gateway"),
		version: version.Version,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkWebSocketOrigin(allowedOrigins),
		},
	}
}

// checkWebSocketOrigin returns a function that validates WebSocket Origin
// headers. Requests without an Origin header (non-browser clients) are
// always allowed; browser requests must match a configured origin.
func checkWebSocketOrigin(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || a == origin {
				return true
			}
		}
		return false
	}
}

// Handler builds the full HTTP handler including middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.registerRoutes(mux)
	return withMiddleware(mux, s.log, s.cfg.Server.AllowedOrigins)
}

// resolveBindAddr computes the listen address from config.
func resolveBindAddr(cfg config.ServerConfig) string {
	switch cfg.Bind {
	case "loopback":
		return fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	case "lan":
		return fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	case "custom":
		host := cfg.CustomBindHost
		if host == "" {
			host = "0.0.0.0"
		}
		return fmt.Sprintf("%s:%d", host, cfg.Port)
	default:
		return fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	}
}

// Start begins listening for HTTP and WebSocket connections.
// It blocks until the context is cancelled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	addr := resolveBindAddr(s.cfg.Server)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: llmCallTimeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
		BaseContext:  func(l net.Listener) context.Context { return ctx },
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	if s.cfg.Server.TLS.Enabled {
		cert, err := tls.LoadX509KeyPair(s.cfg.Server.TLS.CertPath, s.cfg.Server.TLS.KeyPath)
		if err != nil {
			ln.Close()
			return fmt.Errorf("loading TLS certificate: %w", err)
		}
		tlsCfg := &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		}
		ln = tls.NewListener(ln, tlsCfg)
		s.log.Info().Msg("TLS enabled")
	} else if s.cfg.Server.Bind != "loopback" {
		s.log.Warn().Msg("TLS is not enabled — uploaded reports will be transmitted in cleartext")
	}

	s.startedAt = time.Now()

	s.log.Info().
		Str("addr", ln.Addr().String()).
		Str("bind", s.cfg.Server.Bind).
		Str("version", s.version).
		Msg("gateway server ready")

	// Shutdown when context is cancelled
	go func() {
		<-ctx.Done()
		s.log.Info().Msg("shutting down gateway server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Addr returns the server's listen address, or empty string if not started.
func (s *Server) Addr() string {
	if s.httpServer != nil {
		return s.httpServer.Addr
	}
	return ""
}
