// Package api exposes the HTTP surface of the welcome bot: the webhook
// endpoint consuming channel events and a health probe.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gdg-ntpu/welcomebot/internal/models"
)

// DefaultAddr is the listen address when none is configured.
const DefaultAddr = ":8080"

// Opts holds configuration options for the API server.
type Opts struct {
	Addr string
}

// Option configures the server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// Controller processes one inbound event into ordered reply messages.
type Controller interface {
	Handle(ctx context.Context, event models.Event) []models.Message
}

// Server serves the webhook and health endpoints.
type Server struct {
	addr       string
	controller Controller
	httpServer *http.Server
}

// NewServer creates an API server around the given conversation
// controller. The listen address falls back to the WELCOMEBOT_ADDR
// environment variable, then to DefaultAddr.
func NewServer(controller Controller, opts ...Option) *Server {
	var o Opts
	for _, opt := range opts {
		opt(&o)
	}
	if o.Addr == "" {
		o.Addr = os.Getenv("WELCOMEBOT_ADDR")
	}
	if o.Addr == "" {
		o.Addr = DefaultAddr
	}
	slog.Debug("api.NewServer configured", "addr", o.Addr)
	return &Server{addr: o.Addr, controller: controller}
}

// Handler returns the routed HTTP handler. Exposed so tests can drive
// the full surface without binding a socket.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/callback", s.callbackHandler)
	mux.HandleFunc("/health", s.healthHandler)
	return mux
}

// Run starts the HTTP server and blocks until it stops.
func (s *Server) Run() error {
	s.httpServer = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
	}
	slog.Info("api server listening", "addr", s.addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown stops the HTTP server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
