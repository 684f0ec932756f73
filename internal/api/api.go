// Package api provides HTTP handlers and the main API server logic for the
// outreach workflow engine.
//
// It exposes RESTful endpoints for enrolling influencers, driving
// conversations, resolving escalations, and inspecting engine state. The API
// integrates with the flow, messaging, and store modules.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/FelixNg1022/agent-workflow/internal/flow"
	"github.com/FelixNg1022/agent-workflow/internal/messaging"
	"github.com/FelixNg1022/agent-workflow/internal/store"
)

// Default timeouts for the HTTP server.
const (
	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
)

// Opts holds configuration options for the API server.
type Opts struct {
	Addr string
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the listen address (e.g. ":8080").
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// Server wires the HTTP surface to the workflow driver and its supporting
// services.
type Server struct {
	addr        string
	driver      *flow.Driver
	st          store.Store
	msgService  messaging.Service
	respHandler *messaging.ResponseHandler
	twilio      *messaging.TwilioService
	httpServer  *http.Server
}

// NewServer creates the API server. The twilio service may be nil when the
// transport is mocked; the webhook route is only registered when present.
func NewServer(driver *flow.Driver, st store.Store, msgService messaging.Service,
	respHandler *messaging.ResponseHandler, twilio *messaging.TwilioService, opts ...Option) *Server {
	cfg := Opts{Addr: ":8080"}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Server{
		addr:        cfg.Addr,
		driver:      driver,
		st:          st,
		msgService:  msgService,
		respHandler: respHandler,
		twilio:      twilio,
	}
}

// routes builds the request mux.
func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /conversations", s.startConversationHandler)
	mux.HandleFunc("GET /conversations", s.listConversationsHandler)
	mux.HandleFunc("GET /conversations/{id}", s.getConversationHandler)
	mux.HandleFunc("POST /conversations/{id}/reply", s.replyHandler)
	mux.HandleFunc("POST /conversations/{id}/resolve", s.resolveHandler)
	mux.HandleFunc("DELETE /conversations/{id}", s.cancelConversationHandler)

	mux.HandleFunc("GET /escalations", s.escalationsHandler)
	mux.HandleFunc("GET /influencers", s.listInfluencersHandler)
	mux.HandleFunc("GET /stages", s.stagesHandler)

	mux.HandleFunc("GET /receipts", s.receiptsHandler)
	mux.HandleFunc("GET /responses", s.responsesHandler)
	mux.HandleFunc("GET /stats", s.statsHandler)
	mux.HandleFunc("GET /health", s.healthHandler)

	if s.twilio != nil {
		mux.HandleFunc("POST /webhook/twilio", s.twilio.TwilioWebhookHandler)
	}

	return mux
}

// Handler returns the fully routed HTTP handler. Exposed for tests.
func (s *Server) Handler() http.Handler {
	return s.routes()
}

// Run starts the HTTP server and blocks until the context is cancelled, then
// shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         s.addr,
		Handler:      s.routes(),
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server.Run: API listening", "addr", s.addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server failed: %w", err)
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		slog.Info("Server.Run: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}
