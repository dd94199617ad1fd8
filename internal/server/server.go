// package server contains middleware & handlers for the cadence HTTP API and provider webhooks
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/cadence/internal/shared"
	"github.com/desertthunder/cadence/internal/tasks"
)

// Middleware wraps an http.Handler and returns a new http.Handler with additional behavior.
type Middleware func(http.Handler) http.Handler

// Handler defines the interface for HTTP request handlers that own several routes.
type Handler interface {
	http.Handler      // ServeHTTP handles the HTTP request and writes the response
	Routes() []string // Routes returns the "METHOD /path" patterns this handler serves
}

// Router defines the interface for HTTP routing and middleware management.
type Router interface {
	Use(middleware ...Middleware)                     // Use adds middleware to the router's middleware stack
	Handle(method, path string, handler http.Handler) // Handle registers a handler for the specified method and path
	Handler(handler Handler)                          // Handler registers a custom Handler implementation
	ServeHTTP(w http.ResponseWriter, r *http.Request) // ServeHTTP implements http.Handler for the entire router
}

// Server is the long-running API and webhook receiver.
type Server struct {
	addr       string
	router     *BasicRouter
	metrics    *Metrics
	dispatcher *tasks.Dispatcher
	logger     *log.Logger
}

// New wires every route. dispatcher runs webhook-triggered syncs.
func New(cfg shared.ServerConfig, engine *tasks.CalendarEngine, dispatcher *tasks.Dispatcher, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(io.Discard)
	}

	metrics := NewMetrics()
	router := NewBasicRouter()
	router.Use(Recover(logger), Logging(logger), metrics.Middleware)

	router.Handle(http.MethodGet, "/healthz", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}))
	router.Handle(http.MethodGet, "/metrics", metrics.Handler())
	router.Handler(NewWebhookHandler(engine, dispatcher, metrics, cfg.WebhookToken, logger))
	router.Handler(NewAPIHandler(engine, logger))

	return &Server{
		addr:       net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		router:     router,
		metrics:    metrics,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

// Addr is the listen address.
func (s *Server) Addr() string { return s.addr }

// ListenAndServe serves until ctx is cancelled, then shuts down and drains background jobs.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	s.logger.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if s.dispatcher != nil {
		if err := s.dispatcher.Close(shutdownCtx); err != nil {
			s.logger.Warn("background jobs still running at shutdown", "error", err)
		}
	}
	return nil
}
