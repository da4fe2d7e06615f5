package http

import (
	"context"
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/autopeer-io/roverhub/internal/rentalhub/core/service"
	"github.com/autopeer-io/roverhub/internal/rentalhub/registry"
	"github.com/autopeer-io/roverhub/pkg/log"
	"github.com/autopeer-io/roverhub/pkg/options"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators the HTTP surface serves.
type Deps struct {
	Service *service.Service
	Relay   *registry.Relay
	Store   Pinger
}

type Server struct {
	server   *http.Server
	options  *options.HttpOptions
	service  *service.Service
	relay    *registry.Relay
	store    Pinger
	upgrader *websocket.Upgrader

	mu    sync.Mutex
	conns map[*wsConn]struct{}
}

func NewServer(opts *options.HttpOptions, deps Deps) *Server {
	s := &Server{
		options: opts,
		service: deps.Service,
		relay:   deps.Relay,
		store:   deps.Store,
		conns:   make(map[*wsConn]struct{}),
	}
	s.upgrader = s.newUpgrader()

	// Hijacked WebSockets keep the server deadlines, so only the header read is
	// bounded here and REST routes get their own timeout.
	s.server = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: opts.Timeout,
	}
	return s
}

// Handler returns the root handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) routes() http.Handler {
	r := mux.NewRouter()
	r.Use(requestIDMiddleware, recoverMiddleware, loggingMiddleware)

	// Basic Liveness Probe
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.readyz).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	ws := r.PathPrefix("/api/ws").Subrouter()
	ws.HandleFunc("/car/{device_id}", s.handleCar)
	ws.HandleFunc("/status", s.handleStatus)
	ws.Handle("/control/{car_id}", callerMiddleware(http.HandlerFunc(s.handleControl)))

	api := r.PathPrefix("/api").Subrouter()
	api.Use(s.timeout, callerMiddleware)
	api.HandleFunc("/cars", s.listCars).Methods(http.MethodGet)
	api.HandleFunc("/rentals/start", s.startRental).Methods(http.MethodPost)
	api.HandleFunc("/rentals/extend", s.extendRental).Methods(http.MethodPost)
	api.HandleFunc("/rentals/stop/{rental_id}", s.stopRental).Methods(http.MethodPost)
	api.HandleFunc("/rentals/active", s.activeRental).Methods(http.MethodGet)
	api.HandleFunc("/rentals/my", s.myRentals).Methods(http.MethodGet)
	api.HandleFunc("/rentals/report", s.reportIssue).Methods(http.MethodPost)
	api.HandleFunc("/rentals/feedback", s.submitFeedback).Methods(http.MethodPost)

	return r
}

func (s *Server) timeout(next http.Handler) http.Handler {
	if s.options.Timeout <= 0 {
		return next
	}
	return http.TimeoutHandler(next, s.options.Timeout, `{"code":"TIMEOUT","message":"request timed out"}`)
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		log.Warn("Readiness check failed", "error", err.Error())
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("store unavailable"))
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) Start(ctx context.Context) error {
	lis, err := net.Listen(s.options.Network, s.options.Addr)
	if err != nil {
		return err
	}

	log.Info("Starting HTTP Server", "addr", s.options.Addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.Serve(lis); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.options.ShutdownTimeout)
		defer cancel()
		err := s.server.Shutdown(shutdownCtx)
		s.closeConns("server shutting down")
		return err
	}
}

func (s *Server) track(c *wsConn) {
	s.mu.Lock()
	s.conns[c] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) untrack(c *wsConn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
}

// closeConns ends the WebSockets, which Shutdown does not know about.
func (s *Server) closeConns(reason string) {
	s.mu.Lock()
	conns := make([]*wsConn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.Close(reason)
	}
}
