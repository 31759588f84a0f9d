package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/kartoza/lab-test-optimizer/internal/api"
	"github.com/kartoza/lab-test-optimizer/internal/config"
	"github.com/kartoza/lab-test-optimizer/internal/engine"
)

// Server holds all the components for the web application
type Server struct {
	cfg        config.Config
	httpServer *http.Server
	router     *mux.Router
	engine     *engine.Engine
	logger     *slog.Logger
}

// New creates a new Server serving eng
func New(cfg config.Config, eng *engine.Engine, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:    cfg,
		router: mux.NewRouter(),
		engine: eng,
		logger: logger.With("component", "server"),
	}
	s.setupRoutes()
	s.httpServer = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// setupRoutes mounts the API at the root and again under /api
func (s *Server) setupRoutes() {
	apiHandler := api.NewHandler(s.engine, s.cfg, s.logger)

	apiRouter := s.router.PathPrefix("/api").Subrouter()
	apiHandler.RegisterRoutes(apiRouter)
	apiHandler.RegisterRoutes(s.router)

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"not found"}` + "\n"))
	})
}

// Handler returns the router wrapped in the request id and CORS
// middleware. CORS sits outside the router so preflight requests are
// answered before method matching.
func (s *Server) Handler() http.Handler {
	return api.RequestID(api.CORS(s.cfg.Server.CORSOrigins)(s.router))
}

// Start begins listening for HTTP connections. It returns nil after Stop.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.Server.Port))
	if err != nil {
		return fmt.Errorf("listen on port %d: %w", s.cfg.Server.Port, err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Stop is called
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("server listening", "addr", ln.Addr().String(), "mode", s.engine.Mode())
	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully shuts down the server
func (s *Server) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	s.logger.Info("server stopping")
	return s.httpServer.Shutdown(ctx)
}
