package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/5g-ran/mc-rrc/nf/x2registry/internal/config"
	"github.com/5g-ran/mc-rrc/nf/x2registry/internal/repository"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// RegistryServer is the x2registry HTTP server, grounded on the
// teacher's NRFServer.
type RegistryServer struct {
	config     *config.Config
	repository repository.Repository
	router     *chi.Mux
	httpServer *http.Server
	logger     *zap.Logger
}

// NewRegistryServer creates a new registry server instance.
func NewRegistryServer(cfg *config.Config, logger *zap.Logger) (*RegistryServer, error) {
	repo := repository.NewMemoryRepository(logger)

	server := &RegistryServer{
		config:     cfg,
		repository: repo,
		router:     chi.NewRouter(),
		logger:     logger,
	}
	server.setupRoutes()
	return server, nil
}

func (s *RegistryServer) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Get("/health", s.handleHealth)
	s.router.Get("/ready", s.handleReady)

	s.router.Route("/x2registry/v1", func(r chi.Router) {
		r.Put("/cells/{cellId}", s.handleCellRegister)
		r.Patch("/cells/{cellId}", s.handleCellUpdate)
		r.Delete("/cells/{cellId}", s.handleCellDeregister)
		r.Get("/cells/{cellId}", s.handleCellGet)
		r.Get("/cells", s.handleCellList)

		r.Put("/cells/{cellId}/heartbeat", s.handleHeartbeat)

		r.Get("/discover", s.handleDiscover)
	})

	s.router.Get("/status", s.handleStatus)
}

// Start starts the HTTP server.
func (s *RegistryServer) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.SBI.BindAddress, s.config.SBI.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	s.logger.Info("starting x2registry HTTP server", zap.String("address", addr))
	return s.httpServer.ListenAndServe()
}

// Stop stops the HTTP server gracefully.
func (s *RegistryServer) Stop(ctx context.Context) error {
	s.logger.Info("stopping x2registry server")

	if memRepo, ok := s.repository.(*repository.MemoryRepository); ok {
		memRepo.Close()
	}
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

func (s *RegistryServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("remote_addr", r.RemoteAddr),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (s *RegistryServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}

func (s *RegistryServer) handleReady(w http.ResponseWriter, r *http.Request) {
	if _, err := s.repository.GetStats(r.Context()); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status":"not ready","error":"repository unavailable"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready"}`))
}

func (s *RegistryServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats, err := s.repository.GetStats(r.Context())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to get stats", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"registry_name": s.config.Registry.Name,
		"version":       "1.0.0",
		"stats":         stats,
	})
}

func (s *RegistryServer) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (s *RegistryServer) respondError(w http.ResponseWriter, status int, message string, err error) {
	s.logger.Error(message, zap.Error(err))
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"status":%d,"title":"%s","detail":"%s"}`, status, message, err.Error())
}
