// Package server is the LTE coordinator cell's HTTP surface: the X2
// receiving endpoint (mounted when running over the HTTP transport),
// health/status, and the admin operations that stand in for PHY-layer
// stimuli a real deployment would generate on its own (RACH, SINR
// measurement reports, downlink data). Grounded on
// nf/x2registry/internal/server.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/5g-ran/mc-rrc/common/ran"
	"github.com/5g-ran/mc-rrc/nf/enb/internal/config"
	"github.com/5g-ran/mc-rrc/nf/enb/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Server is nf/enb's HTTP server.
type Server struct {
	config     *config.Config
	svc        *service.EnbService
	router     *chi.Mux
	httpServer *http.Server
	logger     *zap.Logger
}

// New creates the server for svc.
func New(cfg *config.Config, svc *service.EnbService, logger *zap.Logger) *Server {
	s := &Server{config: cfg, svc: svc, router: chi.NewRouter(), logger: logger}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Get("/health", s.handleHealth)
	s.router.Get("/status", s.handleStatus)

	if t, ok := s.svc.HTTPTransport(); ok {
		t.RegisterRoutes(s.router)
	}

	s.router.Route("/admin/v1", func(r chi.Router) {
		r.Post("/ues", s.handleTriggerRach)
		r.Post("/ues/{imsi}/measurements", s.handleReportSinr)
		r.Post("/ues/{imsi}/bearers", s.handleSetupBearer)
		r.Post("/ues/{imsi}/bearers/{drbId}/data", s.handleSendUeData)
	})
}

// Start serves HTTP until the process is shut down.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.SBI.BindAddress, s.config.SBI.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	s.logger.Info("starting nf/enb HTTP server", zap.String("address", addr))
	return s.httpServer.ListenAndServe()
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"cell_id":        s.config.Cell.CellID,
		"group":          s.config.Cell.Group,
		"is_coordinator": true,
	})
}

type rachRequest struct {
	Imsi uint64 `json:"imsi"`
}

func (s *Server) handleTriggerRach(w http.ResponseWriter, r *http.Request) {
	var req rachRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "decode request", err)
		return
	}
	u, err := s.svc.TriggerRach(req.Imsi)
	if err != nil {
		respondError(w, http.StatusConflict, "rach rejected", err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{
		"imsi": req.Imsi,
		"rnti": uint16(u.Rnti),
	})
}

type measurementRequest struct {
	LinearSinr float64 `json:"linearSinr"`
}

func (s *Server) handleReportSinr(w http.ResponseWriter, r *http.Request) {
	imsi, err := parseImsi(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "parse imsi", err)
		return
	}
	var req measurementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "decode request", err)
		return
	}
	if err := s.svc.ReportSinr(r.Context(), imsi, req.LinearSinr); err != nil {
		respondError(w, http.StatusInternalServerError, "report sinr", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type bearerSetupRequest struct {
	EpsBearerID     uint8   `json:"epsBearerId"`
	TransportTeid   uint32  `json:"transportTeid"`
	TransportAddr   string  `json:"transportAddr"`
	PacketErrorRate float64 `json:"packetErrorRate"`
	IsMc            bool    `json:"isMc"`
	IsMc2           bool    `json:"isMc2"`
}

func (s *Server) handleSetupBearer(w http.ResponseWriter, r *http.Request) {
	imsi, err := parseImsi(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "parse imsi", err)
		return
	}
	var req bearerSetupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "decode request", err)
		return
	}
	bearer, err := s.svc.SetupBearer(imsi, ran.RrcBearerSetup{
		EpsBearerID:     req.EpsBearerID,
		TransportTeid:   req.TransportTeid,
		TransportAddr:   req.TransportAddr,
		PacketErrorRate: req.PacketErrorRate,
		IsMc:            req.IsMc,
		IsMc2:           req.IsMc2,
	})
	if err != nil {
		respondError(w, http.StatusConflict, "setup bearer", err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{
		"imsi":  imsi,
		"drbId": bearer.DrbID,
	})
}

type ueDataRequest struct {
	Sdu []byte `json:"sdu"`
}

func (s *Server) handleSendUeData(w http.ResponseWriter, r *http.Request) {
	imsi, err := parseImsi(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "parse imsi", err)
		return
	}
	drbID, err := parseDrbID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "parse drb id", err)
		return
	}
	var req ueDataRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "decode request", err)
		return
	}
	if err := s.svc.SendUeData(r.Context(), imsi, drbID, req.Sdu); err != nil {
		respondError(w, http.StatusInternalServerError, "send ue data", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseImsi(r *http.Request) (uint64, error) {
	var imsi uint64
	_, err := fmt.Sscanf(chi.URLParam(r, "imsi"), "%d", &imsi)
	return imsi, err
}

func parseDrbID(r *http.Request) (uint8, error) {
	var id uint8
	_, err := fmt.Sscanf(chi.URLParam(r, "drbId"), "%d", &id)
	return id, err
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string, err error) {
	respondJSON(w, status, map[string]any{"error": message, "detail": err.Error()})
}
