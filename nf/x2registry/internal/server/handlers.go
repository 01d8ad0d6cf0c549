package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/5g-ran/mc-rrc/common/metrics"
	"github.com/5g-ran/mc-rrc/nf/x2registry/internal/repository"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func parseCellID(r *http.Request) (uint16, error) {
	v, err := strconv.ParseUint(chi.URLParam(r, "cellId"), 10, 16)
	if err != nil {
		return 0, err
	}
	return uint16(v), nil
}

// handleCellRegister registers a cell (PUT /cells/{cellId}).
func (s *RegistryServer) handleCellRegister(w http.ResponseWriter, r *http.Request) {
	cellID, err := parseCellID(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid cell id", err)
		return
	}

	var profile repository.CellProfile
	if err := json.NewDecoder(r.Body).Decode(&profile); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	profile.CellID = cellID

	if err := s.repository.Register(r.Context(), &profile); err != nil {
		s.respondError(w, http.StatusConflict, "registration failed", err)
		metrics.RecordCellRegistration(string(profile.Role), "failed")
		return
	}

	metrics.RecordCellRegistration(string(profile.Role), "success")
	stats, _ := s.repository.GetStats(r.Context())
	metrics.SetRegisteredCells(string(profile.Role), stats.CellsByRole[string(profile.Role)])

	s.respondJSON(w, http.StatusCreated, &profile)

	s.logger.Info("cell registered",
		zap.Uint16("cell_id", cellID),
		zap.String("role", string(profile.Role)),
	)
}

// handleCellUpdate updates a cell profile (PATCH /cells/{cellId}).
func (s *RegistryServer) handleCellUpdate(w http.ResponseWriter, r *http.Request) {
	cellID, err := parseCellID(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid cell id", err)
		return
	}

	var profile repository.CellProfile
	if err := json.NewDecoder(r.Body).Decode(&profile); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	profile.CellID = cellID

	if err := s.repository.Update(r.Context(), cellID, &profile); err != nil {
		s.respondError(w, http.StatusNotFound, "update failed", err)
		return
	}

	s.respondJSON(w, http.StatusOK, &profile)
	s.logger.Info("cell profile updated", zap.Uint16("cell_id", cellID))
}

// handleCellDeregister removes a cell (DELETE /cells/{cellId}).
func (s *RegistryServer) handleCellDeregister(w http.ResponseWriter, r *http.Request) {
	cellID, err := parseCellID(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid cell id", err)
		return
	}

	profile, _ := s.repository.Get(r.Context(), cellID)

	if err := s.repository.Deregister(r.Context(), cellID); err != nil {
		s.respondError(w, http.StatusNotFound, "deregistration failed", err)
		return
	}

	if profile != nil {
		metrics.RecordCellDeregistration(string(profile.Role))
	}
	stats, _ := s.repository.GetStats(r.Context())
	for role, count := range stats.CellsByRole {
		metrics.SetRegisteredCells(role, count)
	}

	w.WriteHeader(http.StatusNoContent)
	s.logger.Info("cell deregistered", zap.Uint16("cell_id", cellID))
}

// handleCellGet retrieves one cell profile (GET /cells/{cellId}).
func (s *RegistryServer) handleCellGet(w http.ResponseWriter, r *http.Request) {
	cellID, err := parseCellID(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid cell id", err)
		return
	}

	profile, err := s.repository.Get(r.Context(), cellID)
	if err != nil {
		s.respondError(w, http.StatusNotFound, "cell not found", err)
		return
	}
	s.respondJSON(w, http.StatusOK, profile)
}

// handleCellList lists every registered cell (GET /cells).
func (s *RegistryServer) handleCellList(w http.ResponseWriter, r *http.Request) {
	profiles, err := s.repository.GetAll(r.Context())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to get profiles", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"cells":      profiles,
		"totalCount": len(profiles),
	})
}

// handleHeartbeat records a cell heartbeat (PUT /cells/{cellId}/heartbeat).
func (s *RegistryServer) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	cellID, err := parseCellID(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid cell id", err)
		return
	}

	profile, _ := s.repository.Get(r.Context(), cellID)

	if err := s.repository.UpdateHeartbeat(r.Context(), cellID); err != nil {
		s.respondError(w, http.StatusNotFound, "heartbeat failed", err)
		return
	}

	if profile != nil {
		metrics.RecordCellHeartbeat(string(profile.Role))
	}

	w.WriteHeader(http.StatusNoContent)
	s.logger.Debug("heartbeat received", zap.Uint16("cell_id", cellID))
}

// handleDiscover serves cell discovery (GET /discover).
func (s *RegistryServer) handleDiscover(w http.ResponseWriter, r *http.Request) {
	query := &repository.DiscoveryQuery{}

	if role := r.URL.Query().Get("role"); role != "" {
		query.Role = repository.CellRole(role)
	}
	if idStr := r.URL.Query().Get("target-cell-id"); idStr != "" {
		if id, err := strconv.ParseUint(idStr, 10, 16); err == nil {
			query.TargetCellID = uint16(id)
		}
	}
	if idStr := r.URL.Query().Get("neighbor-of"); idStr != "" {
		if id, err := strconv.ParseUint(idStr, 10, 16); err == nil {
			query.NeighborOf = uint16(id)
		}
	}

	profiles, err := s.repository.Discover(r.Context(), query)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "discovery failed", err)
		metrics.RecordDiscoveryRequest(string(query.Role), "failed")
		return
	}

	metrics.RecordDiscoveryRequest(string(query.Role), "success")

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"cells": profiles,
	})

	s.logger.Info("cell discovery",
		zap.String("role", string(query.Role)),
		zap.Int("results_count", len(profiles)),
	)
}
