// Package service wires up a mmWave cell's runtime on top of
// common/cellapp. Unlike the coordinator, a mmWave cell never hosts
// the SINR matrix itself: every measurement it takes is forwarded over
// X2 to the coordinator cell named by x2.coordinator_cell_id.
package service

import (
	"context"

	"github.com/5g-ran/mc-rrc/common/cellapp"
	"github.com/5g-ran/mc-rrc/common/ran"
	"github.com/5g-ran/mc-rrc/nf/mmwave/internal/config"
	"go.uber.org/zap"
)

// MmwaveService is a single mmWave cell.
type MmwaveService struct {
	*cellapp.Service
}

// New builds the mmWave cell described by cfg. group (A or B) selects
// which role the cell registers under.
func New(cfg *config.Config, logger *zap.Logger) (*MmwaveService, error) {
	role := cellapp.RoleA
	if ran.ParseCellGroup(cfg.Cell.Group) == ran.CellGroupB {
		role = cellapp.RoleB
	}
	svc, err := cellapp.New(cfg, logger, role, false)
	if err != nil {
		return nil, err
	}
	return &MmwaveService{Service: svc}, nil
}

// ReportSinr forwards an externally-supplied SINR measurement for imsi
// to the coordinator cell, standing in for the propagation model a
// real PHY layer would run (spec §4.5, out of scope here).
func (s *MmwaveService) ReportSinr(ctx context.Context, imsi uint64, linearSinr float64) error {
	return s.Service.ReportSinr(ctx, s.Config.X2.CoordinatorCellID, imsi, linearSinr)
}

// SendUeData pushes a downlink SDU into imsi's bearer drbID on this
// cell, exercising the Bearer-Split-PDCP forwarding path for MC
// secondary legs hosted here.
func (s *MmwaveService) SendUeData(ctx context.Context, imsi uint64, drbID uint8, sdu []byte) error {
	u, ok := s.Controller.UeByImsi(ran.IMSI(imsi))
	if !ok {
		return ran.ErrUeNotFound
	}
	return u.SendData(ctx, drbID, sdu)
}
