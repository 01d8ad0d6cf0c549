// Package service wires up the LTE coordinator cell's runtime on top
// of common/cellapp: scheduler, X2 bus, RRC-Controller, and the admin
// operations the cell's HTTP server exposes (RACH, externally-injected
// SINR reports, downlink UE data injection).
package service

import (
	"context"

	"github.com/5g-ran/mc-rrc/common/cellapp"
	"github.com/5g-ran/mc-rrc/common/ran"
	"github.com/5g-ran/mc-rrc/nf/enb/internal/config"
	"go.uber.org/zap"
)

// EnbService is the LTE coordinator cell.
type EnbService struct {
	*cellapp.Service
}

// New builds the coordinator cell described by cfg.
func New(cfg *config.Config, logger *zap.Logger) (*EnbService, error) {
	svc, err := cellapp.New(cfg, logger, cellapp.RoleLTE, true)
	if err != nil {
		return nil, err
	}
	return &EnbService{Service: svc}, nil
}

// TriggerRach admits a new UE onto this cell via RACH (spec §3
// INITIAL_RANDOM_ACCESS), as the admin-API stand-in for a real UE's
// PRACH preamble transmission.
func (s *EnbService) TriggerRach(imsi uint64) (*ran.UeManager, error) {
	return s.Controller.CreateUeOnRach(ran.IMSI(imsi))
}

// ReportSinr feeds an externally-supplied SINR measurement into the
// coordinator's own measurement aggregator, standing in for the
// propagation model a real PHY layer would run (spec §4.5, out of
// scope here per the Non-goals).
func (s *EnbService) ReportSinr(ctx context.Context, imsi uint64, linearSinr float64) error {
	return s.Service.ReportSinr(ctx, s.Config.Cell.CellID, imsi, linearSinr)
}

// SendUeData pushes a downlink SDU into imsi's bearer drbID, exercising
// the Bearer-Split-PDCP forwarding path.
func (s *EnbService) SendUeData(ctx context.Context, imsi uint64, drbID uint8, sdu []byte) error {
	u, ok := s.Controller.UeByImsi(ran.IMSI(imsi))
	if !ok {
		return ran.ErrUeNotFound
	}
	return u.SendData(ctx, drbID, sdu)
}

// SetupBearer creates imsi's data radio bearer and wires its
// LTE-local PDCP path straight into the bearer's own RLC, so a
// subsequent SendUeData has somewhere to deliver to without first
// requiring a split-bearer RlcSetup handshake (spec §4.1, §4.4).
func (s *EnbService) SetupBearer(imsi uint64, setup ran.RrcBearerSetup) (*ran.BearerInfo, error) {
	u, ok := s.Controller.UeByImsi(ran.IMSI(imsi))
	if !ok {
		return nil, ran.ErrUeNotFound
	}
	bearer, err := u.SetupDataRadioBearer(setup)
	if err != nil {
		return nil, err
	}
	bearer.Pdcp.SetSink(ran.PathLteLocal, func(pdu []byte) error {
		bearer.Rlc.PushDown(pdu)
		return nil
	})
	return bearer, nil
}
