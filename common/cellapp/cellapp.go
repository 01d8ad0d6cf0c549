// Package cellapp wires up the runtime a single cell process needs:
// the scheduler, the trace sink, the simulated SAPs, the X2 bus/transport,
// the RRC-Controller, and (when running over HTTP) the cell-registry
// client that resolves peer addresses. nf/enb and nf/mmwave both embed
// a Service and differ only in isCoordinator and the admin surface they
// expose on top of it — the same "per-NF internal/service wraps a
// shared runtime" shape the teacher's NFs follow for their SBI client
// plumbing.
package cellapp

import (
	"context"
	"fmt"
	"time"

	"github.com/5g-ran/mc-rrc/common/metrics"
	"github.com/5g-ran/mc-rrc/common/ran"
	"github.com/5g-ran/mc-rrc/common/registryclient"
	"github.com/5g-ran/mc-rrc/common/saps"
	"github.com/5g-ran/mc-rrc/common/trace"
	"github.com/5g-ran/mc-rrc/common/x2"
	"go.uber.org/zap"
)

// Role labels this cell in the registry (spec's CellRole: LTE, A, B).
type Role string

const (
	RoleLTE Role = "LTE"
	RoleA   Role = "A"
	RoleB   Role = "B"
)

// Service is the running cell: scheduler, bus, controller, and (when
// configured for HTTP transport) the registry client keeping the X2
// endpoint cache warm.
type Service struct {
	Config        *ran.Config
	Logger        *zap.Logger
	IsCoordinator bool
	Role          Role

	Scheduler  *ran.Scheduler
	Sink       trace.Sink
	Mac        *saps.SimulatedMac
	Phy        *saps.SimulatedPhy
	S1AP       *saps.SimulatedS1AP
	Bus        *x2.Bus
	Controller *ran.RrcController

	httpTransport *x2.HTTPTransport
	registry      *registryclient.Client
}

// New builds a Service for cellID in role, wiring scheduler, sinks,
// SAPs, X2 transport and the RRC-Controller per cfg. isCoordinator
// marks the LTE anchor cell (spec §4.2).
func New(cfg *ran.Config, logger *zap.Logger, role Role, isCoordinator bool) (*Service, error) {
	sched := ran.NewScheduler()

	sink, err := newSink(cfg.Trace)
	if err != nil {
		return nil, fmt.Errorf("cellapp: trace sink: %w", err)
	}

	mac := saps.NewSimulatedMac(64)
	phy := saps.NewSimulatedPhy()
	phy.SetCellID(cfg.Cell.CellID)
	s1ap := saps.NewSimulatedS1AP()

	transport, registry, httpT, err := newTransport(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("cellapp: x2 transport: %w", err)
	}

	bus := x2.NewBus(cfg.Cell.CellID, transport, logger)
	group := ran.ParseCellGroup(cfg.Cell.Group)
	controller := ran.NewRrcController(ran.CellID(cfg.Cell.CellID), group, isCoordinator, sched, bus, cfg, logger, mac, s1ap, sink)

	for _, neighbor := range cfg.Cell.NeighborCellIDs {
		controller.RegisterCell(ran.CellID(neighbor), group)
	}

	return &Service{
		Config:        cfg,
		Logger:        logger,
		IsCoordinator: isCoordinator,
		Role:          role,
		Scheduler:     sched,
		Sink:          sink,
		Mac:           mac,
		Phy:           phy,
		S1AP:          s1ap,
		Bus:           bus,
		Controller:    controller,
		httpTransport: httpT,
		registry:      registry,
	}, nil
}

func newSink(cfg ran.TraceConfig) (trace.Sink, error) {
	switch cfg.Sink {
	case "file":
		return trace.NewFileSink(cfg.FilePath)
	case "clickhouse":
		return trace.NewClickHouseSink(trace.ClickHouseConfig{
			Addr:      cfg.ClickHouse.Addr,
			Database:  cfg.ClickHouse.Database,
			Username:  cfg.ClickHouse.Username,
			Password:  cfg.ClickHouse.Password,
			Table:     cfg.ClickHouse.Table,
			BatchSize: cfg.ClickHouse.BatchSize,
		})
	default:
		return trace.NopSink{}, nil
	}
}

func newTransport(cfg *ran.Config, logger *zap.Logger) (x2.Transport, *registryclient.Client, *x2.HTTPTransport, error) {
	if cfg.X2.Transport != "http" {
		return x2.NewInMemoryTransport(cfg.X2.QueueDepth), nil, nil, nil
	}
	if cfg.X2.RegistryURL == "" {
		return nil, nil, nil, fmt.Errorf("x2.transport=http requires x2.registry_url")
	}
	registry := registryclient.NewClient(cfg.X2.RegistryURL, logger)
	httpT := x2.NewHTTPTransport(registry, logger)
	return httpT, registry, httpT, nil
}

// HTTPTransport returns the HTTP transport when cfg.X2.Transport is
// "http", so the caller's chi router can mount its receiving route.
func (s *Service) HTTPTransport() (*x2.HTTPTransport, bool) {
	return s.httpTransport, s.httpTransport != nil
}

// Start begins the coordinator control loop (a no-op on non-coordinator
// cells) and, when running over HTTP, registers with the cell registry
// and starts the heartbeat and discovery-refresh loops.
func (s *Service) Start(ctx context.Context) error {
	s.Controller.StartControlLoop(ctx)

	if s.registry == nil {
		return nil
	}

	profile := registryclient.CellProfile{
		CellID:      s.Config.Cell.CellID,
		Role:        string(s.Role),
		X2Address:   s.Config.X2.AdvertiseURL,
		SBIAddress:  s.Config.X2.AdvertiseURL,
		NeighborIDs: s.Config.Cell.NeighborCellIDs,
	}
	if err := s.registry.Register(ctx, profile); err != nil {
		return fmt.Errorf("cellapp: register with cell registry: %w", err)
	}

	refresh := time.Duration(s.Config.X2.RefreshIntervalMs) * time.Millisecond
	if refresh <= 0 {
		refresh = 5 * time.Second
	}
	s.registry.RunRefreshLoop(ctx, refresh)
	go s.heartbeatLoop(ctx, refresh)
	return nil
}

func (s *Service) heartbeatLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := s.registry.Heartbeat(ctx, s.Config.Cell.CellID); err != nil {
				s.Logger.Warn("registry heartbeat failed", zap.Error(err))
				metrics.RecordRegistryHeartbeatFailure()
			}
		case <-ctx.Done():
			return
		}
	}
}

// Stop cancels the control loop and, when registered, deregisters from
// the cell registry.
func (s *Service) Stop() {
	s.Controller.StopControlLoop()
	if s.registry == nil {
		return
	}
	s.registry.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.registry.Deregister(ctx, s.Config.Cell.CellID); err != nil {
		s.Logger.Warn("failed to deregister from cell registry", zap.Error(err))
	}
}

// ReportSinr injects an externally-measured SINR reading into the
// system the same way a real PHY layer's measurement pipeline would:
// over an X2 UeSinrUpdate addressed to the coordinator cell. On the
// coordinator itself targetCellID is its own cell ID, so the message
// loops through the bus's own handler exactly like a peer-sent report.
func (s *Service) ReportSinr(ctx context.Context, targetCellID uint16, imsi uint64, linearSinr float64) error {
	return s.Bus.Send(ctx, targetCellID, x2.KindUeSinrUpdate, x2.UeSinrUpdatePayload{
		Sinr: map[uint64]float64{imsi: linearSinr},
	})
}
