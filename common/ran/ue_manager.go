package ran

import (
	"context"
	"fmt"
	"time"

	"github.com/5g-ran/mc-rrc/common/metrics"
	"github.com/5g-ran/mc-rrc/common/saps"
	"github.com/5g-ran/mc-rrc/common/trace"
	"github.com/5g-ran/mc-rrc/common/x2"
	"go.uber.org/zap"
)

const maxDrbTableSize = 31

// RrcBearerSetup carries the parameters passed to
// UeManager.SetupDataRadioBearer (spec §4.1).
type RrcBearerSetup struct {
	EpsBearerID     uint8
	TransportTeid   uint32
	TransportAddr   string
	PacketErrorRate float64
	IsMc            bool
	IsMc2           bool
}

// UeManager is the per-(cell, RNTI) control-plane state machine (spec
// §3, §4.1). It owns the UE's bearers and drives handover, dual
// connectivity setup, link switch, and lossless buffer forwarding.
//
// Cyclic-reference note (spec §9): a UeManager never holds a pointer
// back to its owning RrcController. It holds only the controller's
// cell ID and re-resolves through the controller's registry, the
// same arena+index pattern the teacher uses for its context maps.
type UeManager struct {
	OwnerCellID CellID
	Imsi        IMSI
	Rnti        RNTI

	State State
	timer EventID

	IsMc  bool
	IsMc2 bool

	SourceCellID CellID
	sourceX2ID   uint32
	sourceRnti   RNTI

	// handoverTargetCellID is the target cell this UE-Manager handed
	// off to, recorded from the HandoverRequestAck (spec §4.1). It is
	// only ever meaningful while State is HANDOVER_LEAVING.
	handoverTargetCellID CellID

	// PrimaryCellID/SecondaryCellID are the anchor's own bookkeeping of
	// which mmWave cell currently serves each leg (spec §3 "peer-mmWave
	// identifiers"); the RRC-Controller keeps these in step with the
	// SINR matrix's lastMmWaveCell/lastMmWaveCell2.
	PrimaryCellID   CellID
	SecondaryCellID CellID

	// CoordinatorCellID is the reverse pointer a secondary-leg
	// UE-Manager keeps toward its LTE coordinator cell, used to reach
	// the coordinator over X2 without a handover in flight.
	CoordinatorCellID CellID

	Drbs       map[uint8]*BearerInfo
	RemoteRlcs map[uint8]*RemoteRlcInfo

	// mcSetupPending counts outstanding RlcSetupCompleted replies per
	// leg during the §4.1.2 secondary-attach handshake.
	mcSetupPending map[Leg]int

	queuedHandoverTarget *CellID
	forwardingBuffer     map[uint8][][]byte
	pendingReconfig      bool

	drbPool *IDPool

	sched  *Scheduler
	bus    *x2.Bus
	config *Config
	logger *zap.Logger
	mac    saps.MacControlSap
	s1ap   saps.S1APSap
	sink   trace.Sink

	rlcFactory saps.RlcFactory
}

// NewUeManager creates a UE-Manager for rnti at ownerCell, starting in
// state (INITIAL_RANDOM_ACCESS on RACH, HANDOVER_JOINING on incoming
// X2 handover request, per spec §3).
func NewUeManager(ownerCell CellID, imsi IMSI, rnti RNTI, state State, deps UeManagerDeps) *UeManager {
	u := &UeManager{
		OwnerCellID:      ownerCell,
		Imsi:             imsi,
		Rnti:             rnti,
		State:            state,
		Drbs:             make(map[uint8]*BearerInfo),
		RemoteRlcs:       make(map[uint8]*RemoteRlcInfo),
		forwardingBuffer: make(map[uint8][][]byte),
		drbPool:          NewIDPool(1, maxDrbTableSize),
		sched:            deps.Scheduler,
		bus:              deps.Bus,
		config:           deps.Config,
		logger:           deps.Logger,
		mac:              deps.Mac,
		s1ap:             deps.S1AP,
		sink:             deps.Sink,
		rlcFactory:       saps.RlcFactory{Policy: deps.RlcPolicy},
	}
	u.armTimerForState()
	return u
}

// UeManagerDeps bundles the collaborators a UeManager is wired to.
type UeManagerDeps struct {
	Scheduler *Scheduler
	Bus       *x2.Bus
	Config    *Config
	Logger    *zap.Logger
	Mac       saps.MacControlSap
	S1AP      saps.S1APSap
	Sink      trace.Sink
	RlcPolicy saps.MappingPolicy
}

func (u *UeManager) timerDuration() time.Duration {
	cfg := u.config.Rrc
	switch u.State {
	case StateInitialRandomAccess:
		return time.Duration(cfg.ConnectionRequestTimeoutMs) * time.Millisecond
	case StateConnectionSetup:
		return time.Duration(cfg.ConnectionSetupTimeoutMs) * time.Millisecond
	case StateConnectionRejected:
		return time.Duration(cfg.ConnectionRejectedTimeoutMs) * time.Millisecond
	case StateHandoverJoining:
		return time.Duration(cfg.HandoverJoiningTimeoutMs) * time.Millisecond
	case StateHandoverLeaving:
		return time.Duration(cfg.HandoverLeavingTimeoutMs) * time.Millisecond
	default:
		return 0
	}
}

// armTimerForState cancels any previously armed timer and arms the one
// timer that belongs to the current state, if any (spec §4.1: "Exactly
// one timer is armed per UE-Manager").
func (u *UeManager) armTimerForState() {
	if u.sched == nil {
		return
	}
	if u.timer != 0 {
		u.sched.Cancel(u.timer)
		u.timer = 0
	}
	if !u.State.HasTimer() {
		return
	}
	state := u.State
	u.timer = u.sched.Schedule(u.timerDuration(), func() {
		u.onTimerExpired(state)
	})
}

func (u *UeManager) transitionTo(s State) {
	u.State = s
	u.armTimerForState()
}

// onTimerExpired implements the per-state timeout disposition from
// spec §7.
func (u *UeManager) onTimerExpired(state State) {
	switch state {
	case StateInitialRandomAccess, StateConnectionSetup, StateConnectionRejected:
		u.destroy("timer expired in " + state.String())
	case StateHandoverJoining:
		if u.IsMc || u.IsMc2 {
			_ = u.bus.Send(context.Background(), uint16(u.CoordinatorCellID), x2.KindNotifyCoordinatorHandoverFailed,
				x2.NotifyCoordinatorHandoverFailedPayload{
					Imsi:   uint64(u.Imsi),
					Source: uint16(u.SourceCellID),
					Target: uint16(u.OwnerCellID),
				})
		}
		grace := time.Duration(u.config.Rrc.HandoverFailureGraceMs) * time.Millisecond
		u.sched.Schedule(grace, func() { u.destroy("handover joining grace period elapsed") })
	case StateHandoverLeaving:
		u.destroy("handover leaving timer expired")
	}
}

// destroy cancels the UE-Manager's outstanding timer, removes the UE
// from the MAC and resets the DRB-table metric (spec §5 cancellation
// rule). It does not release the RNTI or remove the UE-Manager from its
// controller's registry: RrcController.ReleaseUe does that, so a
// UE-Manager destroyed by a timer expiry keeps both.
func (u *UeManager) destroy(reason string) {
	if u.timer != 0 {
		u.sched.Cancel(u.timer)
		u.timer = 0
	}
	if u.mac != nil {
		u.mac.RemoveUe(uint16(u.Rnti))
	}
	metrics.SetDrbTableUsed(u.OwnerCellID.String(), 0)
	if u.logger != nil {
		u.logger.Info("ue-manager destroyed",
			zap.String("imsi", u.Imsi.String()),
			zap.String("rnti", u.Rnti.String()),
			zap.String("reason", reason))
	}
}

// SetupDataRadioBearer creates a DRB, allocating its LC-ID/DRB-ID and
// instantiating PDCP+RLC per the configured mapping policy (spec
// §4.1). Fails with ErrDrbTableFull when the 31-entry DRB table is
// full.
func (u *UeManager) SetupDataRadioBearer(setup RrcBearerSetup) (*BearerInfo, error) {
	drbID, ok := u.drbPool.Allocate()
	if !ok {
		return nil, ErrDrbTableFull
	}
	lcID := uint8(drbID + 2) // LC 0/1 reserved for SRB0/SRB1

	rlc, err := u.rlcFactory.New(setup.PacketErrorRate)
	if err != nil {
		u.drbPool.Release(drbID)
		return nil, fmt.Errorf("ran: setup DRB: %w", err)
	}
	rlc.Configure(lcID)

	bearer := &BearerInfo{
		EpsBearerID:   setup.EpsBearerID,
		DrbID:         uint8(drbID),
		LcID:          lcID,
		TransportAddr: setup.TransportAddr,
		Teid:          setup.TransportTeid,
		Rlc:           rlc,
		Pdcp:          NewPdcpEntity(),
		RlcPolicyKind: rlc.Kind(),
		IsMc:          setup.IsMc,
		IsMc2:         setup.IsMc2,
	}
	u.Drbs[bearer.DrbID] = bearer
	metrics.SetDrbTableUsed(u.OwnerCellID.String(), len(u.Drbs))

	if u.mac != nil {
		u.mac.AddLogicalChannel(saps.LcInfo{Rnti: uint16(u.Rnti), LcID: lcID})
	}

	u.pendingReconfig = true
	return bearer, nil
}

// PrepareHandover builds the handover-preparation blob and emits it on
// the X2-Bus (spec §4.1). Calls made in CONNECTION_RECONFIGURATION or
// HANDOVER_JOINING are queued into a single slot (a later call
// overwrites the earlier target) and replayed when
// RecvRrcConnectionReconfigurationCompleted returns the UE-Manager to
// CONNECTED_NORMALLY; calls made in any other state are sent at once.
func (u *UeManager) PrepareHandover(ctx context.Context, targetCellID CellID) error {
	if u.State == StateConnectionReconfiguration || u.State == StateHandoverJoining {
		u.queuedHandoverTarget = &targetCellID
		return nil
	}

	erabs := make([]x2.ErabToSwitch, 0, len(u.Drbs))
	for _, b := range u.Drbs {
		erabs = append(erabs, x2.ErabToSwitch{
			EpsBearerID:   b.EpsBearerID,
			DrbID:         b.DrbID,
			LcID:          b.LcID,
			TransportAddr: b.TransportAddr,
			Teid:          b.Teid,
		})
	}

	if err := u.bus.Send(ctx, uint16(targetCellID), x2.KindHandoverRequest, x2.HandoverRequestPayload{
		Imsi:         uint64(u.Imsi),
		SourceRnti:   uint16(u.Rnti),
		SourceCellID: uint16(u.OwnerCellID),
		Erabs:        erabs,
	}); err != nil {
		return fmt.Errorf("ran: prepare handover: %w", err)
	}

	u.transitionTo(StateHandoverPreparation)
	return nil
}

// RecvHandoverRequestAck is processed on the source side: it arms
// handoverLeavingTimeout, emits an SN-Status-Transfer for AM bearers,
// and forwards RLC/PDCP buffers (spec §4.1, §4.1.1).
func (u *UeManager) RecvHandoverRequestAck(ctx context.Context, ack x2.HandoverRequestAckPayload) error {
	u.handoverTargetCellID = CellID(ack.TargetCellID)
	u.transitionTo(StateHandoverLeaving)

	var snStatus []SnStatusPerBearer
	for _, b := range u.Drbs {
		if _, ok := b.Rlc.(saps.AmBuffers); ok {
			snStatus = append(snStatus, SnStatusPerBearer{
				DrbID: b.DrbID,
				TxSN:  b.Pdcp.TxSN(),
				RxSN:  0,
			})
		}
	}
	if len(snStatus) > 0 {
		if err := u.bus.Send(ctx, ack.TargetCellID, x2.KindSnStatusTransfer, x2.SnStatusTransferPayload{
			Imsi:    uint64(u.Imsi),
			Bearers: toX2SnStatus(snStatus),
		}); err != nil {
			return fmt.Errorf("ran: sn status transfer: %w", err)
		}
	}

	return u.forwardAllBearers(ctx, CellID(ack.TargetCellID), ModeDrain)
}

func toX2SnStatus(in []SnStatusPerBearer) []x2.SnStatusPerBearer {
	out := make([]x2.SnStatusPerBearer, len(in))
	for i, s := range in {
		out[i] = x2.SnStatusPerBearer{DrbID: s.DrbID, TxSN: s.TxSN, RxSN: s.RxSN}
	}
	return out
}

// SnStatusPerBearer mirrors x2.SnStatusPerBearer for the ran package's
// own bookkeeping before it is placed on the wire.
type SnStatusPerBearer = x2.SnStatusPerBearer

// forwardAllBearers runs the §4.1.1 lossless-forwarding procedure for
// every bearer this UE-Manager owns, sending the result to targetCell
// as a UeData (PDCP peer elsewhere) or ForwardRlcPdu (RLC-only peer)
// message depending on whether this cell hosts the bearer's PDCP.
func (u *UeManager) forwardAllBearers(ctx context.Context, targetCell CellID, mode ForwardMode) error {
	for _, b := range u.Drbs {
		if b.Rlc == nil {
			continue
		}
		raw := BuildForwardingBuffer(b.Rlc, mode)
		pdus := DrainForwardingBuffer(raw)
		if len(pdus) == 0 {
			continue
		}

		kind := x2.KindUeData
		if b.Pdcp == nil {
			kind = x2.KindForwardRlcPdu
		}
		var payload any
		if kind == x2.KindUeData {
			payload = x2.UeDataPayload{Imsi: uint64(u.Imsi), DrbID: b.DrbID, Sdus: pdus}
		} else {
			payload = x2.ForwardRlcPduPayload{Imsi: uint64(u.Imsi), DrbID: b.DrbID, Pdus: pdus}
		}
		if err := u.bus.Send(ctx, uint16(targetCell), kind, payload); err != nil {
			return fmt.Errorf("ran: forward bearer %d: %w", b.DrbID, err)
		}
		if u.sink != nil {
			u.sink.Record(trace.Event{Kind: "bearer_forward", CellID: uint16(u.OwnerCellID), Imsi: uint64(u.Imsi), DrbID: b.DrbID, TargetCell: uint16(targetCell)})
		}
	}
	return nil
}

// RecvRrcConnectionReconfigurationCompleted is processed on the target
// side (spec §4.1): primary handovers issue an S1 path switch;
// secondary-cell (MC) handovers skip S1 and notify the coordinator
// directly over X2 (seed scenario S6).
func (u *UeManager) RecvRrcConnectionReconfigurationCompleted(ctx context.Context) error {
	if u.timer != 0 {
		u.sched.Cancel(u.timer)
		u.timer = 0
	}

	if u.IsMc || u.IsMc2 {
		if err := u.bus.Send(ctx, uint16(u.CoordinatorCellID), x2.KindSecondaryCellHandoverCompleted, x2.SecondaryCellHandoverCompletedPayload{
			Imsi:              uint64(u.Imsi),
			MmWaveRnti:        uint16(u.Rnti),
			OldEnbUeX2apID:    uint16(u.sourceX2ID),
			CoordinatorCellID: uint16(u.CoordinatorCellID),
			IsMc:              true,
		}); err != nil {
			return fmt.Errorf("ran: secondary cell handover completed: %w", err)
		}
	} else if u.s1ap != nil {
		switches := make([]saps.BearerSwitch, 0, len(u.Drbs))
		for _, b := range u.Drbs {
			switches = append(switches, saps.BearerSwitch{
				EpsBearerID:   b.EpsBearerID,
				TransportAddr: b.TransportAddr,
				Teid:          b.Teid,
			})
		}
		if len(switches) > 0 {
			if err := u.s1ap.PathSwitchRequest(ctx, saps.PathSwitchRequest{
				Rnti:            uint16(u.Rnti),
				CellID:          uint16(u.OwnerCellID),
				Imsi:            uint64(u.Imsi),
				BearersToSwitch: switches,
			}); err != nil {
				return fmt.Errorf("ran: path switch request: %w", err)
			}
		}
	}

	if !u.SourceCellID.IsUnknown() && u.SourceCellID != u.OwnerCellID {
		_ = u.bus.Send(ctx, uint16(u.SourceCellID), x2.KindUeContextRelease, x2.UeContextReleasePayload{
			Imsi:       uint64(u.Imsi),
			SourceRnti: uint16(u.sourceRnti),
		})
	}

	u.transitionTo(StateConnectedNormally)
	if u.queuedHandoverTarget != nil {
		target := *u.queuedHandoverTarget
		u.queuedHandoverTarget = nil
		return u.PrepareHandover(ctx, target)
	}
	return nil
}

// SendData is the data-plane ingress from the local stack (spec
// §4.1). In HANDOVER_LEAVING, packets are tunnelled directly if the
// forwarding buffer is empty, or appended to it otherwise, preserving
// order with earlier forwarded packets.
func (u *UeManager) SendData(ctx context.Context, drbID uint8, packet []byte) error {
	bearer, ok := u.Drbs[drbID]
	if !ok {
		return ErrUnknownDrb
	}

	switch u.State {
	case StateHandoverLeaving:
		buf := u.forwardingBuffer[drbID]
		if len(buf) == 0 {
			return u.bus.Send(ctx, uint16(u.queuedOrSourceTarget()), x2.KindUeData, x2.UeDataPayload{
				Imsi: uint64(u.Imsi), DrbID: drbID, Sdus: [][]byte{packet},
			})
		}
		u.forwardingBuffer[drbID] = append(buf, packet)
		return nil
	default:
		if bearer.Pdcp == nil {
			return fmt.Errorf("ran: bearer %d has no local PDCP to accept data", drbID)
		}
		return bearer.Pdcp.TransmitPdcpSdu(packet)
	}
}

// queuedOrSourceTarget resolves the in-flight handover's target cell
// for mid-HANDOVER_LEAVING direct tunnelling.
func (u *UeManager) queuedOrSourceTarget() CellID {
	if u.queuedHandoverTarget != nil {
		return *u.queuedHandoverTarget
	}
	return u.handoverTargetCellID
}

// BeginSecondaryAttach sends a RlcSetupRequest for every DRB split onto
// leg to targetCell and arms the PREPARE_MC_CONNECTION_RECONFIGURATION
// wait state (spec §4.1.2). Unlike an ordinary handover there is no TTT
// and no HandoverRequest/Ack round trip: this cell already hosts the
// bearer's PDCP, it is only asking targetCell to host the RLC end.
func (u *UeManager) BeginSecondaryAttach(ctx context.Context, leg Leg, targetCell CellID, group CellGroup) (bool, error) {
	sent := 0
	for _, b := range u.Drbs {
		if leg == LegPrimary && !b.IsMc {
			continue
		}
		if leg == LegSecondary && !b.IsMc2 {
			continue
		}
		if err := u.bus.Send(ctx, uint16(targetCell), x2.KindRlcSetupRequest, x2.RlcSetupRequestPayload{
			Imsi:          uint64(u.Imsi),
			PeerRnti:      uint16(u.Rnti),
			DrbID:         b.DrbID,
			LcID:          b.LcID,
			RlcKind:       int(b.RlcPolicyKind),
			Teid:          b.Teid,
			TransportAddr: b.TransportAddr,
			Group:         int(group),
		}); err != nil {
			return sent > 0, fmt.Errorf("ran: rlc setup request for drb %d: %w", b.DrbID, err)
		}
		sent++
	}
	if sent == 0 {
		return false, nil
	}
	if u.mcSetupPending == nil {
		u.mcSetupPending = make(map[Leg]int)
	}
	u.mcSetupPending[leg] = sent
	u.transitionTo(StatePrepareMcConnectionReconfiguration)
	return true, nil
}

// RecvRlcSetupCompleted accounts for one acknowledged RlcSetupRequest
// on leg. Once every DRB requested on every pending leg has replied, it
// moves the UE-Manager through MC_CONNECTION_RECONFIGURATION back to
// CONNECTED_NORMALLY and reports true; until then it reports false
// (spec §4.1.2).
func (u *UeManager) RecvRlcSetupCompleted(leg Leg) bool {
	if u.mcSetupPending == nil || u.mcSetupPending[leg] == 0 {
		return false
	}
	u.mcSetupPending[leg]--
	if u.mcSetupPending[leg] > 0 {
		return false
	}
	delete(u.mcSetupPending, leg)
	if len(u.mcSetupPending) == 0 {
		// MC_CONNECTION_RECONFIGURATION has no UE-facing round trip to
		// wait on in this simulated stack; every requested DRB on every
		// pending leg has already acknowledged, so settle straight back
		// to CONNECTED_NORMALLY.
		u.transitionTo(StateMcConnectionReconfiguration)
		u.transitionTo(StateConnectedNormally)
		return true
	}
	return false
}

// MeasurementReportHandler is the ANR/handover-algorithm/FFR hook
// recvMeasurementReport delegates to (spec §4.1). The RRC-Controller
// registers its own implementation per cell.
type MeasurementReportHandler func(ctx context.Context, u *UeManager, report x2.UeSinrUpdatePayload)

// RecvMeasurementReport delegates to the registered handler, if any.
func (u *UeManager) RecvMeasurementReport(ctx context.Context, report x2.UeSinrUpdatePayload, handler MeasurementReportHandler) {
	if handler != nil {
		handler(ctx, u, report)
	}
}
