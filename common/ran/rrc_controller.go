package ran

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/5g-ran/mc-rrc/common/metrics"
	"github.com/5g-ran/mc-rrc/common/saps"
	"github.com/5g-ran/mc-rrc/common/trace"
	"github.com/5g-ran/mc-rrc/common/x2"
	"go.uber.org/zap"
)

// Leg indexes the two parallel per-IMSI pending-handover tables (spec
// §3: "Two parallel tables, one per mmWave leg").
type Leg int

const (
	LegPrimary Leg = iota
	LegSecondary
	legCount
)

// pendingHandover is one entry of the pending-handover table (spec
// §3): Map IMSI -> {sourceCell, targetCell, scheduledFireTime}; the leg
// index is the table the entry sits in.
type pendingHandover struct {
	sourceCell   CellID
	targetCell   CellID
	targetSinrDB float64
	fireAt       time.Time
	fireEvent    EventID
}

// RrcController is the per-cell singleton owning the UE-Manager
// registry (spec §4.2). The LTE cell's controller additionally runs
// the coordinator control loop; mmWave controllers only own their
// local UE-Managers and forward measurement reports up to it.
type RrcController struct {
	mu sync.RWMutex

	CellID        CellID
	Group         CellGroup
	IsCoordinator bool

	ueMap      map[RNTI]*UeManager
	imsiToRnti map[IMSI]RNTI
	rntiPool   *IDPool

	// Coordinator-only state.
	sinr            *SinrMatrix
	pending         [legCount]map[IMSI]*pendingHandover
	cellGroups      map[CellID]CellGroup
	loopEvent       EventID
	mcSetupStarted  map[IMSI]time.Time

	sched  *Scheduler
	bus    *x2.Bus
	config *Config
	logger *zap.Logger
	mac    saps.MacControlSap
	s1ap   saps.S1APSap
	sink   trace.Sink

	deps UeManagerDeps
}

// NewRrcController creates a controller for cellID. isCoordinator
// marks the LTE anchor cell, which additionally owns the SINR matrix
// and runs the periodic control loop.
func NewRrcController(cellID CellID, group CellGroup, isCoordinator bool, sched *Scheduler, bus *x2.Bus, cfg *Config, logger *zap.Logger, mac saps.MacControlSap, s1ap saps.S1APSap, sink trace.Sink) *RrcController {
	c := &RrcController{
		CellID:        cellID,
		Group:         group,
		IsCoordinator: isCoordinator,
		ueMap:         make(map[RNTI]*UeManager),
		imsiToRnti:    make(map[IMSI]RNTI),
		rntiPool:      NewIDPool(1, 0xFFFE),
		cellGroups:    make(map[CellID]CellGroup),
		sched:         sched,
		bus:           bus,
		config:        cfg,
		logger:        logger,
		mac:           mac,
		s1ap:          s1ap,
		sink:          sink,
		deps: UeManagerDeps{
			Scheduler: sched, Bus: bus, Config: cfg, Logger: logger, Mac: mac, S1AP: s1ap, Sink: sink,
			RlcPolicy: rlcPolicyFromName(cfg.Cell.EpsBearerToRlcMapping),
		},
	}
	if isCoordinator {
		c.sinr = NewSinrMatrix()
		c.pending[LegPrimary] = make(map[IMSI]*pendingHandover)
		c.pending[LegSecondary] = make(map[IMSI]*pendingHandover)
		c.mcSetupStarted = make(map[IMSI]time.Time)
	}
	c.bus.OnReceive(c.handleX2Message)
	return c
}

func rlcPolicyFromName(name string) saps.MappingPolicy {
	switch name {
	case "RLC_SM_ALWAYS":
		return saps.RlcSmAlways
	case "RLC_UM_ALWAYS":
		return saps.RlcUmAlways
	case "RLC_AM_ALWAYS":
		return saps.RlcAmAlways
	case "RLC_UM_LOWLAT_ALWAYS":
		return saps.RlcUmLowlatAlways
	default:
		return saps.PerBased
	}
}

// RegisterCell records a peer cell's frequency group, used both by
// the coordinator's SINR matrix and locally for handover routing.
func (c *RrcController) RegisterCell(id CellID, group CellGroup) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cellGroups[id] = group
	if c.sinr != nil {
		c.sinr.RegisterCell(id, group)
	}
}

// CreateUeOnRach admits a new RACH attempt, allocating an RNTI and
// creating its UE-Manager in INITIAL_RANDOM_ACCESS (spec §3). Returns
// ErrAdmissionDenied if admitRrcConnectionRequest is false, or
// ErrNoRntiAvailable if the cell's RNTI pool is exhausted.
func (c *RrcController) CreateUeOnRach(imsi IMSI) (*UeManager, error) {
	if !c.config.Cell.AdmitRrcConnectionRequest {
		return nil, ErrAdmissionDenied
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	rawRnti, ok := c.rntiPool.Allocate()
	if !ok {
		return nil, ErrNoRntiAvailable
	}
	rnti := RNTI(rawRnti)

	u := NewUeManager(c.CellID, imsi, rnti, StateInitialRandomAccess, c.deps)
	c.ueMap[rnti] = u
	c.imsiToRnti[imsi] = rnti
	if c.mac != nil {
		c.mac.AddUe(uint16(rnti))
	}
	return u, nil
}

// admitIncomingHandover creates a UE-Manager in HANDOVER_JOINING for
// an incoming X2 handover request. Returns ErrAdmissionDenied if
// admitHandoverRequest is false, or ErrNoPreamble if the
// non-contention preamble pool is exhausted.
func (c *RrcController) admitIncomingHandover(imsi IMSI, sourceCell CellID, sourceRnti RNTI, isMc, isMc2 bool) (*UeManager, error) {
	if !c.config.Cell.AdmitHandoverRequest {
		return nil, ErrAdmissionDenied
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mac != nil {
		grant := c.mac.AllocateNonContentionPreamble(0)
		if !grant.Valid {
			return nil, ErrNoPreamble
		}
	}

	rawRnti, ok := c.rntiPool.Allocate()
	if !ok {
		return nil, ErrNoRntiAvailable
	}
	rnti := RNTI(rawRnti)

	u := NewUeManager(c.CellID, imsi, rnti, StateHandoverJoining, c.deps)
	u.SourceCellID = sourceCell
	u.sourceRnti = sourceRnti
	u.IsMc = isMc
	u.IsMc2 = isMc2
	c.ueMap[rnti] = u
	c.imsiToRnti[imsi] = rnti
	if c.mac != nil {
		c.mac.AddUe(uint16(rnti))
	}
	return u, nil
}

// admitRemoteRlcAttach creates (or reuses) the local UE-Manager a
// mmWave cell uses to host only the RLC end of a split bearer whose
// PDCP lives on coordinatorCell (spec §4.1.2). It starts directly in
// CONNECTED_NORMALLY: a pure RLC-leg attach has no RRC reconfiguration
// round trip with the UE.
func (c *RrcController) admitRemoteRlcAttach(imsi IMSI, coordinatorCell CellID) (*UeManager, error) {
	if u, ok := c.UeByImsi(imsi); ok {
		return u, nil
	}
	if !c.config.Cell.AdmitHandoverRequest {
		return nil, ErrAdmissionDenied
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	rawRnti, ok := c.rntiPool.Allocate()
	if !ok {
		return nil, ErrNoRntiAvailable
	}
	rnti := RNTI(rawRnti)

	u := NewUeManager(c.CellID, imsi, rnti, StateConnectedNormally, c.deps)
	u.CoordinatorCellID = coordinatorCell
	c.ueMap[rnti] = u
	c.imsiToRnti[imsi] = rnti
	if c.mac != nil {
		c.mac.AddUe(uint16(rnti))
	}
	return u, nil
}

// UeByImsi looks up the local UE-Manager for imsi, if this cell
// currently hosts it.
func (c *RrcController) UeByImsi(imsi IMSI) (*UeManager, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rnti, ok := c.imsiToRnti[imsi]
	if !ok {
		return nil, false
	}
	u, ok := c.ueMap[rnti]
	return u, ok
}

// ReleaseUe destroys the local UE-Manager for rnti and returns its
// resources to the pools (spec §3 lifecycle).
func (c *RrcController) ReleaseUe(rnti RNTI) {
	c.mu.Lock()
	defer c.mu.Unlock()
	u, ok := c.ueMap[rnti]
	if !ok {
		return
	}
	u.destroy("released by controller")
	delete(c.ueMap, rnti)
	delete(c.imsiToRnti, u.Imsi)
	c.rntiPool.Release(uint32(rnti))
}

// --- Coordinator control loop (spec §4.2) ---

// StartControlLoop schedules the first control-loop tick; each tick
// reschedules itself at config.Rrc.CrtPeriodUs. Only meaningful on the
// coordinator.
func (c *RrcController) StartControlLoop(ctx context.Context) {
	if !c.IsCoordinator {
		return
	}
	c.scheduleNextTick(ctx)
}

func (c *RrcController) scheduleNextTick(ctx context.Context) {
	period := time.Duration(c.config.Rrc.CrtPeriodUs) * time.Microsecond
	c.loopEvent = c.sched.Schedule(period, func() {
		c.controlLoopTick(ctx)
		c.scheduleNextTick(ctx)
	})
}

// StopControlLoop cancels the scheduled tick.
func (c *RrcController) StopControlLoop() {
	if c.loopEvent != 0 {
		c.sched.Cancel(c.loopEvent)
		c.loopEvent = 0
	}
}

// controlLoopTick runs one iteration of the periodic SINR-driven
// control loop (spec §4.2 steps 1-3).
func (c *RrcController) controlLoopTick(ctx context.Context) {
	metrics.SetSchedulerQueueDepth(c.CellID.String(), c.sched.Pending())

	c.mu.RLock()
	imsis := make([]IMSI, 0, len(c.imsiToRnti))
	for imsi := range c.imsiToRnti {
		imsis = append(imsis, imsi)
	}
	c.mu.RUnlock()

	for _, imsi := range imsis {
		c.runImsiControl(ctx, imsi)
	}
}

func (c *RrcController) runImsiControl(ctx context.Context, imsi IMSI) {
	maxSinrA, haveA := c.sinr.MaxSinrDB(imsi, CellGroupA)
	if !haveA {
		return
	}

	if c.outageTest(ctx, imsi, maxSinrA) {
		return
	}

	if c.config.Rrc.InterRatHoMode {
		c.runLeg(ctx, imsi, LegPrimary, CellGroupA)
		return
	}

	c.runLeg(ctx, imsi, LegPrimary, CellGroupA)
	c.runLeg(ctx, imsi, LegSecondary, CellGroupB)
}

// outageTest implements spec §4.2 step 2: fall back to LTE if
// maxSinr_dB < outageThreshold, or (already on LTE and maxSinr_dB <
// outageThreshold + 2).
func (c *RrcController) outageTest(ctx context.Context, imsi IMSI, maxSinrA float64) bool {
	threshold := c.config.Rrc.OutageThresholdDB
	onLte := c.sinr.ImsiUsingLte(imsi)

	outage := maxSinrA < threshold || (onLte && maxSinrA < threshold+2)
	if !outage {
		if onLte {
			c.switchConnection(ctx, imsi, true)
		}
		return false
	}
	if !onLte {
		c.switchConnection(ctx, imsi, false)
		metrics.RecordOutageFallback()
	}
	c.cancelPending(LegPrimary, imsi)
	c.cancelPending(LegSecondary, imsi)
	return true
}

func legLabel(leg Leg) string {
	if leg == LegPrimary {
		return "primary"
	}
	return "secondary"
}

// switchConnection implements the connection switch of spec §4.1.3: it
// toggles the PDCP active path on every MC-capable DRB that has a local
// PDCP, copies each bearer's RLC buffer to the primary mmWave cell
// (forwardAllBearers in ModeCopy) and records imsiUsingLte. It sends no
// RRC message to the UE.
func (c *RrcController) switchConnection(ctx context.Context, imsi IMSI, useMmWave bool) {
	u, ok := c.UeByImsi(imsi)
	if !ok {
		return
	}
	var switched []uint8
	for _, b := range u.Drbs {
		if !b.IsMc && !b.IsMc2 {
			continue
		}
		if b.Pdcp == nil {
			continue
		}
		b.Pdcp.SwitchConnection(useMmWave)
		switched = append(switched, b.DrbID)
	}
	if len(switched) == 0 {
		return
	}
	_ = u.forwardAllBearers(ctx, u.PrimaryCellID, ModeCopy)
	c.sinr.SetImsiUsingLte(imsi, !useMmWave)
	if c.sink != nil {
		c.sink.Record(trace.Event{Kind: "connection_switch", CellID: uint16(c.CellID), Imsi: uint64(imsi)})
	}
}

// runLeg implements spec §4.2 step 3 for one mmWave leg.
func (c *RrcController) runLeg(ctx context.Context, imsi IMSI, leg Leg, group CellGroup) {
	maxSinrDB, ok := c.maxSinrForLeg(imsi, leg, group)
	if !ok {
		return
	}
	maxCell := c.bestCellForLeg(imsi, leg)
	if maxCell.IsUnknown() {
		// spec §9: a leg with no discovered mmWave candidate yet is
		// retried on a short timer rather than waiting for the next
		// full control-loop tick, instead of silently stalling forever.
		c.scheduleSecondBestRetry(ctx, imsi, leg, group)
		return
	}

	lastCell := c.lastCellForLeg(imsi, leg)
	currentSinrDB, haveCurrent := c.sinr.CurrentSinrDB(imsi, lastCell)
	if !haveCurrent {
		currentSinrDB = math.Inf(-1)
	}

	c.mu.Lock()
	entry := c.pending[leg][imsi]
	c.mu.Unlock()

	delta := math.Abs(maxSinrDB - currentSinrDB)

	switch {
	case entry != nil && entry.targetCell == maxCell:
		if currentSinrDB < c.config.Rrc.OutageThresholdDB {
			c.fireHandoverNow(ctx, imsi, leg)
			return
		}
		ttt := c.computeTtt(delta)
		if ttt < 0 {
			return
		}
		c.reschedulePendingIfEarlier(ctx, imsi, leg, ttt)

	case entry != nil && entry.targetCell != maxCell:
		if maxSinrDB-entry.targetSinrDB > c.config.Rrc.SinrThresholdDifference {
			c.cancelPending(leg, imsi)
			c.scheduleHandover(ctx, imsi, leg, lastCell, maxCell, maxSinrDB)
		}

	case entry == nil && maxCell != lastCell && lastCell.IsUnknown():
		c.initiateSecondaryAttach(ctx, imsi, leg, maxCell, group)

	case entry == nil && maxCell != lastCell:
		c.scheduleHandover(ctx, imsi, leg, lastCell, maxCell, maxSinrDB)
	}
}

// scheduleSecondBestRetry re-runs runLeg for (imsi, leg) after
// secondBestRetryIntervalMs, used while no mmWave candidate has been
// discovered for this leg yet.
func (c *RrcController) scheduleSecondBestRetry(ctx context.Context, imsi IMSI, leg Leg, group CellGroup) {
	interval := time.Duration(c.config.Rrc.SecondBestRetryIntervalMs) * time.Millisecond
	if interval <= 0 {
		return
	}
	c.sched.Schedule(interval, func() {
		c.runLeg(ctx, imsi, leg, group)
	})
}

// initiateSecondaryAttach runs the §4.1.2 dual-connectivity secondary
// attach for leg's first-ever mmWave cell: unlike scheduleHandover this
// bypasses TTT and the McHandoverRequest/Ack exchange entirely, since
// the anchor already hosts the UE-Manager and its bearers' PDCP.
func (c *RrcController) initiateSecondaryAttach(ctx context.Context, imsi IMSI, leg Leg, targetCell CellID, group CellGroup) {
	u, ok := c.UeByImsi(imsi)
	if !ok {
		return
	}
	sent, err := u.BeginSecondaryAttach(ctx, leg, targetCell, group)
	if err != nil && c.logger != nil {
		c.logger.Warn("secondary attach request failed", zap.String("imsi", imsi.String()), zap.Error(err))
	}
	if !sent {
		return
	}
	c.setLastCellForLeg(imsi, leg, targetCell)
	if c.sink != nil {
		c.sink.Record(trace.Event{Kind: "secondary_attach_start", CellID: uint16(c.CellID), Imsi: uint64(imsi), TargetCell: uint16(targetCell)})
	}
}

func (c *RrcController) maxSinrForLeg(imsi IMSI, leg Leg, group CellGroup) (float64, bool) {
	return c.sinr.MaxSinrDB(imsi, group)
}

func (c *RrcController) bestCellForLeg(imsi IMSI, leg Leg) CellID {
	if leg == LegPrimary {
		cell, _ := c.sinr.BestMmWaveCell(imsi)
		return cell
	}
	cell, _ := c.sinr.SecondBestMmWaveCell(imsi)
	return cell
}

func (c *RrcController) lastCellForLeg(imsi IMSI, leg Leg) CellID {
	if leg == LegPrimary {
		return c.sinr.LastMmWaveCell(imsi)
	}
	return c.sinr.LastMmWaveCell2(imsi)
}

func (c *RrcController) setLastCellForLeg(imsi IMSI, leg Leg, cell CellID) {
	if leg == LegPrimary {
		c.sinr.SetLastMmWaveCell(imsi, cell)
	} else {
		c.sinr.SetLastMmWaveCell2(imsi, cell)
	}
	if u, ok := c.UeByImsi(imsi); ok {
		if leg == LegPrimary {
			u.PrimaryCellID = cell
		} else {
			u.SecondaryCellID = cell
		}
	}
}

// computeTtt is ComputeTtt(Δ) from spec §4.2 step 4.
func (c *RrcController) computeTtt(delta float64) time.Duration {
	return ComputeTtt(SecondaryCellHandoverMode(c.config.Rrc.SecondaryCellHandoverMode), delta, c.config.Rrc)
}

// ComputeTtt is the standalone, directly testable form of spec §4.2
// step 4's ComputeTtt(Δ). A negative return means "do not trigger" —
// only reachable under THRESHOLD mode when Δ does not exceed
// sinrThresholdDifference.
func ComputeTtt(mode SecondaryCellHandoverMode, delta float64, cfg RrcConfig) time.Duration {
	switch mode {
	case HandoverModeDynamicTtt:
		var ms float64
		switch {
		case delta <= cfg.MinDiffTttValueDB:
			ms = cfg.MaxDynTttValueMs
		case delta >= cfg.MaxDiffTttValueDB:
			ms = cfg.MinDynTttValueMs
		default:
			frac := (delta - cfg.MinDiffTttValueDB) / (cfg.MaxDiffTttValueDB - cfg.MinDiffTttValueDB)
			ms = cfg.MaxDynTttValueMs - (cfg.MaxDynTttValueMs-cfg.MinDynTttValueMs)*frac
		}
		if ms < 0 {
			ms = 0
		}
		return time.Duration(int64(ms)) * time.Millisecond
	case HandoverModeThreshold:
		if delta > cfg.SinrThresholdDifference {
			return 0
		}
		return -1
	default: // HandoverModeFixedTtt and unset
		return time.Duration(cfg.FixedTttValueMs) * time.Millisecond
	}
}

// scheduleHandover plans a new handover to targetCell: Δ is the gap
// between the target's SINR and the cell currently serving this leg,
// per spec §4.2 step 3's "schedule a new handover event at
// now + ComputeTtt(Δ)".
func (c *RrcController) scheduleHandover(ctx context.Context, imsi IMSI, leg Leg, sourceCell, targetCell CellID, targetSinrDB float64) {
	currentSinrDB, ok := c.sinr.CurrentSinrDB(imsi, sourceCell)
	if !ok {
		currentSinrDB = math.Inf(-1)
	}
	delta := math.Abs(targetSinrDB - currentSinrDB)
	ttt := c.computeTtt(delta)
	if ttt < 0 {
		return
	}
	c.scheduleHandoverAt(ctx, imsi, leg, sourceCell, targetCell, targetSinrDB, ttt)
}

// scheduleHandoverAt arms the pending-handover entry. Invariant I3: a
// second schedule for the same (imsi, leg) cancels the first — callers
// must call cancelPending before this when retargeting.
func (c *RrcController) scheduleHandoverAt(ctx context.Context, imsi IMSI, leg Leg, sourceCell, targetCell CellID, targetSinrDB float64, ttt time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := &pendingHandover{sourceCell: sourceCell, targetCell: targetCell, targetSinrDB: targetSinrDB, fireAt: c.now().Add(ttt)}
	entry.fireEvent = c.sched.Schedule(ttt, func() {
		c.fireHandover(ctx, imsi, leg)
	})
	c.pending[leg][imsi] = entry
}

func (c *RrcController) reschedulePendingIfEarlier(ctx context.Context, imsi IMSI, leg Leg, ttt time.Duration) {
	c.mu.Lock()
	entry := c.pending[leg][imsi]
	c.mu.Unlock()
	if entry == nil || !c.now().Add(ttt).Before(entry.fireAt) {
		return
	}
	// Cancel-then-reschedule keeps invariant I3: at most one event is
	// outstanding for (imsi, leg).
	c.cancelPending(leg, imsi)
	c.scheduleHandoverAt(ctx, imsi, leg, entry.sourceCell, entry.targetCell, entry.targetSinrDB, ttt)
}

func (c *RrcController) cancelPending(leg Leg, imsi IMSI) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry := c.pending[leg][imsi]
	if entry == nil {
		return
	}
	c.sched.Cancel(entry.fireEvent)
	delete(c.pending[leg], imsi)
	metrics.RecordHandover(legLabel(leg), "cancelled")
}

func (c *RrcController) fireHandoverNow(ctx context.Context, imsi IMSI, leg Leg) {
	c.cancelPending(leg, imsi)
	c.fireHandover(ctx, imsi, leg)
}

// fireHandover implements spec §4.2 "Handover fire": emits
// McHandoverRequest and flips mmWaveCellSetupCompleted to false.
func (c *RrcController) fireHandover(ctx context.Context, imsi IMSI, leg Leg) {
	c.mu.Lock()
	entry := c.pending[leg][imsi]
	delete(c.pending[leg], imsi)
	c.mu.Unlock()
	if entry == nil {
		return
	}
	if !c.sinr.MmWaveCellSetupCompleted(imsi) {
		return
	}
	c.sinr.SetMmWaveCellSetupCompleted(imsi, false)

	secondCell := c.sinr.LastMmWaveCell2(imsi)
	if leg == LegSecondary {
		secondCell = c.sinr.LastMmWaveCell(imsi)
	}

	_ = c.bus.Send(ctx, uint16(entry.targetCell), x2.KindMcHandoverRequest, x2.HandoverRequestPayload{
		Imsi:         uint64(imsi),
		SourceCellID: uint16(entry.sourceCell),
		IsSecondary:  true,
		SecondCellID: uint16(secondCell),
	})
	if c.sink != nil {
		c.sink.Record(trace.Event{Kind: "handover_start", CellID: uint16(c.CellID), Imsi: uint64(imsi), TargetCell: uint16(entry.targetCell)})
	}
	metrics.RecordHandover(legLabel(leg), "fired")
	c.mu.Lock()
	c.mcSetupStarted[imsi] = c.now()
	c.mu.Unlock()
	c.setLastCellForLeg(imsi, leg, entry.targetCell)
}

func (c *RrcController) now() time.Time {
	if c.sched.Now != nil {
		return c.sched.Now()
	}
	return time.Now()
}

// --- X2 message dispatch ---

func (c *RrcController) handleX2Message(ctx context.Context, msg x2.Message) {
	switch msg.Kind {
	case x2.KindHandoverRequest, x2.KindMcHandoverRequest:
		c.onHandoverRequest(ctx, msg)
	case x2.KindUeSinrUpdate:
		c.onUeSinrUpdate(ctx, msg)
	case x2.KindSecondaryCellHandoverCompleted:
		c.onSecondaryCellHandoverCompleted(ctx, msg)
	case x2.KindNotifyCoordinatorHandoverFailed:
		if c.logger != nil {
			c.logger.Warn("handover joining failed at target", zap.Uint16("source", msg.SourceCellID))
		}
	case x2.KindHandoverPreparationFailure:
		c.onHandoverPreparationFailure(ctx, msg)
	case x2.KindSnStatusTransfer:
		c.onSnStatusTransfer(ctx, msg)
	case x2.KindUeContextRelease:
		c.onUeContextRelease(ctx, msg)
	case x2.KindRlcSetupRequest:
		c.onRlcSetupRequest(ctx, msg)
	case x2.KindRlcSetupCompleted:
		c.onRlcSetupCompleted(ctx, msg)
	case x2.KindUeData:
		c.onUeData(ctx, msg)
	case x2.KindForwardRlcPdu:
		c.onForwardRlcPdu(ctx, msg)
	case x2.KindAssistantInformation:
		c.onAssistantInformation(ctx, msg)
	case x2.KindNotifyLteMmWaveHandoverCompleted:
		c.onNotifyLteMmWaveHandoverCompleted(ctx, msg)
	}
}

func (c *RrcController) onHandoverRequest(ctx context.Context, msg x2.Message) {
	payload, ok := msg.Payload.(x2.HandoverRequestPayload)
	if !ok {
		return
	}
	u, err := c.admitIncomingHandover(IMSI(payload.Imsi), CellID(payload.SourceCellID), RNTI(payload.SourceRnti), payload.IsSecondary, false)
	if err != nil {
		_ = c.bus.Send(ctx, msg.SourceCellID, x2.KindHandoverPreparationFailure, x2.HandoverPreparationFailurePayload{
			Imsi: payload.Imsi, Cause: err.Error(),
		})
		return
	}
	if payload.IsSecondary {
		u.CoordinatorCellID = CellID(msg.SourceCellID)
	}
	_ = c.bus.Send(ctx, msg.SourceCellID, x2.KindHandoverRequestAck, x2.HandoverRequestAckPayload{
		Imsi: payload.Imsi, TargetRnti: uint16(u.Rnti), TargetCellID: uint16(c.CellID), Erabs: payload.Erabs,
	})
}

func (c *RrcController) onHandoverPreparationFailure(ctx context.Context, msg x2.Message) {
	payload, ok := msg.Payload.(x2.HandoverPreparationFailurePayload)
	if !ok {
		return
	}
	u, ok := c.UeByImsi(IMSI(payload.Imsi))
	if !ok {
		return
	}
	// spec §7: at HANDOVER_PREPARATION, abort back to CONNECTED_NORMALLY;
	// at HANDOVER_LEAVING, log and continue (target never admitted).
	if u.State == StateHandoverPreparation {
		u.transitionTo(StateConnectedNormally)
		return
	}
	if c.logger != nil {
		c.logger.Info("handover preparation failure ignored in HANDOVER_LEAVING",
			zap.String("imsi", u.Imsi.String()), zap.String("cause", payload.Cause))
	}
}

func (c *RrcController) onUeSinrUpdate(ctx context.Context, msg x2.Message) {
	payload, ok := msg.Payload.(x2.UeSinrUpdatePayload)
	if !ok || c.sinr == nil {
		return
	}
	group, known := c.cellGroups[CellID(msg.SourceCellID)]
	for imsi, linear := range payload.Sinr {
		c.sinr.Upsert(IMSI(imsi), CellID(msg.SourceCellID), linear)
		if known {
			metrics.SetSinrDB(group.String(), linearToDB(linear))
		}
	}
}

func (c *RrcController) onSecondaryCellHandoverCompleted(ctx context.Context, msg x2.Message) {
	payload, ok := msg.Payload.(x2.SecondaryCellHandoverCompletedPayload)
	if !ok || c.sinr == nil {
		return
	}
	imsi := IMSI(payload.Imsi)
	c.sinr.SetMmWaveCellSetupCompleted(imsi, true)

	c.mu.Lock()
	started, have := c.mcSetupStarted[imsi]
	if have {
		delete(c.mcSetupStarted, imsi)
	}
	c.mu.Unlock()
	if have {
		metrics.RanMcSetupDuration.Observe(c.now().Sub(started).Seconds())
	}
}

// onSnStatusTransfer resumes each named bearer's PDCP transmit
// sequence number from the source's snapshot (spec §4.1.1).
func (c *RrcController) onSnStatusTransfer(ctx context.Context, msg x2.Message) {
	payload, ok := msg.Payload.(x2.SnStatusTransferPayload)
	if !ok {
		return
	}
	u, ok := c.UeByImsi(IMSI(payload.Imsi))
	if !ok {
		return
	}
	for _, s := range payload.Bearers {
		if b, ok := u.Drbs[s.DrbID]; ok && b.Pdcp != nil {
			b.Pdcp.ResumeFrom(s.TxSN)
		}
	}
}

// onUeContextRelease tears down the source-side UE-Manager once the
// target has taken over, instead of waiting out its full
// handoverLeavingTimeout (spec §4.1).
func (c *RrcController) onUeContextRelease(ctx context.Context, msg x2.Message) {
	payload, ok := msg.Payload.(x2.UeContextReleasePayload)
	if !ok {
		return
	}
	c.ReleaseUe(RNTI(payload.SourceRnti))
}

// onRlcSetupRequest admits (or reuses) a remote-RLC-only UE-Manager
// and instantiates the requested bearer's RLC end (spec §4.1.2).
func (c *RrcController) onRlcSetupRequest(ctx context.Context, msg x2.Message) {
	payload, ok := msg.Payload.(x2.RlcSetupRequestPayload)
	if !ok {
		return
	}
	imsi := IMSI(payload.Imsi)
	fail := func() {
		_ = c.bus.Send(ctx, msg.SourceCellID, x2.KindRlcSetupCompleted, x2.RlcSetupCompletedPayload{
			Imsi: payload.Imsi, DrbID: payload.DrbID, Success: false,
		})
	}

	u, err := c.admitRemoteRlcAttach(imsi, CellID(msg.SourceCellID))
	if err != nil {
		fail()
		return
	}

	rlc, err := u.rlcFactory.New(0)
	if err != nil {
		fail()
		return
	}
	rlc.Configure(payload.LcID)

	u.RemoteRlcs[payload.DrbID] = &RemoteRlcInfo{
		PeerCellID: msg.SourceCellID,
		PeerRnti:   RNTI(payload.PeerRnti),
		LocalRnti:  u.Rnti,
		DrbID:      payload.DrbID,
		LcID:       payload.LcID,
		Rlc:        rlc,
		Group:      CellGroup(payload.Group),
	}

	_ = c.bus.Send(ctx, msg.SourceCellID, x2.KindRlcSetupCompleted, x2.RlcSetupCompletedPayload{
		Imsi: payload.Imsi, DrbID: payload.DrbID, LocalRnti: uint16(u.Rnti), Success: true,
	})
}

// onRlcSetupCompleted runs on the coordinator: it wires the bearer's
// PDCP mmWave path to forward over X2 to the remote RLC, then settles
// the §4.1.2 fan-in back to CONNECTED_NORMALLY once every requested
// DRB on this leg has replied.
func (c *RrcController) onRlcSetupCompleted(ctx context.Context, msg x2.Message) {
	payload, ok := msg.Payload.(x2.RlcSetupCompletedPayload)
	if !ok {
		return
	}
	imsi := IMSI(payload.Imsi)
	u, ok := c.UeByImsi(imsi)
	if !ok {
		return
	}
	if !payload.Success {
		u.mcSetupPending = nil
		u.transitionTo(StateConnectedNormally)
		return
	}

	targetCell := CellID(msg.SourceCellID)
	leg := LegPrimary
	if c.sinr.LastMmWaveCell2(imsi) == targetCell {
		leg = LegSecondary
	}

	if b, ok := u.Drbs[payload.DrbID]; ok && b.Pdcp != nil {
		path := PathMmWaveA
		if leg == LegSecondary {
			path = PathMmWaveB
		}
		drbID := payload.DrbID
		b.Pdcp.SetSink(path, func(pdu []byte) error {
			// PathSink carries no context; this runs off the bus's own
			// receive goroutine, not a caller's request context.
			return c.bus.Send(context.Background(), uint16(targetCell), x2.KindForwardRlcPdu, x2.ForwardRlcPduPayload{
				Imsi: uint64(imsi), DrbID: drbID, Pdus: [][]byte{pdu},
			})
		})
	}

	if u.RecvRlcSetupCompleted(leg) {
		c.sinr.SetMmWaveCellSetupCompleted(imsi, true)
		if c.sink != nil {
			c.sink.Record(trace.Event{Kind: "secondary_attach_complete", CellID: uint16(c.CellID), Imsi: uint64(imsi), TargetCell: uint16(targetCell)})
		}
	}
}

// onUeData re-injects a tunnelled PDCP SDU list into the bearer's
// local RLC, used mid/post-handover direct tunnelling (spec §4.1).
func (c *RrcController) onUeData(ctx context.Context, msg x2.Message) {
	payload, ok := msg.Payload.(x2.UeDataPayload)
	if !ok {
		return
	}
	u, ok := c.UeByImsi(IMSI(payload.Imsi))
	if !ok {
		return
	}
	b, ok := u.Drbs[payload.DrbID]
	if !ok || b.Rlc == nil {
		return
	}
	for _, sdu := range payload.Sdus {
		b.Rlc.PushDown(sdu)
	}
}

// onForwardRlcPdu re-injects an already-PDCP-tagged PDU into a
// remote-RLC-only bearer's RLC entity (spec §4.1.1, §4.4).
func (c *RrcController) onForwardRlcPdu(ctx context.Context, msg x2.Message) {
	payload, ok := msg.Payload.(x2.ForwardRlcPduPayload)
	if !ok {
		return
	}
	u, ok := c.UeByImsi(IMSI(payload.Imsi))
	if !ok {
		return
	}
	remote, ok := u.RemoteRlcs[payload.DrbID]
	if !ok || remote.Rlc == nil {
		return
	}
	for _, pdu := range payload.Pdus {
		remote.Rlc.PushDown(pdu)
	}
}

// onAssistantInformation records a split-bearer buffer-occupancy hint
// (spec §4.3). The split-bearer scheduler itself is out of scope; this
// keeps the hint observable via the trace sink.
func (c *RrcController) onAssistantInformation(ctx context.Context, msg x2.Message) {
	payload, ok := msg.Payload.(x2.AssistantInformationPayload)
	if !ok {
		return
	}
	if c.sink != nil {
		c.sink.Record(trace.Event{Kind: "assistant_information", CellID: uint16(c.CellID), DrbID: payload.DrbID, QueueBytes: payload.BufferOccupancy})
	}
}

// onNotifyLteMmWaveHandoverCompleted clears imsiUsingLte once a mmWave
// cell acknowledges an inter-RAT handover from LTE to mmWave (spec §4.2
// InterRatHoMode).
func (c *RrcController) onNotifyLteMmWaveHandoverCompleted(ctx context.Context, msg x2.Message) {
	payload, ok := msg.Payload.(x2.NotifyLteMmWaveHandoverCompletedPayload)
	if !ok || c.sinr == nil {
		return
	}
	c.sinr.SetImsiUsingLte(IMSI(payload.Imsi), false)
}

// PendingHandoverCount reports how many IMSIs have an outstanding
// scheduled handover on leg, for test assertions.
func (c *RrcController) PendingHandoverCount(leg Leg) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.pending[leg])
}
