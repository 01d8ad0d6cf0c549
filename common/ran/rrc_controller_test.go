package ran

import (
	"context"
	"testing"
	"time"

	"github.com/5g-ran/mc-rrc/common/saps"
	"github.com/5g-ran/mc-rrc/common/trace"
	"github.com/5g-ran/mc-rrc/common/x2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestController(t *testing.T, cellID CellID, isCoordinator bool, cfg *Config) *RrcController {
	t.Helper()

	transport := x2.NewInMemoryTransport(16)
	t.Cleanup(transport.Close)

	bus := x2.NewBus(uint16(cellID), transport, zap.NewNop())
	sched := NewScheduler()
	t.Cleanup(sched.Stop)

	c := NewRrcController(cellID, CellGroupLTE, isCoordinator, sched, bus, cfg, zap.NewNop(),
		saps.NewSimulatedMac(16), saps.NewSimulatedS1AP(), trace.NopSink{})
	return c
}

func testConfig() *Config {
	return &Config{
		Cell: CellConfig{
			AdmitRrcConnectionRequest: true,
			AdmitHandoverRequest:      true,
		},
		Rrc: RrcConfig{
			OutageThresholdDB:         -5,
			SinrThresholdDifference:   3,
			SecondaryCellHandoverMode: string(HandoverModeFixedTtt),
			FixedTttValueMs:           1,
			CrtPeriodUs:               1000,
		},
	}
}

func TestRrcController_CreateUeOnRachAllocatesDistinctRntis(t *testing.T) {
	c := newTestController(t, 1, false, testConfig())

	u1, err := c.CreateUeOnRach(100)
	require.NoError(t, err)
	u2, err := c.CreateUeOnRach(101)
	require.NoError(t, err)

	assert.NotEqual(t, u1.Rnti, u2.Rnti)
	assert.Equal(t, StateInitialRandomAccess, u1.State)
}

func TestRrcController_CreateUeOnRachDeniedWhenNotAdmitting(t *testing.T) {
	cfg := testConfig()
	cfg.Cell.AdmitRrcConnectionRequest = false
	c := newTestController(t, 1, false, cfg)

	_, err := c.CreateUeOnRach(100)
	assert.ErrorIs(t, err, ErrAdmissionDenied)
}

func TestRrcController_CreateUeOnRachFailsWhenRntiPoolExhausted(t *testing.T) {
	c := newTestController(t, 1, false, testConfig())
	c.rntiPool = NewIDPool(1, 1)

	_, err := c.CreateUeOnRach(100)
	require.NoError(t, err)

	_, err = c.CreateUeOnRach(101)
	assert.ErrorIs(t, err, ErrNoRntiAvailable)
}

func TestRrcController_UeByImsiAndReleaseUeRoundTrip(t *testing.T) {
	c := newTestController(t, 1, false, testConfig())

	u, err := c.CreateUeOnRach(100)
	require.NoError(t, err)

	found, ok := c.UeByImsi(100)
	require.True(t, ok)
	assert.Equal(t, u, found)

	c.ReleaseUe(u.Rnti)
	_, ok = c.UeByImsi(100)
	assert.False(t, ok, "a released UE-Manager must no longer be reachable by IMSI")
}

func TestRrcController_ScheduleHandoverArmsAndFiresAfterTtt(t *testing.T) {
	cfg := testConfig()
	c := newTestController(t, 1, true, cfg)
	c.RegisterCell(10, CellGroupA)
	c.RegisterCell(11, CellGroupA)

	c.sinr.Upsert(7, 10, 1.0)  // 0 dB, current serving cell
	c.sinr.Upsert(7, 11, 100.0) // 20 dB, new best cell

	ctx := context.Background()
	c.scheduleHandover(ctx, 7, LegPrimary, 10, 11, 20.0)
	assert.Equal(t, 1, c.PendingHandoverCount(LegPrimary))

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, c.PendingHandoverCount(LegPrimary), "the pending entry clears once its timer fires")
}

func TestRrcController_CancelPendingRemovesEntryWithoutFiring(t *testing.T) {
	cfg := testConfig()
	cfg.Rrc.FixedTttValueMs = 500
	c := newTestController(t, 1, true, cfg)
	c.RegisterCell(10, CellGroupA)
	c.RegisterCell(11, CellGroupA)
	c.sinr.Upsert(7, 10, 1.0)
	c.sinr.Upsert(7, 11, 100.0)

	ctx := context.Background()
	c.scheduleHandover(ctx, 7, LegPrimary, 10, 11, 20.0)
	require.Equal(t, 1, c.PendingHandoverCount(LegPrimary))

	c.cancelPending(LegPrimary, 7)
	assert.Equal(t, 0, c.PendingHandoverCount(LegPrimary))
}

func TestRrcController_OutageTestFallsBackBelowThreshold(t *testing.T) {
	cfg := testConfig()
	c := newTestController(t, 1, true, cfg)
	c.RegisterCell(10, CellGroupA)
	c.sinr.Upsert(7, 10, 0.1) // -10 dB, below the -5 dB outage threshold

	outage := c.outageTest(context.Background(), 7, -10)
	assert.True(t, outage, "maxSinr below outageThreshold must report an outage")
}

func TestRrcController_OutageTestPassesAboveThreshold(t *testing.T) {
	cfg := testConfig()
	c := newTestController(t, 1, true, cfg)
	c.RegisterCell(10, CellGroupA)

	outage := c.outageTest(context.Background(), 7, 10)
	assert.False(t, outage)
}

func TestRrcController_ReleaseUeDestroysTheUnderlyingManager(t *testing.T) {
	c := newTestController(t, 1, false, testConfig())

	u, err := c.CreateUeOnRach(100)
	require.NoError(t, err)
	require.NotZero(t, u.timer, "INITIAL_RANDOM_ACCESS always arms its timer")

	c.ReleaseUe(u.Rnti)
	assert.Equal(t, EventID(0), u.timer, "ReleaseUe must destroy the manager, not just forget it")
}

func TestRrcController_OnHandoverRequestSetsCoordinatorCellIDFromTheEnvelopeNotThePayload(t *testing.T) {
	transport := x2.NewInMemoryTransport(16)
	defer transport.Close()

	coordinator := x2.NewBus(1, transport, zap.NewNop())
	target := x2.NewBus(2, transport, zap.NewNop())

	sched := NewScheduler()
	defer sched.Stop()

	cfg := testConfig()
	c := NewRrcController(2, CellGroupA, false, sched, target, cfg, zap.NewNop(),
		saps.NewSimulatedMac(16), saps.NewSimulatedS1AP(), trace.NopSink{})
	coordinator.OnReceive(func(context.Context, x2.Message) {})

	require.NoError(t, coordinator.Send(context.Background(), 2, x2.KindMcHandoverRequest, x2.HandoverRequestPayload{
		Imsi: 7, SourceCellID: 1, IsSecondary: true, SecondCellID: 99,
	}))

	var u *UeManager
	require.Eventually(t, func() bool {
		var ok bool
		u, ok = c.UeByImsi(7)
		return ok
	}, time.Second, time.Millisecond)
	assert.Equal(t, CellID(1), u.CoordinatorCellID, "must come from the envelope's source cell, not payload.SecondCellID")
}

func TestRrcController_OnSnStatusTransferResumesPdcpSequence(t *testing.T) {
	c := newTestController(t, 1, false, testConfig())
	u, err := c.CreateUeOnRach(7)
	require.NoError(t, err)
	u.transitionTo(StateConnectedNormally)

	bearer, err := u.SetupDataRadioBearer(RrcBearerSetup{EpsBearerID: 5})
	require.NoError(t, err)

	c.onSnStatusTransfer(context.Background(), x2.Message{
		Kind: x2.KindSnStatusTransfer,
		Payload: x2.SnStatusTransferPayload{
			Imsi:    7,
			Bearers: []x2.SnStatusPerBearer{{DrbID: bearer.DrbID, TxSN: 42}},
		},
	})

	assert.Equal(t, uint16(42), bearer.Pdcp.TxSN())
}

func TestRrcController_OnUeContextReleaseReleasesTheSourceUe(t *testing.T) {
	c := newTestController(t, 1, false, testConfig())
	u, err := c.CreateUeOnRach(7)
	require.NoError(t, err)

	c.onUeContextRelease(context.Background(), x2.Message{
		Kind:    x2.KindUeContextRelease,
		Payload: x2.UeContextReleasePayload{Imsi: 7, SourceRnti: uint16(u.Rnti)},
	})

	_, ok := c.UeByImsi(7)
	assert.False(t, ok)
}

func TestRrcController_RunLegRetriesAfterAShortIntervalWhenNoCandidateIsKnownYet(t *testing.T) {
	cfg := testConfig()
	cfg.Rrc.SecondBestRetryIntervalMs = 10
	c := newTestController(t, 1, true, cfg)
	c.RegisterCell(10, CellGroupA)

	c.sinr.Upsert(7, 10, 1.0)

	ctx := context.Background()
	c.runLeg(ctx, 7, LegPrimary, CellGroupA)
	assert.Equal(t, 0, c.PendingHandoverCount(LegPrimary))

	c.sinr.Upsert(7, 20, 100.0)
	c.sinr.RegisterCell(20, CellGroupA)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, CellID(20), c.sinr.LastMmWaveCell(7), "the scheduled retry must have discovered the now-known candidate")
}

func TestRrcController_SecondaryAttachCompletesTheRlcSetupHandshake(t *testing.T) {
	transport := x2.NewInMemoryTransport(16)
	defer transport.Close()

	coordinatorBus := x2.NewBus(1, transport, zap.NewNop())
	mmwaveBus := x2.NewBus(10, transport, zap.NewNop())

	sched := NewScheduler()
	defer sched.Stop()

	cfg := testConfig()
	coordinator := NewRrcController(1, CellGroupLTE, true, sched, coordinatorBus, cfg, zap.NewNop(),
		saps.NewSimulatedMac(16), saps.NewSimulatedS1AP(), trace.NopSink{})
	mmwave := NewRrcController(10, CellGroupA, false, sched, mmwaveBus, cfg, zap.NewNop(),
		saps.NewSimulatedMac(16), saps.NewSimulatedS1AP(), trace.NopSink{})
	coordinator.RegisterCell(10, CellGroupA)

	u, err := coordinator.CreateUeOnRach(7)
	require.NoError(t, err)
	u.transitionTo(StateConnectedNormally)
	bearer, err := u.SetupDataRadioBearer(RrcBearerSetup{EpsBearerID: 5, IsMc: true})
	require.NoError(t, err)

	coordinator.sinr.Upsert(7, 10, 100.0)
	coordinator.sinr.SetMmWaveCellSetupCompleted(7, true)

	coordinator.initiateSecondaryAttach(context.Background(), 7, LegPrimary, 10, CellGroupA)
	require.Equal(t, StatePrepareMcConnectionReconfiguration, u.State)

	require.Eventually(t, func() bool {
		return u.State == StateConnectedNormally
	}, time.Second, time.Millisecond)

	assert.NotNil(t, bearer.Pdcp)
	target, ok := mmwave.UeByImsi(7)
	require.True(t, ok)
	_, ok = target.RemoteRlcs[bearer.DrbID]
	assert.True(t, ok, "the mmWave cell must have instantiated a RemoteRlcInfo for the split bearer")
}
