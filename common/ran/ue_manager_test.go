package ran

import (
	"context"
	"testing"

	"github.com/5g-ran/mc-rrc/common/saps"
	"github.com/5g-ran/mc-rrc/common/trace"
	"github.com/5g-ran/mc-rrc/common/x2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testTargetCellID = 99

func newTestUeManager(t *testing.T, state State) *UeManager {
	t.Helper()

	transport := x2.NewInMemoryTransport(16)
	t.Cleanup(transport.Close)
	transport.Register(testTargetCellID, func(context.Context, x2.Message) {})

	bus := x2.NewBus(1, transport, zap.NewNop())
	bus.OnReceive(func(context.Context, x2.Message) {})

	sched := NewScheduler()
	t.Cleanup(sched.Stop)

	cfg := &Config{
		Rrc: RrcConfig{
			ConnectionRequestTimeoutMs:  100,
			ConnectionSetupTimeoutMs:    100,
			ConnectionRejectedTimeoutMs: 50,
			HandoverJoiningTimeoutMs:    200,
			HandoverLeavingTimeoutMs:    200,
			HandoverFailureGraceMs:      300,
		},
	}

	deps := UeManagerDeps{
		Scheduler: sched,
		Bus:       bus,
		Config:    cfg,
		Logger:    zap.NewNop(),
		Mac:       saps.NewSimulatedMac(16),
		S1AP:      saps.NewSimulatedS1AP(),
		Sink:      trace.NopSink{},
		RlcPolicy: saps.RlcUmAlways,
	}

	return NewUeManager(CellID(1), IMSI(1000), RNTI(10), state, deps)
}

func TestUeManager_SetupDataRadioBearerAllocatesSequentialDrbIDs(t *testing.T) {
	u := newTestUeManager(t, StateConnectedNormally)

	b1, err := u.SetupDataRadioBearer(RrcBearerSetup{EpsBearerID: 5})
	require.NoError(t, err)
	assert.Equal(t, uint8(1), b1.DrbID)

	b2, err := u.SetupDataRadioBearer(RrcBearerSetup{EpsBearerID: 6})
	require.NoError(t, err)
	assert.Equal(t, uint8(2), b2.DrbID)
	assert.NotNil(t, b2.Pdcp)
	assert.NotNil(t, b2.Rlc)
}

func TestUeManager_SetupDataRadioBearerFailsWhenTableIsFull(t *testing.T) {
	u := newTestUeManager(t, StateConnectedNormally)

	for i := 0; i < maxDrbTableSize; i++ {
		_, err := u.SetupDataRadioBearer(RrcBearerSetup{EpsBearerID: uint8(i)})
		require.NoError(t, err)
	}

	_, err := u.SetupDataRadioBearer(RrcBearerSetup{EpsBearerID: 255})
	assert.ErrorIs(t, err, ErrDrbTableFull)
}

func TestUeManager_SendDataOnUnknownDrbFails(t *testing.T) {
	u := newTestUeManager(t, StateConnectedNormally)
	err := u.SendData(context.Background(), 7, []byte("hello"))
	assert.ErrorIs(t, err, ErrUnknownDrb)
}

func TestUeManager_SendDataTransmitsOverLocalPdcpWhenConnected(t *testing.T) {
	u := newTestUeManager(t, StateConnectedNormally)
	bearer, err := u.SetupDataRadioBearer(RrcBearerSetup{EpsBearerID: 5})
	require.NoError(t, err)

	var delivered []byte
	bearer.Pdcp.SetSink(PathLteLocal, func(pdu []byte) error {
		delivered = pdu
		return nil
	})

	err = u.SendData(context.Background(), bearer.DrbID, []byte("payload"))
	require.NoError(t, err)
	require.NotNil(t, delivered)
	assert.Equal(t, []byte("payload"), delivered[2:], "PDCP header is a 2-byte SN tag")
}

func TestUeManager_SendDataTunnelsDirectlyWhenHandoverLeavingBufferIsEmpty(t *testing.T) {
	u := newTestUeManager(t, StateConnectedNormally)
	bearer, err := u.SetupDataRadioBearer(RrcBearerSetup{EpsBearerID: 5})
	require.NoError(t, err)

	require.NoError(t, u.RecvHandoverRequestAck(context.Background(), x2.HandoverRequestAckPayload{
		Imsi: uint64(u.Imsi), TargetRnti: uint16(u.Rnti), TargetCellID: testTargetCellID,
	}))
	require.Equal(t, StateHandoverLeaving, u.State)

	err = u.SendData(context.Background(), bearer.DrbID, []byte("in-flight"))
	assert.NoError(t, err, "with an empty forwarding buffer, data is tunnelled straight to the target cell over X2")
}

func TestUeManager_SendDataBuffersBehindInFlightForwardedPdusDuringHandoverLeaving(t *testing.T) {
	u := newTestUeManager(t, StateConnectedNormally)
	bearer, err := u.SetupDataRadioBearer(RrcBearerSetup{EpsBearerID: 5})
	require.NoError(t, err)

	require.NoError(t, u.RecvHandoverRequestAck(context.Background(), x2.HandoverRequestAckPayload{
		Imsi: uint64(u.Imsi), TargetRnti: uint16(u.Rnti), TargetCellID: testTargetCellID,
	}))
	require.Equal(t, StateHandoverLeaving, u.State)
	u.forwardingBuffer[bearer.DrbID] = [][]byte{[]byte("already-forwarded")}

	err = u.SendData(context.Background(), bearer.DrbID, []byte("new-packet"))
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("already-forwarded"), []byte("new-packet")}, u.forwardingBuffer[bearer.DrbID])
}

func TestUeManager_DestroyReleasesMacAndTimer(t *testing.T) {
	u := newTestUeManager(t, StateInitialRandomAccess)
	require.NotZero(t, u.timer, "INITIAL_RANDOM_ACCESS always arms its timer")

	u.destroy("test teardown")
	assert.Equal(t, EventID(0), u.timer)
}

func TestUeManager_ArmTimerForStateOnlyArmsForTimedStates(t *testing.T) {
	u := newTestUeManager(t, StateConnectedNormally)
	assert.Zero(t, u.timer, "CONNECTED_NORMALLY has no timer per spec")

	u.transitionTo(StateHandoverJoining)
	assert.NotZero(t, u.timer)
}
