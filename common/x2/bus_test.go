package x2

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBus_SendDeliversToRegisteredPeer(t *testing.T) {
	transport := NewInMemoryTransport(4)
	defer transport.Close()

	source := NewBus(1, transport, zap.NewNop())
	source.OnReceive(func(context.Context, Message) {})

	target := NewBus(2, transport, zap.NewNop())

	var mu sync.Mutex
	var received *Message
	done := make(chan struct{})
	target.OnReceive(func(ctx context.Context, msg Message) {
		mu.Lock()
		received = &msg
		mu.Unlock()
		close(done)
	})

	err := source.Send(context.Background(), 2, KindUeSinrUpdate, UeSinrUpdatePayload{Sinr: map[uint64]float64{7: 10.0}})
	require.NoError(t, err)

	<-done
	mu.Lock()
	defer mu.Unlock()
	require.NotNil(t, received)
	assert.Equal(t, uint16(1), received.SourceCellID)
	assert.Equal(t, KindUeSinrUpdate, received.Kind)
}

func TestBus_SendToUnregisteredCellFails(t *testing.T) {
	transport := NewInMemoryTransport(4)
	defer transport.Close()

	source := NewBus(1, transport, zap.NewNop())
	err := source.Send(context.Background(), 99, KindUeSinrUpdate, UeSinrUpdatePayload{})
	assert.Error(t, err)
}

func TestInMemoryTransport_PreservesFIFOOrderPerSourceDestination(t *testing.T) {
	transport := NewInMemoryTransport(16)
	defer transport.Close()

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	wg.Add(5)

	transport.Register(2, func(ctx context.Context, msg Message) {
		mu.Lock()
		order = append(order, int(msg.Payload.(int)))
		mu.Unlock()
		wg.Done()
	})

	for i := 0; i < 5; i++ {
		require.NoError(t, transport.Send(context.Background(), Message{
			Kind: KindUeSinrUpdate, SourceCellID: 1, TargetCellID: 2, Payload: i,
		}))
	}

	wg.Wait()
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestKind_StringNamesEveryCatalogEntry(t *testing.T) {
	for k := KindHandoverRequest; k <= KindNotifyCoordinatorHandoverFailed; k++ {
		assert.NotEqual(t, "", k.String())
	}
}
