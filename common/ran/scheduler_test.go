package ran

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduler_FiresAfterDelay(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	done := make(chan struct{})
	s.Schedule(10*time.Millisecond, func() { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("event never fired")
	}
}

func TestScheduler_CancelPreventsFiring(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	fired := false
	var mu sync.Mutex
	id := s.Schedule(50*time.Millisecond, func() {
		mu.Lock()
		fired = true
		mu.Unlock()
	})
	s.Cancel(id)

	time.Sleep(100 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.False(t, fired, "a cancelled event must not fire")
}

func TestScheduler_CancelIsIdempotent(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	id := s.Schedule(10*time.Millisecond, func() {})
	s.Cancel(id)
	assert.NotPanics(t, func() {
		s.Cancel(id)
		s.Cancel(id)
	})
}

func TestScheduler_SameInstantEventsFireInFIFOOrder(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	// A fixed Now makes every Schedule call below land on the exact same
	// fireAt, so firing order depends solely on the FIFO seq tiebreak.
	s.Now = func() time.Time { return time.Unix(0, 0) }

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	wg.Add(3)

	s.Schedule(time.Millisecond, func() { mu.Lock(); order = append(order, 1); mu.Unlock(); wg.Done() })
	s.Schedule(time.Millisecond, func() { mu.Lock(); order = append(order, 2); mu.Unlock(); wg.Done() })
	s.Schedule(time.Millisecond, func() { mu.Lock(); order = append(order, 3); mu.Unlock(); wg.Done() })

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("events never fired")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, order, 3)
	assert.Equal(t, []int{1, 2, 3}, order, "events scheduled at the same instant fire in FIFO order")
}

func TestScheduler_PendingCountsQueuedEvents(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	assert.Equal(t, 0, s.Pending())
	s.Schedule(time.Hour, func() {})
	assert.Equal(t, 1, s.Pending())
}
