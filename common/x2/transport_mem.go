package x2

import (
	"context"
	"fmt"
	"sync"
)

// InMemoryTransport wires cells running in the same process together
// directly, without a network hop. Each registered cell gets its own
// buffered channel and a single consumer goroutine, so messages
// addressed to that cell are delivered in the order Send was called —
// satisfying the per-(source,destination) FIFO guarantee in spec §4.3,
// since within a single-threaded RRC-Controller every Send for a given
// source cell is issued from the same goroutine.
type InMemoryTransport struct {
	mu       sync.RWMutex
	inboxes  map[uint16]chan Message
	handlers map[uint16]Handler
	stop     chan struct{}
	wg       sync.WaitGroup

	// QueueDepth is the per-cell inbox channel capacity.
	QueueDepth int
}

// NewInMemoryTransport creates a transport with the given per-cell
// inbox depth (0 selects a reasonable default).
func NewInMemoryTransport(queueDepth int) *InMemoryTransport {
	if queueDepth <= 0 {
		queueDepth = 256
	}
	return &InMemoryTransport{
		inboxes:    make(map[uint16]chan Message),
		handlers:   make(map[uint16]Handler),
		stop:       make(chan struct{}),
		QueueDepth: queueDepth,
	}
}

// Register installs the handler for localCellID and starts its
// consumer goroutine if this is the first registration for that cell.
func (t *InMemoryTransport) Register(localCellID uint16, h Handler) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.handlers[localCellID] = h
	if _, ok := t.inboxes[localCellID]; ok {
		return
	}
	inbox := make(chan Message, t.QueueDepth)
	t.inboxes[localCellID] = inbox

	t.wg.Add(1)
	go t.drain(localCellID, inbox)
}

func (t *InMemoryTransport) drain(cellID uint16, inbox chan Message) {
	defer t.wg.Done()
	for {
		select {
		case <-t.stop:
			return
		case msg := <-inbox:
			t.mu.RLock()
			h := t.handlers[cellID]
			t.mu.RUnlock()
			if h != nil {
				h(context.Background(), msg)
			}
		}
	}
}

// Send enqueues msg onto the target cell's inbox. Returns an error if
// the target is not registered or its inbox is full.
func (t *InMemoryTransport) Send(ctx context.Context, msg Message) error {
	t.mu.RLock()
	inbox, ok := t.inboxes[msg.TargetCellID]
	t.mu.RUnlock()
	if !ok {
		return fmt.Errorf("x2: no such cell %d registered on transport", msg.TargetCellID)
	}

	select {
	case inbox <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fmt.Errorf("x2: inbox for cell %d is full", msg.TargetCellID)
	}
}

// Close stops every consumer goroutine.
func (t *InMemoryTransport) Close() {
	close(t.stop)
	t.wg.Wait()
}
