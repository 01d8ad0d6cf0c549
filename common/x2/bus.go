package x2

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Handler processes a Message received from a peer cell.
type Handler func(ctx context.Context, msg Message)

// Transport delivers messages between cells. Implementations must
// preserve FIFO order per (source, destination) pair (spec §4.3); the
// Bus registers a handler per local cell and hands delivered messages
// to it.
type Transport interface {
	// Send enqueues msg for delivery from source to target.
	Send(ctx context.Context, msg Message) error
	// Register installs the handler for messages addressed to
	// localCellID. Only one handler per cell is supported.
	Register(localCellID uint16, h Handler)
}

// Bus is the per-cell façade over a Transport: it binds a cell's own
// identity, so callers send without repeating the source cell ID and
// the bus can annotate delivery failures with that identity in logs.
type Bus struct {
	mu       sync.RWMutex
	cellID   uint16
	transport Transport
	logger   *zap.Logger
}

// NewBus creates a Bus bound to cellID over the given Transport. It
// registers nothing with the transport; OnReceive installs the cell's
// handler.
func NewBus(cellID uint16, transport Transport, logger *zap.Logger) *Bus {
	b := &Bus{cellID: cellID, transport: transport, logger: logger}
	return b
}

// Send addresses msg to targetCellID, filling in the bus's own cell ID
// as the source.
func (b *Bus) Send(ctx context.Context, targetCellID uint16, kind Kind, payload any) error {
	msg := Message{
		Kind:         kind,
		SourceCellID: b.cellID,
		TargetCellID: targetCellID,
		Payload:      payload,
	}
	if err := b.transport.Send(ctx, msg); err != nil {
		return fmt.Errorf("x2: send %s to cell %d: %w", kind, targetCellID, err)
	}
	return nil
}

// OnReceive installs the handler invoked for every message addressed
// to this bus's cell.
func (b *Bus) OnReceive(h Handler) {
	b.transport.Register(b.cellID, func(ctx context.Context, msg Message) {
		if b.logger != nil {
			b.logger.Debug("x2 message received",
				zap.Uint16("source_cell", msg.SourceCellID),
				zap.Uint16("target_cell", msg.TargetCellID),
				zap.String("kind", msg.Kind.String()))
		}
		h(ctx, msg)
	})
}

// CellID returns the cell this bus is bound to.
func (b *Bus) CellID() uint16 { return b.cellID }
