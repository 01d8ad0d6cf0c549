// Package trace implements the optional persisted-trace outputs
// described in spec §6: per-bearer queue statistics and handover
// start/end events, keyed by cell/UE/bearer identifiers. The core
// itself is in-memory only; a Sink is a purely observational side
// channel.
package trace

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
)

// Event is one trace record. Kind names the event class
// ("handover_start", "handover_end", "bearer_queue_sample", ...); the
// remaining fields are populated as applicable to that kind.
type Event struct {
	Time      time.Time `json:"time"`
	Kind      string    `json:"kind"`
	CellID    uint16    `json:"cellId"`
	Imsi      uint64    `json:"imsi"`
	Rnti      uint16    `json:"rnti,omitempty"`
	DrbID     uint8     `json:"drbId,omitempty"`
	TargetCell uint16   `json:"targetCell,omitempty"`
	QueueBytes int      `json:"queueBytes,omitempty"`
}

// Sink persists trace Events. Implementations must not block the
// caller's event loop for long. FileSink writes each event
// synchronously inside Record; ClickHouseSink queues events and sends
// a batch, also inside Record, once BatchSize events are queued (and
// on Close).
type Sink interface {
	Record(ev Event)
	Close() error
}

// NopSink discards every event; the default when tracing is disabled.
type NopSink struct{}

func (NopSink) Record(Event)  {}
func (NopSink) Close() error { return nil }

// FileSink appends newline-delimited JSON trace events to a file,
// matching the spec's "written to files keyed by cell/UE/bearer
// identifiers" persistence note.
type FileSink struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// NewFileSink opens (creating/appending) path for JSON-lines trace
// output.
func NewFileSink(path string) (*FileSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("trace: open %s: %w", path, err)
	}
	return &FileSink{file: f, enc: json.NewEncoder(f)}, nil
}

func (s *FileSink) Record(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.enc.Encode(ev)
}

func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}

// ClickHouseSink batches trace events into a ClickHouse table. It
// exists to exercise the clickhouse-go/v2 dependency carried over from
// the teacher's analytics stack, repurposed here as an optional
// long-term store for handover/bearer traces instead of subscriber
// records.
type ClickHouseSink struct {
	mu      sync.Mutex
	conn    clickhouse.Conn
	table   string
	batch   []Event
	batchSz int
}

// ClickHouseConfig configures the ClickHouse connection.
type ClickHouseConfig struct {
	Addr     []string
	Database string
	Username string
	Password string
	Table    string
	BatchSize int
}

// NewClickHouseSink opens a connection per cfg. The target table is
// expected to exist with columns matching Event's JSON tags.
func NewClickHouseSink(cfg ClickHouseConfig) (*ClickHouseSink, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: cfg.Addr,
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("trace: open clickhouse: %w", err)
	}
	batchSz := cfg.BatchSize
	if batchSz <= 0 {
		batchSz = 100
	}
	table := cfg.Table
	if table == "" {
		table = "ran_trace_events"
	}
	return &ClickHouseSink{conn: conn, table: table, batchSz: batchSz}, nil
}

func (s *ClickHouseSink) Record(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batch = append(s.batch, ev)
	if len(s.batch) >= s.batchSz {
		s.flushLocked()
	}
}

func (s *ClickHouseSink) flushLocked() {
	if len(s.batch) == 0 {
		return
	}
	ctx := context.Background()
	batch, err := s.conn.PrepareBatch(ctx, fmt.Sprintf("INSERT INTO %s", s.table))
	if err != nil {
		s.batch = nil
		return
	}
	for _, ev := range s.batch {
		_ = batch.Append(ev.Time, ev.Kind, ev.CellID, ev.Imsi, ev.Rnti, ev.DrbID, ev.TargetCell, ev.QueueBytes)
	}
	_ = batch.Send()
	s.batch = nil
}

func (s *ClickHouseSink) Close() error {
	s.mu.Lock()
	s.flushLocked()
	s.mu.Unlock()
	return s.conn.Close()
}
