// Package ran implements the dual-connectivity RRC state machine and
// handover/link-switch engine shared by the LTE coordinator cell and
// the mmWave cells: the UE-Manager, the RRC-Controller, the
// Bearer-Split-PDCP engine, and the Measurement-Aggregator.
package ran

import (
	"fmt"
	"sync"
)

// IMSI is the globally unique long-term subscriber identity.
type IMSI uint64

func (i IMSI) String() string { return fmt.Sprintf("imsi-%d", uint64(i)) }

// RNTI is the per-cell short UE identity assigned on RACH.
type RNTI uint16

func (r RNTI) String() string { return fmt.Sprintf("rnti-%d", uint16(r)) }

// CellID identifies a cell (LTE or mmWave). The zero value means
// "unknown" wherever the spec calls for a sentinel (e.g.
// secondBestCellId before any secondary-cell SINR report arrives).
type CellID uint16

func (c CellID) String() string { return fmt.Sprintf("cell-%d", uint16(c)) }

// IsUnknown reports whether c is the "not yet known" sentinel.
func (c CellID) IsUnknown() bool { return c == 0 }

// CellGroup classifies a mmWave cell into the coordinator's primary
// (A) or secondary (B) frequency group, or marks the LTE anchor.
type CellGroup int

const (
	CellGroupLTE CellGroup = iota
	CellGroupA
	CellGroupB
)

func (g CellGroup) String() string {
	switch g {
	case CellGroupLTE:
		return "LTE"
	case CellGroupA:
		return "A"
	case CellGroupB:
		return "B"
	default:
		return "UNKNOWN"
	}
}

// ParseCellGroup parses the cell.group config option into a CellGroup,
// defaulting to CellGroupA for anything unrecognized.
func ParseCellGroup(name string) CellGroup {
	switch name {
	case "LTE":
		return CellGroupLTE
	case "B":
		return CellGroupB
	default:
		return CellGroupA
	}
}

// IDPool allocates small positive integer identifiers, reusing a
// released value before expanding the set. Used for per-cell RNTI
// assignment and the 1..31 DRB-ID space; no SRS configuration-index or
// X2AP transaction-ID pool is allocated from it.
//
// Modelled on the teacher's upf TEIDPool: a free-list checked before
// the monotonic counter advances.
type IDPool struct {
	mu       sync.Mutex
	min, max uint32
	next     uint32
	used     map[uint32]bool
	free     []uint32
}

// NewIDPool creates a pool allocating values in [min, max] inclusive.
func NewIDPool(min, max uint32) *IDPool {
	return &IDPool{
		min:  min,
		max:  max,
		next: min,
		used: make(map[uint32]bool),
	}
}

// Allocate returns the next free id, preferring a released id over
// expanding the pool. Returns ok=false when the pool is exhausted.
func (p *IDPool) Allocate() (id uint32, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if n := len(p.free); n > 0 {
		id = p.free[n-1]
		p.free = p.free[:n-1]
		p.used[id] = true
		return id, true
	}

	for p.next <= p.max {
		candidate := p.next
		p.next++
		if !p.used[candidate] {
			p.used[candidate] = true
			return candidate, true
		}
	}
	return 0, false
}

// Release returns id to the pool so it is reused before the pool
// expands further.
func (p *IDPool) Release(id uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.used[id] {
		return
	}
	delete(p.used, id)
	p.free = append(p.free, id)
}

// InUse reports the number of currently-allocated ids.
func (p *IDPool) InUse() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.used)
}
