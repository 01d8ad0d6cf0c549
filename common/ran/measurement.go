package ran

import (
	"math"
	"sync"
)

// linearToDB converts a linear SINR ratio to decibels.
func linearToDB(linear float64) float64 {
	if linear <= 0 {
		return math.Inf(-1)
	}
	return 10 * math.Log10(linear)
}

// SinrMatrix is the global per-UE per-cell SINR state owned
// exclusively by the Measurement-Aggregator on the coordinator (spec
// §3, §9 "Global mutable SINR matrix"). The control loop reads it
// through the exported accessor methods. SINR readings change only
// through Upsert; the per-IMSI leg and state tables (lastMmWaveCell,
// lastMmWaveCell2, imsiUsingLte, mmWaveCellSetupCompleted) are written
// by the RRC-Controller through the Set* methods.
type SinrMatrix struct {
	mu sync.RWMutex

	cellGroup map[CellID]CellGroup
	linear    map[IMSI]map[CellID]float64

	bestMmWaveCell       map[IMSI]CellID
	secondBestMmWaveCell map[IMSI]CellID
	lastMmWaveCell       map[IMSI]CellID
	lastMmWaveCell2      map[IMSI]CellID
	imsiUsingLte         map[IMSI]bool
	mmWaveCellSetupDone  map[IMSI]bool
}

// NewSinrMatrix creates an empty matrix.
func NewSinrMatrix() *SinrMatrix {
	return &SinrMatrix{
		cellGroup:            make(map[CellID]CellGroup),
		linear:                make(map[IMSI]map[CellID]float64),
		bestMmWaveCell:        make(map[IMSI]CellID),
		secondBestMmWaveCell:  make(map[IMSI]CellID),
		lastMmWaveCell:        make(map[IMSI]CellID),
		lastMmWaveCell2:       make(map[IMSI]CellID),
		imsiUsingLte:          make(map[IMSI]bool),
		mmWaveCellSetupDone:   make(map[IMSI]bool),
	}
}

// RegisterCell records which frequency group a mmWave cell belongs to,
// used to classify maxSinr (group A) vs secondMaxSinr (group B) in the
// control loop (spec §4.2 step 1).
func (m *SinrMatrix) RegisterCell(id CellID, group CellGroup) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cellGroup[id] = group
}

// Upsert merges a single (IMSI, cell) linear SINR reading into the
// matrix and recomputes the best/second-best classification for that
// IMSI (spec §4.5). A report for an IMSI the coordinator has not seen
// yet is simply upserted (spec §7 SnrReportForUnknownImsi).
func (m *SinrMatrix) Upsert(imsi IMSI, cell CellID, sinrLinear float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.linear[imsi] == nil {
		m.linear[imsi] = make(map[CellID]float64)
	}
	m.linear[imsi][cell] = sinrLinear
	m.recomputeBestLocked(imsi)
}

// recomputeBestLocked recomputes bestMmWaveCell/secondBestMmWaveCell
// for imsi across all known group-A and group-B cells respectively.
// Invariant I2: once both are known they are distinct, which holds
// here because the two are drawn from disjoint groups.
func (m *SinrMatrix) recomputeBestLocked(imsi IMSI) {
	var bestA, bestB CellID
	var bestASinr, bestBSinr = math.Inf(-1), math.Inf(-1)

	for cell, sinr := range m.linear[imsi] {
		switch m.cellGroup[cell] {
		case CellGroupA:
			if sinr > bestASinr {
				bestASinr = sinr
				bestA = cell
			}
		case CellGroupB:
			if sinr > bestBSinr {
				bestBSinr = sinr
				bestB = cell
			}
		}
	}

	if !bestA.IsUnknown() {
		m.bestMmWaveCell[imsi] = bestA
	}
	if !bestB.IsUnknown() {
		m.secondBestMmWaveCell[imsi] = bestB
	}
}

// MaxSinrDB returns the best linear-to-dB SINR for imsi within group,
// and whether any cell of that group has reported.
func (m *SinrMatrix) MaxSinrDB(imsi IMSI, group CellGroup) (float64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	found := false
	best := math.Inf(-1)
	for cell, sinr := range m.linear[imsi] {
		if m.cellGroup[cell] != group {
			continue
		}
		found = true
		if sinr > best {
			best = sinr
		}
	}
	if !found {
		return 0, false
	}
	return linearToDB(best), true
}

// CurrentSinrDB returns the dB SINR at cell for imsi, if known.
func (m *SinrMatrix) CurrentSinrDB(imsi IMSI, cell CellID) (float64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	linear, ok := m.linear[imsi][cell]
	if !ok {
		return 0, false
	}
	return linearToDB(linear), true
}

// BestMmWaveCell returns bestMmWaveCell[imsi] (group A).
func (m *SinrMatrix) BestMmWaveCell(imsi IMSI) (CellID, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.bestMmWaveCell[imsi]
	return c, ok
}

// SecondBestMmWaveCell returns secondBestMmWaveCell[imsi] (group B).
// Per spec §9 Design Note (iii), a CellID zero value means "unknown":
// until a group-B cell has reported for imsi, the zero CellID is
// returned with ok=false, and IsUnknown() reports it as unknown.
func (m *SinrMatrix) SecondBestMmWaveCell(imsi IMSI) (CellID, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.secondBestMmWaveCell[imsi]
	return c, ok
}

// LastMmWaveCell / LastMmWaveCell2 track which cell each leg is
// currently attached to (spec §3).
func (m *SinrMatrix) LastMmWaveCell(imsi IMSI) CellID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastMmWaveCell[imsi]
}

func (m *SinrMatrix) SetLastMmWaveCell(imsi IMSI, cell CellID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastMmWaveCell[imsi] = cell
}

func (m *SinrMatrix) LastMmWaveCell2(imsi IMSI) CellID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastMmWaveCell2[imsi]
}

func (m *SinrMatrix) SetLastMmWaveCell2(imsi IMSI, cell CellID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastMmWaveCell2[imsi] = cell
}

// ImsiUsingLte reports whether imsi is currently on the LTE fallback
// leg (invariant I5: no mmWave data-path routing while true).
func (m *SinrMatrix) ImsiUsingLte(imsi IMSI) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.imsiUsingLte[imsi]
}

func (m *SinrMatrix) SetImsiUsingLte(imsi IMSI, v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.imsiUsingLte[imsi] = v
}

// MmWaveCellSetupCompleted reports mmWaveCellSetupCompleted[imsi]
// (invariant I4: false between handover-request and completion).
func (m *SinrMatrix) MmWaveCellSetupCompleted(imsi IMSI) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.mmWaveCellSetupDone[imsi]
}

func (m *SinrMatrix) SetMmWaveCellSetupCompleted(imsi IMSI, v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mmWaveCellSetupDone[imsi] = v
}
