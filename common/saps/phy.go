package saps

import "sync"

// PhyControlSap is the downward PHY control interface used to
// configure per-UE radio parameters and per-cell broadcast
// information (spec §6). Real propagation/beamforming is out of
// scope; this models only the control-plane surface the core calls.
type PhyControlSap interface {
	AddUe(rnti uint16)
	SetTransmissionMode(rnti uint16, mode int)
	SetSrsConfigurationIndex(rnti uint16, index int)
	SetCellID(cellID uint16)
	SetBandwidth(bandwidth uint16)
	SetEarfcn(earfcn uint32)
	SetSib1(sib1 []byte)
	SetMib(mib []byte)
}

// SimulatedPhy is a simulated PHY-Control SAP that records
// configuration without driving any real radio resource.
type SimulatedPhy struct {
	mu    sync.Mutex
	ues   map[uint16]bool
	cellID    uint16
	bandwidth uint16
	earfcn    uint32
	sib1, mib []byte
}

func NewSimulatedPhy() *SimulatedPhy {
	return &SimulatedPhy{ues: make(map[uint16]bool)}
}

func (p *SimulatedPhy) AddUe(rnti uint16) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ues[rnti] = true
}

func (p *SimulatedPhy) SetTransmissionMode(rnti uint16, mode int)      {}
func (p *SimulatedPhy) SetSrsConfigurationIndex(rnti uint16, index int) {}

func (p *SimulatedPhy) SetCellID(cellID uint16) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cellID = cellID
}

func (p *SimulatedPhy) SetBandwidth(bandwidth uint16) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bandwidth = bandwidth
}

func (p *SimulatedPhy) SetEarfcn(earfcn uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.earfcn = earfcn
}

func (p *SimulatedPhy) SetSib1(sib1 []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sib1 = sib1
}

func (p *SimulatedPhy) SetMib(mib []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mib = mib
}
