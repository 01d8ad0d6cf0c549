package ran

import (
	"encoding/binary"
	"fmt"

	"github.com/5g-ran/mc-rrc/common/saps"
)

// PdcpPath names one of the three downstream paths a split-bearer
// PDCP entity can route an SDU over (spec §4.4).
type PdcpPath int

const (
	PathLteLocal PdcpPath = iota
	PathMmWaveA
	PathMmWaveB
)

func (p PdcpPath) String() string {
	switch p {
	case PathLteLocal:
		return "LTE-local-RLC"
	case PathMmWaveA:
		return "mmWave-A-RLC"
	case PathMmWaveB:
		return "mmWave-B-RLC"
	default:
		return "unknown-path"
	}
}

// PathSink delivers a tagged PDCP PDU down one path: either straight
// into a local RLC entity, or out over X2 as a ForwardRlcPdu to a
// remote cell's RLC.
type PathSink func(pdu []byte) error

// pdcpSNMask is the 12-bit PDCP sequence number space used by the
// header tag (spec §4.4 "transmitted SN (monotone 12-bit)").
const pdcpSNMask = 0x0FFF

// BearerInfo is the per-DRB state a UE-Manager owns (spec §3): the
// configured RLC/PDCP, the transport endpoint used for S1-U, and the
// role flags marking which mmWave legs (if any) this bearer is split
// across.
type BearerInfo struct {
	EpsBearerID uint8
	DrbID       uint8
	LcID        uint8
	TransportAddr string
	Teid          uint32

	Rlc  saps.RlcEntity // nil when this cell hosts only the PDCP end
	Pdcp *PdcpEntity    // nil when this cell hosts only the RLC end

	RlcPolicyKind saps.RlcKind
	IsMc          bool
	IsMc2         bool
}

// RemoteRlcInfo is held by a mmWave cell that hosts only the RLC end
// of a split bearer whose PDCP lives on the LTE coordinator (spec §3).
type RemoteRlcInfo struct {
	PeerCellID uint16
	PeerRnti   RNTI
	LocalRnti  RNTI
	DrbID      uint8
	LcID       uint8
	Rlc        saps.RlcEntity
	Group      CellGroup
}

// PdcpEntity is the Bearer-Split-PDCP engine (spec §4.4): it knows up
// to three downstream paths, an active path, and an optional
// duplicate-mode secondary path.
type PdcpEntity struct {
	sinks map[PdcpPath]PathSink

	activePath    PdcpPath
	duplicateMode bool

	txSN       uint16
	expectedSN uint16

	primaryCellID   CellID
	secondaryCellID CellID
	anchorCellID    CellID
}

// NewPdcpEntity creates a PDCP entity with LTE-local as the initial
// active path and no paths wired yet; callers install sinks with
// SetSink before traffic flows.
func NewPdcpEntity() *PdcpEntity {
	return &PdcpEntity{
		sinks:      make(map[PdcpPath]PathSink),
		activePath: PathLteLocal,
	}
}

// SetSink installs (or replaces) the delivery function for a path.
func (p *PdcpEntity) SetSink(path PdcpPath, sink PathSink) {
	p.sinks[path] = sink
}

// SetDuplicateMode turns duplication on or off.
func (p *PdcpEntity) SetDuplicateMode(on bool) { p.duplicateMode = on }

func (p *PdcpEntity) secondaryPath() PdcpPath {
	if p.activePath == PathMmWaveA {
		return PathMmWaveB
	}
	return PathMmWaveA
}

// taggedHeader prepends a 2-byte big-endian PDCP SN tag, masked to the
// 12-bit sequence-number space, ahead of the SDU bytes.
func (p *PdcpEntity) taggedHeader(sdu []byte) []byte {
	sn := p.txSN
	p.txSN = (p.txSN + 1) & pdcpSNMask
	tagged := make([]byte, 2+len(sdu))
	binary.BigEndian.PutUint16(tagged[0:2], sn)
	copy(tagged[2:], sdu)
	return tagged
}

// TransmitPdcpSdu tags packet with the next PDCP SN, delivers it on
// the active path, and delivers a copy to the secondary path when
// duplicate mode is on (spec §4.4).
func (p *PdcpEntity) TransmitPdcpSdu(packet []byte) error {
	tagged := p.taggedHeader(packet)

	sink, ok := p.sinks[p.activePath]
	if !ok {
		return fmt.Errorf("ran: no sink configured for active path %s", p.activePath)
	}
	if err := sink(tagged); err != nil {
		return fmt.Errorf("ran: deliver on %s: %w", p.activePath, err)
	}

	if p.duplicateMode {
		if dup, ok := p.sinks[p.secondaryPath()]; ok {
			_ = dup(tagged)
		}
	}
	return nil
}

// SwitchConnection atomically flips the active path between the LTE
// leg and the mmWave leg (spec §4.4). Combined with buffer forwarding
// (§4.1.1) by the caller to preserve in-order delivery.
func (p *PdcpEntity) SwitchConnection(useMmWave bool) {
	if useMmWave {
		if p.activePath == PathLteLocal {
			p.activePath = PathMmWaveA
		}
		return
	}
	p.activePath = PathLteLocal
}

// ActivePath reports the currently active downstream path.
func (p *PdcpEntity) ActivePath() PdcpPath { return p.activePath }

// SetTargetCellIds updates the three path identifiers (spec §4.4).
func (p *PdcpEntity) SetTargetCellIds(primary, secondary, anchor CellID) {
	p.primaryCellID = primary
	p.secondaryCellID = secondary
	p.anchorCellID = anchor
}

// ResumeFrom sets the transmitted SN to resume from after a path
// switch, per the SN-Status-Transfer snapshot (spec §4.4 invariant).
func (p *PdcpEntity) ResumeFrom(txSN uint16) {
	p.txSN = txSN & pdcpSNMask
}

// TxSN reports the next sequence number that will be assigned.
func (p *PdcpEntity) TxSN() uint16 { return p.txSN }
