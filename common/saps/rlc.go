// Package saps defines the downward service-access-point interfaces the
// RAN core consumes: MAC-Control, PHY-Control, the RLC factory, and
// S1-AP. Physical-layer propagation, MAC scheduling, and real
// RLC/PDCP segmentation are out of scope; these are simulated
// collaborators that satisfy the interfaces the core calls through.
package saps

import "fmt"

// RlcKind selects which member of the sealed RLC variant an entity is.
type RlcKind int

const (
	RlcSm RlcKind = iota
	RlcUm
	RlcAm
	RlcUmLowLat
)

func (k RlcKind) String() string {
	switch k {
	case RlcSm:
		return "SM"
	case RlcUm:
		return "UM"
	case RlcAm:
		return "AM"
	case RlcUmLowLat:
		return "UM_LOWLAT"
	default:
		return "UNKNOWN"
	}
}

// MappingPolicy is the epsBearerToRlcMapping configuration enum (spec
// §6): it decides which RlcKind a freshly created bearer gets.
type MappingPolicy int

const (
	RlcSmAlways MappingPolicy = iota
	RlcUmAlways
	RlcAmAlways
	PerBased
	RlcUmLowlatAlways
)

// PduWithSn pairs an RLC PDU with the sequence number it carries. Used
// by the AM txed/retx merge in the lossless buffer-forwarding path.
type PduWithSn struct {
	SN  uint16
	Pdu []byte
}

// RlcEntity is the common capability set every RLC variant implements
// (spec §9 "Polymorphism over RLC kinds"): configure, pushDown,
// pullTxOpportunity, getTxBufferSize. AM-specific buffer introspection
// is exposed through AmBuffers, which only the AM variant implements;
// callers type-assert for it rather than having every variant carry
// AM-only methods.
type RlcEntity interface {
	Kind() RlcKind
	Configure(lcID uint8)
	PushDown(sdu []byte)
	PullTxOpportunity(bytes int) []byte
	TxBufferSize() int

	// Buffer returns the entity's current TX queue, consuming it when
	// drain is true and leaving it intact (a copy) when drain is
	// false. A single routine with a mode flag replaces the source's
	// two overloaded forwarding routines (spec §9).
	Buffer(drain bool) [][]byte
}

// AmBuffers is implemented only by the AM RLC variant. §4.1.1 reads
// these buffers when building the lossless-forwarding PDU list; non-AM
// bearers skip the SN-status transfer entirely because they do not
// implement this interface.
type AmBuffers interface {
	RlcEntity
	TxedBuffer() []PduWithSn
	RetxBuffer() []PduWithSn
}

type baseRlc struct {
	kind  RlcKind
	lcID  uint8
	txBuf [][]byte
}

func (b *baseRlc) Kind() RlcKind   { return b.kind }
func (b *baseRlc) Configure(lcID uint8) { b.lcID = lcID }
func (b *baseRlc) PushDown(sdu []byte) {
	b.txBuf = append(b.txBuf, sdu)
}
func (b *baseRlc) PullTxOpportunity(bytes int) []byte {
	if len(b.txBuf) == 0 {
		return nil
	}
	pdu := b.txBuf[0]
	b.txBuf = b.txBuf[1:]
	return pdu
}
func (b *baseRlc) TxBufferSize() int {
	n := 0
	for _, p := range b.txBuf {
		n += len(p)
	}
	return n
}

func (b *baseRlc) Buffer(drain bool) [][]byte {
	out := make([][]byte, len(b.txBuf))
	copy(out, b.txBuf)
	if drain {
		b.txBuf = nil
	}
	return out
}

// SmRlc is the saturation-mode variant: no segmentation, no
// retransmission, best-effort passthrough.
type SmRlc struct{ baseRlc }

func NewSmRlc() *SmRlc { return &SmRlc{baseRlc{kind: RlcSm}} }

// UmRlc is unacknowledged mode: passthrough with no sequence
// numbering and no retransmission buffer.
type UmRlc struct{ baseRlc }

func NewUmRlc() *UmRlc { return &UmRlc{baseRlc{kind: RlcUm}} }

// UmLowLatRlc is the low-latency unacknowledged variant used for
// split-bearer legs where retransmission would defeat the point of
// routing over the faster leg.
type UmLowLatRlc struct{ baseRlc }

func NewUmLowLatRlc() *UmLowLatRlc { return &UmLowLatRlc{baseRlc{kind: RlcUmLowLat}} }

// AmRlc is acknowledged mode: it retains every transmitted PDU under
// its SN (txedBuffer; no ACK path removes them) and PDUs marked for
// retransmission separately (retxBuffer), which the lossless-forwarding
// path merges by SN (spec §4.1.1).
type AmRlc struct {
	baseRlc
	nextSN uint16
	txed   map[uint16][]byte
	retx   map[uint16][]byte
}

func NewAmRlc() *AmRlc {
	return &AmRlc{
		baseRlc: baseRlc{kind: RlcAm},
		txed:    make(map[uint16][]byte),
		retx:    make(map[uint16][]byte),
	}
}

func (a *AmRlc) PushDown(sdu []byte) {
	a.baseRlc.PushDown(sdu)
}

func (a *AmRlc) PullTxOpportunity(bytes int) []byte {
	pdu := a.baseRlc.PullTxOpportunity(bytes)
	if pdu != nil {
		sn := a.nextSN
		a.nextSN++
		a.txed[sn] = pdu
	}
	return pdu
}

// MarkForRetx moves a previously transmitted PDU into the
// retransmission buffer, as happens when the receiver NACKs it.
func (a *AmRlc) MarkForRetx(sn uint16) {
	if pdu, ok := a.txed[sn]; ok {
		a.retx[sn] = pdu
	}
}

func (a *AmRlc) TxedBuffer() []PduWithSn {
	return snSortedBuffer(a.txed)
}

func (a *AmRlc) RetxBuffer() []PduWithSn {
	return snSortedBuffer(a.retx)
}

func snSortedBuffer(m map[uint16][]byte) []PduWithSn {
	out := make([]PduWithSn, 0, len(m))
	for sn, pdu := range m {
		out = append(out, PduWithSn{SN: sn, Pdu: pdu})
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1].SN > out[j].SN; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

// RlcFactory produces an RlcEntity for a bearer per the configured
// MappingPolicy. PER_BASED picks UM when the bearer's packet-error-rate
// exceeds 1e-5, AM otherwise (spec §6).
type RlcFactory struct {
	Policy MappingPolicy
}

const perBasedThreshold = 1e-5

// New creates an RLC entity for a bearer with the given packet-error
// rate (only consulted under PerBased).
func (f RlcFactory) New(packetErrorRate float64) (RlcEntity, error) {
	switch f.Policy {
	case RlcSmAlways:
		return NewSmRlc(), nil
	case RlcUmAlways:
		return NewUmRlc(), nil
	case RlcAmAlways:
		return NewAmRlc(), nil
	case RlcUmLowlatAlways:
		return NewUmLowLatRlc(), nil
	case PerBased:
		if packetErrorRate > perBasedThreshold {
			return NewUmRlc(), nil
		}
		return NewAmRlc(), nil
	default:
		return nil, fmt.Errorf("saps: unknown RLC mapping policy %d", f.Policy)
	}
}
