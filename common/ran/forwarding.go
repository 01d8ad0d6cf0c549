package ran

import (
	"github.com/5g-ran/mc-rrc/common/saps"
)

// ForwardMode selects whether the lossless buffer-forwarding routine
// consumes the RLC TX buffer or leaves it intact. The source code this
// is modelled on had two overloaded routines differing only in this
// respect; spec §9 flags that ambiguity and asks for one routine with
// a mode flag instead.
type ForwardMode int

const (
	// ModeDrain consumes the buffer: used when the UE-Manager is
	// leaving the source cell for good (HANDOVER_LEAVING).
	ModeDrain ForwardMode = iota
	// ModeCopy leaves the buffer intact: used by the RRC-Controller's
	// LTE <-> mmWave connection switch.
	ModeCopy
)

// minPdcpHeaderSize and pdcpDataBitMask identify a forwardable PDCP
// PDU in the reconstructed buffer: at least the header, with the DATA
// bit set in its first octet (spec §4.1.1).
const (
	minPdcpHeaderSize = 1
	pdcpDataBitMask   = 0x80
)

func isForwardableData(pdu []byte) bool {
	if len(pdu) < minPdcpHeaderSize {
		return false
	}
	return pdu[0]&pdcpDataBitMask != 0
}

// mergeBySN merges the AM txedBuffer and retxBuffer by ascending RLC
// SN; when both contain a PDU with the same SN, the txedBuffer's copy
// wins (spec §4.1.1 step 1).
func mergeBySN(txed, retx []saps.PduWithSn) []saps.PduWithSn {
	txIdx := make(map[uint16][]byte, len(txed))
	for _, e := range txed {
		txIdx[e.SN] = e.Pdu
	}

	seen := make(map[uint16]bool, len(txed)+len(retx))
	merged := make([]saps.PduWithSn, 0, len(txed)+len(retx))
	for _, e := range txed {
		if seen[e.SN] {
			continue
		}
		seen[e.SN] = true
		merged = append(merged, e)
	}
	for _, e := range retx {
		if seen[e.SN] {
			continue
		}
		seen[e.SN] = true
		pdu := e.Pdu
		if winner, ok := txIdx[e.SN]; ok {
			pdu = winner
		}
		merged = append(merged, saps.PduWithSn{SN: e.SN, Pdu: pdu})
	}

	// insertion sort by SN: buffers are small (bounded by the RLC
	// window), so this avoids pulling in sort for a handful of items.
	for i := 1; i < len(merged); i++ {
		for j := i; j > 0 && merged[j-1].SN > merged[j].SN; j-- {
			merged[j-1], merged[j] = merged[j], merged[j-1]
		}
	}
	return merged
}

// BuildForwardingBuffer reconstructs the ordered list of forwardable
// PDCP PDUs held by rlc (spec §4.1.1). AM entities merge
// txedBuffer/retxBuffer by SN and then append whatever remains
// unsent in the TX queue; non-AM entities forward their TX queue
// as-is. mode controls whether rlc's buffers are left intact
// (ModeCopy) or consumed (ModeDrain).
func BuildForwardingBuffer(rlc saps.RlcEntity, mode ForwardMode) [][]byte {
	drain := mode == ModeDrain

	if am, ok := rlc.(saps.AmBuffers); ok {
		merged := mergeBySN(am.TxedBuffer(), am.RetxBuffer())
		out := make([][]byte, 0, len(merged)+rlc.TxBufferSize())
		for _, e := range merged {
			out = append(out, e.Pdu)
		}
		out = append(out, rlc.Buffer(drain)...)
		return out
	}

	return rlc.Buffer(drain)
}

// DrainForwardingBuffer walks a forwarding buffer and returns the
// forwardable PDUs with their first minPdcpHeaderSize byte stripped:
// every iteration either emits a PDU or drops one that is shorter than
// minPdcpHeaderSize or lacks the DATA bit, and advances, so the loop
// never stalls (spec §4.1.1).
func DrainForwardingBuffer(buffer [][]byte) [][]byte {
	out := make([][]byte, 0, len(buffer))
	for _, pdu := range buffer {
		if !isForwardableData(pdu) {
			continue
		}
		out = append(out, pdu[minPdcpHeaderSize:])
	}
	return out
}
