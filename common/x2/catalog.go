// Package x2 implements the logical inter-cell signalling bus (spec
// §4.3): the message catalog, the FIFO-per-peer transport, and the
// dispatch bus that the UE-Manager and RRC-Controller use to talk to
// other cells.
package x2

// Kind identifies an X2 message's payload type. Modelled on the
// teacher's F1AP/PFCP message-type const blocks, re-themed for the
// X2 catalog in spec §4.3.
type Kind uint8

const (
	KindHandoverRequest Kind = iota + 1
	KindHandoverRequestAck
	KindHandoverPreparationFailure
	KindMcHandoverRequest
	KindSnStatusTransfer
	KindUeContextRelease
	KindRlcSetupRequest
	KindRlcSetupCompleted
	KindUeData
	KindForwardRlcPdu
	KindSecondaryCellHandoverCompleted
	KindUeSinrUpdate
	KindAssistantInformation
	KindNotifyLteMmWaveHandoverCompleted
	KindNotifyCoordinatorHandoverFailed
)

func (k Kind) String() string {
	switch k {
	case KindHandoverRequest:
		return "HandoverRequest"
	case KindHandoverRequestAck:
		return "HandoverRequestAck"
	case KindHandoverPreparationFailure:
		return "HandoverPreparationFailure"
	case KindMcHandoverRequest:
		return "McHandoverRequest"
	case KindSnStatusTransfer:
		return "SnStatusTransfer"
	case KindUeContextRelease:
		return "UeContextRelease"
	case KindRlcSetupRequest:
		return "RlcSetupRequest"
	case KindRlcSetupCompleted:
		return "RlcSetupCompleted"
	case KindUeData:
		return "UeData"
	case KindForwardRlcPdu:
		return "ForwardRlcPdu"
	case KindSecondaryCellHandoverCompleted:
		return "SecondaryCellHandoverCompleted"
	case KindUeSinrUpdate:
		return "UeSinrUpdate"
	case KindAssistantInformation:
		return "AssistantInformation"
	case KindNotifyLteMmWaveHandoverCompleted:
		return "NotifyLteMmWaveHandoverCompleted"
	case KindNotifyCoordinatorHandoverFailed:
		return "NotifyCoordinatorHandoverFailed"
	default:
		return "Unknown"
	}
}

// Message is the wire envelope described in spec §6: {kind,
// sourceCellId, targetCellId, payload}. Payload is one of the
// kind-specific structs below.
type Message struct {
	Kind         Kind
	SourceCellID uint16
	TargetCellID uint16
	Payload      any
}

// ErabToSwitch describes one active E-RAB carried in a
// HandoverRequest's list of active bearers.
type ErabToSwitch struct {
	EpsBearerID uint8
	DrbID       uint8
	LcID        uint8
	Qci         uint8
	TransportAddr string
	Teid          uint32
}

// HandoverRequestPayload is the handover-preparation blob emitted by
// prepareHandover (spec §4.1): source context plus the active E-RAB
// list the target must recreate.
type HandoverRequestPayload struct {
	Imsi          uint64
	SourceRnti    uint16
	SourceCellID  uint16
	Mib, Sib1     []byte
	Erabs         []ErabToSwitch
	IsSecondary   bool // McHandoverRequest vs. primary HandoverRequest
	SecondCellID  uint16
}

// HandoverRequestAckPayload carries the handover-command plus the
// transport endpoints the target allocated for each bearer.
type HandoverRequestAckPayload struct {
	Imsi        uint64
	TargetRnti  uint16
	TargetCellID uint16
	Erabs       []ErabToSwitch
}

// HandoverPreparationFailurePayload signals AdmissionRejected at the
// target (spec §7).
type HandoverPreparationFailurePayload struct {
	Imsi   uint64
	Cause  string
}

// SnStatusPerBearer is one AM bearer's PDCP sequence-number snapshot.
type SnStatusPerBearer struct {
	DrbID uint8
	TxSN  uint16
	RxSN  uint16
}

// SnStatusTransferPayload is sent source→target ahead of forwarded
// bytes (spec §4.1.1).
type SnStatusTransferPayload struct {
	Imsi    uint64
	Bearers []SnStatusPerBearer
}

// UeContextReleasePayload finalizes a handover at the source.
type UeContextReleasePayload struct {
	Imsi       uint64
	SourceRnti uint16
}

// RlcSetupRequestPayload asks a mmWave cell to instantiate a
// remote-RLC entity for a split bearer (spec §4.1.2).
type RlcSetupRequestPayload struct {
	Imsi         uint64
	PeerRnti     uint16
	DrbID        uint8
	LcID         uint8
	RlcKind      int
	Teid         uint32
	TransportAddr string
	Group        int // CellGroup this leg belongs to (A or B)
}

// RlcSetupCompletedPayload acknowledges a RlcSetupRequest.
type RlcSetupCompletedPayload struct {
	Imsi     uint64
	DrbID    uint8
	LocalRnti uint16
	Success  bool
}

// UeDataPayload tunnels a PDCP SDU (or a whole PDCP-PDU list) during
// or after handover so the target re-injects it into its own PDCP.
type UeDataPayload struct {
	Imsi  uint64
	DrbID uint8
	Sdus  [][]byte
}

// ForwardRlcPduPayload carries an RLC-level PDU forward used by MC
// bearers whose PDCP lives on a different cell than the RLC leg.
type ForwardRlcPduPayload struct {
	Imsi  uint64
	DrbID uint8
	Pdus  [][]byte
}

// SecondaryCellHandoverCompletedPayload notifies the coordinator that
// an MC secondary leg moved cells, without going through S1 (spec
// §4.1 recvRrcConnectionReconfigurationCompleted, S6).
type SecondaryCellHandoverCompletedPayload struct {
	Imsi              uint64
	MmWaveRnti        uint16
	OldEnbUeX2apID    uint16
	CoordinatorCellID uint16
	IsMc              bool
}

// UeSinrUpdatePayload is the periodic SINR report (spec §4.5). The
// receiving coordinator reads only Sinr, attributing each reading to
// the envelope's SourceCellID; SecondBestCellID and Rnti are carried
// but nothing in this repository sets or reads them.
type UeSinrUpdatePayload struct {
	Sinr            map[uint64]float64 // IMSI -> linear SINR
	SecondBestCellID uint16
	Rnti             uint16
}

// AssistantInformationPayload is a buffer-occupancy/delay hint used by
// the split-bearer scheduler.
type AssistantInformationPayload struct {
	DrbID         uint8
	BufferOccupancy int
	DelayMs         float64
}

// NotifyLteMmWaveHandoverCompletedPayload acknowledges an inter-RAT
// handover from the mmWave side.
type NotifyLteMmWaveHandoverCompletedPayload struct {
	Imsi uint64
}

// NotifyCoordinatorHandoverFailedPayload is emitted on
// TimerExpired(HANDOVER_JOINING) for an MC UE (spec §7).
type NotifyCoordinatorHandoverFailedPayload struct {
	Imsi   uint64
	Source uint16
	Target uint16
}
