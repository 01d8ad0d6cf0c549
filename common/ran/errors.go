package ran

import "errors"

// Typed sentinel errors for invariant-boundary conditions the spec
// calls out (spec.md §7, §9 Design Notes). Ordinary internal errors
// stay as wrapped fmt.Errorf strings, matching the teacher's style.
var (
	// ErrAdmissionDenied is returned when a target cell rejects an
	// incoming handover or RACH request (admitHandoverRequest /
	// admitRrcConnectionRequest == false).
	ErrAdmissionDenied = errors.New("ran: admission denied")

	// ErrNoRntiAvailable is returned when a cell's RNTI pool is
	// exhausted on RACH or handover admission.
	ErrNoRntiAvailable = errors.New("ran: no RNTI available")

	// ErrNoPreamble is returned when the non-contention preamble pool
	// is exhausted.
	ErrNoPreamble = errors.New("ran: no preamble available")

	// ErrDrbTableFull is returned by setupDataRadioBearer when a
	// UE-Manager's DRB table (DRB-IDs 1..31) has no free slot.
	ErrDrbTableFull = errors.New("ran: DRB table full")

	// ErrUnknownDrb is returned when a DRB-ID is referenced that the
	// UE-Manager never allocated.
	ErrUnknownDrb = errors.New("ran: unknown DRB")

	// ErrInconsistentMapping signals a genuine invariant violation in
	// the IMSI/RNTI mappings (I1, I6); the protocol guarantees this
	// cannot occur in normal operation, so callers should treat it as
	// fatal rather than retry.
	ErrInconsistentMapping = errors.New("ran: inconsistent IMSI/RNTI mapping")

	// ErrResourceExhausted is a general resource-pool exhaustion error
	// (SRS configuration index, X2AP transaction ID).
	ErrResourceExhausted = errors.New("ran: resource exhausted")

	// ErrUeNotFound is returned when an operation names an IMSI this
	// cell has no local UE-Manager for.
	ErrUeNotFound = errors.New("ran: UE not found")
)
