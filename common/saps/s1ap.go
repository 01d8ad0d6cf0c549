package saps

import (
	"context"
	"fmt"
	"sync"
)

// BearerSwitch identifies one E-RAB to move in a path-switch request.
type BearerSwitch struct {
	EpsBearerID uint8
	TransportAddr string
	Teid          uint32
}

// PathSwitchRequest is the payload for S1APSap.PathSwitchRequest.
type PathSwitchRequest struct {
	Rnti          uint16
	CellID        uint16
	Imsi          uint64
	BearersToSwitch []BearerSwitch
}

// S1APSap is the downward S1-AP interface: initial UE registration,
// the S1 path-switch performed after a primary handover, and bearer
// release indications (spec §6). Secondary-cell (MC) handovers never
// call PathSwitchRequest; they notify the coordinator over X2 instead
// (spec §4.1 recvRrcConnectionReconfigurationCompleted, S6).
type S1APSap interface {
	InitialUeMessage(ctx context.Context, imsi uint64, rnti uint16) error
	PathSwitchRequest(ctx context.Context, req PathSwitchRequest) error
	SendReleaseIndication(ctx context.Context, imsi uint64, rnti uint16, bearerID uint8) error
}

// SimulatedS1AP is a simulated S1-AP SAP that records calls for test
// assertions (e.g. Testable Property / seed scenario S6: "the MME /
// S1-AP interface sees zero PathSwitchRequest messages").
type SimulatedS1AP struct {
	mu                 sync.Mutex
	InitialUeMessages  []struct{ Imsi uint64; Rnti uint16 }
	PathSwitchRequests []PathSwitchRequest
	ReleaseIndications []struct {
		Imsi, BearerID uint64
		Rnti           uint16
	}
}

func NewSimulatedS1AP() *SimulatedS1AP { return &SimulatedS1AP{} }

func (s *SimulatedS1AP) InitialUeMessage(ctx context.Context, imsi uint64, rnti uint16) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.InitialUeMessages = append(s.InitialUeMessages, struct {
		Imsi uint64
		Rnti uint16
	}{imsi, rnti})
	return nil
}

func (s *SimulatedS1AP) PathSwitchRequest(ctx context.Context, req PathSwitchRequest) error {
	if len(req.BearersToSwitch) == 0 {
		return fmt.Errorf("saps: path switch request with no bearers")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.PathSwitchRequests = append(s.PathSwitchRequests, req)
	return nil
}

func (s *SimulatedS1AP) SendReleaseIndication(ctx context.Context, imsi uint64, rnti uint16, bearerID uint8) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ReleaseIndications = append(s.ReleaseIndications, struct {
		Imsi, BearerID uint64
		Rnti           uint16
	}{imsi, uint64(bearerID), rnti})
	return nil
}

// PathSwitchCount reports how many PathSwitchRequest calls were
// observed, used to assert S6's "zero path switches" expectation.
func (s *SimulatedS1AP) PathSwitchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.PathSwitchRequests)
}
