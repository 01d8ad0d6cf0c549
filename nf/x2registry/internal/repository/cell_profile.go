package repository

import (
	"time"
)

// CellRole classifies a registered cell the way the coordinator's
// control loop needs to: which frequency group it serves, or whether
// it is the LTE anchor. Adapted from the teacher's NFType, which
// classified AMF/SMF/UPF/etc.
type CellRole string

const (
	CellRoleLte CellRole = "LTE"
	CellRoleA   CellRole = "A"
	CellRoleB   CellRole = "B"
)

// CellStatus mirrors the teacher's NFStatus lifecycle, trimmed to the
// two states a cell can actually be in.
type CellStatus string

const (
	CellStatusRegistered     CellStatus = "REGISTERED"
	CellStatusUndiscoverable CellStatus = "UNDISCOVERABLE"
)

// CellProfile is the registry's record of one LTE or mmWave cell:
// where to reach it over X2, which group it belongs to, and how
// recently it last heartbeated. Adapted from the teacher's NFProfile,
// dropping every TS 29.510 field (PLMN, S-NSSAI, NFServices, AMF/SMF/
// UPF-specific info) this domain has no use for.
type CellProfile struct {
	CellID      uint16     `json:"cellId"`
	Role        CellRole   `json:"role"`
	Status      CellStatus `json:"status"`
	X2Address   string     `json:"x2Address"`   // base URL peers POST X2 messages to
	SBIAddress  string     `json:"sbiAddress"`  // base URL for this cell's own SBI/health endpoints
	NeighborIDs []uint16   `json:"neighborIds"` // cell IDs this cell reports SINR against

	HeartBeatTimer int `json:"heartBeatTimer,omitempty"` // seconds; 0 disables expiry

	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
	LastHeartbeat time.Time `json:"lastHeartbeat"`
}

// IsValid reports whether the profile carries the minimum identity and
// reachability information the registry requires.
func (p *CellProfile) IsValid() bool {
	if p.CellID == 0 {
		return false
	}
	if p.Role == "" {
		return false
	}
	if p.X2Address == "" {
		return false
	}
	return true
}

// UpdateHeartbeat stamps the profile as having just been heard from.
func (p *CellProfile) UpdateHeartbeat() {
	p.LastHeartbeat = time.Now()
	p.UpdatedAt = time.Now()
}

// IsExpired reports whether the cell has missed its heartbeat window.
func (p *CellProfile) IsExpired() bool {
	if p.HeartBeatTimer == 0 {
		return false
	}
	timeout := time.Duration(p.HeartBeatTimer) * time.Second
	return time.Now().After(p.LastHeartbeat.Add(timeout))
}
