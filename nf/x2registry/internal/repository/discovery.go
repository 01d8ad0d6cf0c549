package repository

// DiscoveryQuery is the registry's search criteria, simplified from
// the teacher's TS 29.510 DiscoveryQuery down to what this domain
// actually filters on: a cell's role (group) and, optionally, whether
// it neighbours a given cell ID (spec's "neighbour-distance").
type DiscoveryQuery struct {
	Role         CellRole `json:"role,omitempty"`
	TargetCellID uint16   `json:"target-cell-id,omitempty"`
	NeighborOf   uint16   `json:"neighbor-of,omitempty"`
}

// Matches reports whether profile satisfies the query. Only registered,
// non-expired cells are ever discoverable, mirroring the teacher's
// Matches gate on NFStatusRegistered / IsExpired.
func (q *DiscoveryQuery) Matches(profile *CellProfile) bool {
	if profile.Status != CellStatusRegistered {
		return false
	}
	if profile.IsExpired() {
		return false
	}
	if q.Role != "" && profile.Role != q.Role {
		return false
	}
	if q.TargetCellID != 0 && profile.CellID != q.TargetCellID {
		return false
	}
	if q.NeighborOf != 0 && !q.matchesNeighbor(profile) {
		return false
	}
	return true
}

func (q *DiscoveryQuery) matchesNeighbor(profile *CellProfile) bool {
	for _, id := range profile.NeighborIDs {
		if id == q.NeighborOf {
			return true
		}
	}
	return false
}
