package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Repository manages CellProfiles. Adapted from the teacher's NRF
// Repository interface; the subscription half is dropped (see
// DESIGN.md) since nothing in this topology needs push notification of
// registry changes — enb/mmwave re-poll Discover on a fixed interval
// and resolve a peer's X2 address from that cached result.
type Repository interface {
	Register(ctx context.Context, profile *CellProfile) error
	Update(ctx context.Context, cellID uint16, profile *CellProfile) error
	Deregister(ctx context.Context, cellID uint16) error
	Get(ctx context.Context, cellID uint16) (*CellProfile, error)
	GetAll(ctx context.Context) ([]*CellProfile, error)

	Discover(ctx context.Context, query *DiscoveryQuery) ([]*CellProfile, error)

	UpdateHeartbeat(ctx context.Context, cellID uint16) error

	GetStats(ctx context.Context) (*Stats, error)
}

// MemoryRepository is an in-memory Repository, grounded file-for-file
// on the teacher's MemoryRepository: same mutex-guarded map plus
// cleanup-ticker goroutine shape, profiles keyed by cell ID instead of
// NF instance UUID.
type MemoryRepository struct {
	mu       sync.RWMutex
	profiles map[uint16]*CellProfile
	logger   *zap.Logger

	stopChan      chan struct{}
	cleanupTicker *time.Ticker
}

// NewMemoryRepository creates a new in-memory registry.
func NewMemoryRepository(logger *zap.Logger) *MemoryRepository {
	repo := &MemoryRepository{
		profiles:      make(map[uint16]*CellProfile),
		logger:        logger,
		stopChan:      make(chan struct{}),
		cleanupTicker: time.NewTicker(30 * time.Second),
	}
	go repo.cleanup()
	return repo
}

// Register adds a new cell to the registry.
func (r *MemoryRepository) Register(ctx context.Context, profile *CellProfile) error {
	if !profile.IsValid() {
		return fmt.Errorf("invalid cell profile")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.profiles[profile.CellID]; exists {
		return fmt.Errorf("cell already registered: %d", profile.CellID)
	}

	now := time.Now()
	profile.CreatedAt = now
	profile.UpdatedAt = now
	profile.LastHeartbeat = now
	profile.Status = CellStatusRegistered

	r.profiles[profile.CellID] = profile

	r.logger.Info("cell registered",
		zap.Uint16("cell_id", profile.CellID),
		zap.String("role", string(profile.Role)),
		zap.String("x2_address", profile.X2Address),
	)
	return nil
}

// Update replaces an existing cell's profile.
func (r *MemoryRepository) Update(ctx context.Context, cellID uint16, profile *CellProfile) error {
	if !profile.IsValid() {
		return fmt.Errorf("invalid cell profile")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, exists := r.profiles[cellID]
	if !exists {
		return fmt.Errorf("cell not found: %d", cellID)
	}

	profile.CreatedAt = existing.CreatedAt
	profile.UpdatedAt = time.Now()
	profile.LastHeartbeat = existing.LastHeartbeat

	r.profiles[cellID] = profile

	r.logger.Info("cell profile updated", zap.Uint16("cell_id", cellID))
	return nil
}

// Deregister removes a cell from the registry.
func (r *MemoryRepository) Deregister(ctx context.Context, cellID uint16) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.profiles[cellID]; !exists {
		return fmt.Errorf("cell not found: %d", cellID)
	}
	delete(r.profiles, cellID)

	r.logger.Info("cell deregistered", zap.Uint16("cell_id", cellID))
	return nil
}

// Get retrieves a cell profile by cell ID.
func (r *MemoryRepository) Get(ctx context.Context, cellID uint16) (*CellProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	profile, exists := r.profiles[cellID]
	if !exists {
		return nil, fmt.Errorf("cell not found: %d", cellID)
	}
	profileCopy := *profile
	return &profileCopy, nil
}

// GetAll retrieves every registered cell profile.
func (r *MemoryRepository) GetAll(ctx context.Context) ([]*CellProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	profiles := make([]*CellProfile, 0, len(r.profiles))
	for _, profile := range r.profiles {
		profileCopy := *profile
		profiles = append(profiles, &profileCopy)
	}
	return profiles, nil
}

// Discover searches for cell profiles matching query.
func (r *MemoryRepository) Discover(ctx context.Context, query *DiscoveryQuery) ([]*CellProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var results []*CellProfile
	for _, profile := range r.profiles {
		if query.Matches(profile) {
			profileCopy := *profile
			results = append(results, &profileCopy)
		}
	}

	r.logger.Debug("cell discovery",
		zap.Int("total_profiles", len(r.profiles)),
		zap.Int("matched", len(results)),
	)
	return results, nil
}

// UpdateHeartbeat stamps a cell's last-heard-from time.
func (r *MemoryRepository) UpdateHeartbeat(ctx context.Context, cellID uint16) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	profile, exists := r.profiles[cellID]
	if !exists {
		return fmt.Errorf("cell not found: %d", cellID)
	}
	profile.UpdateHeartbeat()
	return nil
}

// GetStats returns registry-wide counts.
func (r *MemoryRepository) GetStats(ctx context.Context) (*Stats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := &Stats{
		TotalCells:  len(r.profiles),
		CellsByRole: make(map[string]int),
	}
	for _, profile := range r.profiles {
		stats.CellsByRole[string(profile.Role)]++
	}
	return stats, nil
}

// cleanup periodically removes cells that have stopped heartbeating.
func (r *MemoryRepository) cleanup() {
	for {
		select {
		case <-r.cleanupTicker.C:
			r.performCleanup()
		case <-r.stopChan:
			return
		}
	}
}

func (r *MemoryRepository) performCleanup() {
	r.mu.Lock()
	defer r.mu.Unlock()

	var expired []uint16
	for id, profile := range r.profiles {
		if profile.IsExpired() {
			expired = append(expired, id)
		}
	}

	for _, id := range expired {
		delete(r.profiles, id)
		r.logger.Warn("cell profile expired and removed", zap.Uint16("cell_id", id))
	}

	if len(expired) > 0 {
		r.logger.Info("cleanup completed", zap.Int("expired_count", len(expired)))
	}
}

// Close stops the repository's background goroutine.
func (r *MemoryRepository) Close() {
	close(r.stopChan)
	r.cleanupTicker.Stop()
}

// Stats represents registry-wide counts.
type Stats struct {
	TotalCells  int            `json:"total_cells"`
	CellsByRole map[string]int `json:"cells_by_role"`
}
