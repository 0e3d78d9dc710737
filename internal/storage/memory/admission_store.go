package memory

import (
	"context"
	"sort"
	"sync"

	"pool-escrow/internal/domain"
	"pool-escrow/internal/storage"
)

// AdmissionStore is an in-memory implementation of storage.AdmissionStore.
type AdmissionStore struct {
	mu   sync.RWMutex
	data []*domain.AdmissionPoint
}

// NewAdmissionStore creates a new in-memory admission store.
func NewAdmissionStore() *AdmissionStore {
	return &AdmissionStore{}
}

// Compile-time interface check.
var _ storage.AdmissionStore = (*AdmissionStore)(nil)

// Insert adds a single admission point.
func (s *AdmissionStore) Insert(_ context.Context, p *domain.AdmissionPoint) error {
	if p == nil || p.PoolID == "" || p.Holder == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	pCopy := *p
	s.data = append(s.data, &pCopy)
	return nil
}

// InsertBulk adds multiple admission points. Rejects the whole batch if any
// point is invalid.
func (s *AdmissionStore) InsertBulk(_ context.Context, points []*domain.AdmissionPoint) error {
	for _, p := range points {
		if p == nil || p.PoolID == "" || p.Holder == "" {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range points {
		pCopy := *p
		s.data = append(s.data, &pCopy)
	}
	return nil
}

// GetByPoolID retrieves all admissions for a pool, ordered by timestamp ASC.
func (s *AdmissionStore) GetByPoolID(_ context.Context, poolID string) ([]*domain.AdmissionPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.AdmissionPoint
	for _, p := range s.data {
		if p.PoolID == poolID {
			pCopy := *p
			result = append(result, &pCopy)
		}
	}

	sortAdmissions(result)
	return result, nil
}

// GetByTimeRange retrieves admissions for a pool within [start, end] (inclusive).
func (s *AdmissionStore) GetByTimeRange(_ context.Context, poolID string, start, end int64) ([]*domain.AdmissionPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.AdmissionPoint
	for _, p := range s.data {
		if p.PoolID == poolID && p.TimestampMs >= start && p.TimestampMs <= end {
			pCopy := *p
			result = append(result, &pCopy)
		}
	}

	sortAdmissions(result)
	return result, nil
}

func sortAdmissions(points []*domain.AdmissionPoint) {
	sort.Slice(points, func(i, k int) bool {
		return points[i].TimestampMs < points[k].TimestampMs
	})
}
