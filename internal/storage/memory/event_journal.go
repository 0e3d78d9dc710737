package memory

import (
	"context"
	"sort"
	"sync"

	"pool-escrow/internal/domain"
	"pool-escrow/internal/storage"
)

// EventJournal is an in-memory implementation of storage.EventJournal.
type EventJournal struct {
	mu     sync.RWMutex
	nextID int64
	byID   map[string]struct{} // event_id uniqueness
	data   []*domain.EventRecord
}

// NewEventJournal creates a new in-memory event journal.
func NewEventJournal() *EventJournal {
	return &EventJournal{byID: make(map[string]struct{})}
}

// Compile-time interface check.
var _ storage.EventJournal = (*EventJournal)(nil)

// Append adds an event record. Returns ErrDuplicateKey if event_id exists.
func (j *EventJournal) Append(_ context.Context, rec *domain.EventRecord) error {
	if rec == nil || rec.EventID == "" || rec.PoolID == "" {
		return storage.ErrInvalidInput
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if _, exists := j.byID[rec.EventID]; exists {
		return storage.ErrDuplicateKey
	}

	// Store a copy to prevent external mutation
	recCopy := *rec
	recCopy.Payload = append([]byte(nil), rec.Payload...)
	j.nextID++
	recCopy.ID = j.nextID

	j.byID[rec.EventID] = struct{}{}
	j.data = append(j.data, &recCopy)
	return nil
}

// GetByEventID retrieves a single record. Returns ErrNotFound if missing.
func (j *EventJournal) GetByEventID(_ context.Context, eventID string) (*domain.EventRecord, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	for _, rec := range j.data {
		if rec.EventID == eventID {
			recCopy := *rec
			return &recCopy, nil
		}
	}
	return nil, storage.ErrNotFound
}

// GetByPoolID retrieves all records for a pool, ordered by timestamp ASC.
func (j *EventJournal) GetByPoolID(_ context.Context, poolID string) ([]*domain.EventRecord, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	var result []*domain.EventRecord
	for _, rec := range j.data {
		if rec.PoolID == poolID {
			recCopy := *rec
			result = append(result, &recCopy)
		}
	}

	sortRecords(result)
	return result, nil
}

// GetByTimeRange retrieves records for a pool within [start, end] (inclusive).
func (j *EventJournal) GetByTimeRange(_ context.Context, poolID string, start, end int64) ([]*domain.EventRecord, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	var result []*domain.EventRecord
	for _, rec := range j.data {
		if rec.PoolID == poolID && rec.Timestamp >= start && rec.Timestamp <= end {
			recCopy := *rec
			result = append(result, &recCopy)
		}
	}

	sortRecords(result)
	return result, nil
}

// sortRecords orders by timestamp ASC with insertion id as tiebreaker.
func sortRecords(recs []*domain.EventRecord) {
	sort.Slice(recs, func(i, k int) bool {
		if recs[i].Timestamp != recs[k].Timestamp {
			return recs[i].Timestamp < recs[k].Timestamp
		}
		return recs[i].ID < recs[k].ID
	})
}
