// Package storage defines the persistence interfaces behind the ledger's
// observability surfaces: an append-only journal of emitted domain events
// and a flattened admission timeseries for analytics. The ledger itself is
// authoritative in memory; these stores are audit trails, never consulted
// for control flow.
package storage

import (
	"context"

	"pool-escrow/internal/domain"
)

// EventJournal provides access to pool_events storage.
type EventJournal interface {
	// Append adds an event record. Returns ErrDuplicateKey if event_id exists.
	Append(ctx context.Context, rec *domain.EventRecord) error

	// GetByEventID retrieves a single record. Returns ErrNotFound if missing.
	GetByEventID(ctx context.Context, eventID string) (*domain.EventRecord, error)

	// GetByPoolID retrieves all records for a pool, ordered by timestamp ASC.
	GetByPoolID(ctx context.Context, poolID string) ([]*domain.EventRecord, error)

	// GetByTimeRange retrieves records for a pool within [start, end] (inclusive).
	GetByTimeRange(ctx context.Context, poolID string, start, end int64) ([]*domain.EventRecord, error)
}

// AdmissionStore provides access to pool_admissions storage.
type AdmissionStore interface {
	// Insert adds a single admission point.
	Insert(ctx context.Context, p *domain.AdmissionPoint) error

	// InsertBulk adds multiple points. Fails the entire batch on any error.
	InsertBulk(ctx context.Context, points []*domain.AdmissionPoint) error

	// GetByPoolID retrieves all points for a pool, ordered by timestamp ASC.
	GetByPoolID(ctx context.Context, poolID string) ([]*domain.AdmissionPoint, error)

	// GetByTimeRange retrieves points for a pool within [start, end] (inclusive).
	GetByTimeRange(ctx context.Context, poolID string, start, end int64) ([]*domain.AdmissionPoint, error)
}
