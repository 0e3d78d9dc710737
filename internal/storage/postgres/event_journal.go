package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"pool-escrow/internal/domain"
	"pool-escrow/internal/storage"
)

// EventJournal implements storage.EventJournal using PostgreSQL.
type EventJournal struct {
	pool *Pool
}

// NewEventJournal creates a new EventJournal.
func NewEventJournal(pool *Pool) *EventJournal {
	return &EventJournal{pool: pool}
}

// Compile-time interface check.
var _ storage.EventJournal = (*EventJournal)(nil)

// Append adds an event record. Returns ErrDuplicateKey if event_id exists.
func (j *EventJournal) Append(ctx context.Context, rec *domain.EventRecord) error {
	if rec == nil || rec.EventID == "" || rec.PoolID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO pool_events (
			event_id, pool_id, type, payload, timestamp
		) VALUES ($1, $2, $3, $4, $5)
	`

	_, err := j.pool.Exec(ctx, query,
		rec.EventID,
		rec.PoolID,
		rec.Type,
		rec.Payload,
		rec.Timestamp,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert event record: %w", err)
	}
	return nil
}

// GetByEventID retrieves a single record. Returns ErrNotFound if missing.
func (j *EventJournal) GetByEventID(ctx context.Context, eventID string) (*domain.EventRecord, error) {
	query := `
		SELECT id, event_id, pool_id, type, payload, timestamp, created_at
		FROM pool_events
		WHERE event_id = $1
	`

	var rec domain.EventRecord
	err := j.pool.QueryRow(ctx, query, eventID).Scan(
		&rec.ID,
		&rec.EventID,
		&rec.PoolID,
		&rec.Type,
		&rec.Payload,
		&rec.Timestamp,
		&rec.CreatedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get event record by event id: %w", err)
	}

	return &rec, nil
}

// GetByPoolID retrieves all records for a pool, ordered by timestamp ASC.
func (j *EventJournal) GetByPoolID(ctx context.Context, poolID string) ([]*domain.EventRecord, error) {
	query := `
		SELECT id, event_id, pool_id, type, payload, timestamp, created_at
		FROM pool_events
		WHERE pool_id = $1
		ORDER BY timestamp ASC, id ASC
	`

	rows, err := j.pool.Query(ctx, query, poolID)
	if err != nil {
		return nil, fmt.Errorf("get event records by pool id: %w", err)
	}
	defer rows.Close()

	return scanEventRecords(rows)
}

// GetByTimeRange retrieves records for a pool within [start, end] (inclusive).
func (j *EventJournal) GetByTimeRange(ctx context.Context, poolID string, start, end int64) ([]*domain.EventRecord, error) {
	query := `
		SELECT id, event_id, pool_id, type, payload, timestamp, created_at
		FROM pool_events
		WHERE pool_id = $1 AND timestamp >= $2 AND timestamp <= $3
		ORDER BY timestamp ASC, id ASC
	`

	rows, err := j.pool.Query(ctx, query, poolID, start, end)
	if err != nil {
		return nil, fmt.Errorf("get event records by time range: %w", err)
	}
	defer rows.Close()

	return scanEventRecords(rows)
}

// scanEventRecords scans multiple rows into a slice of EventRecord.
func scanEventRecords(rows pgx.Rows) ([]*domain.EventRecord, error) {
	var recs []*domain.EventRecord

	for rows.Next() {
		var rec domain.EventRecord

		err := rows.Scan(
			&rec.ID,
			&rec.EventID,
			&rec.PoolID,
			&rec.Type,
			&rec.Payload,
			&rec.Timestamp,
			&rec.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan event record row: %w", err)
		}

		recs = append(recs, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate event record rows: %w", err)
	}

	return recs, nil
}
