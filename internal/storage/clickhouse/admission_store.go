package clickhouse

import (
	"context"
	"fmt"

	"pool-escrow/internal/domain"
	"pool-escrow/internal/storage"
)

// AdmissionStore implements storage.AdmissionStore using ClickHouse.
// Admissions are append-only points; MergeTree does not enforce uniqueness
// and repeat admissions by the same holder are legitimate rows.
type AdmissionStore struct {
	conn *Conn
}

// NewAdmissionStore creates a new AdmissionStore.
func NewAdmissionStore(conn *Conn) *AdmissionStore {
	return &AdmissionStore{conn: conn}
}

// Compile-time interface check.
var _ storage.AdmissionStore = (*AdmissionStore)(nil)

// Insert adds a single admission point.
func (s *AdmissionStore) Insert(ctx context.Context, p *domain.AdmissionPoint) error {
	if p == nil || p.PoolID == "" || p.Holder == "" {
		return storage.ErrInvalidInput
	}
	return s.InsertBulk(ctx, []*domain.AdmissionPoint{p})
}

// InsertBulk adds multiple points in one batch.
func (s *AdmissionStore) InsertBulk(ctx context.Context, points []*domain.AdmissionPoint) error {
	if len(points) == 0 {
		return nil
	}

	for _, p := range points {
		if p == nil || p.PoolID == "" || p.Holder == "" {
			return storage.ErrInvalidInput
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO pool_admissions (
			pool_id, holder, amount, price, timestamp_ms
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, p := range points {
		err = batch.Append(
			p.PoolID, p.Holder, p.Amount, p.Price, uint64(p.TimestampMs),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByPoolID retrieves all points for a pool, ordered by timestamp ASC.
func (s *AdmissionStore) GetByPoolID(ctx context.Context, poolID string) ([]*domain.AdmissionPoint, error) {
	query := `
		SELECT pool_id, holder, amount, price, timestamp_ms
		FROM pool_admissions
		WHERE pool_id = ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, poolID)
	if err != nil {
		return nil, fmt.Errorf("query by pool id: %w", err)
	}
	defer rows.Close()

	return scanAdmissions(rows)
}

// GetByTimeRange retrieves points for a pool within [start, end] (inclusive).
func (s *AdmissionStore) GetByTimeRange(ctx context.Context, poolID string, start, end int64) ([]*domain.AdmissionPoint, error) {
	query := `
		SELECT pool_id, holder, amount, price, timestamp_ms
		FROM pool_admissions
		WHERE pool_id = ? AND timestamp_ms >= ? AND timestamp_ms <= ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, poolID, uint64(start), uint64(end))
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer rows.Close()

	return scanAdmissions(rows)
}

// Rows interface for scanning
type chRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

// scanAdmissions scans multiple rows into a slice.
func scanAdmissions(rows chRows) ([]*domain.AdmissionPoint, error) {
	var points []*domain.AdmissionPoint

	for rows.Next() {
		var p domain.AdmissionPoint
		var timestampMs uint64

		err := rows.Scan(
			&p.PoolID, &p.Holder, &p.Amount, &p.Price, &timestampMs,
		)
		if err != nil {
			return nil, fmt.Errorf("scan admission row: %w", err)
		}

		p.TimestampMs = int64(timestampMs)
		points = append(points, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate admission rows: %w", err)
	}

	return points, nil
}
