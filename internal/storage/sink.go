package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"pool-escrow/internal/domain"
	"pool-escrow/internal/idhash"
)

// JournalSink adapts an EventJournal into a ledger event sink: every emitted
// event is JSON-encoded and appended with a deterministic event id.
type JournalSink struct {
	journal EventJournal
}

// NewJournalSink creates a sink writing to the given journal.
func NewJournalSink(journal EventJournal) *JournalSink {
	return &JournalSink{journal: journal}
}

// Publish appends the event to the journal.
func (s *JournalSink) Publish(ctx context.Context, ev domain.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event payload: %w", err)
	}

	poolID := ev.EventPool().String()
	rec := &domain.EventRecord{
		EventID:   idhash.ComputeEventID(string(ev.EventType()), poolID, ev.OccurredAt(), payload),
		PoolID:    poolID,
		Type:      string(ev.EventType()),
		Payload:   payload,
		Timestamp: ev.OccurredAt(),
		CreatedAt: time.Now().UnixMilli(),
	}

	if err := s.journal.Append(ctx, rec); err != nil {
		return fmt.Errorf("append event record: %w", err)
	}
	return nil
}

// AdmissionSink forwards ParticipantEntered events into an AdmissionStore;
// other event types pass through untouched.
type AdmissionSink struct {
	store AdmissionStore
}

// NewAdmissionSink creates a sink writing admissions to the given store.
func NewAdmissionSink(store AdmissionStore) *AdmissionSink {
	return &AdmissionSink{store: store}
}

// Publish inserts an admission point for ParticipantEntered events.
func (s *AdmissionSink) Publish(ctx context.Context, ev domain.Event) error {
	entered, ok := ev.(domain.ParticipantEntered)
	if !ok {
		return nil
	}

	point := &domain.AdmissionPoint{
		PoolID:      entered.PoolID.String(),
		Holder:      entered.Holder.String(),
		Amount:      entered.Amount,
		Price:       entered.PriceAtEntry,
		TimestampMs: entered.EnteredAt,
	}
	if err := s.store.Insert(ctx, point); err != nil {
		return fmt.Errorf("insert admission point: %w", err)
	}
	return nil
}
