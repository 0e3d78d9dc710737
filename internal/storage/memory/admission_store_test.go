package memory

import (
	"context"
	"errors"
	"testing"

	"pool-escrow/internal/domain"
	"pool-escrow/internal/storage"
)

func TestAdmissionStore_InsertBulkAndGet(t *testing.T) {
	store := NewAdmissionStore()
	ctx := context.Background()

	points := []*domain.AdmissionPoint{
		{PoolID: "p1", Holder: "h1", Amount: 10, Price: 95, TimestampMs: 1000},
		{PoolID: "p1", Holder: "h2", Amount: 10, Price: 98, TimestampMs: 2000},
	}

	err := store.InsertBulk(ctx, points)
	if err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	result, err := store.GetByPoolID(ctx, "p1")
	if err != nil {
		t.Fatalf("GetByPoolID failed: %v", err)
	}

	if len(result) != 2 {
		t.Errorf("Expected 2 points, got %d", len(result))
	}
}

func TestAdmissionStore_GetByTimeRange(t *testing.T) {
	store := NewAdmissionStore()
	ctx := context.Background()

	points := []*domain.AdmissionPoint{
		{PoolID: "p1", Holder: "h1", Amount: 10, TimestampMs: 1000},
		{PoolID: "p1", Holder: "h2", Amount: 10, TimestampMs: 2000},
		{PoolID: "p1", Holder: "h3", Amount: 10, TimestampMs: 3000},
		{PoolID: "p2", Holder: "h4", Amount: 10, TimestampMs: 2500}, // different pool
	}

	if err := store.InsertBulk(ctx, points); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	result, err := store.GetByTimeRange(ctx, "p1", 1500, 2500)
	if err != nil {
		t.Fatalf("GetByTimeRange failed: %v", err)
	}

	if len(result) != 1 {
		t.Errorf("Expected 1 point in range, got %d", len(result))
	}

	if result[0].Holder != "h2" {
		t.Errorf("Expected holder h2, got %s", result[0].Holder)
	}
}

func TestAdmissionStore_OrderByTimestamp(t *testing.T) {
	store := NewAdmissionStore()
	ctx := context.Background()

	points := []*domain.AdmissionPoint{
		{PoolID: "p1", Holder: "h3", Amount: 10, TimestampMs: 3000},
		{PoolID: "p1", Holder: "h1", Amount: 10, TimestampMs: 1000},
		{PoolID: "p1", Holder: "h2", Amount: 10, TimestampMs: 2000},
	}

	if err := store.InsertBulk(ctx, points); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	result, _ := store.GetByPoolID(ctx, "p1")

	for i := 1; i < len(result); i++ {
		if result[i].TimestampMs < result[i-1].TimestampMs {
			t.Errorf("Results not ordered: %d < %d", result[i].TimestampMs, result[i-1].TimestampMs)
		}
	}
}

func TestAdmissionStore_RepeatHolderAllowed(t *testing.T) {
	store := NewAdmissionStore()
	ctx := context.Background()

	// same holder admitted twice is two separate points
	for i := 0; i < 2; i++ {
		err := store.Insert(ctx, &domain.AdmissionPoint{PoolID: "p1", Holder: "h1", Amount: 10, TimestampMs: int64(1000 + i)})
		if err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	result, _ := store.GetByPoolID(ctx, "p1")
	if len(result) != 2 {
		t.Errorf("Expected 2 points, got %d", len(result))
	}
}

func TestAdmissionStore_InvalidInput(t *testing.T) {
	store := NewAdmissionStore()
	ctx := context.Background()

	err := store.Insert(ctx, nil)
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for nil point, got %v", err)
	}

	err = store.InsertBulk(ctx, []*domain.AdmissionPoint{{PoolID: "", Holder: "h1"}})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for empty PoolID, got %v", err)
	}

	// Invalid entry anywhere rejects the whole batch
	points := []*domain.AdmissionPoint{
		{PoolID: "p1", Holder: "h1", TimestampMs: 1000},
		{PoolID: "p1", Holder: ""},
	}
	err = store.InsertBulk(ctx, points)
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for invalid batch, got %v", err)
	}

	result, _ := store.GetByPoolID(ctx, "p1")
	if len(result) != 0 {
		t.Errorf("Expected 0 points (rejected batch), got %d", len(result))
	}
}

func TestAdmissionStore_EmptyBulk(t *testing.T) {
	store := NewAdmissionStore()
	ctx := context.Background()

	err := store.InsertBulk(ctx, []*domain.AdmissionPoint{})
	if err != nil {
		t.Errorf("Empty bulk should succeed, got %v", err)
	}
}
