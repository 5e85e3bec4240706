package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func chunksColumns(t *testing.T, db *DB) int {
	t.Helper()
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM pragma_table_info('deliveries') WHERE name = 'chunks'`).Scan(&count); err != nil {
		t.Fatalf("pragma query failed: %v", err)
	}
	return count
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "journal.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	if n := chunksColumns(t, db); n != 1 {
		t.Errorf("expected chunks column in a fresh journal, got %d", n)
	}
	db.Close()

	db, err = Open(path)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer db.Close()

	if n := chunksColumns(t, db); n != 1 {
		t.Errorf("expected chunks column after reopen, got %d", n)
	}
}

func TestRecordDelivery(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	d := &Delivery{LessonTitle: "Lesson A", IsNegative: true, Cursor: "100", Chunks: 2}
	if err := db.RecordDelivery(ctx, d); err != nil {
		t.Fatalf("RecordDelivery failed: %v", err)
	}
	if d.ID == 0 || d.UUID == "" {
		t.Errorf("expected ID and UUID to be filled, got %+v", d)
	}

	got, err := db.RecentDeliveries(ctx, 10)
	if err != nil {
		t.Fatalf("RecentDeliveries failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 delivery, got %d", len(got))
	}
	if got[0].LessonTitle != "Lesson A" || !got[0].IsNegative || got[0].Cursor != "100" || got[0].Chunks != 2 {
		t.Errorf("unexpected delivery %+v", got[0])
	}
	if got[0].UUID != d.UUID {
		t.Errorf("expected uuid %s, got %s", d.UUID, got[0].UUID)
	}
	if time.Since(got[0].DeliveredAt) > time.Minute {
		t.Errorf("unexpected delivered_at %v", got[0].DeliveredAt)
	}
}

func TestRecentDeliveriesNewestFirst(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	for _, title := range []string{"one", "two", "three"} {
		if err := db.RecordDelivery(ctx, &Delivery{LessonTitle: title}); err != nil {
			t.Fatalf("RecordDelivery failed: %v", err)
		}
	}

	got, err := db.RecentDeliveries(ctx, 2)
	if err != nil {
		t.Fatalf("RecentDeliveries failed: %v", err)
	}
	if len(got) != 2 || got[0].LessonTitle != "three" || got[1].LessonTitle != "two" {
		t.Errorf("expected [three two], got %+v", got)
	}

	n, err := db.CountDeliveries(ctx)
	if err != nil || n != 3 {
		t.Errorf("expected 3 deliveries, got %d (%v)", n, err)
	}
}

func TestRecordFailure(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	f := &Failure{Class: "connection_lost", Message: "dial tcp: refused", Cursor: "100", OccurredAt: at}
	if err := db.RecordFailure(ctx, f); err != nil {
		t.Fatalf("RecordFailure failed: %v", err)
	}

	got, err := db.RecentFailures(ctx, 5)
	if err != nil {
		t.Fatalf("RecentFailures failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 failure, got %d", len(got))
	}
	if got[0].Class != "connection_lost" || got[0].Message != "dial tcp: refused" {
		t.Errorf("unexpected failure %+v", got[0])
	}
	if !got[0].OccurredAt.Equal(at) {
		t.Errorf("expected occurred_at %v, got %v", at, got[0].OccurredAt)
	}
}
