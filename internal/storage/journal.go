package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const timeLayout = time.RFC3339Nano

// RecordDelivery appends d to the journal, filling UUID and DeliveredAt
// when unset.
func (db *DB) RecordDelivery(ctx context.Context, d *Delivery) error {
	if d.UUID == "" {
		d.UUID = uuid.NewString()
	}
	if d.DeliveredAt.IsZero() {
		d.DeliveredAt = time.Now()
	}
	if d.Chunks <= 0 {
		d.Chunks = 1
	}

	res, err := db.ExecContext(ctx, `
		INSERT INTO deliveries (uuid, lesson_title, lesson_url, is_negative, cursor, chunks, delivered_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		d.UUID, d.LessonTitle, d.LessonURL, boolToInt(d.IsNegative), d.Cursor, d.Chunks,
		d.DeliveredAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("insert delivery: %w", err)
	}
	d.ID, _ = res.LastInsertId()
	return nil
}

// RecordFailure appends f to the journal, filling UUID and OccurredAt
// when unset.
func (db *DB) RecordFailure(ctx context.Context, f *Failure) error {
	if f.UUID == "" {
		f.UUID = uuid.NewString()
	}
	if f.OccurredAt.IsZero() {
		f.OccurredAt = time.Now()
	}

	res, err := db.ExecContext(ctx, `
		INSERT INTO failures (uuid, class, message, cursor, occurred_at)
		VALUES (?, ?, ?, ?, ?)`,
		f.UUID, f.Class, f.Message, f.Cursor, f.OccurredAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("insert failure: %w", err)
	}
	f.ID, _ = res.LastInsertId()
	return nil
}

// RecentDeliveries returns up to limit deliveries, newest first.
func (db *DB) RecentDeliveries(ctx context.Context, limit int) ([]Delivery, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, uuid, lesson_title, lesson_url, is_negative, cursor, chunks, delivered_at
		FROM deliveries ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query deliveries: %w", err)
	}
	defer rows.Close()

	var out []Delivery
	for rows.Next() {
		var d Delivery
		var negative int
		var deliveredAt string
		if err := rows.Scan(&d.ID, &d.UUID, &d.LessonTitle, &d.LessonURL, &negative,
			&d.Cursor, &d.Chunks, &deliveredAt); err != nil {
			return nil, fmt.Errorf("scan delivery: %w", err)
		}
		d.IsNegative = negative != 0
		d.DeliveredAt = parseTime(deliveredAt)
		out = append(out, d)
	}
	return out, rows.Err()
}

// RecentFailures returns up to limit failures, newest first.
func (db *DB) RecentFailures(ctx context.Context, limit int) ([]Failure, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, uuid, class, message, cursor, occurred_at
		FROM failures ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query failures: %w", err)
	}
	defer rows.Close()

	var out []Failure
	for rows.Next() {
		var f Failure
		var occurredAt string
		if err := rows.Scan(&f.ID, &f.UUID, &f.Class, &f.Message, &f.Cursor, &occurredAt); err != nil {
			return nil, fmt.Errorf("scan failure: %w", err)
		}
		f.OccurredAt = parseTime(occurredAt)
		out = append(out, f)
	}
	return out, rows.Err()
}

// CountDeliveries returns the number of journaled deliveries.
func (db *DB) CountDeliveries(ctx context.Context) (int, error) {
	var n int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM deliveries`).Scan(&n)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return n, err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
