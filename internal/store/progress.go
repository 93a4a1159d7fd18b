package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/bethesda/readingplan/internal/model"
	"github.com/bethesda/readingplan/internal/plan"
	"github.com/bethesda/readingplan/internal/progress"
)

var _ progress.RecordStore = (*ProgressStore)(nil)

// ProgressStore persists completion records. One row per (user, day).
type ProgressStore struct {
	db *sqlx.DB
}

func NewProgressStore(db *sql.DB) *ProgressStore {
	return &ProgressStore{db: sqlx.NewDb(db, "sqlite3")}
}

// FetchProgress returns the user's completed days in ascending order.
func (s *ProgressStore) FetchProgress(ctx context.Context, userID string) ([]int, error) {
	days := []int{}
	err := s.db.SelectContext(ctx, &days,
		`SELECT DISTINCT day FROM reading_progress WHERE user_id = ? ORDER BY day`, userID)
	if err != nil {
		return nil, fmt.Errorf("fetch progress: %w", err)
	}
	return days, nil
}

// UpsertProgress records day as completed. Repeating it for a day that is
// already stored refreshes completed_at and never adds a second row.
func (s *ProgressStore) UpsertProgress(ctx context.Context, userID string, day int, completedAt time.Time) error {
	if !plan.ValidDay(day) {
		return fmt.Errorf("upsert progress day %d: %w", day, plan.ErrInvalidDay)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reading_progress (user_id, day, completed_at) VALUES (?, ?, ?)
		 ON CONFLICT(user_id, day) DO UPDATE SET completed_at = excluded.completed_at`,
		userID, day, completedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert progress: %w", err)
	}
	return nil
}

// DeleteProgress removes the record for day. Deleting a missing record is
// not an error.
func (s *ProgressStore) DeleteProgress(ctx context.Context, userID string, day int) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM reading_progress WHERE user_id = ? AND day = ?`, userID, day)
	if err != nil {
		return fmt.Errorf("delete progress: %w", err)
	}
	return nil
}

func (s *ProgressStore) DeleteAllForUser(ctx context.Context, userID string) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM reading_progress WHERE user_id = ?`, userID)
	if err != nil {
		return 0, fmt.Errorf("delete user progress: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// ListRecords returns one user's raw records ordered by day.
func (s *ProgressStore) ListRecords(ctx context.Context, userID string) ([]model.ProgressRecord, error) {
	records := []model.ProgressRecord{}
	err := s.db.SelectContext(ctx, &records,
		`SELECT id, user_id, day, completed_at FROM reading_progress WHERE user_id = ? ORDER BY day`, userID)
	if err != nil {
		return nil, fmt.Errorf("list progress records: %w", err)
	}
	return records, nil
}

// ListAll returns every record, most recent completion first.
func (s *ProgressStore) ListAll(ctx context.Context) ([]model.ProgressRecord, error) {
	records := []model.ProgressRecord{}
	err := s.db.SelectContext(ctx, &records,
		`SELECT id, user_id, day, completed_at FROM reading_progress ORDER BY completed_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list all progress: %w", err)
	}
	return records, nil
}

// Summary returns the per-member overview for approved profiles, most
// progress first.
func (s *ProgressStore) Summary(ctx context.Context) ([]model.ProgressSummary, error) {
	rows := []model.ProgressSummary{}
	err := s.db.SelectContext(ctx, &rows,
		`SELECT user_id, full_name, email, completed, percent
		 FROM admin_progress_summary
		 ORDER BY completed DESC, full_name`)
	if err != nil {
		return nil, fmt.Errorf("progress summary: %w", err)
	}
	return rows, nil
}
