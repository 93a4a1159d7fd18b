package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/bethesda/readingplan/internal/model"
)

var ErrProfileNotFound = errors.New("profile not found")

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Question)

var profileCols = []string{
	"user_id", "full_name", "email", "phone", "approval_status", "created_at", "updated_at",
}

// ProfileFilter narrows List. A zero value lists every profile.
type ProfileFilter struct {
	Status model.ApprovalStatus
}

type ProfileStore struct {
	db *sqlx.DB
}

func NewProfileStore(db *sql.DB) *ProfileStore {
	return &ProfileStore{db: sqlx.NewDb(db, "sqlite3")}
}

// List returns profiles newest first.
func (s *ProfileStore) List(ctx context.Context, filter ProfileFilter) ([]model.Profile, error) {
	query := psql.Select(profileCols...).From("profiles").OrderBy("created_at DESC", "user_id")
	if filter.Status != "" {
		query = query.Where(sq.Eq{"approval_status": filter.Status})
	}
	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list profiles: %w", err)
	}

	profiles := []model.Profile{}
	if err := s.db.SelectContext(ctx, &profiles, stmt, args...); err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	return profiles, nil
}

func (s *ProfileStore) Get(ctx context.Context, userID string) (*model.Profile, error) {
	stmt, args, err := psql.Select(profileCols...).From("profiles").Where(sq.Eq{"user_id": userID}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get profile: %w", err)
	}

	var p model.Profile
	err = s.db.GetContext(ctx, &p, stmt, args...)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return &p, nil
}

func (s *ProfileStore) UpdateApprovalStatus(ctx context.Context, userID string, status model.ApprovalStatus) error {
	if !status.Valid() {
		return fmt.Errorf("invalid approval status %q", status)
	}
	return s.update(ctx, userID, sq.Eq{"approval_status": status})
}

// UpdatePhone stores the member's phone. An empty phone clears it.
func (s *ProfileStore) UpdatePhone(ctx context.Context, userID, phone string) error {
	var v any
	if p := strings.TrimSpace(phone); p != "" {
		v = p
	}
	return s.update(ctx, userID, sq.Eq{"phone": v})
}

func (s *ProfileStore) update(ctx context.Context, userID string, set sq.Eq) error {
	set["updated_at"] = time.Now().UTC()
	stmt, args, err := psql.Update("profiles").SetMap(set).Where(sq.Eq{"user_id": userID}).ToSql()
	if err != nil {
		return fmt.Errorf("build update profile: %w", err)
	}
	result, err := s.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrProfileNotFound
	}
	return nil
}

// Remove takes a member out of the plan: their progress is deleted and the
// profile is marked rejected. The account itself stays so it can be
// re-approved later.
func (s *ProfileStore) Remove(ctx context.Context, userID string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM reading_progress WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("delete progress: %w", err)
	}
	result, err := tx.ExecContext(ctx,
		`UPDATE profiles SET approval_status = ?, updated_at = ? WHERE user_id = ?`,
		model.StatusRejected, time.Now().UTC(), userID,
	)
	if err != nil {
		return fmt.Errorf("reject profile: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return fmt.Errorf("rows affected: %w", err)
	} else if n == 0 {
		return ErrProfileNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
