package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/bethesda/readingplan/internal/model"
)

type PushStore struct {
	db *sql.DB
}

func NewPushStore(db *sql.DB) *PushStore {
	return &PushStore{db: db}
}

const pushCols = `id, user_id, endpoint, p256dh_key, auth_key, device_name, created_at`

func scanSubscription(scanner interface{ Scan(...any) error }) (*model.PushSubscription, error) {
	var sub model.PushSubscription
	err := scanner.Scan(&sub.ID, &sub.UserID, &sub.Endpoint, &sub.P256dhKey, &sub.AuthKey, &sub.DeviceName, &sub.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func scanSubscriptions(rows *sql.Rows) ([]model.PushSubscription, error) {
	subs := []model.PushSubscription{}
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan push subscription: %w", err)
		}
		subs = append(subs, *sub)
	}
	return subs, rows.Err()
}

// Create registers an endpoint for userID. An endpoint that is already
// known is moved to userID and has its keys replaced.
func (s *PushStore) Create(ctx context.Context, userID, endpoint, p256dh, auth, deviceName string) (*model.PushSubscription, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO push_subscriptions (user_id, endpoint, p256dh_key, auth_key, device_name)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(endpoint) DO UPDATE SET user_id = excluded.user_id, p256dh_key = excluded.p256dh_key,
		     auth_key = excluded.auth_key, device_name = excluded.device_name`,
		userID, endpoint, p256dh, auth, deviceName,
	)
	if err != nil {
		return nil, fmt.Errorf("create push subscription: %w", err)
	}
	// LastInsertId is unreliable on the update path; look the row up by endpoint.
	row := s.db.QueryRowContext(ctx, `SELECT `+pushCols+` FROM push_subscriptions WHERE endpoint = ?`, endpoint)
	sub, err := scanSubscription(row)
	if err != nil {
		return nil, fmt.Errorf("get push subscription: %w", err)
	}
	return sub, nil
}

func (s *PushStore) ListByUser(ctx context.Context, userID string) ([]model.PushSubscription, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+pushCols+` FROM push_subscriptions WHERE user_id = ? ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list push subscriptions: %w", err)
	}
	defer rows.Close()
	return scanSubscriptions(rows)
}

// Delete removes a subscription owned by userID. It reports whether a row
// was removed.
func (s *PushStore) Delete(ctx context.Context, id int64, userID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM push_subscriptions WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return false, fmt.Errorf("delete push subscription: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

func (s *PushStore) DeleteByEndpoint(ctx context.Context, endpoint string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM push_subscriptions WHERE endpoint = ?`, endpoint)
	if err != nil {
		return fmt.Errorf("delete push subscription by endpoint: %w", err)
	}
	return nil
}

// ListReminderTargets returns the subscriptions of approved members who
// have not completed day.
func (s *PushStore) ListReminderTargets(ctx context.Context, day int) ([]model.PushSubscription, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT ps.id, ps.user_id, ps.endpoint, ps.p256dh_key, ps.auth_key, ps.device_name, ps.created_at
		 FROM push_subscriptions ps
		 JOIN profiles p ON p.user_id = ps.user_id
		 WHERE p.approval_status = 'approved'
		   AND NOT EXISTS (
		       SELECT 1 FROM reading_progress rp WHERE rp.user_id = ps.user_id AND rp.day = ?
		   )
		 ORDER BY ps.user_id, ps.id`, day)
	if err != nil {
		return nil, fmt.Errorf("list reminder targets: %w", err)
	}
	defer rows.Close()
	return scanSubscriptions(rows)
}
