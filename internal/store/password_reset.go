package store

import (
	"crypto/rand"
	"database/sql"
	"fmt"
	"math/big"
	"time"

	"github.com/bethesda/readingplan/internal/model"
)

// ResetTTL is how long an emailed reset code stays valid.
const ResetTTL = 15 * time.Minute

type PasswordResetStore struct {
	db *sql.DB
}

func NewPasswordResetStore(db *sql.DB) *PasswordResetStore {
	return &PasswordResetStore{db: db}
}

func scanPasswordReset(scanner interface{ Scan(...any) error }) (*model.PasswordReset, error) {
	var pr model.PasswordReset
	var usedAt sql.NullTime
	err := scanner.Scan(&pr.ID, &pr.Code, &pr.UserID, &pr.Email, &pr.ExpiresAt, &usedAt, &pr.Attempts, &pr.CreatedAt)
	if err != nil {
		return nil, err
	}
	if usedAt.Valid {
		pr.UsedAt = &usedAt.Time
	}
	return &pr, nil
}

const resetCols = `id, code, user_id, email, expires_at, used_at, attempts, created_at`

// generateCode returns a 6-digit numeric code (100000–999999).
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// Create issues a new reset code for the user. Earlier pending codes for
// the same email stop working.
func (s *PasswordResetStore) Create(userID, email string) (*model.PasswordReset, error) {
	now := time.Now().UTC()
	_, err := s.db.Exec(
		`UPDATE password_resets SET used_at = ? WHERE email = ? AND used_at IS NULL AND expires_at > ?`,
		now, email, now,
	)
	if err != nil {
		return nil, fmt.Errorf("invalidate previous codes: %w", err)
	}

	code, err := generateCode()
	if err != nil {
		return nil, err
	}
	result, err := s.db.Exec(
		`INSERT INTO password_resets (code, user_id, email, expires_at) VALUES (?, ?, ?, ?)`,
		code, userID, email, now.Add(ResetTTL),
	)
	if err != nil {
		return nil, fmt.Errorf("insert password reset: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	row := s.db.QueryRow(`SELECT `+resetCols+` FROM password_resets WHERE id = ?`, id)
	return scanPasswordReset(row)
}

// GetLatestByEmail returns the newest unexpired, unused code for email, or
// nil if there is none.
func (s *PasswordResetStore) GetLatestByEmail(email string) (*model.PasswordReset, error) {
	row := s.db.QueryRow(
		`SELECT `+resetCols+` FROM password_resets
		 WHERE email = ? AND used_at IS NULL AND expires_at > ?
		 ORDER BY created_at DESC, id DESC LIMIT 1`,
		email, time.Now().UTC(),
	)
	pr, err := scanPasswordReset(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get password reset by email: %w", err)
	}
	return pr, nil
}

// IncrementAttempts records a wrong guess and returns the new count.
func (s *PasswordResetStore) IncrementAttempts(id int64) (int, error) {
	var attempts int
	err := s.db.QueryRow(
		`UPDATE password_resets SET attempts = attempts + 1 WHERE id = ? RETURNING attempts`, id,
	).Scan(&attempts)
	if err != nil {
		return 0, fmt.Errorf("increment attempts: %w", err)
	}
	return attempts, nil
}

func (s *PasswordResetStore) MarkUsed(id int64) error {
	_, err := s.db.Exec(`UPDATE password_resets SET used_at = ? WHERE id = ?`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("mark password reset used: %w", err)
	}
	return nil
}

func (s *PasswordResetStore) DeleteExpired() (int64, error) {
	result, err := s.db.Exec(`DELETE FROM password_resets WHERE expires_at <= ?`, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired password resets: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return count, nil
}
