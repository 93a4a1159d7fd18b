package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/bethesda/readingplan/internal/database"
	"github.com/bethesda/readingplan/internal/model"
)

var ErrDuplicateEmail = errors.New("email already registered")

type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

func scanUser(scanner interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	err := scanner.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

const userCols = `id, email, password_hash, created_at`

// Registration is everything needed to sign a new member up.
type Registration struct {
	Email        string
	PasswordHash string
	FullName     string
	Phone        string
}

// Register creates the user, a pending profile and the member role in one
// transaction.
func (s *UserStore) Register(reg Registration) (*model.User, error) {
	email := strings.ToLower(strings.TrimSpace(reg.Email))
	id := uuid.NewString()

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT INTO users (id, email, password_hash) VALUES (?, ?, ?)`,
		id, email, reg.PasswordHash,
	); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	var phone sql.NullString
	if p := strings.TrimSpace(reg.Phone); p != "" {
		phone = sql.NullString{String: p, Valid: true}
	}
	if _, err := tx.Exec(
		`INSERT INTO profiles (user_id, full_name, email, phone, approval_status) VALUES (?, ?, ?, ?, ?)`,
		id, strings.TrimSpace(reg.FullName), email, phone, model.StatusPending,
	); err != nil {
		return nil, fmt.Errorf("insert profile: %w", err)
	}

	if _, err := tx.Exec(
		`INSERT INTO user_roles (user_id, role) VALUES (?, ?)`,
		id, model.RoleMember,
	); err != nil {
		return nil, fmt.Errorf("insert role: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetByID(id)
}

func (s *UserStore) GetByID(id string) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *UserStore) GetByEmail(email string) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE email = ?`, strings.ToLower(strings.TrimSpace(email)))
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

func (s *UserStore) UpdatePassword(id, passwordHash string) error {
	_, err := s.db.Exec(`UPDATE users SET password_hash = ? WHERE id = ?`, passwordHash, id)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

func (s *UserStore) Delete(id string) error {
	_, err := s.db.Exec(`DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}
