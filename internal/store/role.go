package store

import (
	"database/sql"
	"fmt"

	"github.com/bethesda/readingplan/internal/model"
)

type RoleStore struct {
	db *sql.DB
}

func NewRoleStore(db *sql.DB) *RoleStore {
	return &RoleStore{db: db}
}

// Grant gives userID the role. Granting a role twice is a no-op.
func (s *RoleStore) Grant(userID, role string) error {
	_, err := s.db.Exec(
		`INSERT INTO user_roles (user_id, role) VALUES (?, ?) ON CONFLICT(user_id, role) DO NOTHING`,
		userID, role,
	)
	if err != nil {
		return fmt.Errorf("grant role: %w", err)
	}
	return nil
}

func (s *RoleStore) Revoke(userID, role string) error {
	_, err := s.db.Exec(`DELETE FROM user_roles WHERE user_id = ? AND role = ?`, userID, role)
	if err != nil {
		return fmt.Errorf("revoke role: %w", err)
	}
	return nil
}

func (s *RoleStore) HasRole(userID, role string) (bool, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM user_roles WHERE user_id = ? AND role = ?`,
		userID, role,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check role: %w", err)
	}
	return n > 0, nil
}

func (s *RoleStore) ListForUser(userID string) ([]string, error) {
	rows, err := s.db.Query(`SELECT role FROM user_roles WHERE user_id = ? ORDER BY role`, userID)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	defer rows.Close()

	var roles []string
	for rows.Next() {
		var r string
		if err := rows.Scan(&r); err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		roles = append(roles, r)
	}
	return roles, rows.Err()
}

func (s *RoleStore) List() ([]model.UserRole, error) {
	rows, err := s.db.Query(`SELECT id, user_id, role FROM user_roles ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list user roles: %w", err)
	}
	defer rows.Close()

	var out []model.UserRole
	for rows.Next() {
		var r model.UserRole
		if err := rows.Scan(&r.ID, &r.UserID, &r.Role); err != nil {
			return nil, fmt.Errorf("scan user role: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
