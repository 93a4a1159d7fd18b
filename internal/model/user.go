package model

import "time"

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

type UserRole struct {
	ID     int64  `json:"id" db:"id"`
	UserID string `json:"user_id" db:"user_id"`
	Role   string `json:"role" db:"role"`
}
