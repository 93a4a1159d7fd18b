package model

import "time"

type PasswordReset struct {
	ID        int64      `json:"id"`
	Code      string     `json:"-"`
	UserID    string     `json:"user_id"`
	Email     string     `json:"email"`
	ExpiresAt time.Time  `json:"expires_at"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
	Attempts  int        `json:"attempts"`
	CreatedAt time.Time  `json:"created_at"`
}
