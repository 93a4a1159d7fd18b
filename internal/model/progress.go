package model

import "time"

// ProgressRecord marks one completed day for one user.
type ProgressRecord struct {
	ID          int64     `json:"id" db:"id"`
	UserID      string    `json:"user_id" db:"user_id"`
	Day         int       `json:"day" db:"day"`
	CompletedAt time.Time `json:"completed_at" db:"completed_at"`
}

// ProgressSummary is one approved member's row in the admin overview.
// Completed counts distinct days.
type ProgressSummary struct {
	UserID    string  `json:"user_id" db:"user_id"`
	FullName  string  `json:"full_name" db:"full_name"`
	Email     string  `json:"email" db:"email"`
	Completed int     `json:"completed" db:"completed"`
	Percent   float64 `json:"percent" db:"percent"`
}
