package model

import "time"

type ApprovalStatus string

const (
	StatusPending  ApprovalStatus = "pending"
	StatusApproved ApprovalStatus = "approved"
	StatusRejected ApprovalStatus = "rejected"
)

func (s ApprovalStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Profile is created pending at registration. Only an administrator moves
// it to approved or rejected.
type Profile struct {
	UserID         string         `json:"user_id" db:"user_id"`
	FullName       string         `json:"full_name" db:"full_name"`
	Email          string         `json:"email" db:"email"`
	Phone          *string        `json:"phone" db:"phone"`
	ApprovalStatus ApprovalStatus `json:"approval_status" db:"approval_status"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at" db:"updated_at"`
}

func (p Profile) Approved() bool {
	return p.ApprovalStatus == StatusApproved
}

// NeedsPhone reports whether the member still has to supply a phone number.
func (p Profile) NeedsPhone() bool {
	return p.Phone == nil || *p.Phone == ""
}
