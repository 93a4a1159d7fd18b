// Package report renders the administrator data export.
package report

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/bethesda/readingplan/internal/model"
	"github.com/bethesda/readingplan/internal/store"
)

// Snapshot is everything the export contains.
type Snapshot struct {
	Profiles []model.Profile
	Progress []model.ProgressRecord
	Roles    []model.UserRole
}

// Collect reads a consistent-enough snapshot for export: profiles newest
// first, progress by most recent completion, roles in insertion order.
func Collect(ctx context.Context, profiles *store.ProfileStore, progress *store.ProgressStore, roles *store.RoleStore) (*Snapshot, error) {
	p, err := profiles.List(ctx, store.ProfileFilter{})
	if err != nil {
		return nil, fmt.Errorf("collect profiles: %w", err)
	}
	rp, err := progress.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("collect progress: %w", err)
	}
	ur, err := roles.List()
	if err != nil {
		return nil, fmt.Errorf("collect roles: %w", err)
	}
	return &Snapshot{Profiles: p, Progress: rp, Roles: ur}, nil
}

// Filename is the attachment name for an export taken at now.
func Filename(now time.Time, ext string) string {
	return fmt.Sprintf("readingplan_export_%s.%s", now.UTC().Format("2006-01-02"), ext)
}

type section struct {
	title   string
	sheet   string
	headers []string
	rows    [][]string
}

func (s *Snapshot) sections() []section {
	profiles := section{
		title:   "PROFILES",
		sheet:   "Profiles",
		headers: []string{"user_id", "full_name", "email", "phone", "approval_status", "created_at", "updated_at"},
	}
	for _, p := range s.Profiles {
		phone := ""
		if p.Phone != nil {
			phone = *p.Phone
		}
		profiles.rows = append(profiles.rows, []string{
			p.UserID, p.FullName, p.Email, phone, string(p.ApprovalStatus),
			formatTime(p.CreatedAt), formatTime(p.UpdatedAt),
		})
	}

	progress := section{
		title:   "READING_PROGRESS",
		sheet:   "Reading Progress",
		headers: []string{"id", "user_id", "day", "completed_at"},
	}
	for _, r := range s.Progress {
		progress.rows = append(progress.rows, []string{
			strconv.FormatInt(r.ID, 10), r.UserID, strconv.Itoa(r.Day), formatTime(r.CompletedAt),
		})
	}

	roles := section{
		title:   "USER_ROLES",
		sheet:   "User Roles",
		headers: []string{"id", "user_id", "role"},
	}
	for _, r := range s.Roles {
		roles.rows = append(roles.rows, []string{strconv.FormatInt(r.ID, 10), r.UserID, r.Role})
	}

	return []section{profiles, progress, roles}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
