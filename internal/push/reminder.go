package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bethesda/readingplan/internal/model"
	"github.com/bethesda/readingplan/internal/plan"
)

// Sender delivers one notification.
type Sender interface {
	Send(ctx context.Context, sub *model.PushSubscription, payload Payload) error
}

// TargetStore finds who still has to read a day and forgets dead endpoints.
type TargetStore interface {
	ListReminderTargets(ctx context.Context, day int) ([]model.PushSubscription, error)
	DeleteByEndpoint(ctx context.Context, endpoint string) error
}

// Reminder nudges members who have not completed today's reading.
type Reminder struct {
	sender   Sender
	targets  TargetStore
	catalog  *plan.Catalog
	calendar func(now time.Time) plan.Calendar
	now      func() time.Time
	logger   *slog.Logger
}

func NewReminder(sender Sender, targets TargetStore, catalog *plan.Catalog, calendar func(now time.Time) plan.Calendar, logger *slog.Logger) *Reminder {
	return &Reminder{
		sender:   sender,
		targets:  targets,
		catalog:  catalog,
		calendar: calendar,
		now:      time.Now,
		logger:   logger.With("component", "reminder"),
	}
}

// Run sends today's reminder and returns how many notifications were
// delivered. Outside the plan's date range nothing is sent.
func (r *Reminder) Run(ctx context.Context) (int, error) {
	now := r.now()
	day := r.calendar(now).Today(now)
	entry, err := r.catalog.Day(day)
	if err != nil {
		r.logger.Debug("no plan day today", "day", day)
		return 0, nil
	}

	subs, err := r.targets.ListReminderTargets(ctx, day)
	if err != nil {
		return 0, fmt.Errorf("list reminder targets: %w", err)
	}

	payload := Payload{
		Title: fmt.Sprintf("Day %d reading", day),
		Body:  reminderBody(entry),
		URL:   "/",
		Tag:   fmt.Sprintf("day-%d", day),
	}

	sent := 0
	for i := range subs {
		sub := &subs[i]
		err := r.sender.Send(ctx, sub, payload)
		switch {
		case err == nil:
			sent++
		case errors.Is(err, ErrExpired):
			if err := r.targets.DeleteByEndpoint(ctx, sub.Endpoint); err != nil {
				r.logger.Error("remove expired subscription", "id", sub.ID, "error", err)
			}
		default:
			r.logger.Warn("send reminder", "user_id", sub.UserID, "error", err)
		}
	}

	r.logger.Info("reminders sent", "day", day, "targets", len(subs), "sent", sent)
	return sent, nil
}

func reminderBody(e plan.DayEntry) string {
	if e.Secondary == "" {
		return e.Primary
	}
	return e.Primary + " and " + e.Secondary
}
