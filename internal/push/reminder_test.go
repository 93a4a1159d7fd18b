package push

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/bethesda/readingplan/internal/model"
	"github.com/bethesda/readingplan/internal/plan"
)

type fakeSender struct {
	payloads []Payload
	fail     map[string]error
}

func (f *fakeSender) Send(_ context.Context, sub *model.PushSubscription, p Payload) error {
	if err := f.fail[sub.Endpoint]; err != nil {
		return err
	}
	f.payloads = append(f.payloads, p)
	return nil
}

type fakeTargets struct {
	day     int
	subs    []model.PushSubscription
	deleted []string
	err     error
}

func (f *fakeTargets) ListReminderTargets(_ context.Context, day int) ([]model.PushSubscription, error) {
	f.day = day
	return f.subs, f.err
}

func (f *fakeTargets) DeleteByEndpoint(_ context.Context, endpoint string) error {
	f.deleted = append(f.deleted, endpoint)
	return nil
}

func newTestReminder(sender Sender, targets TargetStore, now time.Time) *Reminder {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	calendar := func(now time.Time) plan.Calendar { return plan.YearCalendar(now, time.UTC) }
	r := NewReminder(sender, targets, plan.Default(), calendar, logger)
	r.now = func() time.Time { return now }
	return r
}

func TestReminderRun(t *testing.T) {
	sender := &fakeSender{fail: map[string]error{
		"https://push.example/gone":  ErrExpired,
		"https://push.example/flaky": errors.New("timeout"),
	}}
	targets := &fakeTargets{subs: []model.PushSubscription{
		{ID: 1, UserID: "a", Endpoint: "https://push.example/ok"},
		{ID: 2, UserID: "b", Endpoint: "https://push.example/gone"},
		{ID: 3, UserID: "c", Endpoint: "https://push.example/flaky"},
	}}
	// February 19 is day 50
	r := newTestReminder(sender, targets, time.Date(2026, 2, 19, 7, 0, 0, 0, time.UTC))

	sent, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sent != 1 {
		t.Errorf("sent = %d, want 1", sent)
	}
	if targets.day != 50 {
		t.Errorf("queried day = %d, want 50", targets.day)
	}
	if len(targets.deleted) != 1 || targets.deleted[0] != "https://push.example/gone" {
		t.Errorf("deleted = %v, want only the expired endpoint", targets.deleted)
	}

	entry, _ := plan.Default().Day(50)
	p := sender.payloads[0]
	if p.Title != "Day 50 reading" || p.Tag != "day-50" {
		t.Errorf("payload = %+v", p)
	}
	if p.Body != reminderBody(entry) {
		t.Errorf("body = %q, want %q", p.Body, reminderBody(entry))
	}
}

func TestReminderOutsidePlan(t *testing.T) {
	targets := &fakeTargets{}
	calendarStart := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	r := newTestReminder(&fakeSender{}, targets, time.Date(2026, 12, 31, 7, 0, 0, 0, time.UTC))
	r.calendar = func(time.Time) plan.Calendar { return plan.NewCalendar(calendarStart, time.UTC) }

	sent, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sent != 0 || targets.day != 0 {
		t.Errorf("sent = %d, queried day = %d; want nothing", sent, targets.day)
	}
}

func TestReminderStoreError(t *testing.T) {
	targets := &fakeTargets{err: errors.New("db closed")}
	r := newTestReminder(&fakeSender{}, targets, time.Date(2026, 2, 19, 7, 0, 0, 0, time.UTC))
	if _, err := r.Run(context.Background()); err == nil {
		t.Error("expected store error")
	}
}

func TestReminderBody(t *testing.T) {
	if got := reminderBody(plan.DayEntry{Primary: "Psalm 1"}); got != "Psalm 1" {
		t.Errorf("body = %q", got)
	}
	if got := reminderBody(plan.DayEntry{Primary: "Genesis 1", Secondary: "Matthew 1"}); got != "Genesis 1 and Matthew 1" {
		t.Errorf("body = %q", got)
	}
}
