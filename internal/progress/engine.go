package progress

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bethesda/readingplan/internal/plan"
)

// RecordStore persists completion records. UpsertProgress and
// DeleteProgress must be idempotent for a given (userID, day).
type RecordStore interface {
	FetchProgress(ctx context.Context, userID string) ([]int, error)
	UpsertProgress(ctx context.Context, userID string, day int, completedAt time.Time) error
	DeleteProgress(ctx context.Context, userID string, day int) error
}

// Identity is the signed-in user as seen by the engine.
type Identity struct {
	UserID   string
	Approved bool
}

// AuthProvider reports the current user, if any.
type AuthProvider interface {
	CurrentUser(ctx context.Context) (Identity, bool)
}

type NotificationKind string

const (
	NotifyLoadFailed   NotificationKind = "load_failed"
	NotifyMarkFailed   NotificationKind = "mark_failed"
	NotifyUnmarkFailed NotificationKind = "unmark_failed"
)

// Notification is a transient, user-facing message.
type Notification struct {
	Kind    NotificationKind `json:"kind"`
	Title   string           `json:"title"`
	Message string           `json:"message"`
	Day     int              `json:"day,omitempty"`
}

type Notifier interface {
	Notify(Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

type Outcome string

const (
	OutcomeApplied    Outcome = "applied"
	OutcomeSkipped    Outcome = "skipped"
	OutcomeFailed     Outcome = "failed"
	OutcomeRolledBack Outcome = "rolled_back"
)

// Result describes how an engine operation settled.
type Result struct {
	Outcome      Outcome       `json:"outcome"`
	Notification *Notification `json:"notification,omitempty"`
}

// Stats is a point-in-time view of the engine's derived values.
type Stats struct {
	CompletedDays  []int   `json:"completed_days"`
	CompletedCount int     `json:"completed_count"`
	Percentage     float64 `json:"progress_percentage"`
	CurrentDay     int     `json:"current_day"`
	MissedDays     []int   `json:"missed_days"`
	InFlight       []int   `json:"in_flight"`
	Loading        bool    `json:"loading"`
}

type Option func(*Engine)

func WithCalendar(c plan.Calendar) Option {
	return func(e *Engine) { e.calendar = c }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithResync controls whether a confirmed mutation is followed by a reload
// from the store. Enabled by default.
func WithResync(enabled bool) Option {
	return func(e *Engine) { e.resync = enabled }
}

// Engine keeps one user's completion set in step with a RecordStore.
// Mutations are applied optimistically and rolled back if the store call
// fails. At most one mutation per day is outstanding at a time; further
// requests for that day are dropped.
type Engine struct {
	mu    sync.Mutex
	state State

	store    RecordStore
	auth     AuthProvider
	notifier Notifier
	calendar plan.Calendar
	now      func() time.Time
	resync   bool
	logger   *slog.Logger
}

func NewEngine(store RecordStore, auth AuthProvider, opts ...Option) *Engine {
	e := &Engine{
		state:  NewState(),
		store:  store,
		auth:   auth,
		now:    time.Now,
		resync: true,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.calendar.Location == nil {
		e.calendar = plan.YearCalendar(e.now(), time.UTC)
	}
	return e
}

func (e *Engine) dispatch(ev Event) State {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = Apply(e.state, ev)
	return e.state
}

// begin applies a request event only if its precondition holds, checking
// and claiming the in-flight slot under one lock.
func (e *Engine) begin(ev Event) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	var ok bool
	switch ev.Kind {
	case EventMarkRequested:
		ok = e.state.CanMark(ev.Day)
	case EventUnmarkRequested:
		ok = e.state.CanUnmark(ev.Day)
	}
	if ok {
		e.state = Apply(e.state, ev)
	}
	return ok
}

func (e *Engine) notify(n Notification) {
	if e.notifier != nil {
		e.notifier.Notify(n)
	}
}

func (e *Engine) identity(ctx context.Context) (Identity, bool) {
	if e.auth == nil {
		return Identity{}, false
	}
	id, ok := e.auth.CurrentUser(ctx)
	if !ok || id.UserID == "" || !id.Approved {
		return Identity{}, false
	}
	return id, true
}

// Load replaces the completion set with the store's records. Without an
// approved user the set is cleared. On failure the previous set is kept.
func (e *Engine) Load(ctx context.Context) Result {
	id, ok := e.identity(ctx)
	if !ok {
		e.dispatch(Reset())
		return Result{Outcome: OutcomeSkipped}
	}

	e.dispatch(LoadStarted())
	days, err := e.store.FetchProgress(ctx, id.UserID)
	if err != nil {
		e.dispatch(LoadFailed())
		e.logger.Warn("load progress", "user_id", id.UserID, "error", err)
		n := Notification{
			Kind:    NotifyLoadFailed,
			Title:   "Error",
			Message: "Failed to load reading progress",
		}
		e.notify(n)
		return Result{Outcome: OutcomeFailed, Notification: &n}
	}

	e.dispatch(LoadSucceeded(days))
	return Result{Outcome: OutcomeApplied}
}

// MarkComplete records day as read.
func (e *Engine) MarkComplete(ctx context.Context, day int) Result {
	id, ok := e.identity(ctx)
	if !ok || !e.begin(MarkRequested(day)) {
		return Result{Outcome: OutcomeSkipped}
	}

	if err := e.store.UpsertProgress(ctx, id.UserID, day, e.now().UTC()); err != nil {
		e.dispatch(MarkFailed(day))
		e.logger.Warn("mark complete", "user_id", id.UserID, "day", day, "error", err)
		n := Notification{
			Kind:    NotifyMarkFailed,
			Title:   "Failed to mark complete",
			Message: fmt.Sprintf("Day %d could not be saved. Please try again.", day),
			Day:     day,
		}
		e.notify(n)
		return Result{Outcome: OutcomeRolledBack, Notification: &n}
	}

	e.dispatch(MarkConfirmed(day))
	e.afterMutation(ctx)
	return Result{Outcome: OutcomeApplied}
}

// MarkIncomplete removes the completion record for day.
func (e *Engine) MarkIncomplete(ctx context.Context, day int) Result {
	id, ok := e.identity(ctx)
	if !ok || !e.begin(UnmarkRequested(day)) {
		return Result{Outcome: OutcomeSkipped}
	}

	if err := e.store.DeleteProgress(ctx, id.UserID, day); err != nil {
		e.dispatch(UnmarkFailed(day))
		e.logger.Warn("mark incomplete", "user_id", id.UserID, "day", day, "error", err)
		n := Notification{
			Kind:    NotifyUnmarkFailed,
			Title:   "Failed to undo",
			Message: fmt.Sprintf("Day %d could not be updated. Please try again.", day),
			Day:     day,
		}
		e.notify(n)
		return Result{Outcome: OutcomeRolledBack, Notification: &n}
	}

	e.dispatch(UnmarkConfirmed(day))
	e.afterMutation(ctx)
	return Result{Outcome: OutcomeApplied}
}

func (e *Engine) afterMutation(ctx context.Context) {
	if e.resync {
		e.Load(ctx)
	}
}

// State returns a copy of the current state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.clone()
}

func (e *Engine) IsCompleted(day int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Has(day)
}

func (e *Engine) CompletedCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.state.Completed)
}

func (e *Engine) ProgressPercentage() float64 {
	return Percentage(e.CompletedCount())
}

// CurrentDay returns today's plan day number.
func (e *Engine) CurrentDay() int {
	return e.calendar.Today(e.now())
}

// MissedDays returns the overdue days with no completion record, computed
// against the current date.
func (e *Engine) MissedDays() []int {
	today := e.CurrentDay()
	e.mu.Lock()
	defer e.mu.Unlock()
	return MissedDays(e.state.Completed, today)
}

func (e *Engine) Snapshot() Stats {
	today := e.CurrentDay()

	e.mu.Lock()
	defer e.mu.Unlock()

	count := len(e.state.Completed)
	return Stats{
		CompletedDays:  e.state.CompletedDays(),
		CompletedCount: count,
		Percentage:     Percentage(count),
		CurrentDay:     today,
		MissedDays:     MissedDays(e.state.Completed, today),
		InFlight:       e.state.InFlightDays(),
		Loading:        e.state.Loading,
	}
}
