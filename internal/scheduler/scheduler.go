// Package scheduler runs the daily plan rollover and hourly housekeeping,
// plus the optional export archive and reading reminder jobs.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/bethesda/readingplan/internal/plan"
	"github.com/bethesda/readingplan/internal/progress"
	ws "github.com/bethesda/readingplan/internal/websocket"
)

// DefaultEngineIdle is how long an unused progress engine is kept.
const DefaultEngineIdle = time.Hour

// SessionCleaner deletes expired sessions.
type SessionCleaner interface {
	DeleteExpired() (int64, error)
}

// LimiterCleaner drops expired rate-limit windows.
type LimiterCleaner interface {
	Cleanup() int
}

// Archiver stores a copy of the admin export.
type Archiver interface {
	Run(ctx context.Context) (string, error)
}

// Reminder notifies members who have not read today's passages.
type Reminder interface {
	Run(ctx context.Context) (int, error)
}

type Config struct {
	Location   *time.Location
	Calendar   func(now time.Time) plan.Calendar
	EngineIdle time.Duration
	// Resets, when set, has its expired password reset codes removed by
	// Cleanup.
	Resets SessionCleaner
	// Archiver, when set, runs daily at ArchiveAt ("HH:MM", default "02:00").
	Archiver  Archiver
	ArchiveAt string
	// Reminder, when set, runs daily at ReminderAt (default "07:00").
	Reminder   Reminder
	ReminderAt string
}

type Scheduler struct {
	cron     *gocron.Scheduler
	cfg      Config
	sessions SessionCleaner
	limiter  LimiterCleaner
	registry *progress.Registry
	hub      *ws.Hub
	now      func() time.Time
	logger   *slog.Logger
}

func New(cfg Config, sessions SessionCleaner, limiter LimiterCleaner, registry *progress.Registry, hub *ws.Hub, logger *slog.Logger) *Scheduler {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Calendar == nil {
		loc := cfg.Location
		cfg.Calendar = func(now time.Time) plan.Calendar { return plan.YearCalendar(now, loc) }
	}
	if cfg.EngineIdle <= 0 {
		cfg.EngineIdle = DefaultEngineIdle
	}
	return &Scheduler{
		cron:     gocron.NewScheduler(cfg.Location),
		cfg:      cfg,
		sessions: sessions,
		limiter:  limiter,
		registry: registry,
		hub:      hub,
		now:      time.Now,
		logger:   logger,
	}
}

// Start registers the jobs and runs them in the background.
func (s *Scheduler) Start() error {
	if _, err := s.cron.Every(1).Day().At("00:00").Do(s.Rollover); err != nil {
		return fmt.Errorf("schedule rollover: %w", err)
	}
	if _, err := s.cron.Every(1).Hour().Do(s.Cleanup); err != nil {
		return fmt.Errorf("schedule cleanup: %w", err)
	}
	if s.cfg.Archiver != nil {
		at := s.cfg.ArchiveAt
		if at == "" {
			at = "02:00"
		}
		if _, err := s.cron.Every(1).Day().At(at).Do(s.Archive); err != nil {
			return fmt.Errorf("schedule archive: %w", err)
		}
	}
	if s.cfg.Reminder != nil {
		at := s.cfg.ReminderAt
		if at == "" {
			at = "07:00"
		}
		if _, err := s.cron.Every(1).Day().At(at).Do(s.Remind); err != nil {
			return fmt.Errorf("schedule reminder: %w", err)
		}
	}
	s.cron.StartAsync()
	s.logger.Info("scheduler started", "location", s.cfg.Location.String())
	return nil
}

func (s *Scheduler) Stop() {
	s.cron.Stop()
}

// Rollover announces the new plan day so clients recompute missed days.
// On the first day of a new plan, cached engines are dropped because they
// were built against the previous calendar.
func (s *Scheduler) Rollover() int {
	now := s.now()
	day := s.cfg.Calendar(now).Today(now)
	if day == 1 {
		n := s.registry.Evict(0)
		s.logger.Info("new plan year", "engines_dropped", n)
	}

	sent := s.hub.Broadcast(ws.NewMessage("plan_day", "rollover", "", day, map[string]any{
		"current_day": day,
	}))
	s.logger.Info("plan day rollover", "current_day", day, "clients", sent)
	return day
}

// Cleanup removes expired sessions, stale rate-limit entries and idle
// engines.
func (s *Scheduler) Cleanup() {
	sessions, err := s.sessions.DeleteExpired()
	if err != nil {
		s.logger.Error("delete expired sessions", "error", err)
	}
	var resets int64
	if s.cfg.Resets != nil {
		resets, err = s.cfg.Resets.DeleteExpired()
		if err != nil {
			s.logger.Error("delete expired reset codes", "error", err)
		}
	}
	limits := s.limiter.Cleanup()
	engines := s.registry.Evict(s.cfg.EngineIdle)

	s.logger.Debug("cleanup",
		"sessions", sessions,
		"reset_codes", resets,
		"rate_limits", limits,
		"engines", engines,
	)
}

// Archive runs the configured Archiver once.
func (s *Scheduler) Archive() {
	if s.cfg.Archiver == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	key, err := s.cfg.Archiver.Run(ctx)
	if err != nil {
		s.logger.Error("archive export", "error", err)
		return
	}
	s.logger.Info("archive export", "key", key)
}

// Remind runs the configured Reminder once.
func (s *Scheduler) Remind() {
	if s.cfg.Reminder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if _, err := s.cfg.Reminder.Run(ctx); err != nil {
		s.logger.Error("reading reminder", "error", err)
	}
}
