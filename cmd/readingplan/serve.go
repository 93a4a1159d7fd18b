package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/bethesda/readingplan/internal/backup"
	"github.com/bethesda/readingplan/internal/email"
	"github.com/bethesda/readingplan/internal/push"
	"github.com/bethesda/readingplan/internal/scheduler"
	"github.com/bethesda/readingplan/internal/server"
	ws "github.com/bethesda/readingplan/internal/websocket"
)

type ServeCmd struct {
	Addr           string        `help:"Listen address." env:"READINGPLAN_ADDR" default:":8080"`
	OriginPatterns []string      `help:"Extra websocket origin patterns." env:"READINGPLAN_ORIGINS"`
	EngineIdle     time.Duration `help:"Drop progress engines unused for this long." env:"READINGPLAN_ENGINE_IDLE" default:"1h"`
	BaseURL        string        `help:"Public site address used in emails." env:"READINGPLAN_BASE_URL" default:"http://localhost:8080"`
	PostmarkToken  string        `help:"Postmark server token. Email is disabled when empty." env:"READINGPLAN_POSTMARK_TOKEN"`
	MailFrom       string        `help:"Sender address for account emails." env:"READINGPLAN_MAIL_FROM" default:"noreply@localhost"`
	ArchiveAt      string        `help:"Daily archive time (HH:MM) in the plan time zone." env:"READINGPLAN_ARCHIVE_AT" default:"02:00"`

	ArchiveFlags  `embed:""`
	ReminderFlags `embed:""`
}

func (c *ServeCmd) Run(g *Globals) error {
	loc, err := g.location()
	if err != nil {
		return err
	}
	cal, err := g.calendar(loc)
	if err != nil {
		return err
	}
	catalog, err := g.catalog()
	if err != nil {
		return err
	}

	db, err := g.openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	cfg := server.Config{
		Catalog:        catalog,
		Calendar:       cal,
		OriginPatterns: c.OriginPatterns,
	}
	if c.PostmarkToken != "" {
		cfg.Mailer = email.NewClient(c.PostmarkToken, c.MailFrom, c.BaseURL)
	} else {
		g.logger.Info("email disabled: no postmark token")
	}
	pushSvc := c.service()
	if pushSvc.Configured() {
		cfg.Push = pushSvc
	} else {
		g.logger.Info("reading reminders disabled: no VAPID keys")
	}
	srv := server.New(db, cfg, g.logger)

	schedCfg := scheduler.Config{
		Location:   loc,
		Calendar:   cal,
		EngineIdle: c.EngineIdle,
		Resets:     srv.ResetStore(),
		ArchiveAt:  c.ArchiveAt,
	}
	hub := srv.Hub()
	archive := c.manager(db, func(s backup.Status) {
		hub.SendToAdmins(ws.NewMessage("archive", string(s.State), "", 0, map[string]any{
			"in_progress": s.InProgress,
			"key":         s.LastKey,
			"error":       s.Error,
		}))
	}, g.logger.With("component", "archive"))
	if archive.Enabled() {
		schedCfg.Archiver = archive
	}

	if cfg.Push != nil {
		schedCfg.Reminder = push.NewReminder(pushSvc, srv.PushStore(), catalog, cal, g.logger)
		schedCfg.ReminderAt = c.ReminderAt
	}

	sched := scheduler.New(schedCfg, srv.SessionStore(), srv.RateLimiter(), srv.Registry(), srv.Hub(), g.logger.With("component", "scheduler"))
	if err := sched.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer sched.Stop()

	httpServer := &http.Server{
		Addr:         c.Addr,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("readingplan listening", "addr", c.Addr, "timezone", loc.String())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	g.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
