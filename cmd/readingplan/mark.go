package main

import (
	"context"
	"fmt"
	"time"

	"github.com/bethesda/readingplan/internal/client"
	"github.com/bethesda/readingplan/internal/plan"
	"github.com/bethesda/readingplan/internal/progress"
)

type MarkCmd struct {
	Server   string `help:"Server base URL." env:"READINGPLAN_SERVER" default:"http://localhost:8080"`
	Email    string `help:"Account email." env:"READINGPLAN_EMAIL" required:""`
	Password string `help:"Account password." env:"READINGPLAN_PASSWORD" required:""`
	Undo     bool   `help:"Mark the days incomplete instead."`
	Days     []int  `arg:"" help:"Plan days to mark."`
}

// Run drives a local progress engine whose records live on the server.
func (c *MarkCmd) Run(g *Globals) error {
	loc, err := g.location()
	if err != nil {
		return err
	}
	cal, err := g.calendar(loc)
	if err != nil {
		return err
	}

	ctx := context.Background()
	cl := client.New(client.Config{BaseURL: c.Server})
	if _, err := cl.Login(ctx, c.Email, c.Password); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	defer cl.Logout(ctx)

	id, err := cl.Identity(ctx)
	if err != nil {
		return err
	}
	if !id.Approved {
		return fmt.Errorf("account %s is awaiting approval", c.Email)
	}

	e := progress.NewEngine(cl, client.StaticAuth(id),
		progress.WithCalendar(cal(time.Now())),
		progress.WithLogger(g.logger.With("component", "progress")),
	)
	if res := e.Load(ctx); res.Outcome != progress.OutcomeApplied {
		return fmt.Errorf("load progress: %s", res.Outcome)
	}

	failed := 0
	for _, day := range c.Days {
		if !plan.ValidDay(day) {
			return fmt.Errorf("day %d is outside the plan", day)
		}
		var res progress.Result
		if c.Undo {
			res = e.MarkIncomplete(ctx, day)
		} else {
			res = e.MarkComplete(ctx, day)
		}
		if res.Notification != nil {
			failed++
			fmt.Printf("day %d: %s\n", day, res.Notification.Message)
			continue
		}
		fmt.Printf("day %d: %s\n", day, res.Outcome)
	}

	st := e.Snapshot()
	fmt.Printf("%d of %d days complete (%.1f%%), %d missed\n", st.CompletedCount, plan.Days, st.Percentage, len(st.MissedDays))
	if failed > 0 {
		return fmt.Errorf("%d of %d days failed", failed, len(c.Days))
	}
	return nil
}
