package main

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	"github.com/bethesda/readingplan/internal/database"
	"github.com/bethesda/readingplan/internal/handler"
	"github.com/bethesda/readingplan/internal/logging"
	"github.com/bethesda/readingplan/internal/plan"
)

// Globals are the flags shared by every command.
type Globals struct {
	DB        string `help:"SQLite database path." env:"READINGPLAN_DB_PATH" default:"readingplan.db"`
	LogLevel  string `help:"Log level (debug|info|warn|error)." env:"READINGPLAN_LOG_LEVEL" default:"info"`
	LogFile   string `help:"Also write logs to this file, rotated by size." env:"READINGPLAN_LOG_FILE"`
	LogFormat string `help:"Log format." env:"READINGPLAN_LOG_FORMAT" enum:"text,json" default:"text"`
	Timezone  string `help:"Time zone in which plan days begin." env:"READINGPLAN_TIMEZONE" default:"UTC"`
	PlanStart string `help:"First day of the plan (YYYY-MM-DD). Defaults to January 1 of the current year." env:"READINGPLAN_PLAN_START"`
	PlanFile  string `help:"CSV reading schedule to use instead of the built-in one." env:"READINGPLAN_PLAN_FILE" type:"path"`

	logger *slog.Logger
}

var CLI struct {
	Globals

	Serve       ServeCmd       `cmd:"" help:"Run the HTTP server." default:"1"`
	CreateAdmin CreateAdminCmd `cmd:"" help:"Create or promote an approved admin account."`
	Approve     ApproveCmd     `cmd:"" help:"Set a member's approval status."`
	Export      ExportCmd      `cmd:"" help:"Write the admin export to a file."`
	Archive     ArchiveCmd     `cmd:"" help:"Manage export archives in S3 storage."`
	Mark        MarkCmd        `cmd:"" help:"Mark plan days on a remote server."`
	VAPIDKeys   VAPIDKeysCmd   `cmd:"" name:"vapid-keys" help:"Generate a VAPID key pair for reading reminders."`
}

func main() {
	// A missing .env is fine; real environment variables still apply.
	_ = godotenv.Load()

	ctx := kong.Parse(&CLI,
		kong.Name("readingplan"),
		kong.Description("Year-long reading plan tracker."),
		kong.UsageOnError(),
	)

	logger, closer := logging.Setup(logging.Options{
		Level:  CLI.LogLevel,
		File:   CLI.LogFile,
		Format: CLI.LogFormat,
	})
	CLI.logger = logger

	err := ctx.Run(&CLI.Globals)
	closer.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func (g *Globals) openDB() (*sql.DB, error) {
	db, err := database.Open(g.DB)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

func (g *Globals) location() (*time.Location, error) {
	loc, err := time.LoadLocation(g.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", g.Timezone, err)
	}
	return loc, nil
}

// calendar anchors the plan at PlanStart when set, otherwise at January 1
// of the year containing now.
func (g *Globals) calendar(loc *time.Location) (handler.CalendarFunc, error) {
	if g.PlanStart == "" {
		return func(now time.Time) plan.Calendar { return plan.YearCalendar(now, loc) }, nil
	}
	start, err := time.ParseInLocation("2006-01-02", g.PlanStart, loc)
	if err != nil {
		return nil, fmt.Errorf("parse plan start: %w", err)
	}
	cal := plan.NewCalendar(start, loc)
	return func(time.Time) plan.Calendar { return cal }, nil
}

func (g *Globals) catalog() (*plan.Catalog, error) {
	if g.PlanFile == "" {
		return plan.Default(), nil
	}
	c, err := plan.LoadFile(g.PlanFile)
	if err != nil {
		return nil, fmt.Errorf("load plan: %w", err)
	}
	return c, nil
}
