package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/bethesda/readingplan/internal/report"
	"github.com/bethesda/readingplan/internal/store"
)

type ExportCmd struct {
	Format string `help:"Output format." enum:"csv,xlsx" default:"csv"`
	Output string `short:"o" help:"Output file. Defaults to a dated name in the current directory." type:"path"`
}

func (c *ExportCmd) Run(g *Globals) error {
	db, err := g.openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	snap, err := report.Collect(context.Background(), store.NewProfileStore(db), store.NewProgressStore(db), store.NewRoleStore(db))
	if err != nil {
		return err
	}

	path := c.Output
	if path == "" {
		path = report.Filename(time.Now(), c.Format)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	if c.Format == "xlsx" {
		err = report.WriteXLSX(f, snap)
	} else {
		err = report.WriteCSV(f, snap)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("write export: %w", err)
	}

	g.logger.Info("export written", "path", path, "profiles", len(snap.Profiles), "records", len(snap.Progress))
	return nil
}
