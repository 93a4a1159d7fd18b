package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path"

	"github.com/bethesda/readingplan/internal/backup"
	"github.com/bethesda/readingplan/internal/report"
	"github.com/bethesda/readingplan/internal/store"
)

// ArchiveFlags configure the S3 export archive. The archive is disabled
// without a bucket and credentials.
type ArchiveFlags struct {
	S3Endpoint        string `help:"S3-compatible endpoint URL." env:"READINGPLAN_S3_ENDPOINT"`
	S3Bucket          string `help:"Bucket for export archives." env:"READINGPLAN_S3_BUCKET"`
	S3Region          string `help:"Bucket region." env:"READINGPLAN_S3_REGION" default:"us-east-1"`
	S3AccessKey       string `help:"S3 access key." env:"READINGPLAN_S3_ACCESS_KEY"`
	S3SecretKey       string `help:"S3 secret key." env:"READINGPLAN_S3_SECRET_KEY"`
	ArchivePrefix     string `help:"Object key prefix." env:"READINGPLAN_ARCHIVE_PREFIX" default:"exports/"`
	ArchiveFormat     string `help:"Archive format." env:"READINGPLAN_ARCHIVE_FORMAT" enum:"csv,xlsx" default:"xlsx"`
	ArchivePassphrase string `help:"Encrypt archives with this passphrase." env:"READINGPLAN_ARCHIVE_PASSPHRASE"`
	ArchiveKeep       int    `help:"Number of archives to keep. 0 keeps all." env:"READINGPLAN_ARCHIVE_KEEP" default:"30"`
}

func (f ArchiveFlags) manager(db *sql.DB, callback backup.StatusCallback, logger *slog.Logger) *backup.Manager {
	profiles := store.NewProfileStore(db)
	progress := store.NewProgressStore(db)
	roles := store.NewRoleStore(db)
	snapshot := func(ctx context.Context) (*report.Snapshot, error) {
		return report.Collect(ctx, profiles, progress, roles)
	}

	return backup.NewManager(backup.Config{
		S3: backup.S3Config{
			Endpoint:  f.S3Endpoint,
			Bucket:    f.S3Bucket,
			Region:    f.S3Region,
			AccessKey: f.S3AccessKey,
			SecretKey: f.S3SecretKey,
		},
		Prefix:     f.ArchivePrefix,
		Format:     f.ArchiveFormat,
		Passphrase: f.ArchivePassphrase,
		Keep:       f.ArchiveKeep,
	}, snapshot, callback, logger)
}

type ArchiveCmd struct {
	Run   ArchiveRunCmd   `cmd:"" help:"Archive the export now."`
	List  ArchiveListCmd  `cmd:"" help:"List stored archives."`
	Fetch ArchiveFetchCmd `cmd:"" help:"Download and decrypt an archive."`
}

type ArchiveRunCmd struct {
	ArchiveFlags `embed:""`
}

func (c *ArchiveRunCmd) Run(g *Globals) error {
	db, err := g.openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	m := c.manager(db, nil, g.logger.With("component", "archive"))
	key, err := m.Run(context.Background())
	if err != nil {
		return err
	}
	fmt.Println(key)
	return nil
}

type ArchiveListCmd struct {
	ArchiveFlags `embed:""`
}

func (c *ArchiveListCmd) Run(g *Globals) error {
	m := c.manager(nil, nil, g.logger.With("component", "archive"))
	keys, err := m.List(context.Background())
	if err != nil {
		return err
	}
	for _, k := range keys {
		fmt.Println(k)
	}
	return nil
}

type ArchiveFetchCmd struct {
	ArchiveFlags `embed:""`
	Key          string `arg:"" help:"Object key to download."`
	Output       string `short:"o" help:"Output file. Defaults to the key's base name without .enc." type:"path"`
}

func (c *ArchiveFetchCmd) Run(g *Globals) error {
	m := c.manager(nil, nil, g.logger.With("component", "archive"))
	data, err := m.Fetch(context.Background(), c.Key)
	if err != nil {
		return err
	}

	out := c.Output
	if out == "" {
		out = path.Base(c.Key)
		if ext := path.Ext(out); ext == ".enc" {
			out = out[:len(out)-len(ext)]
		}
	}
	if err := os.WriteFile(out, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	g.logger.Info("archive fetched", "key", c.Key, "path", out)
	return nil
}
