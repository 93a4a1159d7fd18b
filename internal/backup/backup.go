// Package backup archives the admin export to S3-compatible storage.
package backup

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/bethesda/readingplan/internal/report"
)

// objectStore is the subset of the S3 API the manager uses.
type objectStore interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, input *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Config holds S3-compatible storage configuration.
type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
}

func (c S3Config) complete() bool {
	return c.Bucket != "" && c.AccessKey != "" && c.SecretKey != ""
}

type Config struct {
	S3 S3Config
	// Prefix is prepended to every object key.
	Prefix string
	// Format is "csv" or "xlsx".
	Format string
	// Passphrase, when set, encrypts archives and adds a ".enc" suffix.
	Passphrase string
	// Keep is how many archives Prune leaves. Zero keeps all.
	Keep int
}

// State represents the archive manager state.
type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateDisabled State = "disabled"
	StateError    State = "error"
)

type Status struct {
	State      State      `json:"state"`
	LastRun    *time.Time `json:"last_run,omitempty"`
	LastKey    string     `json:"last_key,omitempty"`
	Error      string     `json:"error,omitempty"`
	InProgress bool       `json:"in_progress"`
}

// StatusCallback is called whenever the archive state changes.
type StatusCallback func(Status)

// SnapshotFunc reads the data to archive.
type SnapshotFunc func(ctx context.Context) (*report.Snapshot, error)

// Manager renders admin exports and keeps them in a bucket.
type Manager struct {
	mu       sync.RWMutex
	cfg      Config
	status   Status
	callback StatusCallback

	client   objectStore
	snapshot SnapshotFunc
	now      func() time.Time
	logger   *slog.Logger
}

func NewManager(cfg Config, snapshot SnapshotFunc, callback StatusCallback, logger *slog.Logger) *Manager {
	if cfg.Format == "" {
		cfg.Format = "xlsx"
	}
	m := &Manager{
		cfg:      cfg,
		callback: callback,
		snapshot: snapshot,
		now:      time.Now,
		logger:   logger,
		status:   Status{State: StateDisabled},
	}
	if cfg.S3.complete() {
		m.client = newS3Client(cfg.S3)
		m.status.State = StateIdle
	}
	return m
}

func newS3Client(cfg S3Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

// Enabled reports whether storage credentials are configured.
func (m *Manager) Enabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.client != nil
}

// Status returns the current archive status.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *Manager) setStatus(s Status) {
	m.mu.Lock()
	m.status = s
	m.mu.Unlock()
	if m.callback != nil {
		m.callback(s)
	}
}

func (m *Manager) fail(err error) error {
	m.setStatus(Status{State: StateError, Error: err.Error()})
	return err
}

// Run renders the export, uploads it and prunes old archives. It returns
// the new object key.
func (m *Manager) Run(ctx context.Context) (string, error) {
	m.mu.RLock()
	client := m.client
	cfg := m.cfg
	m.mu.RUnlock()

	if client == nil {
		return "", fmt.Errorf("archive not configured: S3 credentials missing")
	}

	m.setStatus(Status{State: StateRunning, InProgress: true})

	snap, err := m.snapshot(ctx)
	if err != nil {
		return "", m.fail(fmt.Errorf("collect export: %w", err))
	}

	var buf bytes.Buffer
	switch cfg.Format {
	case "csv":
		err = report.WriteCSV(&buf, snap)
	case "xlsx":
		err = report.WriteXLSX(&buf, snap)
	default:
		err = fmt.Errorf("unknown format %q", cfg.Format)
	}
	if err != nil {
		return "", m.fail(fmt.Errorf("render export: %w", err))
	}

	now := m.now().UTC()
	data := buf.Bytes()
	key := cfg.Prefix + report.Filename(now, cfg.Format)
	if cfg.Passphrase != "" {
		data, err = Encrypt(data, cfg.Passphrase)
		if err != nil {
			return "", m.fail(fmt.Errorf("encrypt: %w", err))
		}
		key += ".enc"
	}

	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(cfg.S3.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return "", m.fail(fmt.Errorf("upload to s3: %w", err))
	}

	if cfg.Keep > 0 {
		if n, err := m.Prune(ctx); err != nil {
			m.logger.Warn("prune archives", "error", err)
		} else if n > 0 {
			m.logger.Info("pruned archives", "deleted", n)
		}
	}

	m.setStatus(Status{State: StateIdle, LastRun: &now, LastKey: key})
	m.logger.Info("export archived", "key", key, "bytes", len(data))
	return key, nil
}

// List returns archive keys under the prefix, oldest first.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	client := m.client
	cfg := m.cfg
	m.mu.RUnlock()

	if client == nil {
		return nil, fmt.Errorf("archive not configured")
	}

	var keys []string
	p := s3.NewListObjectsV2Paginator(client, &s3.ListObjectsV2Input{
		Bucket: aws.String(cfg.S3.Bucket),
		Prefix: aws.String(cfg.Prefix),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list archives: %w", err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	// Names carry the export date, so lexical order is age order.
	sort.Strings(keys)
	return keys, nil
}

// Prune deletes all but the newest Keep archives and returns how many
// were removed.
func (m *Manager) Prune(ctx context.Context) (int, error) {
	m.mu.RLock()
	client := m.client
	cfg := m.cfg
	m.mu.RUnlock()

	if cfg.Keep <= 0 {
		return 0, nil
	}
	keys, err := m.List(ctx)
	if err != nil {
		return 0, err
	}
	if len(keys) <= cfg.Keep {
		return 0, nil
	}

	deleted := 0
	for _, key := range keys[:len(keys)-cfg.Keep] {
		_, err := client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(cfg.S3.Bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return deleted, fmt.Errorf("delete %s: %w", key, err)
		}
		deleted++
	}
	return deleted, nil
}

// Fetch downloads an archive, decrypting it when the key ends in ".enc".
func (m *Manager) Fetch(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	client := m.client
	cfg := m.cfg
	m.mu.RUnlock()

	if client == nil {
		return nil, fmt.Errorf("archive not configured")
	}

	result, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(cfg.S3.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("download from s3: %w", err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("read archive: %w", err)
	}

	if !strings.HasSuffix(key, ".enc") {
		return data, nil
	}
	if cfg.Passphrase == "" {
		return nil, fmt.Errorf("archive %s is encrypted: passphrase required", key)
	}
	return Decrypt(data, cfg.Passphrase)
}
