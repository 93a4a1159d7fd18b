package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures Setup. A zero value logs text at info level to stderr.
type Options struct {
	Level string
	// File, when set, also writes logs to a size-rotated file.
	File   string
	Format string
}

// ParseLevel accepts "debug", "info", "warn", "error" (case-insensitive).
// Unrecognized values map to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Setup creates a configured *slog.Logger, sets it as the default, and returns it.
// The returned closer flushes the rotating file, if any.
func Setup(opts Options) (*slog.Logger, io.Closer) {
	var out io.Writer = os.Stderr
	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
			Compress:   true,
		}
		out = io.MultiWriter(os.Stderr, rotator)
		closer = rotator
	}

	logger := slog.New(newHandler(out, opts))
	slog.SetDefault(logger)
	return logger, closer
}

func newHandler(w io.Writer, opts Options) slog.Handler {
	ho := &slog.HandlerOptions{Level: ParseLevel(opts.Level)}
	if strings.EqualFold(opts.Format, "json") {
		return slog.NewJSONHandler(w, ho)
	}
	return slog.NewTextHandler(w, ho)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
