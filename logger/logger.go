// Package logger configures the process-wide slog logger, optionally writing
// to a rotated log file.
package logger

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Config controls where and how log records are written.
type Config struct {
	Level      string `envconfig:"LEVEL" default:"info" validate:"oneof=debug info warn error"`
	Format     string `envconfig:"FORMAT" default:"text" validate:"oneof=json text"`
	FilePath   string `envconfig:"FILE"`
	MaxSize    int    `envconfig:"MAX_SIZE" default:"50" validate:"gte=0"`
	MaxBackups int    `envconfig:"MAX_BACKUPS" default:"5" validate:"gte=0"`
	MaxAge     int    `envconfig:"MAX_AGE" default:"30" validate:"gte=0"`
	Compress   bool   `envconfig:"COMPRESS" default:"true"`
	WithCaller bool   `envconfig:"WITH_CALLER" default:"false"`
}

// ParseLevel maps a level name to a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

// New builds a logger writing to stderr and, when FilePath is set, to a
// rotated file as well. The returned closer releases the file.
func New(cfg Config) (*slog.Logger, io.Closer, error) {
	var output io.Writer = os.Stderr
	var closer io.Closer = nopCloser{}

	if cfg.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755); err != nil {
			return nil, nil, err
		}
		fileWriter := &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		}
		output = io.MultiWriter(os.Stderr, fileWriter)
		closer = fileWriter
	}
	return slog.New(newHandler(output, cfg)), closer, nil
}

// Init builds a logger with New and installs it as the slog default.
func Init(cfg Config) (*slog.Logger, io.Closer, error) {
	l, closer, err := New(cfg)
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(l)
	return l, closer, nil
}

func newHandler(w io.Writer, cfg Config) slog.Handler {
	opts := &slog.HandlerOptions{
		Level:     ParseLevel(cfg.Level),
		AddSource: cfg.WithCaller,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				a.Value = slog.StringValue(a.Value.Time().Format(time.RFC3339))
			}
			return a
		},
	}
	if cfg.Format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
