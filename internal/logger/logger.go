package logger

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Default rotation parameters (lumberjack semantics).
const (
	DefaultMaxSizeMB  = 10 // MB
	DefaultMaxBackups = 3  // number of backup files
	DefaultMaxAgeDays = 7  // days
)

// Config describes where deployr writes its own structured log.
// Console output always goes to stderr; when Dir or Path is set, a
// rotating file copy is kept as a deploy audit trail.
type Config struct {
	Dir        string `json:"dir" mapstructure:"dir"`   // base directory; file becomes Dir/deployr.log
	Path       string `json:"path" mapstructure:"path"` // explicit path overrides Dir
	Level      string `json:"level" mapstructure:"level"`
	NoColor    bool   `json:"no_color" mapstructure:"no_color"`
	MaxSizeMB  int    `json:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `json:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `json:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool   `json:"compress" mapstructure:"compress"`
}

// FileWriter returns the rotating file writer, or nil when no file
// destination is configured.
func (c Config) FileWriter() io.WriteCloser {
	path := c.Path
	if path == "" && c.Dir != "" {
		path = filepath.Join(c.Dir, "deployr.log")
	}
	if path == "" {
		return nil
	}
	return &lj.Logger{
		Filename:   path,
		MaxSize:    valOr(c.MaxSizeMB, DefaultMaxSizeMB),
		MaxBackups: valOr(c.MaxBackups, DefaultMaxBackups),
		MaxAge:     valOr(c.MaxAgeDays, DefaultMaxAgeDays),
		Compress:   c.Compress,
	}
}

// SlogLevel maps the configured level string onto slog levels,
// defaulting to info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.Level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New builds the logger: colorized text on stderr, plus a plain text
// copy in the rotating file when configured.
func New(c Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.SlogLevel()}
	var console slog.Handler
	if c.NoColor {
		console = slog.NewTextHandler(os.Stderr, opts)
	} else {
		console = NewColorTextHandler(os.Stderr, opts, true)
	}
	if w := c.FileWriter(); w != nil {
		if c.Dir != "" {
			_ = os.MkdirAll(c.Dir, 0o750)
		}
		return slog.New(newTeeHandler(console, slog.NewTextHandler(w, opts)))
	}
	return slog.New(console)
}

func valOr(v int, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
