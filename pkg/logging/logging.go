// Package logging sets up the process-wide zerolog logger.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Settings struct {
	Level  string
	Format string // text|json
	File   string
	// MaxSizeMB caps a log file before lumberjack rotates it.
	MaxSizeMB int
}

func DefaultSettings() Settings {
	return Settings{Level: "info", Format: "text", MaxSizeMB: 10}
}

// AddFlags registers the logging flags on a cobra command.
func AddFlags(cmd *cobra.Command, s *Settings) {
	cmd.PersistentFlags().StringVar(&s.Level, "log-level", s.Level, "Log level (trace, debug, info, warn, error, disabled)")
	cmd.PersistentFlags().StringVar(&s.Format, "log-format", s.Format, "Log format (text, json)")
	cmd.PersistentFlags().StringVar(&s.File, "log-file", s.File, "Write logs to this file instead of stderr")
}

// Init configures the global logger and returns the writer logs go to.
func Init(s Settings) (io.Writer, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(s.Level)))
	if err != nil {
		return nil, errors.Wrapf(err, "invalid log level %q", s.Level)
	}
	if s.Level == "" {
		level = zerolog.InfoLevel
	}

	var out io.Writer = os.Stderr
	if s.File != "" {
		if err := os.MkdirAll(filepath.Dir(s.File), 0o755); err != nil {
			return nil, errors.Wrap(err, "create log directory")
		}
		maxSize := s.MaxSizeMB
		if maxSize <= 0 {
			maxSize = 10
		}
		out = &lumberjack.Logger{
			Filename:   s.File,
			MaxSize:    maxSize,
			MaxBackups: 3,
		}
	}

	switch s.Format {
	case "", "text":
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339, NoColor: s.File != ""}
	case "json":
	default:
		return nil, errors.Errorf("invalid log format %q", s.Format)
	}

	zerolog.SetGlobalLevel(level)
	log.Logger = zerolog.New(out).With().Timestamp().Logger()
	return out, nil
}

// DefaultTUILogFile keeps logs away from the terminal while the widget owns it.
func DefaultTUILogFile() string {
	dir, err := os.UserCacheDir()
	if err != nil || dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "webchat-embed", "webchat-embed.log")
}
