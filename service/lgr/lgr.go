// Package lgr holds the process-wide structured logger.
//
// Development output goes through a colored handler. Production output is JSON.
// Either can be teed into a size-rotated file.
package lgr

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/natefinch/lumberjack"
)

// Logger is replaced by Init. Until then it logs at info level to stdout.
var Logger = slog.New(newPrettyHandler(os.Stdout, &slog.HandlerOptions{
	Level:       slog.LevelInfo,
	ReplaceAttr: replaceAttr,
}))

type Options struct {
	Level      string
	Production bool
	File       string // rotated log file, empty for stdout only
}

func Init(opts Options) {
	Logger = slog.New(newHandler(os.Stdout, opts))
	slog.SetDefault(Logger)
}

func newHandler(stdout io.Writer, opts Options) slog.Handler {
	hopts := &slog.HandlerOptions{
		Level:       ParseLevel(opts.Level),
		ReplaceAttr: replaceAttr,
	}

	w := stdout
	if opts.File != "" {
		w = io.MultiWriter(stdout, &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    10, // MB
			MaxBackups: 5,
			MaxAge:     7, // days
			Compress:   true,
		})
	}

	if opts.Production {
		return slog.NewJSONHandler(w, hopts)
	}
	return newPrettyHandler(w, hopts)
}

// ParseLevel maps debug/info/warn/error to a slog level. Anything else is info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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
