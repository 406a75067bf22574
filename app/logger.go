package app

import (
	"io"
	"log/slog"

	"github.com/use-agent/serpwalk/config"
)

// InitLogger installs the default slog logger writing to w.
func InitLogger(cfg config.LogConfig, w io.Writer) {
	slog.SetDefault(slog.New(newHandler(cfg, w)))
}

func newHandler(cfg config.LogConfig, w io.Writer) slog.Handler {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}
