package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/vigilproject/vigil/pkg/config"
	"github.com/vigilproject/vigil/pkg/notify"
	"github.com/vigilproject/vigil/pkg/notify/gmail"
)

// buildLogger constructs the configured slog logger. The returned
// closer releases the log file, if one is configured.
func buildLogger(cfg *config.Config) (*slog.Logger, func() error, error) {
	var level slog.Level
	switch cfg.Log.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var w io.Writer = os.Stdout
	closer := func() error { return nil }
	if cfg.Log.File != "" {
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("opening log file: %w", err)
		}
		w = io.MultiWriter(os.Stdout, f)
		closer = f.Close
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Log.Format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler), closer, nil
}

// buildNotifier constructs the configured delivery channel.
func buildNotifier(cfg *config.Config, logger *slog.Logger) (notify.Notifier, error) {
	switch cfg.Notify.Mode {
	case config.NotifyLog:
		return notify.NewLogNotifier(logger), nil
	case config.NotifyGmail:
		n, err := gmail.New(cfg.Notify.TokenFile, cfg.Sender, cfg.Recipients, logger)
		if err != nil {
			return nil, err
		}
		// Email plus a log record of every alert, so incidents are
		// reconstructible from the logs alone.
		return notify.NewMulti(n, notify.NewLogNotifier(logger)), nil
	default:
		return nil, fmt.Errorf("unknown notify mode %q", cfg.Notify.Mode)
	}
}
