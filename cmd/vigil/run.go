package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vigilproject/vigil/pkg/config"
	"github.com/vigilproject/vigil/pkg/monitor"
	"github.com/vigilproject/vigil/pkg/probe"
)

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the monitor until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			logger, closeLog, err := buildLogger(cfg)
			if err != nil {
				return err
			}
			defer closeLog()

			notifier, err := buildNotifier(cfg, logger)
			if err != nil {
				return err
			}

			prober, err := probe.NewHTTP(cfg.Target, cfg.Timeout(), nil)
			if err != nil {
				return err
			}

			logger.Info("vigil starting",
				slog.String("target", prober.Target()),
				slog.Duration("check_interval", cfg.CheckInterval()),
				slog.Duration("timeout", cfg.Timeout()),
				slog.Int("failure_threshold", cfg.MaxConsecutiveFailures),
				slog.String("recipients", strings.Join(cfg.Recipients, ", ")),
				slog.String("notify_mode", cfg.Notify.Mode),
			)

			m := monitor.New(monitor.Config{
				Target:        prober.Target(),
				CheckInterval: cfg.CheckInterval(),
				Threshold:     cfg.MaxConsecutiveFailures,
			}, prober, notifier, logger)

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			m.Start(ctx)

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
			<-sigChan

			logger.Info("shutdown signal received")
			m.Stop()
			logger.Info("vigil stopped")
			return nil
		},
	}
}
