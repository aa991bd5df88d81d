package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vigilproject/vigil/pkg/config"
	"github.com/vigilproject/vigil/pkg/notify"
)

// sendTestCmd verifies the notification channel end to end without
// waiting for a real incident.
func sendTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send-test",
		Short: "Send a test notification through the configured channel",
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

			now := time.Now()
			event := notify.Event{
				Type:    notify.TypeTest,
				Target:  cfg.Target,
				Subject: fmt.Sprintf("Vigil test notification for %s", cfg.Target),
				Body: fmt.Sprintf(
					"This is a test notification sent at %s.\n\n"+
						"If you are reading this, the notification channel for the\n"+
						"monitor watching %s is working.\n",
					now.Format(time.RFC3339), cfg.Target),
				Timestamp: now,
			}

			if err := notifier.Notify(cmd.Context(), event); err != nil {
				return fmt.Errorf("test notification failed: %w", err)
			}

			fmt.Println("test notification delivered")
			return nil
		},
	}
}
