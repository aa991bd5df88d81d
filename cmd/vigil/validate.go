package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vigilproject/vigil/pkg/config"
)

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration file and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			fmt.Printf("%s: configuration OK\n", configPath)
			fmt.Printf("  target:          %s\n", cfg.Target)
			fmt.Printf("  check interval:  %s\n", cfg.CheckInterval())
			fmt.Printf("  timeout:         %s\n", cfg.Timeout())
			fmt.Printf("  threshold:       %d consecutive failures\n", cfg.MaxConsecutiveFailures)
			fmt.Printf("  recipients:      %d\n", len(cfg.Recipients))
			fmt.Printf("  notify mode:     %s\n", cfg.Notify.Mode)
			return nil
		},
	}
}
