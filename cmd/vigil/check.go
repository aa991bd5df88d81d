package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vigilproject/vigil/pkg/config"
	"github.com/vigilproject/vigil/pkg/probe"
)

func checkCmd() *cobra.Command {
	var timeoutSec int

	cmd := &cobra.Command{
		Use:   "check [target]",
		Short: "Probe the target once and report the outcome",
		Long: `Probe the configured target (or the one given as argument) a single
time. Exits 0 when healthy, 1 when not.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var target string
			timeout := time.Duration(timeoutSec) * time.Second

			if len(args) == 1 {
				target = args[0]
			} else {
				cfg, err := config.Load(configPath)
				if err != nil {
					return err
				}
				target = cfg.Target
				if !cmd.Flags().Changed("timeout") {
					timeout = cfg.Timeout()
				}
			}

			prober, err := probe.NewHTTP(target, timeout, nil)
			if err != nil {
				return err
			}

			result := prober.Check(cmd.Context())
			if !result.Healthy {
				return fmt.Errorf("unhealthy: %s", result.Detail)
			}

			fmt.Printf("healthy: %s\n", result.Detail)
			return nil
		},
	}

	cmd.Flags().IntVar(&timeoutSec, "timeout", 30, "Probe timeout in seconds")
	return cmd
}
