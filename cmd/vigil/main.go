package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:   "vigil",
		Short: "Heartbeat monitor for a single HTTP endpoint",
		Long: `Vigil probes one HTTP endpoint on a fixed cadence and emails the
operator once when the endpoint goes down and once when it recovers.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "vigil.yaml", "Path to configuration file")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(checkCmd())
	rootCmd.AddCommand(validateCmd())
	rootCmd.AddCommand(sendTestCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
