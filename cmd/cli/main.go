package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/mtecstake/autostake/cmd/cli/commands"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "autostake",
	Short: "MTEC auto-stake client for BNB Smart Chain",
	Long: `Buy MTEC staking packages with USDT, follow your stakes and claim them
when they unlock. Contract owners can administer the contract.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	// Add global persistent flags
	rootCmd.PersistentFlags().StringVar(&commands.ConfigPath, "config", "", "Config file (default: ~/.autostake/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&commands.LogLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVarP(&commands.AssumeYes, "yes", "y", false, "Approve wallet requests without asking")
	rootCmd.PersistentFlags().BoolVar(&commands.MockMode, "mock", false, "Use the in-memory contract simulation")
	rootCmd.PersistentFlags().StringVarP(&commands.OutputFormat, "output", "o", "", "Output format: json, plain")
}

func main() {
	commands.Register(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, commands.ErrReported) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}
