package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/xowlabs/expopulse/pkg/buildinfo"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "expopulse",
	Short: "Expo booth conversation analytics service",
	Long: `expopulse turns raw booth recordings into structured visitor
intelligence: it segments transcripts into per-speaker conversations,
attributes speakers using badge scans, and aggregates topics and
questions across an expo.`,
	Version:       buildinfo.String(),
	SilenceUsage:  true,
	SilenceErrors: true,
}

// configPath returns the --config flag value, empty when unset.
func configPath() string {
	return cfgFile
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		rootCmd.PrintErrln("Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is config.yaml or $EXPOPULSE_CONFIG)")

	rootCmd.AddCommand(NewServeCommand())
	rootCmd.AddCommand(NewProcessCommand())
	rootCmd.AddCommand(NewInsightsCommand())
	rootCmd.AddCommand(NewMigrateCommand())
}
