package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/zfogg/solfeed/pkg/client"
	"github.com/zfogg/solfeed/pkg/config"
	"github.com/zfogg/solfeed/pkg/errors"
	"github.com/zfogg/solfeed/pkg/logger"
	"github.com/zfogg/solfeed/pkg/output"
)

var (
	verbose    bool
	configPath string
	outputFmt  string
)

var rootCmd = &cobra.Command{
	Use:   "solfeed",
	Short: "solfeed - terminal feed client for on-chain social posts",
	Long: `solfeed watches the recent and watchlist feeds of an on-chain social
platform, surfaces new posts as they appear and keeps reputation and
receipt state in sync with the server.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Init(configPath); err != nil {
			return fmt.Errorf("initializing config: %w", err)
		}

		logger.Init(verbose)

		if cmd.Flags().Changed("output") {
			if !output.ValidateFormat(outputFmt) {
				return fmt.Errorf("invalid output format %q (want text, json or table)", outputFmt)
			}
			config.Set("output.format", outputFmt)
		}
		output.DetectColor(os.Stdout)

		client.Init()
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Close()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		output.PrintError(err)
		logger.Error("Command failed", "error", err)
		if errors.Classify(err).Type == errors.ErrorTypeAuth {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: ~/.config/solfeed/config.toml)")
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "text", "Output format: text, json, table")

	rootCmd.AddCommand(authCmd)
	rootCmd.AddCommand(feedCmd)
	rootCmd.AddCommand(cursorCmd)
	rootCmd.AddCommand(postCmd)
	rootCmd.AddCommand(versionCmd)
}
