package main

import (
	"github.com/spf13/cobra"

	"github.com/heimdex/offsetcheck/internal/config"
)

func newRootCommand() *cobra.Command {
	var configFlag string
	var overrides config.Overrides

	ctx := newCommandContext(&configFlag, &overrides)

	rootCmd := &cobra.Command{
		Use:           "offsetcheck",
		Short:         "Review sign-language transcripts against their recordings",
		Version:       config.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	flags.StringVar(&overrides.EAFDir, "eaf-dir", "", "Transcript directory")
	flags.StringVar(&overrides.VideoDir, "video-dir", "", "Recording directory")
	flags.StringVar(&overrides.DataDir, "data-dir", "", "Directory for the ledger and journal")
	flags.StringVar(&overrides.Ledger, "ledger", "", "Decision ledger path")
	flags.StringVar(&overrides.TargetLabel, "target-label", "", "Annotation label to review")
	flags.StringVar(&overrides.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flags.StringVar(&overrides.LogFormat, "log-format", "", "Log format (json, console, auto)")

	rootCmd.AddCommand(newReviewCommand(ctx, &overrides))
	rootCmd.AddCommand(newServeCommand(ctx, &overrides))
	rootCmd.AddCommand(newScanCommand(ctx))
	rootCmd.AddCommand(newDecisionsCommand(ctx))
	rootCmd.AddCommand(newDecideCommand(ctx))
	rootCmd.AddCommand(newCollectCommand(ctx))
	rootCmd.AddCommand(newInspectCommand(ctx))
	rootCmd.AddCommand(newDoctorCommand(ctx))
	rootCmd.AddCommand(newEventsCommand(ctx))
	rootCmd.AddCommand(newSessionsCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd
}
