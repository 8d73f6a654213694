package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configFlag string
	var verbose bool

	return newRootCommandWith(newCommandContext(&configFlag, &verbose))
}

func newRootCommandWith(ctx *commandContext) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "score",
		Short:         "Turn recordings into sheet music and find similar pieces",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(ctx.configFlag, "config", "c", "", "Configuration file path")
	flags.BoolVarP(ctx.verbose, "verbose", "v", false, "Log debug output to stderr")
	flags.String("mode", "", "Transport mode: simulated or http")
	flags.String("api-url", "", "Processing service base URL")
	flags.Duration("poll-interval", 0, "Status poll interval")

	_ = ctx.viper.BindPFlag("transport.mode", flags.Lookup("mode"))
	_ = ctx.viper.BindPFlag("transport.base_url", flags.Lookup("api-url"))
	_ = ctx.viper.BindPFlag("transport.poll_interval", flags.Lookup("poll-interval"))

	rootCmd.AddCommand(newTranscribeCommand(ctx))
	rootCmd.AddCommand(newRecommendCommand(ctx))
	rootCmd.AddCommand(newDownloadCommand(ctx))
	rootCmd.AddCommand(newHealthCommand(ctx))

	return rootCmd
}
