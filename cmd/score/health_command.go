package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the processing service is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			transport, err := ctx.transport()
			if err != nil {
				return err
			}
			if err := transport.Health(cmd.Context()); err != nil {
				return fmt.Errorf("service unhealthy: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok (%s)\n", cfg.Transport.Mode)
			return nil
		},
	}
}
