package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/scoreapp/score/internal/client"
	"github.com/scoreapp/score/internal/model"
)

func newDownloadCommand(ctx *commandContext) *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:   "download JOB_ID KIND",
		Short: "Download one output of a completed job",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID := args[0]
			kind, ok := model.ParseOutputKind(args[1])
			if !ok {
				names := make([]string, len(model.ValidOutputKinds))
				for i, k := range model.ValidOutputKinds {
					names[i] = string(k)
				}
				return fmt.Errorf("unknown output kind %q (want one of %s)", args[1], strings.Join(names, ", "))
			}

			transport, err := ctx.transport()
			if err != nil {
				return err
			}
			result, err := transport.FetchResult(cmd.Context(), jobID)
			if err != nil {
				return err
			}
			locator, ok := result.Outputs.Locator(kind)
			if !ok {
				return fmt.Errorf("job %s has no %s output", jobID, kind)
			}

			path := client.OutputPath(outDir, jobID, kind)
			if err := client.DownloadFile(cmd.Context(), transport, locator, path); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "Directory to write the output to")
	return cmd
}
