package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/scoreapp/score/internal/client"
	"github.com/scoreapp/score/internal/jobcontrol"
	"github.com/scoreapp/score/internal/model"
)

func newTranscribeCommand(ctx *commandContext) *cobra.Command {
	var outDir string
	var skipDownload bool
	var k int

	cmd := &cobra.Command{
		Use:   "transcribe FILE",
		Short: "Upload a recording and wait for its score",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			transport, err := ctx.transport()
			if err != nil {
				return err
			}
			log := ctx.logger()
			defer log.Sync() //nolint:errcheck

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open %s: %w", args[0], err)
			}
			defer f.Close()
			info, err := f.Stat()
			if err != nil {
				return fmt.Errorf("failed to stat %s: %w", args[0], err)
			}

			ctrl := jobcontrol.New(transport,
				jobcontrol.WithPollInterval(cfg.Transport.PollInterval),
				jobcontrol.WithLogger(log),
			)
			out := cmd.OutOrStdout()
			unsubscribe := ctrl.Subscribe(progressPrinter(out))
			defer unsubscribe()

			if err := ctrl.Submit(client.File{
				Name: filepath.Base(args[0]),
				Size: info.Size(),
				Body: f,
			}); err != nil {
				return err
			}

			snap, err := ctrl.Wait(cmd.Context())
			if err != nil {
				ctrl.Reset()
				return err
			}
			if snap.State != jobcontrol.StateCompleted {
				return fmt.Errorf("processing failed: %s", snap.Job.Error)
			}

			result := snap.Result
			fmt.Fprintf(out, "\nJob %s finished (%s, %s)\n", result.JobID, result.OriginalFile.Format, result.OriginalFile.Duration)
			fmt.Fprintln(out, analysisTable(result.Analysis))

			recommender, err := ctx.recommender()
			if err != nil {
				return err
			}
			var recs []model.Recommendation
			if cmd.Flags().Changed("k") {
				recs, err = recommender.Recommend(result.Analysis.Features(), k)
			} else {
				recs, err = recommender.RecommendDefault(result.Analysis.Features())
			}
			if err != nil {
				log.Warn("recommendations unavailable", zap.Error(err))
			} else if len(recs) > 0 {
				fmt.Fprintln(out, "\nSimilar pieces")
				fmt.Fprintln(out, recommendationTable(recs))
			}

			if skipDownload {
				return nil
			}
			return downloadAll(cmd, ctrl, result, outDir, log)
		},
	}

	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "Directory to write outputs to")
	cmd.Flags().BoolVar(&skipDownload, "no-download", false, "Do not download outputs")
	cmd.Flags().IntVar(&k, "k", 0, "Number of similar pieces to list")

	return cmd
}

// progressPrinter prints one line per state or step change.
func progressPrinter(w io.Writer) func(jobcontrol.Snapshot) {
	var lastState jobcontrol.State
	var lastStep string
	lastProgress := -1

	return func(s jobcontrol.Snapshot) {
		switch s.State {
		case jobcontrol.StateUploading:
			// quarter steps keep upload output short
			bucket := s.Job.Progress / 25
			if s.State == lastState && bucket == lastProgress {
				return
			}
			lastProgress = bucket
			fmt.Fprintf(w, "uploading %s %3d%%\n", s.Job.FileName, s.Job.Progress)
		case jobcontrol.StateProcessing:
			if s.State == lastState && s.Job.CurrentStep == lastStep {
				return
			}
			lastStep = s.Job.CurrentStep
			step := s.Job.CurrentStep
			if step == "" {
				step = "queued"
			}
			fmt.Fprintf(w, "processing %3d%% %s\n", s.Job.Progress, step)
		case jobcontrol.StateCompleted:
			fmt.Fprintln(w, "completed")
		case jobcontrol.StateError:
			fmt.Fprintf(w, "error: %s\n", s.Job.Error)
		}
		lastState = s.State
	}
}

func downloadAll(cmd *cobra.Command, ctrl *jobcontrol.Controller, result *model.ProcessingResult, dir string, log *zap.Logger) error {
	out := cmd.OutOrStdout()
	rows := make([][]string, 0, len(model.ValidOutputKinds))

	for _, kind := range model.ValidOutputKinds {
		if _, ok := result.Outputs.Locator(kind); !ok {
			continue
		}
		path, err := ctrl.Download(cmd.Context(), kind, dir)
		var dlErr *client.DownloadError
		switch {
		case err == nil:
			rows = append(rows, []string{string(kind), path, "downloaded"})
		case errors.As(err, &dlErr):
			log.Warn("download failed, writing local stand-in", zap.String("kind", string(kind)), zap.Error(err))
			path, err = writeStandIn(result.JobID, kind, dir)
			if err != nil {
				return err
			}
			rows = append(rows, []string{string(kind), path, "stand-in"})
		default:
			return err
		}
	}

	if len(rows) > 0 {
		fmt.Fprintln(out, "\nOutputs")
		fmt.Fprintln(out, renderTable([]string{"Kind", "Path", "Source"}, rows, nil))
	}
	return nil
}

// writeStandIn writes a placeholder where a download could not be fetched.
func writeStandIn(jobID string, kind model.OutputKind, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	path := client.OutputPath(dir, jobID, kind)
	body := fmt.Sprintf("%s output for job %s could not be downloaded\n", kind, jobID)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}
