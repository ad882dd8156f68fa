package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"tapedeck/internal/clip"
	"tapedeck/internal/services"
	"tapedeck/internal/services/ffmpeg"
)

func newClipCommand(ctx *commandContext) *cobra.Command {
	var (
		seconds float64
		outDir  string
	)

	cmd := &cobra.Command{
		Use:   "clip <source> <start>",
		Short: "Extract a short test clip for trying settings",
		Long:  "Extract a short clip starting at the given position (HH:MM:SS or seconds) so filter and model settings can be evaluated without processing the whole recording.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			runner := services.NewRunner(time.Duration(cfg.Tools.ToolTimeout) * time.Second)
			client, err := ffmpeg.New(cfg.Tools.FFmpeg, runner)
			if err != nil {
				return err
			}

			path, err := clip.Extract(cmd.Context(), client, clip.Request{
				Input:   args[0],
				Start:   args[1],
				Seconds: seconds,
				OutDir:  outDir,
			})
			if err != nil {
				if diag := services.Diagnostic(err); diag != "" {
					fmt.Fprintln(cmd.ErrOrStderr(), diag)
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Clip saved: %s\n", path)
			return nil
		},
	}

	cmd.Flags().Float64VarP(&seconds, "duration", "d", 10, "Clip length in seconds")
	cmd.Flags().StringVarP(&outDir, "outdir", "o", "clips", "Directory to save the clip")
	return cmd
}
