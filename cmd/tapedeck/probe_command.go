package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"tapedeck/internal/media/ffprobe"
	"tapedeck/internal/media/scan"
	"tapedeck/internal/services"
)

const probeScanFrames = 500

func newProbeCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "probe <source>",
		Short: "Inspect a recording's streams, scan type, and bitrate health",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			runner := services.NewRunner(time.Duration(cfg.Tools.ToolTimeout) * time.Second)

			result, err := ffprobe.Inspect(cmd.Context(), runner, cfg.Tools.FFprobe, args[0])
			if err != nil {
				if diag := services.Diagnostic(err); diag != "" {
					fmt.Fprintln(cmd.ErrOrStderr(), diag)
				}
				return err
			}

			rows := [][]string{
				{"Duration", fmt.Sprintf("%.3f s", result.DurationSeconds())},
			}
			if width, height, dimErr := result.Dimensions(); dimErr == nil {
				rows = append(rows, []string{"Dimensions", fmt.Sprintf("%dx%d", width, height)})
			}
			fps, usedFallback, rateErr := result.FrameRate()
			if rateErr == nil {
				label := ffprobe.FormatRate(fps) + " fps"
				if usedFallback {
					label += " (average)"
				}
				rows = append(rows, []string{"Frame rate", label})
			}
			if pixFmt := result.PixelFormat(); pixFmt != "" {
				rows = append(rows, []string{"Pixel format", pixFmt})
			}
			if bitRate := result.BitRate(); bitRate > 0 {
				rows = append(rows, []string{"Bit rate", humanize.SI(float64(bitRate), "bps")})
				if width, height, dimErr := result.Dimensions(); dimErr == nil && rateErr == nil {
					health := scan.ClassifyBitrate(bitRate, width, height, fps)
					rows = append(rows, []string{"Bitrate health", string(health)})
				}
			}

			if report, scanErr := scan.DetectInterlace(cmd.Context(), runner, cfg.Tools.FFmpeg, args[0], probeScanFrames); scanErr == nil {
				rows = append(rows, []string{"Scan type", string(report.Type)})
				rows = append(rows, []string{"Interlace sample", fmt.Sprintf("tff=%d bff=%d progressive=%d",
					report.TFF, report.BFF, report.Progressive)})
			} else {
				fmt.Fprintf(cmd.ErrOrStderr(), "interlace scan failed: %v\n", scanErr)
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Property", "Value"},
				rows,
				[]columnAlignment{alignLeft, alignLeft},
			))
			return nil
		},
	}
	return cmd
}
