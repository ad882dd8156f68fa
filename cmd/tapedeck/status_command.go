package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"tapedeck/internal/budget"
	"tapedeck/internal/ledger"
	"tapedeck/internal/pipeline"
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var workDir string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show per-chunk progress for the working directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			dir := strings.TrimSpace(workDir)
			if dir == "" {
				dir = cfg.Paths.WorkDir
			}

			report, err := pipeline.Status(cmd.Context(), dir)
			if err != nil {
				return err
			}
			writeStatusReport(cmd.OutOrStdout(), report)
			if free, err := budget.FreeBytes(dir); err == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Free space: %s\n", humanize.IBytes(free))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&workDir, "workdir", "", "Working directory to inspect")
	return cmd
}

func writeStatusReport(w io.Writer, report *pipeline.StatusReport) {
	colorize := shouldColorize(w)

	fmt.Fprintf(w, "Working directory: %s\n", report.WorkDir)
	if !report.HasIdentity {
		fmt.Fprintln(w, "No job state found.")
		return
	}
	fmt.Fprintf(w, "Source: %s (x%d)\n", report.Identity.SourcePath, report.Identity.ScaleFactor)
	fmt.Fprintf(w, "Run ID: %s\n", report.Identity.RunID)
	fmt.Fprintf(w, "Split complete: %s", yesNo(report.SplitComplete))
	if report.SplitComplete {
		fmt.Fprintf(w, " (%d chunks)", report.ExpectedChunks)
	}
	fmt.Fprintln(w)

	if len(report.Chunks) == 0 {
		fmt.Fprintln(w, "No chunks recorded yet.")
		return
	}

	rows := make([][]string, 0, len(report.Chunks))
	for _, c := range report.Chunks {
		status := string(c.Status)
		if colorize {
			status = colorizeStatus(c.Status) + status + ansiReset
		}
		detail := c.ErrorMessage
		if c.Status == ledger.StatusDone && !c.FinalOnDisk {
			detail = "final artifact missing"
		}
		rows = append(rows, []string{
			fmt.Sprintf("%03d", c.Index),
			status,
			yesNo(c.FinalOnDisk),
			detail,
		})
	}
	fmt.Fprintln(w, renderTable(
		[]string{"Chunk", "Status", "On Disk", "Detail"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft},
	))
	fmt.Fprintf(w, "%d done, %d failed, %d total\n",
		report.Done, report.Failed, len(report.Chunks))
}

func colorizeStatus(status ledger.Status) string {
	switch status {
	case ledger.StatusDone:
		return ansiGreen
	case ledger.StatusFailed:
		return ansiRed
	case ledger.StatusEnhanced:
		return ansiYellow
	default:
		return ""
	}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
