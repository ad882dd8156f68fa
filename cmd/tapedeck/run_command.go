package main

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"tapedeck/internal/identity"
	"tapedeck/internal/pipeline"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var (
		scale   int
		force   bool
		workDir string
		chunks  int
	)

	cmd := &cobra.Command{
		Use:   "run <source>",
		Short: "Upscale and interpolate a recording",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger()
			if err != nil {
				return err
			}

			p, err := pipeline.New(cfg, logger)
			if err != nil {
				return err
			}

			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			opts := pipeline.Options{
				Source:    args[0],
				Scale:     scale,
				Force:     force,
				WorkDir:   strings.TrimSpace(workDir),
				MaxChunks: chunks,
			}
			// Conflicts can only be resolved interactively on a terminal;
			// otherwise a mismatched working directory aborts the run.
			if !force && isatty.IsTerminal(os.Stdin.Fd()) {
				opts.Prompt = promptDiscard
			}

			result, err := p.Run(signalCtx, opts)
			if err != nil {
				return err
			}

			if result.Partial {
				fmt.Fprintf(cmd.OutOrStdout(), "Partial run: %d chunk(s) processed, %d skipped, %d total. Rerun without --chunks to finish.\n",
					result.Processed, result.Skipped, result.TotalChunks)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Done: %d chunk(s) processed, %d skipped.\nOutput: %s\n",
				result.Processed, result.Skipped, result.OutputPath)
			return nil
		},
	}

	cmd.Flags().IntVar(&scale, "scale", 2, "Upscale factor (2 or 4)")
	cmd.Flags().BoolVar(&force, "force", false, "Discard mismatched state in the working directory")
	cmd.Flags().StringVar(&workDir, "workdir", "", "Override the configured working directory")
	cmd.Flags().IntVar(&chunks, "chunks", 0, "Process at most N chunks and skip reassembly (0 = all)")

	return cmd
}

// promptDiscard asks the operator whether mismatched working-directory state
// may be thrown away.
func promptDiscard(existing, current identity.Fingerprint) (bool, error) {
	fmt.Fprintf(os.Stderr, "Working directory holds state for a different job:\n")
	fmt.Fprintf(os.Stderr, "  existing:  %s (x%d)\n", existing.SourcePath, existing.ScaleFactor)
	fmt.Fprintf(os.Stderr, "  requested: %s (x%d)\n", current.SourcePath, current.ScaleFactor)
	fmt.Fprintf(os.Stderr, "Discard the existing state and start over? [y/N]: ")

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false, fmt.Errorf("read response: %w", err)
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}
