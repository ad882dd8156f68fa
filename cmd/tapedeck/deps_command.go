package main

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"tapedeck/internal/deps"
)

func newDepsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deps",
		Short: "Check external tools and workspace readiness",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			statuses := deps.CheckBinaries(deps.Required(cfg))
			rows := make([][]string, 0, len(statuses))
			for _, status := range statuses {
				detail := status.Detail
				if detail == "" {
					detail = status.Description
				}
				rows = append(rows, []string{
					status.Name,
					status.Command,
					yesNo(status.Available),
					detail,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Tool", "Command", "Found", "Detail"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft},
			))

			workspace := deps.CheckWorkspace(cfg.Paths.WorkDir)
			fmt.Fprintf(cmd.OutOrStdout(), "Working directory: %s (exists: %s, writable: %s",
				workspace.Path, yesNo(workspace.Exists), yesNo(workspace.Writable))
			if workspace.FreeBytes > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), ", free: %s", humanize.IBytes(workspace.FreeBytes))
			}
			fmt.Fprintln(cmd.OutOrStdout(), ")")
			if workspace.Detail != "" {
				fmt.Fprintln(cmd.OutOrStdout(), workspace.Detail)
			}

			if missing := deps.MissingRequired(statuses); len(missing) > 0 {
				return fmt.Errorf("missing required tools: %s", strings.Join(missing, ", "))
			}
			return nil
		},
	}
	return cmd
}
