package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"tapedeck/internal/chapters"
)

func newChaptersCommand() *cobra.Command {
	var (
		output    string
		titleCase bool
	)

	cmd := &cobra.Command{
		Use:         "chapters <input.txt>",
		Short:       "Convert raw 'Title MM:SS' chapter notes to OGM format",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read chapter file: %w", err)
			}

			ogm, err := chapters.Convert(string(data), chapters.Options{TitleCase: titleCase})
			if err != nil {
				return err
			}

			target := strings.TrimSpace(output)
			if target == "" {
				fmt.Fprintln(cmd.OutOrStdout(), ogm)
				return nil
			}
			if err := os.WriteFile(target, []byte(ogm+"\n"), 0o644); err != nil {
				return fmt.Errorf("write %s: %w", target, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", target)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default: stdout)")
	cmd.Flags().BoolVar(&titleCase, "title-case", false, "Rewrite chapter titles in title case")
	return cmd
}
