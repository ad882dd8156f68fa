package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"tapedeck/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigShowCommand(ctx))

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			} else {
				expanded, err := config.ExpandPath(target)
				if err != nil {
					return fmt.Errorf("resolve config path: %w", err)
				}
				target = expanded
			}

			dir := filepath.Dir(target)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create config directory %q: %w", dir, err)
			}

			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				} else if !os.IsNotExist(err) {
					return fmt.Errorf("check config path: %w", err)
				}
			}

			if err := config.CreateSample(target); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote sample configuration to %s\n", target)
			return nil
		},
	}

	cmd.Flags().StringVar(&targetPath, "path", "", "Destination for the sample config")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing config file")
	return cmd
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			rows := [][]string{
				{"paths.work_dir", cfg.Paths.WorkDir},
				{"paths.output_dir", cfg.Paths.OutputDir},
				{"paths.log_dir", cfg.Paths.LogDir},
				{"tools.ffmpeg", cfg.Tools.FFmpeg},
				{"tools.ffprobe", cfg.Tools.FFprobe},
				{"tools.realesrgan", cfg.Tools.RealESRGAN},
				{"tools.rife", cfg.Tools.RIFE},
				{"tools.tool_timeout", fmt.Sprintf("%d", cfg.Tools.ToolTimeout)},
				{"chunking.min_chunk_seconds", fmt.Sprintf("%d", cfg.Chunking.MinChunkSeconds)},
				{"chunking.max_chunk_seconds", fmt.Sprintf("%d", cfg.Chunking.MaxChunkSeconds)},
				{"chunking.disk_safety_margin", fmt.Sprintf("%.2f", cfg.Chunking.DiskSafetyMargin)},
				{"chunking.frame_compression_ratio", fmt.Sprintf("%.2f", cfg.Chunking.FrameCompressionRatio)},
				{"chunking.bytes_per_pixel", fmt.Sprintf("%d", cfg.Chunking.BytesPerPixel)},
				{"enhance.prefilter", cfg.Enhance.Prefilter},
				{"enhance.prefilter_crf", fmt.Sprintf("%d", cfg.Enhance.PrefilterCRF)},
				{"enhance.prefilter_preset", cfg.Enhance.PrefilterPreset},
				{"assemble.encode_crf", fmt.Sprintf("%d", cfg.Assemble.EncodeCRF)},
				{"assemble.encode_preset", cfg.Assemble.EncodePreset},
				{"logging.format", cfg.Logging.Format},
				{"logging.level", cfg.Logging.Level},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Setting", "Value"},
				rows,
				[]columnAlignment{alignLeft, alignLeft},
			))
			return nil
		},
	}
}
