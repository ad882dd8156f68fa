// Package realesrgan mediates access to the Real-ESRGAN CLI used for
// super-resolution. The tool names its own output file, so the client also
// owns the discovery step that locates the single product of a run.
package realesrgan

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"tapedeck/internal/media/ffprobe"
	"tapedeck/internal/services"
)

// Model names shipped with Real-ESRGAN, selected by scale factor.
const (
	ModelX2 = "RealESRGAN_x2plus"
	ModelX4 = "realesr-general-x4v3"
)

// ModelForScale maps a scale factor to its model name.
func ModelForScale(scale int) (string, error) {
	switch scale {
	case 2:
		return ModelX2, nil
	case 4:
		return ModelX4, nil
	default:
		return "", fmt.Errorf("unsupported scale factor %d (want 2 or 4)", scale)
	}
}

// Client wraps Real-ESRGAN CLI interactions.
type Client struct {
	binary string
	runner *services.Runner
}

// New constructs a Real-ESRGAN client.
func New(binary string, runner *services.Runner) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("realesrgan binary required")
	}
	if runner == nil {
		return nil, errors.New("command runner required")
	}
	return &Client{binary: binary, runner: runner}, nil
}

// Upscale runs the model selected by scale over input, writing into outDir.
// The source frame rate is passed through so the tool re-times its output.
func (c *Client) Upscale(ctx context.Context, input, outDir string, scale int, fps float64) error {
	model, err := ModelForScale(scale)
	if err != nil {
		return services.Wrap(services.ErrValidation, "realesrgan", "upscale", err.Error(), nil)
	}
	return c.runner.Run(ctx, c.binary,
		"-i", input,
		"-o", outDir,
		"-n", model,
		"-s", fmt.Sprintf("%d", scale),
		"--fps", ffprobe.FormatRate(fps),
	)
}

// LocateOutput finds the single video Real-ESRGAN produced in dir. Candidates
// named *_out.mp4 are preferred; otherwise any .mp4 whose name differs from
// the input's qualifies. Zero candidates means the tool silently produced
// nothing (ErrExternalTool); more than one means the directory is ambiguous
// and nothing is guessed (ErrValidation).
func LocateOutput(dir, inputPath string) (string, error) {
	preferred, err := filepath.Glob(filepath.Join(dir, "*_out.mp4"))
	if err != nil {
		return "", fmt.Errorf("scan output directory: %w", err)
	}

	candidates := preferred
	if len(candidates) == 0 {
		all, err := filepath.Glob(filepath.Join(dir, "*.mp4"))
		if err != nil {
			return "", fmt.Errorf("scan output directory: %w", err)
		}
		inputBase := filepath.Base(inputPath)
		for _, path := range all {
			if filepath.Base(path) != inputBase {
				candidates = append(candidates, path)
			}
		}
	}

	switch len(candidates) {
	case 0:
		return "", services.Wrap(services.ErrExternalTool, "realesrgan", "locate output",
			fmt.Sprintf("no upscaled video found in %s", dir), nil)
	case 1:
		return candidates[0], nil
	default:
		return "", services.Wrap(services.ErrValidation, "realesrgan", "locate output",
			fmt.Sprintf("%d candidate videos in %s, refusing to guess", len(candidates), dir), nil)
	}
}
