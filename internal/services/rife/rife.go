// Package rife mediates access to the RIFE CLI used for motion-compensated
// frame interpolation between extracted PNG sequences.
package rife

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"tapedeck/internal/services"
)

// Timestep is the interpolation midpoint: one synthesized frame halfway
// between each input pair, doubling the frame rate.
const Timestep = 0.5

// Client wraps RIFE CLI interactions.
type Client struct {
	binary string
	runner *services.Runner
}

// New constructs a RIFE client.
func New(binary string, runner *services.Runner) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("rife binary required")
	}
	if runner == nil {
		return nil, errors.New("command runner required")
	}
	return &Client{binary: binary, runner: runner}, nil
}

// Interpolate synthesizes intermediate frames between the PNGs in inDir,
// writing the combined sequence to outDir.
func (c *Client) Interpolate(ctx context.Context, inDir, outDir string) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create interpolation output directory: %w", err)
	}
	return c.runner.Run(ctx, c.binary,
		"-i", inDir,
		"-o", outDir,
		"-s", fmt.Sprintf("%g", Timestep),
	)
}

// CountFrames counts the PNG frames in dir. A missing directory counts as
// zero frames.
func CountFrames(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read frame directory: %w", err)
	}
	count := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(entry.Name()), ".png") {
			count++
		}
	}
	return count, nil
}
