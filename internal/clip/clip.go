// Package clip extracts short test clips from a source recording so filter
// and model settings can be tried on a few seconds of tape instead of hours.
package clip

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tapedeck/internal/services/ffmpeg"
)

// Request describes one clip extraction.
type Request struct {
	Input   string
	Start   string // HH:MM:SS or plain seconds
	Seconds float64
	OutDir  string
}

// OutputName builds an unambiguous clip filename from the request and a
// wall-clock stamp: the source stem, start position, duration and time of
// extraction all survive into the name.
func OutputName(req Request, now time.Time) string {
	stem := strings.TrimSuffix(filepath.Base(req.Input), filepath.Ext(req.Input))
	safeStart := strings.ReplaceAll(req.Start, ":", "-")
	return fmt.Sprintf("%s_start%s_dur%ds_%s.mp4",
		stem, safeStart, int(req.Seconds), now.Format("20060102_150405"))
}

// Extract cuts the requested window out of the source into OutDir and returns
// the clip path.
func Extract(ctx context.Context, client *ffmpeg.Client, req Request) (string, error) {
	if req.Input == "" {
		return "", errors.New("input path required")
	}
	if req.Start == "" {
		return "", errors.New("start position required")
	}
	if req.Seconds <= 0 {
		return "", fmt.Errorf("clip duration %.1fs is not positive", req.Seconds)
	}
	if err := os.MkdirAll(req.OutDir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	output := filepath.Join(req.OutDir, OutputName(req, time.Now()))
	if err := client.ExtractClip(ctx, req.Input, output, req.Start, req.Seconds); err != nil {
		return "", err
	}
	return output, nil
}
