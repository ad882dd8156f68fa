// Package scan classifies source material ahead of enhancement: interlace
// detection via ffmpeg's idet filter and a rough bitrate-health check. Both
// feed the probe report only; the pipeline itself treats them as advisory.
package scan

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"tapedeck/internal/services"
)

// ScanType classifies the scan structure of a video stream.
type ScanType string

const (
	ScanProgressive   ScanType = "progressive"
	ScanInterlacedTFF ScanType = "interlaced_tff"
	ScanInterlacedBFF ScanType = "interlaced_bff"
	ScanUnknown       ScanType = "unknown"
)

// Interlaced reports whether the classification calls for a deinterlacer.
func (s ScanType) Interlaced() bool {
	return s == ScanInterlacedTFF || s == ScanInterlacedBFF
}

// InterlaceReport carries the idet frame counters behind a classification.
type InterlaceReport struct {
	Type        ScanType
	TFF         int
	BFF         int
	Progressive int
	Sampled     int
}

// progressiveThreshold is the fraction of progressive frames above which the
// occasional combed frame is written off as noise.
const progressiveThreshold = 0.90

var idetPattern = regexp.MustCompile(`Multi frame detection: TFF:\s*(\d+)\s*BFF:\s*(\d+)\s*Progressive:\s*(\d+)`)

// DetectInterlace runs ffmpeg's idet filter over the first frames of the
// video and classifies the scan type from the multi-frame counters.
func DetectInterlace(ctx context.Context, runner *services.Runner, ffmpegBin, path string, frames int) (InterlaceReport, error) {
	if strings.TrimSpace(path) == "" {
		return InterlaceReport{Type: ScanUnknown}, errors.New("detect interlace: empty path")
	}
	if frames <= 0 {
		frames = 500
	}
	if runner == nil {
		runner = services.NewRunner(0)
	}

	// idet reports its counters on stderr even on success.
	output, err := runner.RunCombined(ctx, ffmpegBin,
		"-i", path,
		"-filter:v", "idet",
		"-frames:v", strconv.Itoa(frames),
		"-an", "-f", "null", "-")
	if err != nil {
		return InterlaceReport{Type: ScanUnknown}, fmt.Errorf("idet analysis: %w", err)
	}
	return parseIdet(output), nil
}

func parseIdet(output string) InterlaceReport {
	match := idetPattern.FindStringSubmatch(output)
	if match == nil {
		return InterlaceReport{Type: ScanUnknown}
	}
	tff, _ := strconv.Atoi(match[1])
	bff, _ := strconv.Atoi(match[2])
	prog, _ := strconv.Atoi(match[3])
	total := tff + bff + prog

	report := InterlaceReport{TFF: tff, BFF: bff, Progressive: prog, Sampled: total}
	switch {
	case total == 0:
		report.Type = ScanUnknown
	case float64(prog)/float64(total) > progressiveThreshold:
		report.Type = ScanProgressive
	case tff >= bff:
		report.Type = ScanInterlacedTFF
	default:
		report.Type = ScanInterlacedBFF
	}
	return report
}

// BitrateHealth classifies container bitrate relative to the pixel rate.
type BitrateHealth string

const (
	BitrateOK      BitrateHealth = "ok"
	BitrateLow     BitrateHealth = "low"
	BitrateUnknown BitrateHealth = "unknown"
)

// minBitsPerPixel is the floor below which a source is flagged as starved;
// upscaling cannot recover detail the encoder already threw away.
const minBitsPerPixel = 0.04

// ClassifyBitrate judges whether the source carries enough bits per pixel
// per frame for enhancement to be worthwhile.
func ClassifyBitrate(bitRate int64, width, height int, fps float64) BitrateHealth {
	if bitRate <= 0 || width <= 0 || height <= 0 || fps <= 0 {
		return BitrateUnknown
	}
	pixelRate := float64(width) * float64(height) * fps
	if float64(bitRate)/pixelRate < minBitsPerPixel {
		return BitrateLow
	}
	return BitrateOK
}
