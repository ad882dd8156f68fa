// Package budget sizes pipeline chunks from live disk and video
// measurements. The estimate is advisory: any measurement failure falls back
// to the minimum chunk duration rather than aborting the run.
package budget

import (
	"fmt"
	"log/slog"

	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"

	"tapedeck/internal/config"
	"tapedeck/internal/logging"
)

// Inputs are the live measurements feeding one estimate.
type Inputs struct {
	Width     int
	Height    int
	Scale     int
	FPS       float64
	FreeBytes uint64
}

// Estimate is the sized chunk duration plus the numbers behind it.
type Estimate struct {
	Seconds        int
	FrameSizeBytes int64
	BurnRateBytes  int64
	UsableBytes    uint64
	Fallback       bool
	Reason         string
}

// FreeBytes reports the free space on the filesystem holding path.
func FreeBytes(path string) (uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, fmt.Errorf("statfs %s: %w", path, err)
	}
	return stat.Bavail * uint64(stat.Bsize), nil
}

// ChunkSeconds computes a clamped chunk duration. During interpolation both
// the input and output frame sets for a chunk coexist on disk, so the burn
// rate counts two frames per input frame.
func ChunkSeconds(logger *slog.Logger, cfg config.Chunking, in Inputs) Estimate {
	if logger == nil {
		logger = logging.NewNop()
	}

	fallback := func(reason string) Estimate {
		logger.Warn("chunk auto-tuning failed, using minimum chunk size",
			logging.String("reason", reason),
			logging.Int("chunk_seconds", cfg.MinChunkSeconds),
		)
		return Estimate{Seconds: cfg.MinChunkSeconds, Fallback: true, Reason: reason}
	}

	if in.Width <= 0 || in.Height <= 0 || in.Scale <= 0 {
		return fallback(fmt.Sprintf("invalid geometry %dx%d scale %d", in.Width, in.Height, in.Scale))
	}
	if in.FPS <= 0 {
		return fallback(fmt.Sprintf("invalid frame rate %.3f", in.FPS))
	}
	if in.FreeBytes == 0 {
		return fallback("no free space reported")
	}

	pixels := int64(in.Width) * int64(in.Scale) * int64(in.Height) * int64(in.Scale)
	frameSize := int64(float64(pixels*int64(cfg.BytesPerPixel)) * cfg.FrameCompressionRatio)
	burnRate := int64(in.FPS * 2 * float64(frameSize))
	if burnRate <= 0 {
		return fallback("zero burn rate")
	}

	usable := uint64(float64(in.FreeBytes) * cfg.DiskSafetyMargin)
	raw := float64(usable) / float64(burnRate)

	seconds := int(raw)
	if seconds < cfg.MinChunkSeconds {
		seconds = cfg.MinChunkSeconds
	}
	if seconds > cfg.MaxChunkSeconds {
		seconds = cfg.MaxChunkSeconds
	}

	logger.Info("chunk size auto-tuned",
		logging.String("upscaled_resolution", fmt.Sprintf("%dx%d", in.Width*in.Scale, in.Height*in.Scale)),
		logging.String("frame_size_estimate", humanize.IBytes(uint64(frameSize))),
		logging.String("burn_rate_per_second", humanize.IBytes(uint64(burnRate))),
		logging.String("usable_space", humanize.IBytes(usable)),
		logging.Int("chunk_seconds", seconds),
	)

	return Estimate{
		Seconds:        seconds,
		FrameSizeBytes: frameSize,
		BurnRateBytes:  burnRate,
		UsableBytes:    usable,
	}
}
