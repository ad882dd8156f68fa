package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"tapedeck/internal/chunk"
	"tapedeck/internal/fileutil"
	"tapedeck/internal/ledger"
	"tapedeck/internal/logging"
	"tapedeck/internal/services"
	"tapedeck/internal/services/realesrgan"
	"tapedeck/internal/services/rife"
)

// processChunk runs one chunk through enhancement and interpolation. It
// returns false when the chunk was already complete and only needed its
// intermediates scrubbed. Failures are recorded in the ledger before they
// propagate; any chunk failure aborts the job.
func (p *Pipeline) processChunk(ctx context.Context, store *ledger.Store, layout chunk.Layout, probe SourceInfo, scale, index int) (bool, error) {
	ctx = services.WithChunk(ctx, index)
	logger := logging.WithContext(ctx, p.logger)

	if fileutil.NonEmpty(layout.Final(index)) {
		logger.Debug("chunk already complete")
		if err := p.cleanupChunk(layout, index); err != nil {
			return false, err
		}
		return false, nil
	}

	segment := layout.Segment(index)
	if !fileutil.NonEmpty(segment) && !fileutil.NonEmpty(layout.Enhanced(index)) {
		logger.Warn("input segment missing, skipping chunk", logging.String("segment", segment))
		return false, nil
	}

	if err := p.enhanceChunk(ctx, layout, scale, probe.FPS, index); err != nil {
		p.recordFailure(ctx, store, index, err)
		return false, err
	}
	if err := store.MarkEnhanced(ctx, index); err != nil {
		return false, err
	}

	if err := p.interpolateChunk(ctx, layout, probe.FPS, index); err != nil {
		p.recordFailure(ctx, store, index, err)
		return false, err
	}
	if err := store.MarkDone(ctx, index); err != nil {
		return false, err
	}

	if err := p.cleanupChunk(layout, index); err != nil {
		return false, err
	}
	logger.Info("chunk complete")
	return true, nil
}

// enhanceChunk prefilters the segment and upscales it, leaving the canonical
// enhanced video in place. Already-present output makes this a no-op.
func (p *Pipeline) enhanceChunk(ctx context.Context, layout chunk.Layout, scale int, fps float64, index int) error {
	ctx = services.WithStage(ctx, "enhance")
	logger := logging.WithContext(ctx, p.logger)
	enhanced := layout.Enhanced(index)
	if fileutil.NonEmpty(enhanced) {
		logger.Debug("enhanced video already present")
		return nil
	}

	scratch := layout.ScratchDir(index)
	if err := fileutil.RemoveTreeIfExists(scratch); err != nil {
		return fmt.Errorf("reset scratch directory: %w", err)
	}
	if err := os.MkdirAll(scratch, 0o755); err != nil {
		return fmt.Errorf("create scratch directory: %w", err)
	}

	filtered := filepath.Join(scratch, "filtered.mp4")
	logger.Info("prefiltering segment")
	if err := p.ffmpeg.Prefilter(ctx, layout.Segment(index), filtered,
		p.cfg.Enhance.Prefilter, p.cfg.Enhance.PrefilterCRF, p.cfg.Enhance.PrefilterPreset); err != nil {
		return p.toolFailure(err, "prefilter segment")
	}

	logger.Info("upscaling", logging.Int("scale", scale))
	if err := p.esrgan.Upscale(ctx, filtered, scratch, scale, fps); err != nil {
		return p.toolFailure(err, "upscale segment")
	}

	output, err := realesrgan.LocateOutput(scratch, filtered)
	if err != nil {
		return err
	}
	if err := os.Rename(output, enhanced); err != nil {
		return fmt.Errorf("move upscaled video into place: %w", err)
	}
	if err := fileutil.RemoveTreeIfExists(scratch); err != nil {
		return fmt.Errorf("remove scratch directory: %w", err)
	}
	return nil
}

// interpolateChunk doubles the frame rate of the enhanced video and encodes
// the final chunk. The synthesized frame count must reach 2n-2 for n input
// frames; anything less means the interpolator dropped frames.
func (p *Pipeline) interpolateChunk(ctx context.Context, layout chunk.Layout, fps float64, index int) error {
	ctx = services.WithStage(ctx, "interpolate")
	logger := logging.WithContext(ctx, p.logger)
	final := layout.Final(index)
	if fileutil.NonEmpty(final) {
		logger.Debug("final chunk already present")
		return nil
	}

	framesIn := layout.FramesInDir(index)
	framesOut := layout.FramesOutDir(index)
	for _, dir := range []string{framesIn, framesOut} {
		if err := fileutil.RemoveTreeIfExists(dir); err != nil {
			return fmt.Errorf("reset frame directory: %w", err)
		}
	}

	logger.Info("extracting frames")
	if err := p.ffmpeg.ExtractFrames(ctx, layout.Enhanced(index), framesIn); err != nil {
		return p.toolFailure(err, "extract frames")
	}
	inFrames, err := rife.CountFrames(framesIn)
	if err != nil {
		return err
	}
	if inFrames == 0 {
		return services.Wrap(services.ErrExternalTool, "pipeline", "extract frames",
			"frame extraction produced no frames", nil)
	}

	logger.Info("interpolating", logging.Int("input_frames", inFrames))
	if err := p.rife.Interpolate(ctx, framesIn, framesOut); err != nil {
		return p.toolFailure(err, "interpolate frames")
	}
	outFrames, err := rife.CountFrames(framesOut)
	if err != nil {
		return err
	}
	if minFrames := 2*inFrames - 2; outFrames < minFrames {
		return services.Wrap(services.ErrValidation, "pipeline", "verify interpolation",
			fmt.Sprintf("interpolator produced %d frames from %d inputs, expected at least %d",
				outFrames, inFrames, minFrames), nil)
	}

	logger.Info("encoding final chunk", logging.Int("output_frames", outFrames))
	if err := p.ffmpeg.EncodeFrames(ctx, framesOut, final, fps*2,
		p.cfg.Assemble.EncodeCRF, p.cfg.Assemble.EncodePreset); err != nil {
		return p.toolFailure(err, "encode final chunk")
	}
	return nil
}

// cleanupChunk removes every intermediate for a completed chunk: the input
// segment, the enhanced video, both frame directories, and any scratch dir.
func (p *Pipeline) cleanupChunk(layout chunk.Layout, index int) error {
	if err := fileutil.RemoveIfExists(layout.Segment(index)); err != nil {
		return fmt.Errorf("remove input segment: %w", err)
	}
	if err := fileutil.RemoveIfExists(layout.Enhanced(index)); err != nil {
		return fmt.Errorf("remove enhanced video: %w", err)
	}
	for _, dir := range []string{layout.ScratchDir(index), layout.FramesInDir(index), layout.FramesOutDir(index)} {
		if err := fileutil.RemoveTreeIfExists(dir); err != nil {
			return fmt.Errorf("remove %s: %w", dir, err)
		}
	}
	return nil
}

func (p *Pipeline) recordFailure(ctx context.Context, store *ledger.Store, index int, cause error) {
	if err := store.MarkFailed(ctx, index, cause.Error()); err != nil {
		p.logger.Warn("cannot record chunk failure",
			logging.Int(logging.FieldChunk, index),
			logging.Error(err),
		)
	}
}
