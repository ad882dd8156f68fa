package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"

	"tapedeck/internal/chunk"
	"tapedeck/internal/fileutil"
	"tapedeck/internal/ledger"
	"tapedeck/internal/logging"
	"tapedeck/internal/services"
)

// ensureSegments guarantees the input directory holds a complete set of
// split segments and returns the chunk count. A recorded split is only
// trusted after verifying every expected segment index is present or its
// chunk has already progressed past needing the segment; otherwise the
// input directory is cleared and the split rerun.
func (p *Pipeline) ensureSegments(ctx context.Context, logger *slog.Logger, store *ledger.Store, layout chunk.Layout, source string, duration, chunkSeconds float64) (int, error) {
	if expected, ok, err := store.SplitComplete(ctx); err != nil {
		return 0, err
	} else if ok {
		if p.verifySegments(ctx, logger, store, layout, expected) {
			logger.Info("split already complete", logging.Int("chunks", expected))
			return expected, nil
		}
		logger.Warn("recorded split is incomplete on disk, splitting again")
		if err := p.clearSegments(layout); err != nil {
			return 0, err
		}
	}

	plan, err := chunk.Plan(duration, chunkSeconds)
	if err != nil {
		return 0, services.Wrap(services.ErrValidation, "pipeline", "plan chunks", err.Error(), nil)
	}
	logger.Info("splitting source",
		logging.Int("planned_chunks", len(plan)),
		logging.Float64("chunk_seconds", chunkSeconds),
	)

	if err := p.ffmpeg.Split(ctx, source, chunkSeconds, layout.SegmentPattern()); err != nil {
		return 0, p.toolFailure(err, "split source")
	}

	// The segment muxer cuts at keyframes, so the actual count is read back
	// from disk rather than trusted from the plan.
	count, err := p.countSegments(layout)
	if err != nil {
		return 0, err
	}
	if count == 0 {
		return 0, services.Wrap(services.ErrExternalTool, "pipeline", "split source",
			"split produced no segments", nil)
	}

	if err := store.EnsureChunks(ctx, count); err != nil {
		return 0, err
	}
	if err := store.SetSplitComplete(ctx, count); err != nil {
		return 0, err
	}
	logger.Info("split complete", logging.Int("chunks", count))
	return count, nil
}

// verifySegments checks that every chunk in [0, expected) either still has
// its input segment or no longer needs it.
func (p *Pipeline) verifySegments(ctx context.Context, logger *slog.Logger, store *ledger.Store, layout chunk.Layout, expected int) bool {
	if err := store.EnsureChunks(ctx, expected); err != nil {
		logger.Warn("cannot verify recorded split", logging.Error(err))
		return false
	}
	for i := 0; i < expected; i++ {
		if fileutil.NonEmpty(layout.Segment(i)) {
			continue
		}
		// Past the enhancement stage the segment is deliberately deleted.
		if fileutil.NonEmpty(layout.Final(i)) || fileutil.NonEmpty(layout.Enhanced(i)) {
			continue
		}
		if record, err := store.Get(ctx, i); err == nil &&
			(record.Status == ledger.StatusDone || record.Status == ledger.StatusEnhanced) {
			continue
		}
		logger.Warn("segment missing from recorded split",
			logging.Int(logging.FieldChunk, i),
			logging.String("segment", layout.Segment(i)),
		)
		return false
	}
	return true
}

func (p *Pipeline) countSegments(layout chunk.Layout) (int, error) {
	pattern := filepath.Join(layout.InputDir(), "chunk_*"+layout.SourceExt)
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return 0, fmt.Errorf("enumerate segments: %w", err)
	}
	return len(matches), nil
}

func (p *Pipeline) clearSegments(layout chunk.Layout) error {
	pattern := filepath.Join(layout.InputDir(), "chunk_*"+layout.SourceExt)
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return fmt.Errorf("enumerate segments: %w", err)
	}
	sort.Strings(matches)
	for _, path := range matches {
		if err := fileutil.RemoveIfExists(path); err != nil {
			return fmt.Errorf("remove stale segment %s: %w", path, err)
		}
	}
	return nil
}
