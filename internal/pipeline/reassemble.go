package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"tapedeck/internal/chunk"
	"tapedeck/internal/fileutil"
	"tapedeck/internal/logging"
	"tapedeck/internal/services"
	"tapedeck/internal/services/ffmpeg"
)

// reassemble concatenates the contiguous prefix of final chunks and muxes the
// original audio into the output file. A gap in the sequence ends the prefix
// with a warning; concat failure is fatal and surfaces the tool diagnostic
// untouched.
func (p *Pipeline) reassemble(ctx context.Context, layout chunk.Layout, total int, output string) error {
	ctx = services.WithStage(ctx, "reassemble")
	logger := logging.WithContext(ctx, p.logger)

	var finals []string
	for i := 0; i < total; i++ {
		path := layout.Final(i)
		if !fileutil.NonEmpty(path) {
			logger.Warn("final chunk missing, assuming end of sequence",
				logging.Int(logging.FieldChunk, i),
				logging.Int("total_chunks", total),
			)
			break
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			return fmt.Errorf("resolve chunk path: %w", err)
		}
		finals = append(finals, abs)
	}
	if len(finals) == 0 {
		return services.Wrap(services.ErrValidation, "pipeline", "reassemble",
			"no completed chunks to concatenate", nil)
	}
	logger.Info("concatenating chunks",
		logging.Int("chunks", len(finals)),
		logging.String("output", output),
	)

	// The list is rebuilt from scratch every run so stale entries from an
	// earlier, differently-sized split cannot leak in.
	if err := ffmpeg.WriteConcatList(layout.ConcatListPath(), finals); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	if err := p.ffmpeg.ConcatMux(ctx, layout.ConcatListPath(), layout.AudioPath(), output); err != nil {
		if diag := services.Diagnostic(err); diag != "" {
			logger.Error("concatenation failed", logging.String("diagnostic", diag))
		}
		return services.Wrap(services.ErrExternalTool, "pipeline", "reassemble",
			"concatenation failed; the final chunks are preserved", err)
	}
	return nil
}
