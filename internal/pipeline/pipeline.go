// Package pipeline orchestrates the full upscale/interpolate run: probing,
// disk budgeting, splitting, per-chunk enhancement, and reassembly. Every
// stage is resumable; an interrupted run picks up from the artifacts and
// ledger rows the previous run left behind.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"tapedeck/internal/budget"
	"tapedeck/internal/chunk"
	"tapedeck/internal/config"
	"tapedeck/internal/fileutil"
	"tapedeck/internal/identity"
	"tapedeck/internal/ledger"
	"tapedeck/internal/logging"
	"tapedeck/internal/services"
	"tapedeck/internal/services/ffmpeg"
	"tapedeck/internal/services/realesrgan"
	"tapedeck/internal/services/rife"
)

// interlaceSampleFrames bounds the idet scan on large sources.
const interlaceSampleFrames = 500

// Options selects the source and behavior of one run.
type Options struct {
	Source string
	Scale  int
	// Force discards mismatched prior state instead of aborting.
	Force bool
	// WorkDir overrides the configured working directory.
	WorkDir string
	// MaxChunks limits the run to the first N chunk indices and skips
	// reassembly, for testing settings on a slice of the tape. Zero
	// processes everything.
	MaxChunks int
	// Prompt resolves identity conflicts interactively. Ignored when Force
	// is set; nil means conflicts abort.
	Prompt identity.PromptFunc
}

// Result summarizes a completed run.
type Result struct {
	RunID       string
	TotalChunks int
	Processed   int
	Skipped     int
	OutputPath  string
	Partial     bool
}

// Pipeline wires the external tool clients and configuration for runs.
type Pipeline struct {
	cfg    *config.Config
	logger *slog.Logger
	runner *services.Runner
	ffmpeg *ffmpeg.Client
	esrgan *realesrgan.Client
	rife   *rife.Client
}

// New constructs a pipeline from configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Pipeline, error) {
	if cfg == nil {
		return nil, errors.New("config required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	runner := services.NewRunner(time.Duration(cfg.Tools.ToolTimeout) * time.Second)

	ffmpegClient, err := ffmpeg.New(cfg.Tools.FFmpeg, runner)
	if err != nil {
		return nil, err
	}
	esrganClient, err := realesrgan.New(cfg.Tools.RealESRGAN, runner)
	if err != nil {
		return nil, err
	}
	rifeClient, err := rife.New(cfg.Tools.RIFE, runner)
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "pipeline"),
		runner: runner,
		ffmpeg: ffmpegClient,
		esrgan: esrganClient,
		rife:   rifeClient,
	}, nil
}

// OutputPath returns the final video path for a source and scale factor.
func (p *Pipeline) OutputPath(source string, scale int) string {
	stem := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	return filepath.Join(p.cfg.Paths.OutputDir,
		fmt.Sprintf("%s_x%d_rife_FINAL.mkv", stem, scale))
}

// Run executes the pipeline end to end.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Result, error) {
	if !fileutil.NonEmpty(opts.Source) {
		return nil, services.Wrap(services.ErrValidation, "pipeline", "validate input",
			fmt.Sprintf("source file %s does not exist or is empty", opts.Source), nil)
	}
	if _, err := realesrgan.ModelForScale(opts.Scale); err != nil {
		return nil, services.Wrap(services.ErrValidation, "pipeline", "validate input", err.Error(), nil)
	}

	workDir := opts.WorkDir
	if workDir == "" {
		workDir = p.cfg.Paths.WorkDir
	}
	layout := chunk.NewLayout(workDir, opts.Source)
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, fmt.Errorf("create working directory: %w", err)
	}

	lock := flock.New(layout.LockPath())
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire process lock: %w", err)
	}
	if !locked {
		return nil, services.Wrap(services.ErrConflict, "pipeline", "acquire lock",
			fmt.Sprintf("another run holds %s", layout.LockPath()), nil)
	}
	defer func() { _ = lock.Unlock() }()

	policy := identity.PolicyAbort
	switch {
	case opts.Force:
		policy = identity.PolicyDiscard
	case opts.Prompt != nil:
		policy = identity.PolicyAsk
	}
	guard := identity.NewGuard(workDir, policy, opts.Prompt, p.logger, chunk.LockFileName)
	record, err := guard.Ensure(opts.Source, opts.Scale)
	if err != nil {
		return nil, err
	}
	ctx = services.WithRunID(ctx, record.RunID)
	logger := logging.WithContext(ctx, p.logger)

	for _, dir := range layout.Directories() {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}

	probe, err := p.inspectSource(ctx, logger, opts.Source)
	if err != nil {
		return nil, err
	}

	free, err := budget.FreeBytes(workDir)
	if err != nil {
		logger.Warn("free space unavailable, using minimum chunk length", logging.Error(err))
	}
	estimate := budget.ChunkSeconds(logger, p.cfg.Chunking, budget.Inputs{
		Width:     probe.Width,
		Height:    probe.Height,
		Scale:     opts.Scale,
		FPS:       probe.FPS,
		FreeBytes: free,
	})

	store, err := ledger.Open(layout.LedgerPath())
	if err != nil {
		return nil, err
	}
	defer store.Close()

	demoted, err := store.Reconcile(ctx, func(index int) bool {
		return fileutil.NonEmpty(layout.Final(index))
	})
	if err != nil {
		return nil, err
	}
	for _, index := range demoted {
		logger.Warn("completed chunk lost its artifact, reprocessing", logging.Int(logging.FieldChunk, index))
	}

	total, err := p.ensureSegments(ctx, logger, store, layout, opts.Source, probe.Duration, float64(estimate.Seconds))
	if err != nil {
		return nil, err
	}

	if !fileutil.NonEmpty(layout.AudioPath()) {
		logger.Info("extracting original audio track")
		if err := p.ffmpeg.ExtractAudio(ctx, opts.Source, layout.AudioPath()); err != nil {
			return nil, p.toolFailure(err, "extract audio")
		}
	}

	limit := total
	partial := false
	if opts.MaxChunks > 0 && opts.MaxChunks < total {
		limit = opts.MaxChunks
		partial = true
		logger.Info("partial run", logging.Int("chunk_limit", limit), logging.Int("total_chunks", total))
	}

	bar := progressbar.NewOptions(limit,
		progressbar.OptionSetDescription("chunks"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetVisibility(isatty.IsTerminal(os.Stderr.Fd())),
		progressbar.OptionShowCount(),
	)

	result := &Result{RunID: record.RunID, TotalChunks: total, Partial: partial}
	for i := 0; i < limit; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		processed, err := p.processChunk(ctx, store, layout, probe, opts.Scale, i)
		if err != nil {
			return nil, err
		}
		if processed {
			result.Processed++
		} else {
			result.Skipped++
		}
		_ = bar.Add(1)
	}
	_ = bar.Finish()

	if partial {
		logger.Info("partial run complete, skipping reassembly",
			logging.Int("processed", result.Processed),
			logging.Int("skipped", result.Skipped),
		)
		return result, nil
	}

	output := p.OutputPath(opts.Source, opts.Scale)
	if err := p.reassemble(ctx, layout, total, output); err != nil {
		return nil, err
	}
	result.OutputPath = output

	logger.Info("pipeline complete",
		logging.Int("processed", result.Processed),
		logging.Int("skipped", result.Skipped),
		logging.String("output", output),
	)
	return result, nil
}

// toolFailure attaches captured tool output to an error heading upward.
func (p *Pipeline) toolFailure(err error, operation string) error {
	if diag := services.Diagnostic(err); diag != "" {
		p.logger.Error("external tool failed",
			logging.String("operation", operation),
			logging.String("diagnostic", diag),
		)
	}
	return services.Wrap(services.ErrExternalTool, "pipeline", operation, "external tool failed", err)
}
