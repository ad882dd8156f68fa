// Package ffmpeg mediates access to the ffmpeg CLI for the pipeline's
// splitting, filtering, frame extraction, encoding, and muxing steps.
//
// Prefer this package over ad-hoc exec.Command usage so argument order,
// partial-output handling, and diagnostics stay consistent across stages.
package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"tapedeck/internal/media/ffprobe"
	"tapedeck/internal/services"
)

// partialInfix marks an output still being written. Downstream stages judge
// completion by file existence, so finished outputs must appear atomically.
// It sits before the container extension because ffmpeg guesses the output
// muxer from the final extension.
const partialInfix = ".partial"

// partialPath derives the in-progress name for an output, keeping the
// container extension last: "chunk_000_final.mp4" -> "chunk_000_final.partial.mp4".
func partialPath(output string) string {
	ext := filepath.Ext(output)
	return strings.TrimSuffix(output, ext) + partialInfix + ext
}

// Client wraps ffmpeg CLI interactions.
type Client struct {
	binary string
	runner *services.Runner
}

// New constructs an ffmpeg client.
func New(binary string, runner *services.Runner) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("ffmpeg binary required")
	}
	if runner == nil {
		return nil, errors.New("command runner required")
	}
	return &Client{binary: binary, runner: runner}, nil
}

// run executes ffmpeg with the always-on flags prepended.
func (c *Client) run(ctx context.Context, args ...string) error {
	full := append([]string{"-hide_banner", "-loglevel", "error", "-y"}, args...)
	return c.runner.Run(ctx, c.binary, full...)
}

// runToPartial executes an ffmpeg invocation whose final argument is the
// output path, writing to a partial name and renaming on success. The partial
// file is removed on failure.
func (c *Client) runToPartial(ctx context.Context, output string, args ...string) error {
	partial := partialPath(output)
	if err := c.run(ctx, append(args, partial)...); err != nil {
		_ = os.Remove(partial)
		return err
	}
	if err := os.Rename(partial, output); err != nil {
		return fmt.Errorf("finalize %s: %w", filepath.Base(output), err)
	}
	return nil
}

// Split divides the video stream of input into segments of roughly
// segmentSeconds each, written to the segment-muxer pattern. Audio is dropped;
// the video stream is copied, so actual boundaries land on keyframes.
func (c *Client) Split(ctx context.Context, input string, segmentSeconds float64, pattern string) error {
	return c.run(ctx,
		"-i", input,
		"-an",
		"-c:v", "copy",
		"-map", "0:v",
		"-segment_time", fmt.Sprintf("%.3f", segmentSeconds),
		"-f", "segment",
		"-reset_timestamps", "1",
		pattern,
	)
}

// ExtractAudio stream-copies the audio track of input to output.
func (c *Client) ExtractAudio(ctx context.Context, input, output string) error {
	return c.runToPartial(ctx, output,
		"-i", input,
		"-vn",
		"-acodec", "copy",
	)
}

// Prefilter applies the denoise/sharpen filter chain to input ahead of
// super-resolution and encodes the result with libx264.
func (c *Client) Prefilter(ctx context.Context, input, output, filterChain string, crf int, preset string) error {
	return c.runToPartial(ctx, output,
		"-i", input,
		"-vf", filterChain,
		"-c:v", "libx264",
		"-crf", fmt.Sprintf("%d", crf),
		"-preset", preset,
		"-pix_fmt", "yuv420p",
	)
}

// ExtractFrames decodes input into numbered PNG frames under dir.
func (c *Client) ExtractFrames(ctx context.Context, input, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create frame directory: %w", err)
	}
	return c.run(ctx,
		"-i", input,
		filepath.Join(dir, "frame_%08d.png"),
	)
}

// EncodeFrames assembles the PNG sequence under dir into a video at the given
// frame rate. The interpolator names its output frames bare "%08d.png", with
// no prefix, unlike the extraction pattern.
func (c *Client) EncodeFrames(ctx context.Context, dir, output string, fps float64, crf int, preset string) error {
	return c.runToPartial(ctx, output,
		"-framerate", ffprobe.FormatRate(fps),
		"-i", filepath.Join(dir, "%08d.png"),
		"-c:v", "libx264",
		"-crf", fmt.Sprintf("%d", crf),
		"-preset", preset,
		"-pix_fmt", "yuv420p",
	)
}

// ConcatMux joins the videos listed in listPath (concat demuxer format) and
// muxes them with audioPath into output, stream-copying both.
func (c *Client) ConcatMux(ctx context.Context, listPath, audioPath, output string) error {
	return c.runToPartial(ctx, output,
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-i", audioPath,
		"-map", "0:v",
		"-map", "1:a",
		"-c", "copy",
		"-shortest",
	)
}

// ExtractClip copies a time window of input into a small test clip encoded
// with libx264 and mp3 audio.
func (c *Client) ExtractClip(ctx context.Context, input, output, start string, seconds float64) error {
	return c.runToPartial(ctx, output,
		"-ss", start,
		"-i", input,
		"-t", fmt.Sprintf("%.3f", seconds),
		"-c:v", "libx264",
		"-crf", "18",
		"-preset", "fast",
		"-c:a", "libmp3lame",
	)
}

// WriteConcatList writes a concat demuxer list for the given absolute paths.
// Single quotes inside paths are escaped per the demuxer's quoting rules.
func WriteConcatList(listPath string, files []string) error {
	var b strings.Builder
	for _, f := range files {
		escaped := strings.ReplaceAll(f, "'", `'\''`)
		fmt.Fprintf(&b, "file '%s'\n", escaped)
	}
	if err := os.WriteFile(listPath, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write concat list: %w", err)
	}
	return nil
}
