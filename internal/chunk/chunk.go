// Package chunk defines the on-disk layout of a working directory and the
// arithmetic that divides a source recording into fixed-length segments.
// Every stage of the pipeline locates its inputs and outputs exclusively
// through this package, so resume logic and cleanup agree on paths.
package chunk

import (
	"fmt"
	"math"
	"path/filepath"
)

// Subdirectory names under the working directory.
const (
	InputDirName   = "input"
	EnhanceDirName = "enhance"
	InterpDirName  = "interp"
)

// Layout resolves artifact paths for one job's working directory. The
// extension of the source recording is preserved for split segments and the
// extracted audio so stream copies stay container-compatible.
type Layout struct {
	WorkDir   string
	SourceExt string
}

// NewLayout builds a layout rooted at workDir for a source file. sourcePath
// only contributes its extension.
func NewLayout(workDir, sourcePath string) Layout {
	ext := filepath.Ext(sourcePath)
	if ext == "" {
		ext = ".mkv"
	}
	return Layout{WorkDir: workDir, SourceExt: ext}
}

// Directories returns every directory the layout requires, in creation order.
func (l Layout) Directories() []string {
	return []string{
		l.WorkDir,
		l.InputDir(),
		l.EnhanceDir(),
		l.InterpDir(),
	}
}

func (l Layout) InputDir() string   { return filepath.Join(l.WorkDir, InputDirName) }
func (l Layout) EnhanceDir() string { return filepath.Join(l.WorkDir, EnhanceDirName) }
func (l Layout) InterpDir() string  { return filepath.Join(l.WorkDir, InterpDirName) }

// SegmentPattern is the ffmpeg segment-muxer output pattern for the split
// stage. Indices are zero-padded to three digits so lexical order matches
// numeric order.
func (l Layout) SegmentPattern() string {
	return filepath.Join(l.InputDir(), "chunk_%03d"+l.SourceExt)
}

// Segment is the split input segment for one chunk index.
func (l Layout) Segment(index int) string {
	return filepath.Join(l.InputDir(), fmt.Sprintf("chunk_%03d%s", index, l.SourceExt))
}

// Enhanced is the canonical upscaled video for one chunk index.
func (l Layout) Enhanced(index int) string {
	return filepath.Join(l.EnhanceDir(), fmt.Sprintf("chunk_%03d_esrgan.mp4", index))
}

// ScratchDir is the per-chunk upscaler output directory. Its single product
// is renamed to Enhanced and the directory removed.
func (l Layout) ScratchDir(index int) string {
	return filepath.Join(l.EnhanceDir(), fmt.Sprintf("chunk_%03d_work", index))
}

// FramesInDir holds the PNG frames extracted from the enhanced video.
func (l Layout) FramesInDir(index int) string {
	return filepath.Join(l.EnhanceDir(), fmt.Sprintf("chunk_%03d_frames_in", index))
}

// FramesOutDir holds the interpolated PNG frames.
func (l Layout) FramesOutDir(index int) string {
	return filepath.Join(l.InterpDir(), fmt.Sprintf("chunk_%03d_frames_out", index))
}

// Final is the finished per-chunk video, the unit of reassembly.
func (l Layout) Final(index int) string {
	return filepath.Join(l.InterpDir(), fmt.Sprintf("chunk_%03d_final.mp4", index))
}

// AudioPath is the stream-copied original audio track.
func (l Layout) AudioPath() string {
	return filepath.Join(l.WorkDir, "audio"+l.SourceExt)
}

// ConcatListPath is the ffmpeg concat demuxer list, rebuilt every run.
func (l Layout) ConcatListPath() string {
	return filepath.Join(l.WorkDir, "concat.txt")
}

// LockFileName is the advisory process lock at the working-directory root.
// It must survive a state discard: the running process still holds it.
const LockFileName = "tapedeck.lock"

// LockPath is the advisory process lock file.
func (l Layout) LockPath() string {
	return filepath.Join(l.WorkDir, LockFileName)
}

// LedgerPath is the chunk state database.
func (l Layout) LedgerPath() string {
	return filepath.Join(l.WorkDir, "ledger.db")
}

// Span is one planned chunk: a nominal time window within the source. The
// split tool decides actual boundaries at keyframes, so spans are advisory;
// only Count and the index sequence are load-bearing.
type Span struct {
	Index   int
	Start   float64
	Seconds float64
}

// Plan divides durationSeconds into chunks of chunkSeconds each, the last
// chunk absorbing the remainder. Returns an error rather than an empty plan
// for non-positive inputs.
func Plan(durationSeconds, chunkSeconds float64) ([]Span, error) {
	if durationSeconds <= 0 {
		return nil, fmt.Errorf("source duration %.3fs is not positive", durationSeconds)
	}
	if chunkSeconds <= 0 {
		return nil, fmt.Errorf("chunk duration %.3fs is not positive", chunkSeconds)
	}
	count := int(math.Ceil(durationSeconds / chunkSeconds))
	spans := make([]Span, 0, count)
	for i := 0; i < count; i++ {
		start := float64(i) * chunkSeconds
		length := chunkSeconds
		if remaining := durationSeconds - start; remaining < length {
			length = remaining
		}
		spans = append(spans, Span{Index: i, Start: start, Seconds: length})
	}
	return spans, nil
}
