package pipeline

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tapedeck/internal/chunk"
	"tapedeck/internal/config"
	"tapedeck/internal/fileutil"
	"tapedeck/internal/ledger"
	"tapedeck/internal/logging"
	"tapedeck/internal/services"
	"tapedeck/internal/testsupport"
)

// probeJSON describes a 25 second 720x480 30fps source.
const probeJSON = `{
  "streams": [
    {"index": 0, "codec_type": "video", "width": 720, "height": 480,
     "r_frame_rate": "30/1", "avg_frame_rate": "30/1", "pix_fmt": "yuv420p"},
    {"index": 1, "codec_type": "audio", "r_frame_rate": "0/0", "avg_frame_rate": "0/0"}
  ],
  "format": {"duration": "25.000000", "bit_rate": "8000000"}
}`

// writeStubTools installs fake ffmpeg/ffprobe/realesrgan/rife scripts that
// produce plausible artifacts, steered by TD_* environment variables.
func writeStubTools(t *testing.T, cfg *config.Config) {
	t.Helper()
	binDir := filepath.Join(testsupport.BaseDir(cfg), "stub-bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		t.Fatal(err)
	}

	write := func(name, body string) string {
		path := filepath.Join(binDir, name)
		if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
			t.Fatal(err)
		}
		return path
	}

	probeFixture := filepath.Join(binDir, "probe.json")
	if err := os.WriteFile(probeFixture, []byte(probeJSON), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg.Tools.FFprobe = write("ffprobe", "cat "+probeFixture+"\n")

	cfg.Tools.FFmpeg = write("ffmpeg", `args="$*"
for last; do :; done
case "$args" in
*idet*)
  echo "[Parsed_idet_0 @ 0x0] Multi frame detection: TFF:     0 BFF:     0 Progressive:   500 Undetermined:   0"
  ;;
*"-f segment"*)
  i=0
  while [ "$i" -lt "${TD_SEGMENTS:-3}" ]; do
    printf 'x' > "$(printf "$last" "$i")"
    i=$((i+1))
  done
  ;;
*"frame_%08d.png"*)
  dir=$(dirname "$last")
  i=1
  while [ "$i" -le "${TD_FRAMES:-5}" ]; do
    printf 'x' > "$dir/$(printf 'frame_%08d.png' "$i")"
    i=$((i+1))
  done
  ;;
*-framerate*)
  pat=""
  prev=""
  for a; do
    if [ "$prev" = "-i" ]; then pat="$a"; fi
    prev="$a"
  done
  if [ ! -s "$(printf "$pat" 1)" ]; then
    echo "Could find no file with path '$pat' and index in the range 1-4" >&2
    exit 1
  fi
  printf 'x' > "$last"
  ;;
*)
  printf 'x' > "$last"
  ;;
esac
`)

	cfg.Tools.RealESRGAN = write("realesrgan", `out=""
while [ $# -gt 0 ]; do
  if [ "$1" = "-o" ]; then out="$2"; fi
  shift
done
printf 'x' > "$out/filtered_out.mp4"
`)

	// rife-ncnn-vulkan names its output frames bare %08d.png, without the
	// frame_ prefix the extraction step uses. The stub must match so the
	// encode step reads the same names the real interpolator writes.
	cfg.Tools.RIFE = write("rife", `in=""; out=""
while [ $# -gt 0 ]; do
  case "$1" in
  -i) in="$2";;
  -o) out="$2";;
  esac
  shift
done
n=$(ls "$in" | grep -c '\.png$')
count=$((2 * n))
if [ -n "$TD_RIFE_FRAMES" ]; then count="$TD_RIFE_FRAMES"; fi
i=1
while [ "$i" -le "$count" ]; do
  printf 'x' > "$out/$(printf '%08d.png' "$i")"
  i=$((i+1))
done
`)
}

func newTestPipeline(t *testing.T) (*Pipeline, *config.Config) {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithChunkBounds(10, 10), testsupport.WithToolTimeout(60))
	writeStubTools(t, cfg)
	p, err := New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return p, cfg
}

func writeSource(t *testing.T, cfg *config.Config) string {
	t.Helper()
	source := filepath.Join(testsupport.BaseDir(cfg), "tape.mkv")
	testsupport.WriteFile(t, source, 4096)
	return source
}

func TestRunEndToEnd(t *testing.T) {
	p, cfg := newTestPipeline(t)
	source := writeSource(t, cfg)

	result, err := p.Run(context.Background(), Options{Source: source, Scale: 2})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.TotalChunks != 3 {
		t.Fatalf("expected 3 chunks from a 25s source at 10s each, got %d", result.TotalChunks)
	}
	if result.Processed != 3 || result.Skipped != 0 {
		t.Fatalf("expected 3 processed chunks, got %+v", result)
	}
	if !fileutil.NonEmpty(result.OutputPath) {
		t.Fatalf("final output missing at %s", result.OutputPath)
	}
	if filepath.Base(result.OutputPath) != "tape_x2_rife_FINAL.mkv" {
		t.Fatalf("unexpected output name %s", result.OutputPath)
	}

	// Intermediates are scrubbed; final chunks survive for future resume.
	layout := chunk.NewLayout(cfg.Paths.WorkDir, source)
	for i := 0; i < 3; i++ {
		if fileutil.NonEmpty(layout.Segment(i)) {
			t.Errorf("input segment %d not cleaned up", i)
		}
		if fileutil.NonEmpty(layout.Enhanced(i)) {
			t.Errorf("enhanced video %d not cleaned up", i)
		}
		if !fileutil.NonEmpty(layout.Final(i)) {
			t.Errorf("final chunk %d missing", i)
		}
	}
}

func TestRunSecondRunSkipsCompletedChunks(t *testing.T) {
	p, cfg := newTestPipeline(t)
	source := writeSource(t, cfg)
	ctx := context.Background()

	if _, err := p.Run(ctx, Options{Source: source, Scale: 2}); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	result, err := p.Run(ctx, Options{Source: source, Scale: 2})
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if result.Processed != 0 || result.Skipped != 3 {
		t.Fatalf("second run should skip everything, got %+v", result)
	}
	if !fileutil.NonEmpty(result.OutputPath) {
		t.Fatal("second run should still produce the final output")
	}
}

func TestRunPartialThenComplete(t *testing.T) {
	p, cfg := newTestPipeline(t)
	source := writeSource(t, cfg)
	ctx := context.Background()

	partial, err := p.Run(ctx, Options{Source: source, Scale: 2, MaxChunks: 2})
	if err != nil {
		t.Fatalf("partial run failed: %v", err)
	}
	if !partial.Partial || partial.Processed != 2 {
		t.Fatalf("expected 2 processed chunks in partial mode, got %+v", partial)
	}
	if partial.OutputPath != "" {
		t.Fatal("partial run must not reassemble")
	}

	layout := chunk.NewLayout(cfg.Paths.WorkDir, source)
	if fileutil.NonEmpty(layout.Final(2)) {
		t.Fatal("chunk 2 should not be processed yet")
	}

	full, err := p.Run(ctx, Options{Source: source, Scale: 2})
	if err != nil {
		t.Fatalf("completing run failed: %v", err)
	}
	if full.Processed != 1 || full.Skipped != 2 {
		t.Fatalf("completing run should process only chunk 2, got %+v", full)
	}
	if !fileutil.NonEmpty(full.OutputPath) {
		t.Fatal("final output missing after completing run")
	}
}

func TestRunScaleChangeConflicts(t *testing.T) {
	p, cfg := newTestPipeline(t)
	source := writeSource(t, cfg)
	ctx := context.Background()

	if _, err := p.Run(ctx, Options{Source: source, Scale: 2, MaxChunks: 1}); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	if _, err := p.Run(ctx, Options{Source: source, Scale: 4}); !errors.Is(err, services.ErrConflict) {
		t.Fatalf("expected ErrConflict on scale change, got %v", err)
	}

	// Force discards the old state and starts over.
	result, err := p.Run(ctx, Options{Source: source, Scale: 4, Force: true})
	if err != nil {
		t.Fatalf("forced run failed: %v", err)
	}
	if result.Processed != 3 {
		t.Fatalf("forced run should reprocess everything, got %+v", result)
	}
}

func TestRunRejectsBadInputs(t *testing.T) {
	p, cfg := newTestPipeline(t)
	source := writeSource(t, cfg)
	ctx := context.Background()

	if _, err := p.Run(ctx, Options{Source: filepath.Join(testsupport.BaseDir(cfg), "absent.mkv"), Scale: 2}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation for missing source, got %v", err)
	}
	if _, err := p.Run(ctx, Options{Source: source, Scale: 3}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation for bad scale, got %v", err)
	}
}

func TestRunInterpolationShortfallFails(t *testing.T) {
	p, cfg := newTestPipeline(t)
	source := writeSource(t, cfg)
	t.Setenv("TD_FRAMES", "10")
	t.Setenv("TD_RIFE_FRAMES", "17") // below 2*10-2

	_, err := p.Run(context.Background(), Options{Source: source, Scale: 2})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation for dropped frames, got %v", err)
	}

	layout := chunk.NewLayout(cfg.Paths.WorkDir, source)
	store, openErr := ledger.Open(layout.LedgerPath())
	if openErr != nil {
		t.Fatalf("open ledger: %v", openErr)
	}
	defer store.Close()
	record, getErr := store.Get(context.Background(), 0)
	if getErr != nil {
		t.Fatalf("read chunk row: %v", getErr)
	}
	if record.Status != ledger.StatusFailed || record.ErrorMessage == "" {
		t.Fatalf("failure not recorded in ledger: %+v", record)
	}
}

func TestRunAcceptsExactDoubling(t *testing.T) {
	p, cfg := newTestPipeline(t)
	source := writeSource(t, cfg)
	t.Setenv("TD_FRAMES", "10")
	t.Setenv("TD_RIFE_FRAMES", "18") // exactly 2*10-2

	if _, err := p.Run(context.Background(), Options{Source: source, Scale: 2}); err != nil {
		t.Fatalf("2n-2 frames must pass verification: %v", err)
	}
}

func TestRunLostFinalChunkIsRebuilt(t *testing.T) {
	p, cfg := newTestPipeline(t)
	source := writeSource(t, cfg)
	ctx := context.Background()

	// Deleting a final chunk after completion demotes its row, which
	// invalidates the recorded split (the segment was cleaned up) and forces
	// a re-split before the chunk is rebuilt.
	first, err := p.Run(ctx, Options{Source: source, Scale: 2})
	if err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	layout := chunk.NewLayout(cfg.Paths.WorkDir, source)
	if err := os.Remove(layout.Final(1)); err != nil {
		t.Fatal(err)
	}

	second, err := p.Run(ctx, Options{Source: source, Scale: 2})
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if second.Processed != 1 {
		t.Fatalf("expected the lost chunk to be reprocessed, got %+v", second)
	}
	if first.TotalChunks != second.TotalChunks {
		t.Fatalf("chunk count changed across runs: %d vs %d", first.TotalChunks, second.TotalChunks)
	}
}

func TestStatusReportsProgress(t *testing.T) {
	p, cfg := newTestPipeline(t)
	source := writeSource(t, cfg)
	ctx := context.Background()

	if _, err := p.Run(ctx, Options{Source: source, Scale: 2, MaxChunks: 2}); err != nil {
		t.Fatalf("partial run failed: %v", err)
	}

	report, err := Status(ctx, cfg.Paths.WorkDir)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if !report.HasIdentity {
		t.Fatal("expected an identity record")
	}
	if report.Identity.ScaleFactor != 2 {
		t.Fatalf("unexpected identity: %+v", report.Identity)
	}
	if !report.SplitComplete || report.ExpectedChunks != 3 {
		t.Fatalf("unexpected split state: %+v", report)
	}
	if report.Done != 2 {
		t.Fatalf("expected 2 done chunks, got %d", report.Done)
	}
	if len(report.Chunks) != 3 {
		t.Fatalf("expected 3 chunk rows, got %d", len(report.Chunks))
	}
}

func TestStatusEmptyDirectory(t *testing.T) {
	report, err := Status(context.Background(), t.TempDir())
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if report.HasIdentity || report.SplitComplete || len(report.Chunks) != 0 {
		t.Fatalf("expected an empty report, got %+v", report)
	}
}

func TestOutputPathNaming(t *testing.T) {
	p, _ := newTestPipeline(t)
	got := p.OutputPath("/videos/family reunion.avi", 4)
	if filepath.Base(got) != "family reunion_x4_rife_FINAL.mkv" {
		t.Fatalf("unexpected output name %q", got)
	}
}

func TestReassembleStopsAtFirstGap(t *testing.T) {
	p, cfg := newTestPipeline(t)
	layout := chunk.Layout{WorkDir: filepath.Join(testsupport.BaseDir(cfg), "work"), SourceExt: ".mkv"}
	for _, dir := range layout.Directories() {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	for _, idx := range []int{0, 1, 3} {
		testsupport.WriteFile(t, layout.Final(idx), 64)
	}
	testsupport.WriteFile(t, layout.AudioPath(), 64)

	output := filepath.Join(cfg.Paths.OutputDir, "gap_x2_rife_FINAL.mkv")
	if err := p.reassemble(context.Background(), layout, 4, output); err != nil {
		t.Fatalf("reassemble failed: %v", err)
	}
	list, err := os.ReadFile(layout.ConcatListPath())
	if err != nil {
		t.Fatal(err)
	}
	if !fileutil.NonEmpty(output) {
		t.Fatal("expected the concatenated output to exist")
	}
	text := string(list)
	for _, want := range []string{"chunk_000_final.mp4", "chunk_001_final.mp4"} {
		if !strings.Contains(text, want) {
			t.Errorf("concat list missing %s:\n%s", want, text)
		}
	}
	if strings.Contains(text, "chunk_003_final.mp4") {
		t.Errorf("concat list crossed the gap at index 2:\n%s", text)
	}
}

func TestRunLogsCarryContextFields(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithChunkBounds(10, 10), testsupport.WithToolTimeout(60))
	writeStubTools(t, cfg)

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	p, err := New(cfg, logger)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	source := writeSource(t, cfg)

	if _, err := p.Run(context.Background(), Options{Source: source, Scale: 2}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		`"run_id":`,
		`"chunk":0`,
		`"stage":"enhance"`,
		`"stage":"interpolate"`,
		`"stage":"reassemble"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %s", want)
		}
	}
}

func TestRunAcceptsExactDoublingAtScale4(t *testing.T) {
	p, cfg := newTestPipeline(t)
	source := writeSource(t, cfg)

	result, err := p.Run(context.Background(), Options{Source: source, Scale: 4})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if filepath.Base(result.OutputPath) != "tape_x4_rife_FINAL.mkv" {
		t.Fatalf("unexpected output name %s", result.OutputPath)
	}
}
