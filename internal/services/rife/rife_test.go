package rife

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tapedeck/internal/services"
)

func TestInterpolateArguments(t *testing.T) {
	dir := t.TempDir()
	argsLog := filepath.Join(dir, "args.log")
	binary := filepath.Join(dir, "rife")
	script := "#!/bin/sh\nprintf '%s\\n' \"$@\" > " + argsLog + "\n"
	if err := os.WriteFile(binary, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}

	client, err := New(binary, services.NewRunner(30*time.Second))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	outDir := filepath.Join(dir, "out")
	if err := client.Interpolate(context.Background(), "/frames_in", outDir); err != nil {
		t.Fatalf("Interpolate failed: %v", err)
	}
	if _, statErr := os.Stat(outDir); statErr != nil {
		t.Fatalf("output directory not created: %v", statErr)
	}

	data, err := os.ReadFile(argsLog)
	if err != nil {
		t.Fatal(err)
	}
	joined := strings.Join(strings.Split(strings.TrimSpace(string(data)), "\n"), " ")
	for _, want := range []string{"-i /frames_in", "-o " + outDir, "-s 0.5"} {
		if !strings.Contains(joined, want) {
			t.Errorf("args missing %q: %s", want, joined)
		}
	}
}

func TestCountFrames(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"frame_00000001.png", "frame_00000002.png", "frame_00000003.PNG"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	// Non-frame entries are ignored.
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.png"), 0o755); err != nil {
		t.Fatal(err)
	}

	count, err := CountFrames(dir)
	if err != nil {
		t.Fatalf("CountFrames failed: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 frames, got %d", count)
	}
}

func TestCountFramesMissingDirectory(t *testing.T) {
	count, err := CountFrames(filepath.Join(t.TempDir(), "absent"))
	if err != nil {
		t.Fatalf("CountFrames failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 frames for missing dir, got %d", count)
	}
}
