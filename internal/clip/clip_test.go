package clip

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tapedeck/internal/services"
	"tapedeck/internal/services/ffmpeg"
)

func TestOutputName(t *testing.T) {
	req := Request{Input: "/videos/tape.mkv", Start: "00:05:00", Seconds: 10}
	now := time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)
	got := OutputName(req, now)
	want := "tape_start00-05-00_dur10s_20260314_150926.mp4"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestExtractValidation(t *testing.T) {
	client, err := ffmpeg.New("ffmpeg", services.NewRunner(0))
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if _, err := Extract(ctx, client, Request{Start: "0", Seconds: 10, OutDir: t.TempDir()}); err == nil {
		t.Fatal("expected error for missing input")
	}
	if _, err := Extract(ctx, client, Request{Input: "x.mkv", Seconds: 10, OutDir: t.TempDir()}); err == nil {
		t.Fatal("expected error for missing start")
	}
	if _, err := Extract(ctx, client, Request{Input: "x.mkv", Start: "0", OutDir: t.TempDir()}); err == nil {
		t.Fatal("expected error for non-positive duration")
	}
}

func TestExtractRunsTool(t *testing.T) {
	dir := t.TempDir()
	argsLog := filepath.Join(dir, "args.log")
	binary := filepath.Join(dir, "ffmpeg")
	script := "#!/bin/sh\n" +
		"printf '%s\\n' \"$@\" > " + argsLog + "\n" +
		"for last; do :; done\n" +
		"printf 'x' > \"$last\"\n"
	if err := os.WriteFile(binary, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	client, err := ffmpeg.New(binary, services.NewRunner(30*time.Second))
	if err != nil {
		t.Fatal(err)
	}

	outDir := filepath.Join(dir, "clips")
	path, err := Extract(context.Background(), client, Request{
		Input: "/videos/tape.mkv", Start: "00:05:00", Seconds: 10, OutDir: outDir,
	})
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if _, statErr := os.Stat(path); statErr != nil {
		t.Fatalf("clip not written: %v", statErr)
	}

	data, err := os.ReadFile(argsLog)
	if err != nil {
		t.Fatal(err)
	}
	joined := strings.Join(strings.Split(strings.TrimSpace(string(data)), "\n"), " ")
	for _, want := range []string{"-ss 00:05:00", "-t 10.000", "-c:v libx264", "-c:a libmp3lame"} {
		if !strings.Contains(joined, want) {
			t.Errorf("args missing %q: %s", want, joined)
		}
	}
}
