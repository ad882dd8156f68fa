package deps

import (
	"os"
	"path/filepath"
	"testing"

	"tapedeck/internal/config"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	script := []byte("#!/bin/sh\nexit 0\n")
	if err := os.WriteFile(present, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Unset", Command: "  "},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}

	if !results[0].Available {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}
	if results[0].Detail != "" {
		t.Fatalf("unexpected detail for available dependency: %s", results[0].Detail)
	}

	if results[1].Available {
		t.Fatalf("expected missing binary to be unavailable")
	}
	if results[1].Detail == "" {
		t.Fatalf("expected detail message for missing binary")
	}

	if results[2].Available || results[2].Detail != "command not configured" {
		t.Fatalf("unexpected result for unset command: %#v", results[2])
	}
}

func TestRequiredCoversAllTools(t *testing.T) {
	cfg := config.Default()
	reqs := Required(&cfg)
	commands := map[string]bool{}
	for _, req := range reqs {
		if req.Optional {
			t.Errorf("%s should not be optional", req.Name)
		}
		commands[req.Command] = true
	}
	for _, want := range []string{cfg.Tools.FFmpeg, cfg.Tools.FFprobe, cfg.Tools.RealESRGAN, cfg.Tools.RIFE} {
		if !commands[want] {
			t.Errorf("required binaries missing %q", want)
		}
	}
}

func TestMissingRequired(t *testing.T) {
	statuses := []Status{
		{Name: "A", Available: true},
		{Name: "B", Available: false},
		{Name: "C", Available: false, Optional: true},
	}
	missing := MissingRequired(statuses)
	if len(missing) != 1 || missing[0] != "B" {
		t.Fatalf("expected [B], got %v", missing)
	}
}

func TestCheckWorkspaceExisting(t *testing.T) {
	dir := t.TempDir()
	report := CheckWorkspace(dir)
	if !report.Exists {
		t.Fatal("expected directory to exist")
	}
	if !report.Writable {
		t.Fatalf("expected writable directory: %s", report.Detail)
	}
	if report.FreeBytes == 0 {
		t.Fatal("expected a non-zero free-space report")
	}
}

func TestCheckWorkspaceFallsBackToParent(t *testing.T) {
	dir := t.TempDir()
	candidate := filepath.Join(dir, "not", "yet", "created")
	report := CheckWorkspace(candidate)
	if report.Exists {
		t.Fatal("candidate should not exist")
	}
	if !report.Writable {
		t.Fatalf("parent should be writable: %s", report.Detail)
	}
}
