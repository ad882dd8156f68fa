package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tapedeck/internal/identity"
	"tapedeck/internal/ledger"
	"tapedeck/internal/pipeline"
)

func TestRootCommandListsSubcommands(t *testing.T) {
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"--help"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("help failed: %v", err)
	}
	help := out.String()
	for _, name := range []string{"run", "status", "probe", "clip", "chapters", "deps", "config"} {
		if !strings.Contains(help, name) {
			t.Errorf("help output missing %q", name)
		}
	}
}

func TestConfigInitWritesSample(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"config", "init", "--path", target})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("config init failed: %v", err)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("sample not written: %v", err)
	}
	if !strings.Contains(string(data), "[paths]") {
		t.Fatalf("sample content unexpected:\n%s", data)
	}

	// A second init without --overwrite must refuse.
	again := newRootCommand()
	again.SetOut(&out)
	again.SetErr(&out)
	again.SetArgs([]string{"config", "init", "--path", target})
	if err := again.Execute(); err == nil {
		t.Fatal("expected error for existing config file")
	}
}

func TestChaptersCommand(t *testing.T) {
	input := filepath.Join(t.TempDir(), "chapters.txt")
	if err := os.WriteFile(input, []byte("Intro 0:00\nOutro 42:17\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"chapters", input})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("chapters failed: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "CHAPTER01=00:00:00.000") || !strings.Contains(got, "CHAPTER02NAME=Outro") {
		t.Fatalf("unexpected OGM output:\n%s", got)
	}
}

func TestWriteStatusReport(t *testing.T) {
	report := &pipeline.StatusReport{
		WorkDir:        "/work",
		HasIdentity:    true,
		Identity:       identity.Fingerprint{SourcePath: "/videos/tape.mkv", ScaleFactor: 2, RunID: "run-1"},
		SplitComplete:  true,
		ExpectedChunks: 3,
		Chunks: []pipeline.ChunkStatus{
			{Index: 0, Status: ledger.StatusDone, FinalOnDisk: true},
			{Index: 1, Status: ledger.StatusFailed, ErrorMessage: "rife exited 1"},
			{Index: 2, Status: ledger.StatusPending},
		},
		Done:   1,
		Failed: 1,
	}

	var out bytes.Buffer
	writeStatusReport(&out, report)
	text := out.String()
	for _, want := range []string{
		"/videos/tape.mkv (x2)",
		"Split complete: yes (3 chunks)",
		"rife exited 1",
		"1 done, 1 failed, 3 total",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("status output missing %q:\n%s", want, text)
		}
	}
	if strings.Contains(text, ansiGreen) {
		t.Error("buffer output must not be colorized")
	}
}

func TestWriteStatusReportEmpty(t *testing.T) {
	var out bytes.Buffer
	writeStatusReport(&out, &pipeline.StatusReport{WorkDir: "/work"})
	if !strings.Contains(out.String(), "No job state found.") {
		t.Fatalf("unexpected output: %s", out.String())
	}
}
