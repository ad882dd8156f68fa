package chapters

import (
	"strings"
	"testing"
)

func TestParseStandardLines(t *testing.T) {
	input := "Introduction 0:00\nThe Big Reveal 12:45\n"
	entries := Parse(input)
	if len(entries) != 2 {
		t.Fatalf("expected 2 chapters, got %d", len(entries))
	}
	if entries[0].Title != "Introduction" || entries[0].Timestamp != "00:00:00.000" {
		t.Fatalf("unexpected first chapter: %+v", entries[0])
	}
	if entries[1].Title != "The Big Reveal" || entries[1].Timestamp != "00:12:45.000" {
		t.Fatalf("unexpected second chapter: %+v", entries[1])
	}
}

func TestParseBuffersSplitLines(t *testing.T) {
	input := "Coca Rola\n3:17\nNext Song 4:02\n"
	entries := Parse(input)
	if len(entries) != 2 {
		t.Fatalf("expected 2 chapters, got %d", len(entries))
	}
	if entries[0].Title != "Coca Rola" || entries[0].Timestamp != "00:03:17.000" {
		t.Fatalf("split line not buffered: %+v", entries[0])
	}
}

func TestParseSkipsBlankLines(t *testing.T) {
	input := "\n\nOpening 0:30\n\n   \nClosing 58:10\n"
	entries := Parse(input)
	if len(entries) != 2 {
		t.Fatalf("expected 2 chapters, got %d", len(entries))
	}
}

func TestRenderOGM(t *testing.T) {
	entries := []Chapter{
		{Title: "Opening", Timestamp: "00:00:00.000"},
		{Title: "Closing", Timestamp: "00:58:10.000"},
	}
	got := Render(entries, Options{})
	want := strings.Join([]string{
		"CHAPTER01=00:00:00.000",
		"CHAPTER01NAME=Opening",
		"CHAPTER02=00:58:10.000",
		"CHAPTER02NAME=Closing",
	}, "\n")
	if got != want {
		t.Fatalf("unexpected output:\n%s\nwant:\n%s", got, want)
	}
}

func TestRenderTitleCase(t *testing.T) {
	entries := []Chapter{{Title: "the big reveal", Timestamp: "00:12:45.000"}}
	got := Render(entries, Options{TitleCase: true})
	if !strings.Contains(got, "CHAPTER01NAME=The Big Reveal") {
		t.Fatalf("title casing not applied:\n%s", got)
	}
}

func TestConvertEmptyInputFails(t *testing.T) {
	if _, err := Convert("no timestamps here\n", Options{}); err == nil {
		t.Fatal("expected error for input without chapters")
	}
}
