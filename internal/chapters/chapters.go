// Package chapters converts raw "Title MM:SS" chapter listings into the OGM
// format mkvmerge accepts. Input is tolerant of scanning irregularities: a
// title on one line with its timestamp on the next is buffered together.
package chapters

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Chapter is one parsed entry: a display title and an OGM timestamp.
type Chapter struct {
	Title     string
	Timestamp string
}

// Options adjusts conversion behavior.
type Options struct {
	// TitleCase rewrites titles in English title case.
	TitleCase bool
}

// timePattern matches an M:SS or MM:SS timestamp at line end.
var timePattern = regexp.MustCompile(`(\d{1,2}):(\d{2})$`)

// Parse extracts chapters from raw text. Lines without a trailing timestamp
// are held as the title for the following timestamp-only line.
func Parse(content string) []Chapter {
	var (
		entries     []Chapter
		titleBuffer string
	)
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		match := timePattern.FindStringSubmatchIndex(line)
		if match == nil {
			titleBuffer = line
			continue
		}

		minutes, _ := strconv.Atoi(line[match[2]:match[3]])
		seconds, _ := strconv.Atoi(line[match[4]:match[5]])
		timestamp := fmt.Sprintf("00:%02d:%02d.000", minutes, seconds)

		title := strings.TrimSpace(line[:match[0]])
		if title == "" && titleBuffer != "" {
			title = titleBuffer
		}
		titleBuffer = ""
		entries = append(entries, Chapter{Title: title, Timestamp: timestamp})
	}
	return entries
}

// Render formats chapters as OGM lines (CHAPTERnn= / CHAPTERnnNAME=).
func Render(entries []Chapter, opts Options) string {
	titler := cases.Title(language.English)
	var b strings.Builder
	for i, entry := range entries {
		title := entry.Title
		if opts.TitleCase {
			title = titler.String(title)
		}
		fmt.Fprintf(&b, "CHAPTER%02d=%s\n", i+1, entry.Timestamp)
		fmt.Fprintf(&b, "CHAPTER%02dNAME=%s\n", i+1, title)
	}
	return strings.TrimRight(b.String(), "\n")
}

// Convert parses raw chapter text and renders it as OGM. An input with no
// recognizable chapters is an error rather than an empty file.
func Convert(content string, opts Options) (string, error) {
	entries := Parse(content)
	if len(entries) == 0 {
		return "", fmt.Errorf("no chapters found in input")
	}
	return Render(entries, opts), nil
}
