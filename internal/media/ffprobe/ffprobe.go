package ffprobe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"tapedeck/internal/services"
)

// Result represents the parsed output from an ffprobe inspection.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Stream describes a single stream in the media container.
type Stream struct {
	Index        int    `json:"index"`
	CodecName    string `json:"codec_name"`
	CodecType    string `json:"codec_type"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	PixFmt       string `json:"pix_fmt"`
	RFrameRate   string `json:"r_frame_rate"`
	AvgFrameRate string `json:"avg_frame_rate"`
	Duration     string `json:"duration"`
	BitRate      string `json:"bit_rate"`
	Channels     int    `json:"channels"`
}

// Format captures container-level metadata extracted by ffprobe.
type Format struct {
	Filename   string `json:"filename"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
	FormatName string `json:"format_name"`
}

// Inspect executes ffprobe against the provided path and decodes the JSON response.
func Inspect(ctx context.Context, runner *services.Runner, binary, path string) (Result, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return Result{}, errors.New("ffprobe inspect: empty path")
	}
	if runner == nil {
		runner = services.NewRunner(0)
	}

	output, err := runner.RunCapture(ctx, binary,
		"-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", path)
	if err != nil {
		return Result{}, fmt.Errorf("ffprobe inspect: %w", err)
	}

	var result Result
	if err := json.Unmarshal([]byte(output), &result); err != nil {
		return Result{}, fmt.Errorf("ffprobe parse: %w", err)
	}
	return result, nil
}

// DurationSeconds returns the container duration in seconds, or 0 when unavailable.
func (r Result) DurationSeconds() float64 {
	if parsed, err := strconv.ParseFloat(strings.TrimSpace(r.Format.Duration), 64); err == nil && parsed > 0 {
		return parsed
	}
	return 0
}

// BitRate returns the container bitrate in bits per second, or 0 when unavailable.
func (r Result) BitRate() int64 {
	if parsed, err := strconv.ParseInt(strings.TrimSpace(r.Format.BitRate), 10, 64); err == nil && parsed > 0 {
		return parsed
	}
	return 0
}

func (r Result) videoStream() (Stream, bool) {
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, "video") {
			return stream, true
		}
	}
	return Stream{}, false
}

// Dimensions returns the pixel width and height of the first video stream.
func (r Result) Dimensions() (int, int, error) {
	stream, ok := r.videoStream()
	if !ok {
		return 0, 0, errors.New("no video stream present")
	}
	if stream.Width <= 0 || stream.Height <= 0 {
		return 0, 0, fmt.Errorf("invalid dimensions %dx%d", stream.Width, stream.Height)
	}
	return stream.Width, stream.Height, nil
}

// PixelFormat returns the pixel format of the first video stream.
func (r Result) PixelFormat() string {
	stream, _ := r.videoStream()
	return stream.PixFmt
}

// FrameRate returns the video frame rate in frames per second. It prefers
// r_frame_rate and falls back to avg_frame_rate when the primary field is
// missing or reads 0/0, matching ffprobe behavior on damaged VHS captures.
// The bool reports whether the fallback field was used.
func (r Result) FrameRate() (float64, bool, error) {
	stream, ok := r.videoStream()
	if !ok {
		return 0, false, errors.New("no video stream present")
	}

	if fps, err := parseRate(stream.RFrameRate); err == nil {
		return fps, false, nil
	}
	if fps, err := parseRate(stream.AvgFrameRate); err == nil {
		return fps, true, nil
	}
	return 0, false, fmt.Errorf("no usable frame rate (r=%q avg=%q)", stream.RFrameRate, stream.AvgFrameRate)
}

// parseRate parses an ffprobe rate field, either a decimal ("29.97") or a
// rational ("30000/1001").
func parseRate(value string) (float64, error) {
	value = strings.TrimSpace(value)
	if value == "" || value == "0/0" {
		return 0, errors.New("empty rate")
	}
	if num, den, ok := strings.Cut(value, "/"); ok {
		n, err := strconv.ParseFloat(num, 64)
		if err != nil {
			return 0, fmt.Errorf("parse rate %q: %w", value, err)
		}
		d, err := strconv.ParseFloat(den, 64)
		if err != nil {
			return 0, fmt.Errorf("parse rate %q: %w", value, err)
		}
		if d == 0 {
			return 0, fmt.Errorf("parse rate %q: zero denominator", value)
		}
		if n/d <= 0 {
			return 0, fmt.Errorf("parse rate %q: non-positive", value)
		}
		return n / d, nil
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("parse rate %q: %w", value, err)
	}
	if parsed <= 0 {
		return 0, fmt.Errorf("parse rate %q: non-positive", value)
	}
	return parsed, nil
}

// FormatRate renders a frame rate the way the tool invocations expect it,
// with millihertz precision.
func FormatRate(fps float64) string {
	return strconv.FormatFloat(fps, 'f', 3, 64)
}
