// Package ffprobe wraps ffprobe JSON inspection into typed accessors for the
// handful of properties the pipeline cares about: duration, frame rate,
// dimensions, and pixel format.
package ffprobe
