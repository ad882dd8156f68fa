// Package logging configures slog for tapedeck: a console handler for
// interactive runs, a JSON handler for machine consumption, and helpers for
// the standardized structured fields shared across the pipeline.
package logging
