// Package config loads, normalizes, and validates the tapedeck TOML
// configuration. Every path field is expanded to an absolute path during
// Load so the rest of the pipeline never deals with ~ or relative inputs.
package config
