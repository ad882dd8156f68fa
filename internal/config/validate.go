package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateTools(); err != nil {
		return err
	}
	if err := c.validateChunking(); err != nil {
		return err
	}
	if err := c.validateEncoding(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.WorkDir) == "" {
		return errors.New("paths.work_dir must be set")
	}
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		return errors.New("paths.output_dir must be set")
	}
	return nil
}

func (c *Config) validateTools() error {
	for name, value := range map[string]string{
		"tools.ffmpeg":     c.Tools.FFmpeg,
		"tools.ffprobe":    c.Tools.FFprobe,
		"tools.realesrgan": c.Tools.RealESRGAN,
		"tools.rife":       c.Tools.RIFE,
	} {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%s must be set", name)
		}
	}
	if c.Tools.ToolTimeout < 0 {
		return errors.New("tools.tool_timeout must be zero or positive")
	}
	return nil
}

func (c *Config) validateChunking() error {
	if c.Chunking.MinChunkSeconds <= 0 {
		return errors.New("chunking.min_chunk_seconds must be positive")
	}
	if c.Chunking.MaxChunkSeconds < c.Chunking.MinChunkSeconds {
		return errors.New("chunking.max_chunk_seconds must be >= chunking.min_chunk_seconds")
	}
	if c.Chunking.DiskSafetyMargin <= 0 || c.Chunking.DiskSafetyMargin > 1 {
		return errors.New("chunking.disk_safety_margin must be in (0, 1]")
	}
	if c.Chunking.FrameCompressionRatio <= 0 || c.Chunking.FrameCompressionRatio > 1 {
		return errors.New("chunking.frame_compression_ratio must be in (0, 1]")
	}
	if c.Chunking.BytesPerPixel <= 0 {
		return errors.New("chunking.bytes_per_pixel must be positive")
	}
	return nil
}

func (c *Config) validateEncoding() error {
	if c.Enhance.PrefilterCRF < 0 || c.Enhance.PrefilterCRF > 51 {
		return errors.New("enhance.prefilter_crf must be between 0 and 51")
	}
	if c.Assemble.EncodeCRF < 0 || c.Assemble.EncodeCRF > 51 {
		return errors.New("assemble.encode_crf must be between 0 and 51")
	}
	if strings.TrimSpace(c.Enhance.Prefilter) == "" {
		return errors.New("enhance.prefilter must be set")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch strings.ToLower(strings.TrimSpace(c.Logging.Level)) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
