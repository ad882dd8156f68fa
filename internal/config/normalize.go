package config

import "strings"

// normalize expands path fields and backfills empty values with defaults so a
// sparse config file behaves like Default() with overrides applied.
func (c *Config) normalize() error {
	defaults := Default()

	fillString(&c.Paths.WorkDir, defaults.Paths.WorkDir)
	fillString(&c.Paths.OutputDir, defaults.Paths.OutputDir)
	fillString(&c.Paths.LogDir, defaults.Paths.LogDir)

	fillString(&c.Tools.FFmpeg, defaults.Tools.FFmpeg)
	fillString(&c.Tools.FFprobe, defaults.Tools.FFprobe)
	fillString(&c.Tools.RealESRGAN, defaults.Tools.RealESRGAN)
	fillString(&c.Tools.RIFE, defaults.Tools.RIFE)

	if c.Chunking.MinChunkSeconds == 0 {
		c.Chunking.MinChunkSeconds = defaults.Chunking.MinChunkSeconds
	}
	if c.Chunking.MaxChunkSeconds == 0 {
		c.Chunking.MaxChunkSeconds = defaults.Chunking.MaxChunkSeconds
	}
	if c.Chunking.DiskSafetyMargin == 0 {
		c.Chunking.DiskSafetyMargin = defaults.Chunking.DiskSafetyMargin
	}
	if c.Chunking.FrameCompressionRatio == 0 {
		c.Chunking.FrameCompressionRatio = defaults.Chunking.FrameCompressionRatio
	}
	if c.Chunking.BytesPerPixel == 0 {
		c.Chunking.BytesPerPixel = defaults.Chunking.BytesPerPixel
	}

	fillString(&c.Enhance.Prefilter, defaults.Enhance.Prefilter)
	if c.Enhance.PrefilterCRF == 0 {
		c.Enhance.PrefilterCRF = defaults.Enhance.PrefilterCRF
	}
	fillString(&c.Enhance.PrefilterPreset, defaults.Enhance.PrefilterPreset)

	if c.Assemble.EncodeCRF == 0 {
		c.Assemble.EncodeCRF = defaults.Assemble.EncodeCRF
	}
	fillString(&c.Assemble.EncodePreset, defaults.Assemble.EncodePreset)

	fillString(&c.Logging.Format, defaults.Logging.Format)
	fillString(&c.Logging.Level, defaults.Logging.Level)

	for _, field := range []*string{&c.Paths.WorkDir, &c.Paths.OutputDir, &c.Paths.LogDir} {
		expanded, err := expandPath(*field)
		if err != nil {
			return err
		}
		*field = expanded
	}
	return nil
}

func fillString(field *string, fallback string) {
	if strings.TrimSpace(*field) == "" {
		*field = fallback
	}
}
