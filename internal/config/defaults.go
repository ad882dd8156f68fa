package config

const (
	defaultWorkDir   = "~/.local/share/tapedeck/work"
	defaultOutputDir = "~/.local/share/tapedeck/outputs"
	defaultLogDir    = "~/.local/share/tapedeck/logs"

	defaultFFmpegBinary     = "ffmpeg"
	defaultFFprobeBinary    = "ffprobe"
	defaultRealESRGANBinary = "realesrgan-ncnn-vulkan"
	defaultRIFEBinary       = "rife-ncnn-vulkan"
	defaultToolTimeout      = 0

	defaultMinChunkSeconds       = 10
	defaultMaxChunkSeconds       = 120
	defaultDiskSafetyMargin      = 0.5
	defaultFrameCompressionRatio = 0.4
	defaultBytesPerPixel         = 3

	defaultPrefilter       = "hqdn3d=3:3:6:6,pp=ac,unsharp=3:3:0.6"
	defaultPrefilterCRF    = 16
	defaultPrefilterPreset = "slower"

	defaultEncodeCRF    = 17
	defaultEncodePreset = "slower"

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir:   defaultWorkDir,
			OutputDir: defaultOutputDir,
			LogDir:    defaultLogDir,
		},
		Tools: Tools{
			FFmpeg:      defaultFFmpegBinary,
			FFprobe:     defaultFFprobeBinary,
			RealESRGAN:  defaultRealESRGANBinary,
			RIFE:        defaultRIFEBinary,
			ToolTimeout: defaultToolTimeout,
		},
		Chunking: Chunking{
			MinChunkSeconds:       defaultMinChunkSeconds,
			MaxChunkSeconds:       defaultMaxChunkSeconds,
			DiskSafetyMargin:      defaultDiskSafetyMargin,
			FrameCompressionRatio: defaultFrameCompressionRatio,
			BytesPerPixel:         defaultBytesPerPixel,
		},
		Enhance: Enhance{
			Prefilter:       defaultPrefilter,
			PrefilterCRF:    defaultPrefilterCRF,
			PrefilterPreset: defaultPrefilterPreset,
		},
		Assemble: Assemble{
			EncodeCRF:    defaultEncodeCRF,
			EncodePreset: defaultEncodePreset,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
