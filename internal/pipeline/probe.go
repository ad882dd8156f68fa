package pipeline

import (
	"context"
	"log/slog"

	"tapedeck/internal/logging"
	"tapedeck/internal/media/ffprobe"
	"tapedeck/internal/media/scan"
	"tapedeck/internal/services"
)

// SourceInfo is the probed geometry of the input recording.
type SourceInfo struct {
	Duration float64
	Width    int
	Height   int
	FPS      float64
	PixFmt   string
}

// inspectSource probes the recording and logs advisory findings (interlacing,
// starved bitrate). Geometry problems are fatal; advisory scans never are.
func (p *Pipeline) inspectSource(ctx context.Context, logger *slog.Logger, source string) (SourceInfo, error) {
	result, err := ffprobe.Inspect(ctx, p.runner, p.cfg.Tools.FFprobe, source)
	if err != nil {
		return SourceInfo{}, p.toolFailure(err, "probe source")
	}

	info := SourceInfo{
		Duration: result.DurationSeconds(),
		PixFmt:   result.PixelFormat(),
	}
	if info.Duration <= 0 {
		return SourceInfo{}, services.Wrap(services.ErrValidation, "pipeline", "probe source",
			"source reports no duration", nil)
	}

	info.Width, info.Height, err = result.Dimensions()
	if err != nil {
		return SourceInfo{}, services.Wrap(services.ErrValidation, "pipeline", "probe source",
			err.Error(), nil)
	}

	fps, usedFallback, err := result.FrameRate()
	if err != nil {
		return SourceInfo{}, services.Wrap(services.ErrValidation, "pipeline", "probe source",
			err.Error(), nil)
	}
	if usedFallback {
		logger.Warn("r_frame_rate unusable, using average frame rate",
			logging.String("fps", ffprobe.FormatRate(fps)))
	}
	info.FPS = fps

	logger.Info("source probed",
		logging.Float64("duration_s", info.Duration),
		logging.Int("width", info.Width),
		logging.Int("height", info.Height),
		logging.String("fps", ffprobe.FormatRate(info.FPS)),
		logging.String("pix_fmt", info.PixFmt),
	)

	if report, scanErr := scan.DetectInterlace(ctx, p.runner, p.cfg.Tools.FFmpeg, source, interlaceSampleFrames); scanErr != nil {
		logger.Warn("interlace scan failed", logging.Error(scanErr))
	} else if report.Type.Interlaced() {
		logger.Warn("source appears interlaced; deinterlace before upscaling for best results",
			logging.String("scan_type", string(report.Type)),
			logging.Int("tff", report.TFF),
			logging.Int("bff", report.BFF),
			logging.Int("progressive", report.Progressive),
		)
	}

	if health := scan.ClassifyBitrate(result.BitRate(), info.Width, info.Height, info.FPS); health == scan.BitrateLow {
		logger.Warn("source bitrate is low for its geometry; upscaling will amplify compression artifacts",
			logging.Int64("bit_rate", result.BitRate()))
	}

	return info, nil
}
