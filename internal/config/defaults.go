package config

import "runtime"

const (
	defaultOutputDir       = "out"
	defaultCacheDir        = "~/.cache/vid2deck"
	defaultDataDir         = "~/.local/share/vid2deck"
	defaultLogDir          = "~/.local/share/vid2deck/logs"
	defaultIntervalSeconds = 2
	defaultExtractionMode  = ModeStream
	defaultFFmpegBinary    = "ffmpeg"
	defaultFFprobeBinary   = "ffprobe"
	defaultThreshold       = 5
	defaultAlgorithm       = "average"
	defaultHashSize        = 8
	defaultYtDlpBinary     = "yt-dlp"
	defaultDownloadFormat  = "bestvideo+bestaudio/best"
	defaultDownloadTimeout = 3600
	defaultManifestFormat  = "json"
	defaultJPEGQuality     = 90
	defaultLogFormat       = "console"
	defaultLogLevel        = "info"
)

// Extraction modes.
const (
	// ModeStream pipes raw frames from ffmpeg without touching disk.
	ModeStream = "stream"
	// ModeFiles extracts JPEG frames into the cache first and reads them back.
	ModeFiles = "files"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir: defaultOutputDir,
			CacheDir:  defaultCacheDir,
			DataDir:   defaultDataDir,
			LogDir:    defaultLogDir,
		},
		Extraction: Extraction{
			IntervalSeconds: defaultIntervalSeconds,
			Mode:            defaultExtractionMode,
			FFmpegBinary:    defaultFFmpegBinary,
			FFprobeBinary:   defaultFFprobeBinary,
		},
		Dedup: Dedup{
			Threshold: defaultThreshold,
			Algorithm: defaultAlgorithm,
			HashSize:  defaultHashSize,
			Workers:   defaultWorkers(),
		},
		Download: Download{
			YtDlpBinary:    defaultYtDlpBinary,
			Format:         defaultDownloadFormat,
			TimeoutSeconds: defaultDownloadTimeout,
		},
		Slides: Slides{
			ManifestFormat: defaultManifestFormat,
			JPEGQuality:    defaultJPEGQuality,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

func defaultWorkers() int {
	n := runtime.NumCPU()
	if n < 1 {
		return 1
	}
	return n
}
