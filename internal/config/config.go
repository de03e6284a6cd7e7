package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	OutputDir string `toml:"output_dir"`
	CacheDir  string `toml:"cache_dir"`
	DataDir   string `toml:"data_dir"`
	LogDir    string `toml:"log_dir"`
}

// Extraction controls how frames are sampled from the source video.
type Extraction struct {
	IntervalSeconds float64 `toml:"interval_seconds"`
	Mode            string  `toml:"mode"`
	MaxWidth        int     `toml:"max_width"`
	FFmpegBinary    string  `toml:"ffmpeg_binary"`
	FFprobeBinary   string  `toml:"ffprobe_binary"`
}

// Dedup contains the duplicate frame detection settings.
type Dedup struct {
	// Threshold is the Hamming distance a frame must exceed, relative to the
	// last accepted frame, to become a new slide.
	Threshold int `toml:"threshold"`
	// AutoThreshold derives the threshold from the video itself (mean/2 of
	// consecutive distances) and ignores Threshold.
	AutoThreshold bool   `toml:"auto_threshold"`
	Algorithm     string `toml:"algorithm"`
	HashSize      int    `toml:"hash_size"`
	Workers       int    `toml:"workers"`
}

// Download contains yt-dlp settings.
type Download struct {
	YtDlpBinary    string `toml:"ytdlp_binary"`
	Format         string `toml:"format"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Slides contains deck output settings.
type Slides struct {
	ManifestFormat string `toml:"manifest_format"`
	ThumbnailWidth int    `toml:"thumbnail_width"`
	JPEGQuality    int    `toml:"jpeg_quality"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for vid2deck.
//
// Configuration sections by subsystem:
//   - Paths: output, cache, data and log directories
//   - Extraction: ffmpeg sampling interval and frame source mode
//   - Dedup: fingerprint algorithm and duplicate threshold
//   - Download: yt-dlp invocation
//   - Slides: deck manifest and image output
//   - Logging: log format and level
type Config struct {
	Paths      Paths      `toml:"paths"`
	Extraction Extraction `toml:"extraction"`
	Dedup      Dedup      `toml:"dedup"`
	Download   Download   `toml:"download"`
	Slides     Slides     `toml:"slides"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/vid2deck/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("vid2deck.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories a deck build writes into.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.OutputDir, c.Paths.CacheDir, c.Paths.DataDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// Interval returns the frame sampling interval as a duration.
func (c *Config) Interval() time.Duration {
	if c.Extraction.IntervalSeconds <= 0 || math.IsNaN(c.Extraction.IntervalSeconds) || math.IsInf(c.Extraction.IntervalSeconds, 0) {
		return 0
	}
	return time.Duration(c.Extraction.IntervalSeconds * float64(time.Second))
}

// FingerprintBits reports the fingerprint length implied by dedup.hash_size.
func (c *Config) FingerprintBits() int {
	return c.Dedup.HashSize * c.Dedup.HashSize
}

// CatalogPath returns the SQLite catalog location.
func (c *Config) CatalogPath() string {
	return filepath.Join(c.Paths.DataDir, "catalog.db")
}

// LogPath returns the log file location.
func (c *Config) LogPath() string {
	return filepath.Join(c.Paths.LogDir, "vid2deck.log")
}

// VideoCacheDir returns the directory downloaded videos are stored in.
func (c *Config) VideoCacheDir() string {
	return filepath.Join(c.Paths.CacheDir, "videos")
}

// FrameCacheDir returns the directory extracted frames for a video are kept
// in when extraction.mode is "files".
func (c *Config) FrameCacheDir(videoKey string) string {
	return filepath.Join(c.Paths.CacheDir, "frames", videoKey)
}

// DownloadTimeout returns the yt-dlp timeout.
func (c *Config) DownloadTimeout() time.Duration {
	return time.Duration(c.Download.TimeoutSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
