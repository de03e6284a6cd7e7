package config

import (
	"errors"
	"fmt"
	"math"
)

// Hash size bounds accepted by dedup.hash_size.
const (
	MinHashSize = 4
	MaxHashSize = 32
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateExtraction(); err != nil {
		return err
	}
	if err := c.validateDedup(); err != nil {
		return err
	}
	if err := c.validateDownload(); err != nil {
		return err
	}
	if err := c.validateSlides(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateExtraction() error {
	interval := c.Extraction.IntervalSeconds
	if math.IsNaN(interval) || math.IsInf(interval, 0) || interval <= 0 {
		return errors.New("extraction.interval_seconds must be a positive number")
	}
	switch c.Extraction.Mode {
	case ModeStream, ModeFiles:
	default:
		return fmt.Errorf("extraction.mode must be %q or %q, got %q", ModeStream, ModeFiles, c.Extraction.Mode)
	}
	if c.Extraction.MaxWidth < 0 {
		return errors.New("extraction.max_width must be >= 0")
	}
	return nil
}

func (c *Config) validateDedup() error {
	switch c.Dedup.Algorithm {
	case "average", "difference":
	default:
		return fmt.Errorf("dedup.algorithm must be \"average\" or \"difference\", got %q", c.Dedup.Algorithm)
	}
	if c.Dedup.HashSize < MinHashSize || c.Dedup.HashSize > MaxHashSize {
		return fmt.Errorf("dedup.hash_size must be between %d and %d", MinHashSize, MaxHashSize)
	}
	if c.Dedup.Threshold < 0 || c.Dedup.Threshold > c.FingerprintBits() {
		return fmt.Errorf("dedup.threshold must be between 0 and %d for hash_size %d", c.FingerprintBits(), c.Dedup.HashSize)
	}
	if c.Dedup.Workers < 1 {
		return errors.New("dedup.workers must be positive")
	}
	return nil
}

func (c *Config) validateDownload() error {
	if c.Download.TimeoutSeconds <= 0 {
		return errors.New("download.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateSlides() error {
	switch c.Slides.ManifestFormat {
	case "json", "yaml":
	default:
		return fmt.Errorf("slides.manifest_format must be \"json\" or \"yaml\", got %q", c.Slides.ManifestFormat)
	}
	if c.Slides.ThumbnailWidth < 0 {
		return errors.New("slides.thumbnail_width must be >= 0")
	}
	if c.Slides.JPEGQuality < 1 || c.Slides.JPEGQuality > 100 {
		return errors.New("slides.jpeg_quality must be between 1 and 100")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be \"console\" or \"json\", got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", c.Logging.Level)
	}
	return nil
}
