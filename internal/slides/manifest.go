package slides

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"vid2deck/internal/fileutil"
)

const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Slide is one entry of the deck manifest. Paths are relative to the deck directory.
type Slide struct {
	Index       int    `json:"index" yaml:"index"`
	Seconds     int64  `json:"seconds" yaml:"seconds"`
	Time        string `json:"time" yaml:"time"`
	Label       string `json:"label" yaml:"label"`
	Link        string `json:"link,omitempty" yaml:"link,omitempty"`
	Image       string `json:"image" yaml:"image"`
	Thumbnail   string `json:"thumbnail,omitempty" yaml:"thumbnail,omitempty"`
	Fingerprint string `json:"fingerprint" yaml:"fingerprint"`
}

// Timestamp returns the slide offset.
func (s Slide) Timestamp() time.Duration {
	return time.Duration(s.Seconds) * time.Second
}

// Deck is the manifest written next to the slide images.
type Deck struct {
	Title           string    `json:"title" yaml:"title"`
	Source          Source    `json:"source" yaml:"source"`
	IntervalSeconds float64   `json:"interval_seconds" yaml:"interval_seconds"`
	Threshold       int       `json:"threshold" yaml:"threshold"`
	Algorithm       string    `json:"algorithm,omitempty" yaml:"algorithm,omitempty"`
	CreatedAt       time.Time `json:"created_at" yaml:"created_at"`
	Slides          []Slide   `json:"slides" yaml:"slides"`
}

// ManifestName returns the manifest file name for format.
func ManifestName(format string) string {
	if format == FormatYAML {
		return "deck.yaml"
	}
	return "deck.json"
}

// WriteManifest writes deck into dir and returns the manifest path.
func WriteManifest(dir, format string, deck Deck) (string, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = FormatJSON
	}
	if format != FormatJSON && format != FormatYAML {
		return "", fmt.Errorf("manifest format %q: must be json or yaml", format)
	}
	if deck.Slides == nil {
		deck.Slides = []Slide{}
	}
	path := filepath.Join(dir, ManifestName(format))
	err := fileutil.WriteAtomic(path, 0o644, func(w io.Writer) error {
		if format == FormatYAML {
			enc := yaml.NewEncoder(w)
			enc.SetIndent(2)
			if err := enc.Encode(deck); err != nil {
				return err
			}
			return enc.Close()
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(deck)
	})
	if err != nil {
		return "", fmt.Errorf("write manifest: %w", err)
	}
	return path, nil
}

// ReadManifest loads a manifest, choosing the decoder from the file extension.
func ReadManifest(path string) (Deck, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Deck{}, fmt.Errorf("read manifest: %w", err)
	}
	var deck Deck
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &deck)
	default:
		err = json.Unmarshal(data, &deck)
	}
	if err != nil {
		return Deck{}, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	return deck, nil
}
