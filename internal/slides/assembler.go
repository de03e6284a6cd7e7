package slides

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"vid2deck/internal/fileutil"
	"vid2deck/internal/frame"
	"vid2deck/internal/logging"
	"vid2deck/internal/phash"
)

// ErrClosed is returned when adding to or closing an assembler twice.
var ErrClosed = errors.New("assembler closed")

// Assembler consumes accepted frames in order and produces a deck.
type Assembler interface {
	Add(ctx context.Context, f frame.Frame, fp phash.Fingerprint) (Slide, error)
	Close() (Deck, error)
}

// Options tunes the directory assembler.
type Options struct {
	ManifestFormat string
	// ThumbnailWidth > 0 writes a scaled copy of every slide into thumbs/.
	ThumbnailWidth int
	JPEGQuality    int
	Title          string
	Interval       time.Duration
	Threshold      int
	Algorithm      string
	Logger         *slog.Logger
	Now            func() time.Time
}

// DirAssembler writes slides into a directory.
type DirAssembler struct {
	dir    string
	source Source
	opts   Options
	logger *slog.Logger

	mu     sync.Mutex
	slides []Slide
	used   map[string]struct{}
	closed bool
}

var _ Assembler = (*DirAssembler)(nil)

// NewDirAssembler prepares dir (creating it if needed) for a new deck.
func NewDirAssembler(dir string, src Source, opts Options) (*DirAssembler, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("slides: deck directory is required")
	}
	if opts.JPEGQuality <= 0 || opts.JPEGQuality > 100 {
		opts.JPEGQuality = 90
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create deck directory: %w", err)
	}
	if opts.ThumbnailWidth > 0 {
		if err := os.MkdirAll(filepath.Join(dir, "thumbs"), 0o755); err != nil {
			return nil, fmt.Errorf("create thumbnail directory: %w", err)
		}
	}
	return &DirAssembler{
		dir:    dir,
		source: src,
		opts:   opts,
		logger: logging.NewComponentLogger(opts.Logger, "slides"),
		used:   make(map[string]struct{}),
	}, nil
}

// Dir returns the deck directory.
func (a *DirAssembler) Dir() string { return a.dir }

// Add writes the slide image (and thumbnail) for f.
func (a *DirAssembler) Add(ctx context.Context, f frame.Frame, fp phash.Fingerprint) (Slide, error) {
	if err := ctx.Err(); err != nil {
		return Slide{}, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return Slide{}, ErrClosed
	}

	name := a.uniqueName(f)
	if err := a.writeImage(f, filepath.Join(a.dir, name)); err != nil {
		return Slide{}, fmt.Errorf("write slide %s: %w", name, err)
	}

	slide := Slide{
		Index:       len(a.slides) + 1,
		Seconds:     int64(f.Timestamp / time.Second),
		Time:        FormatTimestamp(f.Timestamp),
		Label:       Label(a.source, f.Timestamp),
		Link:        Link(a.source, f.Timestamp),
		Image:       name,
		Fingerprint: fp.String(),
	}
	if a.opts.ThumbnailWidth > 0 {
		thumb := filepath.Join("thumbs", name)
		if err := a.writeJPEG(filepath.Join(a.dir, thumb), Thumbnail(f.Image, a.opts.ThumbnailWidth)); err != nil {
			return Slide{}, fmt.Errorf("write thumbnail %s: %w", name, err)
		}
		slide.Thumbnail = thumb
	}

	a.slides = append(a.slides, slide)
	a.logger.DebugContext(ctx, "slide written",
		logging.Int("slide", slide.Index),
		logging.String(logging.FieldTimestamp, slide.Time),
		logging.String("image", name),
	)
	return slide, nil
}

// uniqueName derives h-mm-ss.jpg, suffixing the frame index when two slides
// fall within the same second.
func (a *DirAssembler) uniqueName(f frame.Frame) string {
	base := FormatFileTimestamp(f.Timestamp)
	name := base + ".jpg"
	if _, taken := a.used[name]; taken {
		name = base + "_" + strconv.Itoa(f.Index) + ".jpg"
	}
	a.used[name] = struct{}{}
	return name
}

func (a *DirAssembler) writeImage(f frame.Frame, dst string) error {
	if f.Path != "" && isJPEG(f.Path) {
		return fileutil.CopyFile(f.Path, dst)
	}
	if f.Image == nil {
		return frame.ErrMissingImage
	}
	return a.writeJPEG(dst, f.Image)
}

func (a *DirAssembler) writeJPEG(dst string, img image.Image) error {
	return fileutil.WriteAtomic(dst, 0o644, func(w io.Writer) error {
		return jpeg.Encode(w, img, &jpeg.Options{Quality: a.opts.JPEGQuality})
	})
}

// Close writes the manifest and returns the finished deck.
func (a *DirAssembler) Close() (Deck, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return Deck{}, ErrClosed
	}
	a.closed = true

	title := a.opts.Title
	if title == "" {
		title = a.source.Title
	}
	deck := Deck{
		Title:           title,
		Source:          a.source,
		IntervalSeconds: a.opts.Interval.Seconds(),
		Threshold:       a.opts.Threshold,
		Algorithm:       a.opts.Algorithm,
		CreatedAt:       a.opts.Now().UTC().Truncate(time.Second),
		Slides:          append([]Slide(nil), a.slides...),
	}
	path, err := WriteManifest(a.dir, a.opts.ManifestFormat, deck)
	if err != nil {
		return Deck{}, err
	}
	a.logger.Info("deck manifest written",
		logging.String("manifest", path),
		logging.Int("slides", len(deck.Slides)),
	)
	return deck, nil
}

func isJPEG(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return true
	}
	return false
}
