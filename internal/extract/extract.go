package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"vid2deck/internal/media/ffprobe"
	"vid2deck/internal/services"
)

// ErrInvalidInterval marks a non-positive sampling interval.
var ErrInvalidInterval = errors.New("sampling interval must be positive")

// Options configure frame extraction.
type Options struct {
	FFmpegBinary  string
	FFprobeBinary string
	Interval      time.Duration
	// MaxWidth downscales wider videos, preserving aspect ratio. Zero keeps
	// the source size.
	MaxWidth int
	Logger   *slog.Logger
}

func (o Options) ffmpeg() string {
	if b := strings.TrimSpace(o.FFmpegBinary); b != "" {
		return b
	}
	return "ffmpeg"
}

func (o Options) validate() error {
	if o.Interval <= 0 {
		return fmt.Errorf("interval %s: %w", o.Interval, ErrInvalidInterval)
	}
	if o.MaxWidth < 0 {
		return fmt.Errorf("max width %d must not be negative", o.MaxWidth)
	}
	return nil
}

// Geometry describes the decoded video as reported by ffprobe.
type Geometry struct {
	Width    int
	Height   int
	Duration time.Duration
	Title    string
}

// ExpectedFrames estimates how many frames sampling at interval will yield.
// Zero when the duration is unknown.
func (g Geometry) ExpectedFrames(interval time.Duration) int {
	if g.Duration <= 0 || interval <= 0 {
		return 0
	}
	return int((g.Duration + interval - 1) / interval)
}

// Probe reads the first video stream's geometry.
func Probe(ctx context.Context, ffprobeBinary, path string) (Geometry, error) {
	result, err := ffprobe.Inspect(ctx, ffprobeBinary, path)
	if err != nil {
		return Geometry{}, services.Wrap(services.ErrExternalTool, "extract", "probe", path, err)
	}
	stream, err := result.VideoStream()
	if err != nil {
		return Geometry{}, services.Wrap(services.ErrValidation, "extract", "probe", path, err)
	}
	return Geometry{
		Width:    stream.Width,
		Height:   stream.Height,
		Duration: result.Duration(),
		Title:    result.Title(),
	}, nil
}

// scaledSize applies maxWidth, keeping both dimensions even as most encoders
// and the rawvideo muxer expect.
func scaledSize(w, h, maxWidth int) (int, int) {
	if maxWidth <= 0 || w <= maxWidth {
		return w, h
	}
	nw := maxWidth - maxWidth%2
	nh := h * nw / w
	nh -= nh % 2
	return max(nw, 2), max(nh, 2)
}

// fpsFilter renders the sampling filter, e.g. "fps=1/2".
func fpsFilter(interval time.Duration) string {
	return "fps=1/" + strconv.FormatFloat(interval.Seconds(), 'f', -1, 64)
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	limit int
	buf   []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.limit; over > 0 {
		t.buf = t.buf[over:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	return strings.TrimSpace(string(t.buf))
}
