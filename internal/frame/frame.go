// Package frame defines the timestamped still images that flow from a frame
// source through fingerprinting and deduplication into the slide assembler.
//
// A Source is a lazy, pull-based, finite and ordered sequence. Implementations
// live in internal/extract (ffmpeg stream, directory of JPEGs); SliceSource is
// the in-memory variant used by tests and calibration replays.
package frame

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"math"
	"time"
)

var (
	// ErrInvalidTimestamp marks negative or non-finite frame offsets.
	ErrInvalidTimestamp = errors.New("invalid frame timestamp")
	// ErrMissingImage marks a frame without pixel data.
	ErrMissingImage = errors.New("frame has no image")
)

// Frame is a single sampled still. Frames are treated as immutable once produced.
type Frame struct {
	Index     int
	Timestamp time.Duration
	Image     image.Image
	// Path is set when the frame was read from disk, letting consumers reuse
	// the original bytes instead of re-encoding.
	Path string
}

// Seconds returns the timestamp as fractional seconds.
func (f Frame) Seconds() float64 {
	return f.Timestamp.Seconds()
}

// Validate checks the frame invariants.
func Validate(f Frame) error {
	if f.Timestamp < 0 {
		return fmt.Errorf("frame %d at %s: %w", f.Index, f.Timestamp, ErrInvalidTimestamp)
	}
	if f.Image == nil {
		return fmt.Errorf("frame %d: %w", f.Index, ErrMissingImage)
	}
	return nil
}

// FromSeconds converts a fractional second offset into a Duration, rejecting
// negative, NaN and infinite values.
func FromSeconds(seconds float64) (time.Duration, error) {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		return 0, fmt.Errorf("%v seconds: %w", seconds, ErrInvalidTimestamp)
	}
	if seconds > float64(math.MaxInt64)/float64(time.Second) {
		return 0, fmt.Errorf("%v seconds out of range: %w", seconds, ErrInvalidTimestamp)
	}
	return time.Duration(math.Round(seconds * float64(time.Second))), nil
}

// Source produces frames in timestamp order. Next returns io.EOF once the
// sequence is exhausted. A Source is not safe for concurrent use.
type Source interface {
	Next(ctx context.Context) (Frame, error)
	Close() error
}

// SliceSource serves frames from memory.
type SliceSource struct {
	frames []Frame
	pos    int
}

// NewSliceSource wraps frames without copying them.
func NewSliceSource(frames []Frame) *SliceSource {
	return &SliceSource{frames: frames}
}

// Next returns the next frame or io.EOF.
func (s *SliceSource) Next(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	if s.pos >= len(s.frames) {
		return Frame{}, io.EOF
	}
	f := s.frames[s.pos]
	s.pos++
	return f, nil
}

// Close is a no-op.
func (s *SliceSource) Close() error { return nil }

// Collect drains src into memory. Only suitable for short sequences.
func Collect(ctx context.Context, src Source) ([]Frame, error) {
	var out []Frame
	for {
		f, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, f)
	}
}
