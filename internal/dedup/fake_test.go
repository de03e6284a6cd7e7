package dedup_test

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"strings"
	"time"

	"vid2deck/internal/frame"
	"vid2deck/internal/phash"
)

// tagged is an image whose fingerprint is fixed by the test.
type tagged struct {
	image.Image
	hex string
}

var errUnhashable = errors.New("unhashable test image")

// tagFingerprinter returns the fingerprint carried by tagged images.
type tagFingerprinter struct{}

func (tagFingerprinter) Bits() int { return 64 }

func (tagFingerprinter) Fingerprint(img image.Image) (phash.Fingerprint, error) {
	t, ok := img.(tagged)
	if !ok {
		return phash.Fingerprint{}, errUnhashable
	}
	return phash.ParseFingerprint(t.hex, 64)
}

var tile = image.NewGray(image.Rect(0, 0, 1, 1))

// onesPrefix returns a 64-bit fingerprint whose first n bits are set.
func onesPrefix(n int) string {
	var v uint64
	if n >= 64 {
		v = ^uint64(0)
	} else if n > 0 {
		v = ^uint64(0) << (64 - n)
	}
	return fmt.Sprintf("%016x", v)
}

// taggedFrames builds one frame per hex fingerprint, one second apart.
func taggedFrames(hexes ...string) []frame.Frame {
	frames := make([]frame.Frame, len(hexes))
	for i, h := range hexes {
		frames[i] = frame.Frame{Index: i, Timestamp: time.Duration(i) * time.Second, Image: tagged{Image: tile, hex: h}}
	}
	return frames
}

func indices(frames []frame.Frame) []int {
	out := make([]int, len(frames))
	for i, f := range frames {
		out[i] = f.Index
	}
	return out
}

func intsString(v []int) string {
	parts := make([]string, len(v))
	for i, n := range v {
		parts[i] = fmt.Sprint(n)
	}
	return strings.Join(parts, ",")
}

// failingSource yields frames and then a fixed error instead of io.EOF.
type failingSource struct {
	frames []frame.Frame
	err    error
	pos    int
}

func (s *failingSource) Next(ctx context.Context) (frame.Frame, error) {
	if s.pos < len(s.frames) {
		f := s.frames[s.pos]
		s.pos++
		return f, nil
	}
	if s.err != nil {
		return frame.Frame{}, s.err
	}
	return frame.Frame{}, io.EOF
}

func (s *failingSource) Close() error { return nil }
