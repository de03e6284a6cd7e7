package dedup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"

	"vid2deck/internal/frame"
	"vid2deck/internal/phash"
)

// Calibration describes the distance profile of consecutive frames.
type Calibration struct {
	Frames    int
	Mean      float64
	Stdev     float64
	Threshold int
}

// Calibrate measures the Hamming distance between each pair of consecutive
// frames in src and suggests half the mean distance as the threshold, never
// below one. Fewer than two frames yields DefaultThreshold. Only the previous
// fingerprint is retained, so memory stays constant.
func Calibrate(ctx context.Context, src frame.Source, fp Fingerprinter) (Calibration, error) {
	var (
		cal      Calibration
		prev     phash.Fingerprint
		n        int
		mean, m2 float64
	)
	for {
		f, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return cal, err
		}
		cur, err := fp.Fingerprint(f.Image)
		if err != nil {
			return cal, fmt.Errorf("frame %d: %w", f.Index, err)
		}
		cal.Frames++
		if cal.Frames > 1 {
			d, err := phash.Distance(prev, cur)
			if err != nil {
				return cal, err
			}
			n++
			delta := float64(d) - mean
			mean += delta / float64(n)
			m2 += delta * (float64(d) - mean)
		}
		prev = cur
	}

	if n == 0 {
		cal.Threshold = min(DefaultThreshold, fp.Bits())
		return cal, nil
	}
	cal.Mean = mean
	if n > 1 {
		cal.Stdev = math.Sqrt(m2 / float64(n-1))
	}
	cal.Threshold = max(1, int(mean/2))
	return cal, nil
}
