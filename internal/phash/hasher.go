package phash

import (
	"errors"
	"fmt"
	"image"
	"strings"
)

// Algorithm selects how grid cells become bits.
type Algorithm string

const (
	AlgorithmAverage    Algorithm = "average"
	AlgorithmDifference Algorithm = "difference"

	DefaultSize = 8
	MinSize     = 4
	MaxSize     = 32
)

var (
	ErrUnknownAlgorithm = errors.New("unknown fingerprint algorithm")
	ErrInvalidSize      = errors.New("invalid fingerprint size")
)

// ParseAlgorithm resolves a configured algorithm name. Empty selects average.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", string(AlgorithmAverage), "ahash":
		return AlgorithmAverage, nil
	case string(AlgorithmDifference), "dhash":
		return AlgorithmDifference, nil
	default:
		return "", fmt.Errorf("%q: %w", name, ErrUnknownAlgorithm)
	}
}

// Hasher fingerprints images on a Size x Size grid. It holds no mutable state
// and is safe for concurrent use.
type Hasher struct {
	alg  Algorithm
	size int
}

// NewHasher validates the algorithm and grid size.
func NewHasher(alg Algorithm, size int) (*Hasher, error) {
	if alg == "" {
		alg = AlgorithmAverage
	}
	if alg != AlgorithmAverage && alg != AlgorithmDifference {
		return nil, fmt.Errorf("%q: %w", alg, ErrUnknownAlgorithm)
	}
	if size < MinSize || size > MaxSize {
		return nil, fmt.Errorf("size %d outside %d..%d: %w", size, MinSize, MaxSize, ErrInvalidSize)
	}
	return &Hasher{alg: alg, size: size}, nil
}

// Default returns the 64-bit average hasher.
func Default() *Hasher {
	return &Hasher{alg: AlgorithmAverage, size: DefaultSize}
}

// Algorithm returns the configured algorithm.
func (h *Hasher) Algorithm() Algorithm { return h.alg }

// Size returns the grid edge length.
func (h *Hasher) Size() int { return h.size }

// Bits returns the fingerprint length.
func (h *Hasher) Bits() int { return h.size * h.size }

// Fingerprint computes the perceptual fingerprint of img.
func (h *Hasher) Fingerprint(img image.Image) (Fingerprint, error) {
	if img == nil {
		return Fingerprint{}, &DecodeError{Reason: "nil image"}
	}
	if img.Bounds().Empty() {
		return Fingerprint{}, &DecodeError{Reason: "empty image bounds"}
	}
	switch h.alg {
	case AlgorithmDifference:
		return h.difference(img), nil
	default:
		return h.average(img), nil
	}
}

func (h *Hasher) average(img image.Image) Fingerprint {
	cells := boxDownsample(img, h.size, h.size)
	var sum uint64
	for _, c := range cells {
		sum += uint64(c)
	}
	n := uint64(len(cells))
	fp := newFingerprint(len(cells))
	for i, c := range cells {
		// c > sum/n without losing the remainder
		if uint64(c)*n > sum {
			fp.set(i)
		}
	}
	return fp
}

func (h *Hasher) difference(img image.Image) Fingerprint {
	cols := h.size + 1
	cells := boxDownsample(img, cols, h.size)
	fp := newFingerprint(h.size * h.size)
	for y := 0; y < h.size; y++ {
		row := cells[y*cols : (y+1)*cols]
		for x := 0; x < h.size; x++ {
			if row[x] > row[x+1] {
				fp.set(y*h.size + x)
			}
		}
	}
	return fp
}
