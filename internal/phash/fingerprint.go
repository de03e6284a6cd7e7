package phash

import (
	"errors"
	"fmt"
	"math/bits"
	"strings"
)

// ErrLengthMismatch is returned when comparing fingerprints of different sizes.
var ErrLengthMismatch = errors.New("fingerprint length mismatch")

// Fingerprint is an immutable bit vector. Bit 0 corresponds to the top-left
// grid cell and is the most significant bit of the hex form.
type Fingerprint struct {
	bits  int
	words []uint64
}

func newFingerprint(n int) Fingerprint {
	return Fingerprint{bits: n, words: make([]uint64, (n+63)/64)}
}

func (f *Fingerprint) set(i int) {
	f.words[i/64] |= 1 << (63 - uint(i%64))
}

// Bit reports whether bit i is set.
func (f Fingerprint) Bit(i int) bool {
	if i < 0 || i >= f.bits {
		return false
	}
	return f.words[i/64]&(1<<(63-uint(i%64))) != 0
}

// Bits returns the fingerprint length in bits.
func (f Fingerprint) Bits() int { return f.bits }

// IsZero reports whether f is the zero value (no bits at all).
func (f Fingerprint) IsZero() bool { return f.bits == 0 }

// Equal reports whether both fingerprints have the same length and bits.
func (f Fingerprint) Equal(other Fingerprint) bool {
	if f.bits != other.bits {
		return false
	}
	for i := range f.words {
		if f.words[i] != other.words[i] {
			return false
		}
	}
	return true
}

// Distance returns the Hamming distance between a and b.
func Distance(a, b Fingerprint) (int, error) {
	if a.bits != b.bits {
		return 0, fmt.Errorf("%d vs %d bits: %w", a.bits, b.bits, ErrLengthMismatch)
	}
	d := 0
	for i := range a.words {
		d += bits.OnesCount64(a.words[i] ^ b.words[i])
	}
	return d, nil
}

func hexLen(n int) int { return (n + 3) / 4 }

// String renders the fingerprint as lowercase hex, most significant bit first,
// left-padded to whole nibbles.
func (f Fingerprint) String() string {
	if f.bits == 0 {
		return ""
	}
	n := hexLen(f.bits)
	pad := n*4 - f.bits
	var sb strings.Builder
	sb.Grow(n)
	for j := 0; j < n; j++ {
		var nibble byte
		for k := 0; k < 4; k++ {
			nibble <<= 1
			if v := j*4 + k - pad; v >= 0 && f.Bit(v) {
				nibble |= 1
			}
		}
		sb.WriteByte("0123456789abcdef"[nibble])
	}
	return sb.String()
}

// ParseFingerprint decodes the String form of a fingerprint of n bits.
func ParseFingerprint(s string, n int) (Fingerprint, error) {
	if n <= 0 {
		return Fingerprint{}, fmt.Errorf("parse fingerprint: invalid bit length %d", n)
	}
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != hexLen(n) {
		return Fingerprint{}, fmt.Errorf("parse fingerprint: %q has %d digits, want %d", s, len(s), hexLen(n))
	}
	pad := hexLen(n)*4 - n
	fp := newFingerprint(n)
	for j := 0; j < len(s); j++ {
		c := s[j]
		var nibble byte
		switch {
		case c >= '0' && c <= '9':
			nibble = c - '0'
		case c >= 'a' && c <= 'f':
			nibble = c - 'a' + 10
		default:
			return Fingerprint{}, fmt.Errorf("parse fingerprint: invalid hex digit %q", c)
		}
		for k := 0; k < 4; k++ {
			if nibble&(8>>k) == 0 {
				continue
			}
			v := j*4 + k - pad
			if v < 0 {
				return Fingerprint{}, fmt.Errorf("parse fingerprint: %q exceeds %d bits", s, n)
			}
			fp.set(v)
		}
	}
	return fp, nil
}
