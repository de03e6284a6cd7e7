package dedup

import (
	"errors"
	"fmt"
	"image"
	"time"

	"vid2deck/internal/frame"
	"vid2deck/internal/phash"
)

// DefaultThreshold is used when no threshold is configured or calibration
// has too few frames to measure.
const DefaultThreshold = 5

var (
	// ErrInvalidThreshold marks a threshold outside 0..fingerprint bits.
	ErrInvalidThreshold = errors.New("invalid dedup threshold")
	// ErrOutOfOrder marks a frame whose timestamp precedes the previous frame.
	ErrOutOfOrder = errors.New("frame out of order")
)

// Fingerprinter computes fixed-length perceptual fingerprints.
type Fingerprinter interface {
	Fingerprint(img image.Image) (phash.Fingerprint, error)
	Bits() int
}

// State is the engine's reference state.
type State int

const (
	NoReference State = iota
	HasReference
)

func (s State) String() string {
	if s == HasReference {
		return "has_reference"
	}
	return "no_reference"
}

// Decision is the outcome for one frame.
type Decision struct {
	Frame       frame.Frame
	Fingerprint phash.Fingerprint
	Accepted    bool
	// Distance to the reference; zero when there was no reference.
	Distance     int
	HadReference bool
}

// Engine is the sequential accept/reject fold. It is not safe for concurrent
// use; run one engine per video.
type Engine struct {
	fp        Fingerprinter
	threshold int

	reference phash.Fingerprint
	state     State

	last    time.Duration
	started bool
}

// NewEngine validates threshold against the fingerprint length. Thresholds
// are never clamped.
func NewEngine(fp Fingerprinter, threshold int) (*Engine, error) {
	if fp == nil {
		return nil, errors.New("dedup: nil fingerprinter")
	}
	if err := ValidateThreshold(threshold, fp.Bits()); err != nil {
		return nil, err
	}
	return &Engine{fp: fp, threshold: threshold}, nil
}

// ValidateThreshold checks 0 <= threshold <= bits.
func ValidateThreshold(threshold, bits int) error {
	if threshold < 0 || threshold > bits {
		return fmt.Errorf("threshold %d outside 0..%d: %w", threshold, bits, ErrInvalidThreshold)
	}
	return nil
}

// Threshold returns the configured threshold.
func (e *Engine) Threshold() int { return e.threshold }

// Bits returns the fingerprint length the engine compares.
func (e *Engine) Bits() int { return e.fp.Bits() }

// State reports whether a reference is held.
func (e *Engine) State() State { return e.state }

// Reference returns the fingerprint of the last accepted frame.
func (e *Engine) Reference() (phash.Fingerprint, bool) {
	return e.reference, e.state == HasReference
}

// Reset clears the reference so the engine can process a new sequence.
func (e *Engine) Reset() {
	e.reference = phash.Fingerprint{}
	e.state = NoReference
	e.last = 0
	e.started = false
}

// Fingerprint delegates to the configured fingerprinter.
func (e *Engine) Fingerprint(img image.Image) (phash.Fingerprint, error) {
	return e.fp.Fingerprint(img)
}

// Process fingerprints f and decides it.
func (e *Engine) Process(f frame.Frame) (Decision, error) {
	if err := e.checkOrder(f); err != nil {
		return Decision{}, err
	}
	fp, err := e.fp.Fingerprint(f.Image)
	if err != nil {
		return Decision{}, fmt.Errorf("frame %d: %w", f.Index, err)
	}
	return e.Decide(f, fp)
}

// Decide applies the accept/reject rule to a frame whose fingerprint was
// computed elsewhere. Calls must follow source order.
func (e *Engine) Decide(f frame.Frame, fp phash.Fingerprint) (Decision, error) {
	if err := e.checkOrder(f); err != nil {
		return Decision{}, err
	}
	if fp.Bits() != e.fp.Bits() {
		return Decision{}, fmt.Errorf("frame %d: %d bit fingerprint, engine expects %d: %w",
			f.Index, fp.Bits(), e.fp.Bits(), phash.ErrLengthMismatch)
	}

	d := Decision{Frame: f, Fingerprint: fp}
	if e.state == NoReference {
		d.Accepted = true
	} else {
		dist, err := phash.Distance(fp, e.reference)
		if err != nil {
			return Decision{}, err
		}
		d.HadReference = true
		d.Distance = dist
		d.Accepted = dist > e.threshold
	}

	if d.Accepted {
		e.reference = fp
		e.state = HasReference
	}
	e.last = f.Timestamp
	e.started = true
	return d, nil
}

func (e *Engine) checkOrder(f frame.Frame) error {
	if f.Timestamp < 0 {
		return fmt.Errorf("frame %d at %s: %w", f.Index, f.Timestamp, frame.ErrInvalidTimestamp)
	}
	if e.started && f.Timestamp < e.last {
		return fmt.Errorf("frame %d at %s precedes %s: %w", f.Index, f.Timestamp, e.last, ErrOutOfOrder)
	}
	return nil
}
