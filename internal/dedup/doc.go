// Package dedup decides which sampled frames become slides.
//
// Engine is a two-state machine (NoReference, HasReference) holding a single
// retained fingerprint: the fingerprint of the most recently accepted frame.
// A frame is accepted when no reference exists or when its Hamming distance to
// the reference exceeds the threshold; only accepted frames replace the
// reference, so slow drift across many near-identical frames still surfaces
// once it accumulates past the threshold.
//
// Pipeline runs fingerprinting on a bounded pool of goroutines and feeds the
// results back through the engine strictly in source order. Calibrate derives
// a threshold from the distances between consecutive frames.
package dedup
