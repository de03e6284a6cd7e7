// Package phash computes perceptual fingerprints of video frames.
//
// A Hasher reduces an image to 8-bit luma, box-filters it down to a small
// canonical grid using integer arithmetic only, and derives a fixed-length bit
// vector. Two algorithms are available: average (a cell is set when brighter
// than the grid mean) and difference (a cell is set when brighter than its
// right neighbour). Fingerprints compare by Hamming distance.
//
// Results are bit-identical across runs and architectures: no floating point
// is involved anywhere between the decoded pixels and the bit vector.
package phash
