// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Key types:
//   - Result: parsed ffprobe output containing streams and format metadata
//   - Stream: individual stream properties
//
// Inspect executes ffprobe; helper methods on Result expose the first video
// stream's geometry, frame rate, and the container duration that frame
// extraction needs to size its raw frame buffers.
package ffprobe
