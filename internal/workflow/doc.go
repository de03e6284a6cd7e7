// Package workflow turns one input into one slide deck.
//
// Runner.Build resolves the input (local file or yt-dlp download), takes an
// exclusive lock on the deck directory, samples frames with ffmpeg, settles
// the duplicate threshold (configured, or calibrated from a first pass over
// the frames), and drives the dedup pipeline into a slide assembler. Every
// build is recorded in the catalog with its parameters, the slides it kept,
// and its outcome.
//
// Stages are stamped into the context (download, calibrate, dedup, assemble)
// so log lines and progress callbacks can be correlated with the run ID.
package workflow
