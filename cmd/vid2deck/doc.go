// Command vid2deck turns a lecture or talk video into a slide deck.
//
// The build command downloads the video when given a YouTube URL or ID,
// samples frames with ffmpeg, drops frames whose perceptual fingerprint is
// within the duplicate threshold of the last kept frame, and writes the
// surviving frames plus a deck manifest into the output directory. Every build
// is recorded in a SQLite catalog that the runs and show commands read.
package main
