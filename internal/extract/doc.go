// Package extract samples frames from a video with ffmpeg.
//
// Two frame sources are provided:
//   - StreamSource pipes raw RGB frames from a running ffmpeg process and
//     decodes them one at a time, so memory stays bounded by a single frame
//     regardless of video length.
//   - DirSource walks a directory of frame_NNNN.jpg files written by
//     ExtractToDir (or by hand) and decodes each file lazily.
//
// Both assign timestamps as index * interval, matching the fps=1/interval
// sampling ffmpeg performs.
package extract
