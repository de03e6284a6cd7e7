// Package download resolves build inputs to a local video file.
//
// YouTube URLs and bare video IDs are fetched with yt-dlp into a cache
// directory keyed by video ID; repeat builds reuse the cached file and the
// title remembered by a TitleCache. Local paths bypass yt-dlp entirely.
package download
