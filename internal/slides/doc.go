// Package slides turns accepted frames into a deck on disk.
//
// Each slide is a JPEG named after its timestamp (h-mm-ss.jpg) plus an entry
// in a deck manifest (deck.json or deck.yaml) carrying the human-readable
// timestamp, a deep link back into the source video at that moment, and the
// frame fingerprint. Optional thumbnails are written to thumbs/.
//
// The assembler never re-encodes frames that already exist on disk as JPEG;
// it copies the original bytes instead.
package slides
