// Package config loads, normalizes, and validates vid2deck configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// VID2DECK_OUTPUT_DIR. The Config type centralizes every knob the CLI and the
// deck workflow need: where decks and caches live, how frames are sampled, and
// how aggressively near-duplicate frames are dropped.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
