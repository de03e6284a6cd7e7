// Package catalog records processed videos, deck build runs and the slides
// each run kept, in a local SQLite database.
//
// The catalog doubles as the title cache for downloads so rebuilding a deck
// for a cached video needs no network round trip. Runs carry the parameters
// they were built with and their frame totals, which back the runs and show
// commands.
//
// Schema changes bump schemaVersion in schema.go; an older database is
// rejected with ErrSchemaMismatch and must be deleted.
package catalog
