// Package logs reads back the JSON log file written next to every build.
//
// Tail returns the last N records or the records appended after an offset,
// optionally waiting for new ones, and can narrow the output to a single run
// by matching the run_id field. The logs command uses it to show what a past
// build did without re-running it.
package logs
