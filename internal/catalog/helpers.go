package catalog

import (
	"database/sql"
	"errors"
	"time"
)

const runColumns = "id, video_key, input, title, deck_dir, interval_seconds, threshold, auto_threshold, algorithm, hash_size, mode, status, frames, accepted, rejected, error_message, started_at, finished_at"

func scanRun(scanner interface{ Scan(dest ...any) error }) (*Run, error) {
	var (
		run         Run
		title       sql.NullString
		mode        sql.NullString
		status      string
		auto        int
		errorMsg    sql.NullString
		startedRaw  string
		finishedRaw sql.NullString
	)
	if err := scanner.Scan(
		&run.ID,
		&run.VideoKey,
		&run.Input,
		&title,
		&run.DeckDir,
		&run.IntervalSeconds,
		&run.Threshold,
		&auto,
		&run.Algorithm,
		&run.HashSize,
		&mode,
		&status,
		&run.Frames,
		&run.Accepted,
		&run.Rejected,
		&errorMsg,
		&startedRaw,
		&finishedRaw,
	); err != nil {
		return nil, err
	}
	run.Title = title.String
	run.Mode = mode.String
	run.Status = RunStatus(status)
	run.AutoThreshold = auto != 0
	run.ErrorMessage = errorMsg.String
	if started, err := parseTimeString(startedRaw); err == nil {
		run.StartedAt = started
	}
	if finishedRaw.Valid {
		if finished, err := parseTimeString(finishedRaw.String); err == nil {
			run.FinishedAt = &finished
		}
	}
	return &run, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}
