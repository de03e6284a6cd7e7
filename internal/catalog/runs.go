package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"vid2deck/internal/dedup"
)

// ErrAmbiguousRun is returned when a run ID prefix matches more than one run.
var ErrAmbiguousRun = errors.New("run id prefix is ambiguous")

var runIDPrefix = regexp.MustCompile(`^[0-9a-f-]+$`)

// StartRun records a new running deck build. The video row is created if it
// does not exist yet.
func (s *Store) StartRun(ctx context.Context, p RunParams) (*Run, error) {
	if strings.TrimSpace(p.VideoKey) == "" {
		return nil, errors.New("run video key is empty")
	}
	now := s.now().UTC()
	ts := formatTime(now)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin run tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO videos (key, title, created_at, updated_at) VALUES (?, ?, ?, ?)
         ON CONFLICT(key) DO NOTHING`,
		p.VideoKey, nullableString(p.Title), ts, ts,
	); err != nil {
		return nil, fmt.Errorf("ensure video: %w", err)
	}

	run := &Run{
		ID:              uuid.NewString(),
		VideoKey:        p.VideoKey,
		Input:           p.Input,
		Title:           p.Title,
		DeckDir:         p.DeckDir,
		IntervalSeconds: p.IntervalSeconds,
		Threshold:       p.Threshold,
		AutoThreshold:   p.AutoThreshold,
		Algorithm:       p.Algorithm,
		HashSize:        p.HashSize,
		Mode:            p.Mode,
		Status:          RunRunning,
		StartedAt:       now,
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (`+runColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, 0, 0, NULL, ?, NULL)`,
		run.ID,
		run.VideoKey,
		run.Input,
		nullableString(run.Title),
		run.DeckDir,
		run.IntervalSeconds,
		run.Threshold,
		boolToInt(run.AutoThreshold),
		run.Algorithm,
		run.HashSize,
		nullableString(run.Mode),
		string(run.Status),
		ts,
	); err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit run: %w", err)
	}
	return run, nil
}

// AddSlide records a retained frame for a run.
func (s *Store) AddSlide(ctx context.Context, slide Slide) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO slides (run_id, idx, seconds, image, fingerprint, link) VALUES (?, ?, ?, ?, ?, ?)`,
		slide.RunID,
		slide.Index,
		slide.Seconds,
		slide.Image,
		nullableString(slide.Fingerprint),
		nullableString(slide.Link),
	)
	if err != nil {
		return fmt.Errorf("insert slide %d: %w", slide.Index, err)
	}
	return nil
}

// CompleteRun marks a run completed with its final totals. The threshold is
// updated too since auto-calibrated runs only learn it mid-build.
func (s *Store) CompleteRun(ctx context.Context, id string, summary dedup.Summary) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, frames = ?, accepted = ?, rejected = ?, threshold = ?,
             error_message = NULL, finished_at = ?
         WHERE id = ?`,
		string(RunCompleted),
		summary.Frames,
		summary.Accepted,
		summary.Rejected,
		summary.Threshold,
		formatTime(s.now()),
		id,
	)
	if err != nil {
		return fmt.Errorf("complete run: %w", err)
	}
	return expectOneRow(res, id)
}

// FailRun marks a run failed with the error message.
func (s *Store) FailRun(ctx context.Context, id string, cause error) error {
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, error_message = ?, finished_at = ? WHERE id = ?`,
		string(RunFailed),
		msg,
		formatTime(s.now()),
		id,
	)
	if err != nil {
		return fmt.Errorf("fail run: %w", err)
	}
	return expectOneRow(res, id)
}

func expectOneRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("run %s not found", id)
	}
	return nil
}

// ListRuns returns the most recent runs first. A non-positive limit returns
// every run.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// GetRun fetches a run by full ID or unique prefix. It returns nil when
// nothing matches.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	id = strings.ToLower(strings.TrimSpace(id))
	if id == "" || !runIDPrefix.MatchString(id) {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE id = ? OR id LIKE ? ORDER BY id = ? DESC LIMIT 2`,
		id, id+"%", id,
	)
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	defer rows.Close()

	var matches []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		matches = append(matches, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	switch {
	case len(matches) == 0:
		return nil, nil
	case matches[0].ID == id, len(matches) == 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrAmbiguousRun, id)
	}
}

// Slides returns the slides recorded for a run in deck order.
func (s *Store) Slides(ctx context.Context, runID string) ([]Slide, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, idx, seconds, image, fingerprint, link FROM slides WHERE run_id = ? ORDER BY idx`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("list slides: %w", err)
	}
	defer rows.Close()

	var slides []Slide
	for rows.Next() {
		var (
			slide       Slide
			fingerprint sql.NullString
			link        sql.NullString
		)
		if err := rows.Scan(&slide.RunID, &slide.Index, &slide.Seconds, &slide.Image, &fingerprint, &link); err != nil {
			return nil, fmt.Errorf("scan slide: %w", err)
		}
		slide.Fingerprint = fingerprint.String
		slide.Link = link.String
		slides = append(slides, slide)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate slides: %w", err)
	}
	return slides, nil
}

// DeleteRun removes a run and its slides.
func (s *Store) DeleteRun(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	return expectOneRow(res, id)
}
