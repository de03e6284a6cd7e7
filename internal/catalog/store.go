package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Store manages catalog persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// Open initializes or connects to the catalog database at path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("catalog path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create catalog directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// Connection-scoped pragmas below must hold for every statement.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path, now: time.Now}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// UpsertVideo inserts or refreshes a video. Empty fields never overwrite
// values already stored.
func (s *Store) UpsertVideo(ctx context.Context, v Video) error {
	if strings.TrimSpace(v.Key) == "" {
		return errors.New("video key is empty")
	}
	ts := formatTime(s.now())
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO videos (key, youtube_id, title, url, source_path, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(key) DO UPDATE SET
             youtube_id = COALESCE(excluded.youtube_id, videos.youtube_id),
             title = COALESCE(excluded.title, videos.title),
             url = COALESCE(excluded.url, videos.url),
             source_path = COALESCE(excluded.source_path, videos.source_path),
             updated_at = excluded.updated_at`,
		v.Key,
		nullableString(v.YouTubeID),
		nullableString(v.Title),
		nullableString(v.URL),
		nullableString(v.SourcePath),
		ts,
		ts,
	)
	if err != nil {
		return fmt.Errorf("upsert video: %w", err)
	}
	return nil
}

// GetVideo fetches a video by key. It returns nil when the key is unknown.
func (s *Store) GetVideo(ctx context.Context, key string) (*Video, error) {
	var (
		v          Video
		youtubeID  sql.NullString
		title      sql.NullString
		url        sql.NullString
		sourcePath sql.NullString
		createdRaw string
		updatedRaw string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT key, youtube_id, title, url, source_path, created_at, updated_at FROM videos WHERE key = ?`, key,
	).Scan(&v.Key, &youtubeID, &title, &url, &sourcePath, &createdRaw, &updatedRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get video: %w", err)
	}
	v.YouTubeID = youtubeID.String
	v.Title = title.String
	v.URL = url.String
	v.SourcePath = sourcePath.String
	v.CreatedAt, _ = parseTimeString(createdRaw)
	v.UpdatedAt, _ = parseTimeString(updatedRaw)
	return &v, nil
}

// LookupTitle returns the remembered title for a YouTube video.
func (s *Store) LookupTitle(ctx context.Context, videoID string) (string, bool, error) {
	var title sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT title FROM videos WHERE key = ?`, videoID).Scan(&title)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("lookup title: %w", err)
	}
	if !title.Valid || title.String == "" {
		return "", false, nil
	}
	return title.String, true, nil
}

// RememberTitle stores the title of a YouTube video.
func (s *Store) RememberTitle(ctx context.Context, videoID, title string) error {
	return s.UpsertVideo(ctx, Video{Key: videoID, YouTubeID: videoID, Title: title})
}

// Stats counts videos, runs by status, and slides.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{Runs: map[RunStatus]int{}}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM videos`).Scan(&stats.Videos); err != nil {
		return Stats{}, fmt.Errorf("count videos: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM slides`).Scan(&stats.Slides); err != nil {
		return Stats{}, fmt.Errorf("count slides: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM runs GROUP BY status`)
	if err != nil {
		return Stats{}, fmt.Errorf("count runs: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return Stats{}, fmt.Errorf("scan run counts: %w", err)
		}
		stats.Runs[RunStatus(status)] = count
	}
	if err := rows.Err(); err != nil {
		return Stats{}, fmt.Errorf("iterate run counts: %w", err)
	}
	return stats, nil
}
