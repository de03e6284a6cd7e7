package download

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"vid2deck/internal/fileutil"
	"vid2deck/internal/logging"
	"vid2deck/internal/services"
	"vid2deck/internal/textutil"
)

// DefaultFormat selects the best video and audio streams, falling back to the
// best single file.
const DefaultFormat = "bestvideo+bestaudio/best"

// ErrUnsupportedInput marks inputs that are neither a readable local file nor
// a recognizable YouTube reference.
var ErrUnsupportedInput = errors.New("input is not a local file or YouTube video")

var (
	bareIDPattern  = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)
	embeddedIDExpr = regexp.MustCompile(`(?:v=|/)([A-Za-z0-9_-]{11})(?:[&?/#]|$)`)
)

// ExtractVideoID returns the 11 character YouTube ID referenced by input, or
// "" when none is found.
func ExtractVideoID(input string) string {
	input = strings.TrimSpace(input)
	if bareIDPattern.MatchString(input) {
		return input
	}
	if m := embeddedIDExpr.FindStringSubmatch(input); m != nil {
		return m[1]
	}
	return ""
}

// Video is a resolved input ready for frame extraction.
type Video struct {
	ID       string
	Title    string
	URL      string
	Path     string
	Cached   bool
	// Revision distinguishes local files that share a name, or one file
	// rewritten in place. Empty for downloads.
	Revision string
}

// Key identifies the video in caches: its YouTube ID, or a slug of the local
// file name followed by its revision.
func (v Video) Key() string {
	if v.ID != "" {
		return v.ID
	}
	slug := textutil.Slug(strings.TrimSuffix(filepath.Base(v.Path), filepath.Ext(v.Path)))
	if v.Revision == "" {
		return slug
	}
	if slug == "" {
		return v.Revision
	}
	return slug + "-" + v.Revision
}

// localRevision hashes the absolute path, size and modification time of a
// local file.
func localRevision(abs string, info os.FileInfo) string {
	h := sha256.New()
	h.Write([]byte(abs))
	h.Write([]byte{'|'})
	h.Write([]byte(strconv.FormatInt(info.Size(), 10)))
	h.Write([]byte{'|'})
	h.Write([]byte(strconv.FormatInt(info.ModTime().UnixNano(), 10)))
	return hex.EncodeToString(h.Sum(nil))[:12]
}

// WatchURL returns the canonical YouTube watch URL for id.
func WatchURL(id string) string {
	return "https://www.youtube.com/watch?v=" + id
}

// TitleCache remembers titles so cached downloads skip the metadata call.
type TitleCache interface {
	LookupTitle(ctx context.Context, videoID string) (string, bool, error)
	RememberTitle(ctx context.Context, videoID, title string) error
}

// Client wraps the yt-dlp binary.
type Client struct {
	Binary  string
	Format  string
	Timeout time.Duration
	Titles  TitleCache
	Logger  *slog.Logger
}

func (c *Client) binary() string {
	if b := strings.TrimSpace(c.Binary); b != "" {
		return b
	}
	return "yt-dlp"
}

func (c *Client) format() string {
	if f := strings.TrimSpace(c.Format); f != "" {
		return f
	}
	return DefaultFormat
}

// Resolve returns a local video for input, downloading into dir when input
// references a YouTube video.
func (c *Client) Resolve(ctx context.Context, input, dir string) (Video, error) {
	if video, ok, err := ResolveLocal(input); ok || err != nil {
		return video, err
	}
	return c.Fetch(ctx, input, dir)
}

// ResolveLocal reports whether input names an existing local file and, if so,
// describes it. The title is derived from the file name.
func ResolveLocal(input string) (Video, bool, error) {
	path := strings.TrimSpace(input)
	if path == "" {
		return Video{}, false, services.Wrap(services.ErrValidation, "download", "resolve", "empty input", nil)
	}
	path = strings.TrimPrefix(path, "file://")
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Video{}, false, nil
		}
		return Video{}, false, fmt.Errorf("stat input: %w", err)
	}
	if info.IsDir() {
		return Video{}, false, services.Wrap(services.ErrValidation, "download", "resolve", path+" is a directory", nil)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return Video{}, false, fmt.Errorf("resolve input path: %w", err)
	}
	return Video{Path: abs, Title: textutil.TitleFromPath(abs), Revision: localRevision(abs, info)}, true, nil
}

// Fetch downloads the YouTube video referenced by input into dir as
// <id>.mp4. When that file already exists and its title is cached, yt-dlp is
// not invoked at all.
func (c *Client) Fetch(ctx context.Context, input, dir string) (Video, error) {
	id := ExtractVideoID(input)
	if id == "" {
		return Video{}, services.Wrap(services.ErrValidation, "download", "parse input", input, ErrUnsupportedInput)
	}
	logger := logging.NewComponentLogger(c.Logger, "download").With(logging.String(logging.FieldVideoID, id))
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	video := Video{ID: id, URL: WatchURL(id), Path: filepath.Join(dir, id+".mp4")}
	if c.Titles != nil {
		title, ok, err := c.Titles.LookupTitle(ctx, id)
		if err != nil {
			logger.Warn("title cache lookup failed",
				logging.Error(err),
				logging.String(logging.FieldEventType, "title_cache_lookup_failed"),
				logging.String(logging.FieldErrorHint, "check the catalog database"),
				logging.String(logging.FieldImpact, "metadata will be fetched again"),
			)
		}
		if ok && fileutil.Exists(video.Path) {
			video.Title = title
			video.Cached = true
			logger.Info("using cached download",
				logging.String(logging.FieldVideoTitle, title),
				logging.String("path", video.Path),
			)
			return video, nil
		}
	}

	meta, err := c.metadata(ctx, video.URL)
	if err != nil {
		return Video{}, err
	}
	video.Title = meta.Title
	if c.Titles != nil && meta.Title != "" {
		if err := c.Titles.RememberTitle(ctx, id, meta.Title); err != nil {
			logger.Warn("title cache update failed",
				logging.Error(err),
				logging.String(logging.FieldEventType, "title_cache_update_failed"),
				logging.String(logging.FieldErrorHint, "check the catalog database"),
			)
		}
	}

	if fileutil.Exists(video.Path) {
		video.Cached = true
		logger.Info("using cached download", logging.String("path", video.Path))
		return video, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Video{}, fmt.Errorf("create download directory: %w", err)
	}
	started := time.Now()
	logger.Info("downloading video", logging.String(logging.FieldVideoTitle, video.Title))
	if err := c.download(ctx, video.URL, video.Path); err != nil {
		return Video{}, err
	}
	if !fileutil.Exists(video.Path) {
		return Video{}, services.Wrap(services.ErrExternalTool, "download", "yt-dlp", "no file written at "+video.Path, nil)
	}
	logger.Info("video downloaded",
		logging.String("path", video.Path),
		logging.Duration(logging.FieldDuration, time.Since(started)),
	)
	return video, nil
}

type metadata struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Duration float64 `json:"duration"`
	Uploader string  `json:"uploader"`
}

func (c *Client) metadata(ctx context.Context, url string) (metadata, error) {
	out, err := c.run(ctx, "metadata", "--dump-single-json", "--no-download", "--no-warnings", url)
	if err != nil {
		return metadata{}, err
	}
	var meta metadata
	if err := json.Unmarshal(out, &meta); err != nil {
		return metadata{}, services.Wrap(services.ErrExternalTool, "download", "parse metadata", url, err)
	}
	return meta, nil
}

func (c *Client) download(ctx context.Context, url, path string) error {
	_, err := c.run(ctx, "download",
		"-f", c.format(),
		"--merge-output-format", "mp4",
		"--no-progress", "--no-warnings",
		"-o", path,
		url,
	)
	return err
}

func (c *Client) run(ctx context.Context, op string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, c.binary(), args...)
	out, err := cmd.Output()
	if err == nil {
		return out, nil
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, services.Wrap(services.ErrTimeout, "download", op, "yt-dlp timed out", ctx.Err())
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	detail := "yt-dlp failed"
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if msg := strings.TrimSpace(string(exitErr.Stderr)); msg != "" {
			detail = msg
		}
	}
	return nil, services.Wrap(services.ErrExternalTool, "download", op, detail, err)
}
