package workflow

import (
	"context"
	"log/slog"
	"time"

	"vid2deck/internal/catalog"
	"vid2deck/internal/config"
	"vid2deck/internal/dedup"
	"vid2deck/internal/download"
	"vid2deck/internal/logging"
	"vid2deck/internal/phash"
	"vid2deck/internal/slides"
)

// Stage names reported in progress events and log context.
const (
	StageDownload  = "download"
	StageExtract   = "extract"
	StageCalibrate = "calibrate"
	StageDedup     = "dedup"
	StageAssemble  = "assemble"
)

// Catalog is the subset of the catalog store a build records into.
type Catalog interface {
	download.TitleCache
	UpsertVideo(ctx context.Context, v catalog.Video) error
	StartRun(ctx context.Context, p catalog.RunParams) (*catalog.Run, error)
	AddSlide(ctx context.Context, slide catalog.Slide) error
	CompleteRun(ctx context.Context, id string, summary dedup.Summary) error
	FailRun(ctx context.Context, id string, cause error) error
}

// Progress is reported as frames move through a stage. Total is zero when
// the frame count is unknown.
type Progress struct {
	Stage    string
	Done     int
	Total    int
	Accepted int
}

// Request describes one deck build.
type Request struct {
	// Input is a local video path, a YouTube URL, or a bare video ID.
	Input string
	// BaseName names the deck directory; the video title is used when empty.
	BaseName string
	// Refresh re-extracts frames even when the frame cache is populated.
	Refresh bool
	// Progress, when set, is called for every frame. Calls never overlap.
	Progress func(Progress)
}

// Result describes a finished deck.
type Result struct {
	RunID       string
	Video       download.Video
	DeckDir     string
	Manifest    string
	Deck        slides.Deck
	Summary     dedup.Summary
	Calibration *dedup.Calibration
	Elapsed     time.Duration
}

// Runner builds decks with a fixed configuration.
type Runner struct {
	cfg        *config.Config
	catalog    Catalog
	downloader *download.Client
	logger     *slog.Logger
	now        func() time.Time
}

// RunnerOption configures optional Runner behavior.
type RunnerOption func(*Runner)

// WithCatalog records builds into store.
func WithCatalog(store Catalog) RunnerOption {
	return func(r *Runner) { r.catalog = store }
}

// WithClock overrides the time source used for manifests and elapsed times.
func WithClock(now func() time.Time) RunnerOption {
	return func(r *Runner) { r.now = now }
}

// NewRunner constructs a Runner for cfg.
func NewRunner(cfg *config.Config, logger *slog.Logger, opts ...RunnerOption) *Runner {
	r := &Runner{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "workflow"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.downloader = &download.Client{
		Binary:  cfg.Download.YtDlpBinary,
		Format:  cfg.Download.Format,
		Timeout: cfg.DownloadTimeout(),
		Logger:  logger,
	}
	if r.catalog != nil {
		r.downloader.Titles = r.catalog
	}
	return r
}

// NewHasher builds the fingerprinter selected by cfg.
func NewHasher(cfg *config.Config) (*phash.Hasher, error) {
	alg, err := phash.ParseAlgorithm(cfg.Dedup.Algorithm)
	if err != nil {
		return nil, err
	}
	return phash.NewHasher(alg, cfg.Dedup.HashSize)
}
