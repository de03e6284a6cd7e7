package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"vid2deck/internal/catalog"
	"vid2deck/internal/dedup"
	"vid2deck/internal/download"
	"vid2deck/internal/extract"
	"vid2deck/internal/logging"
	"vid2deck/internal/phash"
	"vid2deck/internal/services"
	"vid2deck/internal/slides"
	"vid2deck/internal/textutil"
)

// Build produces the deck for req.Input. The deck directory is locked for the
// duration of the build and cleared of a previous deck before slides are
// written.
func (r *Runner) Build(ctx context.Context, req Request) (Result, error) {
	started := r.now()
	if strings.TrimSpace(req.Input) == "" {
		return Result{}, services.Wrap(services.ErrValidation, "workflow", "build", "input is required", nil)
	}
	interval := r.cfg.Interval()
	if interval <= 0 {
		return Result{}, services.Wrap(services.ErrValidation, "workflow", "build", "interval must be positive", extract.ErrInvalidInterval)
	}
	hasher, err := NewHasher(r.cfg)
	if err != nil {
		return Result{}, services.Wrap(services.ErrConfiguration, "workflow", "build", "fingerprint settings", err)
	}
	if !r.cfg.Dedup.AutoThreshold {
		if err := dedup.ValidateThreshold(r.cfg.Dedup.Threshold, hasher.Bits()); err != nil {
			return Result{}, services.Wrap(services.ErrValidation, "workflow", "build", "threshold", err)
		}
	}
	if err := r.cfg.EnsureDirectories(); err != nil {
		return Result{}, services.Wrap(services.ErrConfiguration, "workflow", "build", "directories", err)
	}

	ctx = services.WithRequestID(ctx, uuid.NewString())
	dlCtx := services.WithStage(ctx, StageDownload)
	r.report(req, Progress{Stage: StageDownload})
	video, err := r.downloader.Resolve(dlCtx, req.Input, r.cfg.VideoCacheDir())
	if err != nil {
		logging.ErrorWithContext(logging.WithContext(dlCtx, r.logger), "input resolution failed", "download_failed",
			logging.Error(err),
			logging.String("input", req.Input),
			logging.String(logging.FieldErrorHint, "check the URL or path and that yt-dlp is installed"),
		)
		return Result{}, err
	}
	geo, err := extract.Probe(dlCtx, r.cfg.Extraction.FFprobeBinary, video.Path)
	if err != nil {
		return Result{}, err
	}
	if video.ID == "" && geo.Title != "" {
		video.Title = geo.Title
	}

	deckDir := filepath.Join(r.cfg.Paths.OutputDir, deckName(req.BaseName, video))
	lock, err := lockDeck(deckDir)
	if err != nil {
		return Result{}, err
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			r.logger.Warn("failed to release deck lock", logging.Error(err))
		}
	}()
	if err := clearDeck(deckDir); err != nil {
		return Result{}, err
	}

	runID, err := r.startRun(ctx, req, video, deckDir, hasher)
	if err != nil {
		return Result{}, err
	}
	ctx = services.WithRunID(ctx, runID)
	logger := logging.WithContext(ctx, r.logger)
	logger.Info("deck build started",
		logging.String(logging.FieldEventType, "build_start"),
		logging.String(logging.FieldVideoTitle, video.Title),
		logging.String(logging.FieldVideoID, video.ID),
		logging.String("deck_dir", deckDir),
		logging.Duration("interval", interval),
		logging.String("mode", r.cfg.Extraction.Mode),
	)

	result := Result{RunID: runID, Video: video, DeckDir: deckDir}
	if err := r.build(ctx, req, geo, hasher, &result); err != nil {
		r.failRun(ctx, runID, err)
		if !errors.Is(err, context.Canceled) {
			logging.ErrorWithContext(logging.WithContext(ctx, r.logger), "deck build failed", "build_failure",
				logging.Error(err),
				logging.Alert("build_failure"),
			)
		}
		return result, err
	}
	result.Elapsed = r.now().Sub(started)

	logger.Info("deck build completed",
		logging.String(logging.FieldEventType, "build_complete"),
		logging.Int(logging.FieldFrames, result.Summary.Frames),
		logging.Int(logging.FieldAccepted, result.Summary.Accepted),
		logging.Int(logging.FieldRejected, result.Summary.Rejected),
		logging.Int(logging.FieldThreshold, result.Summary.Threshold),
		logging.String("manifest", result.Manifest),
		logging.Duration(logging.FieldDuration, result.Elapsed),
	)
	return result, nil
}

func (r *Runner) build(ctx context.Context, req Request, geo extract.Geometry, hasher *phash.Hasher, result *Result) error {
	video := result.Video
	extractCtx := services.WithStage(ctx, StageExtract)
	feed, err := r.prepareFrames(extractCtx, video, geo, req.Refresh, logging.WithContext(extractCtx, r.logger))
	if err != nil {
		return err
	}

	threshold := r.cfg.Dedup.Threshold
	if r.cfg.Dedup.AutoThreshold {
		cal, err := r.calibrate(services.WithStage(ctx, StageCalibrate), req, feed, hasher)
		if err != nil {
			return err
		}
		result.Calibration = &cal
		threshold = cal.Threshold
	}
	engine, err := dedup.NewEngine(hasher, threshold)
	if err != nil {
		return services.Wrap(services.ErrValidation, "workflow", "dedup", "threshold", err)
	}

	dedupCtx := services.WithStage(ctx, StageDedup)
	logger := logging.WithContext(dedupCtx, r.logger)
	src := slides.Source{VideoID: video.ID, Title: video.Title, URL: video.URL}
	if video.ID == "" {
		src.LocalPath = video.Path
	}
	asm, err := slides.NewDirAssembler(result.DeckDir, src, slides.Options{
		ManifestFormat: r.cfg.Slides.ManifestFormat,
		ThumbnailWidth: r.cfg.Slides.ThumbnailWidth,
		JPEGQuality:    r.cfg.Slides.JPEGQuality,
		Title:          video.Title,
		Interval:       r.cfg.Interval(),
		Threshold:      threshold,
		Algorithm:      string(hasher.Algorithm()),
		Logger:         logger,
		Now:            r.now,
	})
	if err != nil {
		return err
	}

	source, err := feed.open(dedupCtx)
	if err != nil {
		return err
	}
	defer source.Close()

	sampler := logging.NewProgressSampler(10)
	done, accepted := 0, 0
	pipeline := &dedup.Pipeline{
		Engine:  engine,
		Workers: r.cfg.Dedup.Workers,
		Logger:  logger,
		OnDecision: func(d dedup.Decision) {
			done++
			if d.Accepted {
				accepted++
			}
			r.report(req, Progress{Stage: StageDedup, Done: done, Total: feed.total, Accepted: accepted})
			if sampler.ShouldLog(StageDedup, done, feed.total) {
				logger.Info("dedup progress",
					logging.Int(logging.FieldFrames, done),
					logging.Int("expected_frames", feed.total),
					logging.Int(logging.FieldAccepted, accepted),
				)
			}
		},
	}
	emit := func(ctx context.Context, d dedup.Decision) error {
		slide, err := asm.Add(ctx, d.Frame, d.Fingerprint)
		if err != nil {
			return err
		}
		if r.catalog == nil {
			return nil
		}
		return r.catalog.AddSlide(ctx, catalog.Slide{
			RunID:       result.RunID,
			Index:       slide.Index,
			Seconds:     d.Frame.Seconds(),
			Image:       slide.Image,
			Fingerprint: slide.Fingerprint,
			Link:        slide.Link,
		})
	}
	summary, err := pipeline.Run(dedupCtx, source, emit)
	result.Summary = summary
	if err != nil {
		return err
	}

	r.report(req, Progress{Stage: StageAssemble, Done: summary.Frames, Total: summary.Frames, Accepted: summary.Accepted})
	deck, err := asm.Close()
	if err != nil {
		return err
	}
	result.Deck = deck
	result.Manifest = filepath.Join(result.DeckDir, slides.ManifestName(r.cfg.Slides.ManifestFormat))
	r.logSpans(logger, summary)

	if r.catalog != nil {
		if err := r.catalog.CompleteRun(ctx, result.RunID, summary); err != nil {
			return fmt.Errorf("record run completion: %w", err)
		}
	}
	return nil
}

func (r *Runner) calibrate(ctx context.Context, req Request, feed *frameFeed, hasher *phash.Hasher) (dedup.Calibration, error) {
	logger := logging.WithContext(ctx, r.logger)
	src, err := feed.open(ctx)
	if err != nil {
		return dedup.Calibration{}, err
	}
	defer src.Close()
	counted := &countingSource{Source: src, fn: func(n int) {
		r.report(req, Progress{Stage: StageCalibrate, Done: n, Total: feed.total})
	}}
	cal, err := dedup.Calibrate(ctx, counted, hasher)
	if err != nil {
		return cal, err
	}
	reason := "half the mean distance between consecutive frames"
	if cal.Frames < 2 {
		reason = "fewer than two frames, using default"
	}
	logger.Info("auto-calculated threshold",
		logging.Args(append(logging.DecisionAttrs("threshold", strconv.Itoa(cal.Threshold), reason),
			logging.Int(logging.FieldFrames, cal.Frames),
			logging.Float64("mean_distance", cal.Mean),
			logging.Float64("stdev_distance", cal.Stdev),
		)...)...,
	)
	return cal, nil
}

func (r *Runner) logSpans(logger *slog.Logger, summary dedup.Summary) {
	if len(summary.Spans) == 0 {
		return
	}
	logger.Info("removed duplicate frames",
		logging.Int(logging.FieldRejected, summary.Rejected),
		logging.Int("spans", len(summary.Spans)),
	)
	for _, line := range formatSpans(summary.Spans) {
		logger.Info("duplicate spans", logging.String("spans", line))
	}
}

func (r *Runner) startRun(ctx context.Context, req Request, video download.Video, deckDir string, hasher *phash.Hasher) (string, error) {
	if r.catalog == nil {
		return uuid.NewString(), nil
	}
	if err := r.catalog.UpsertVideo(ctx, catalog.Video{
		Key:        video.Key(),
		YouTubeID:  video.ID,
		Title:      video.Title,
		URL:        video.URL,
		SourcePath: video.Path,
	}); err != nil {
		return "", fmt.Errorf("record video: %w", err)
	}
	run, err := r.catalog.StartRun(ctx, catalog.RunParams{
		VideoKey:        video.Key(),
		Input:           req.Input,
		Title:           video.Title,
		DeckDir:         deckDir,
		IntervalSeconds: r.cfg.Interval().Seconds(),
		Threshold:       r.cfg.Dedup.Threshold,
		AutoThreshold:   r.cfg.Dedup.AutoThreshold,
		Algorithm:       string(hasher.Algorithm()),
		HashSize:        hasher.Size(),
		Mode:            r.cfg.Extraction.Mode,
	})
	if err != nil {
		return "", fmt.Errorf("record run: %w", err)
	}
	return run.ID, nil
}

func (r *Runner) failRun(ctx context.Context, runID string, cause error) {
	if r.catalog == nil {
		return
	}
	// The build context may already be cancelled; the failure still belongs
	// in the catalog.
	if err := r.catalog.FailRun(context.WithoutCancel(ctx), runID, cause); err != nil {
		r.logger.Warn("failed to record run failure", logging.Error(err))
	}
}

func (r *Runner) report(req Request, p Progress) {
	if req.Progress != nil {
		req.Progress(p)
	}
}

// deckName picks the deck directory name: the explicit base name, else the
// video title, else the video key.
func deckName(base string, video download.Video) string {
	for _, candidate := range []string{base, video.Title} {
		if name := textutil.SanitizeFileName(candidate); name != "" {
			return name
		}
	}
	return video.Key()
}
