package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"vid2deck/internal/config"
	"vid2deck/internal/download"
	"vid2deck/internal/extract"
	"vid2deck/internal/frame"
	"vid2deck/internal/logging"
	"vid2deck/internal/services"
)

// frameFeed reopens the sampled frames of one video. Auto thresholds read
// the frames twice.
type frameFeed struct {
	total int
	open  func(ctx context.Context) (frame.Source, error)
}

func (r *Runner) extractOptions(logger *slog.Logger) extract.Options {
	return extract.Options{
		FFmpegBinary:  r.cfg.Extraction.FFmpegBinary,
		FFprobeBinary: r.cfg.Extraction.FFprobeBinary,
		Interval:      r.cfg.Interval(),
		MaxWidth:      r.cfg.Extraction.MaxWidth,
		Logger:        logger,
	}
}

func (r *Runner) prepareFrames(ctx context.Context, video download.Video, geo extract.Geometry, refresh bool, logger *slog.Logger) (*frameFeed, error) {
	opts := r.extractOptions(logger)
	switch r.cfg.Extraction.Mode {
	case config.ModeFiles:
		dir := r.cfg.FrameCacheDir(frameCacheKey(video, opts))
		if refresh || !extract.HasFrames(dir) {
			if err := extract.ClearFrames(dir); err != nil {
				return nil, fmt.Errorf("clear frame cache: %w", err)
			}
			if _, err := extract.ExtractToDir(ctx, video.Path, dir, opts); err != nil {
				return nil, err
			}
		} else {
			logger.Info("using cached frames",
				logging.String("dir", dir),
				logging.String(logging.FieldDecisionType, "frame_cache"),
			)
		}
		probe, err := extract.OpenDir(dir, opts.Interval)
		if err != nil {
			return nil, err
		}
		return &frameFeed{
			total: probe.Len(),
			open: func(context.Context) (frame.Source, error) {
				return extract.OpenDir(dir, opts.Interval)
			},
		}, nil
	case config.ModeStream, "":
		return &frameFeed{
			total: geo.ExpectedFrames(opts.Interval),
			open: func(ctx context.Context) (frame.Source, error) {
				return extract.OpenProbed(ctx, video.Path, geo, opts)
			},
		}, nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, "workflow", "open frames",
			"unknown extraction mode "+strconv.Quote(r.cfg.Extraction.Mode), nil)
	}
}

// frameCacheKey separates cached frames by sampling parameters.
func frameCacheKey(video download.Video, opts extract.Options) string {
	key := video.Key() + "_" + strconv.FormatFloat(opts.Interval.Seconds(), 'f', -1, 64) + "s"
	if opts.MaxWidth > 0 {
		key += "_w" + strconv.Itoa(opts.MaxWidth)
	}
	return key
}

// countingSource reports every frame read to fn.
type countingSource struct {
	frame.Source
	n  int
	fn func(n int)
}

func (c *countingSource) Next(ctx context.Context) (frame.Frame, error) {
	f, err := c.Source.Next(ctx)
	if err == nil {
		c.n++
		if c.fn != nil {
			c.fn(c.n)
		}
	}
	return f, err
}
