package dedup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"

	"vid2deck/internal/frame"
	"vid2deck/internal/logging"
	"vid2deck/internal/phash"
)

// EmitFunc receives each accepted decision in source order.
type EmitFunc func(ctx context.Context, d Decision) error

// Pipeline fingerprints frames concurrently and folds the results through the
// engine in source order.
type Pipeline struct {
	Engine *Engine
	// Workers is the number of fingerprinting goroutines. Values <= 1 run the
	// plain sequential loop.
	Workers int
	// OnDecision, when set, observes every decision in order.
	OnDecision func(Decision)
	Logger     *slog.Logger
}

type hashed struct {
	frame frame.Frame
	fp    phash.Fingerprint
	err   error
}

// Run drains src and returns the run summary. Frames in flight are bounded by
// roughly twice the worker count regardless of source length. The first
// error in source order stops the run; an exhausted source is not an error.
func (p *Pipeline) Run(ctx context.Context, src frame.Source, emit EmitFunc) (Summary, error) {
	if p.Engine == nil {
		return Summary{}, errors.New("dedup: pipeline has no engine")
	}
	logger := p.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	summary := Summary{Threshold: p.Engine.Threshold()}

	fold := func(ctx context.Context, h hashed) error {
		if h.err != nil {
			return h.err
		}
		d, err := p.Engine.Decide(h.frame, h.fp)
		if err != nil {
			return err
		}
		summary.Add(d)
		if logger.Enabled(ctx, slog.LevelDebug) {
			logger.DebugContext(ctx, "frame decided",
				logging.Int("frame", d.Frame.Index),
				logging.Duration(logging.FieldTimestamp, d.Frame.Timestamp),
				logging.Int(logging.FieldDistance, d.Distance),
				logging.Bool("accepted", d.Accepted),
				logging.String("fingerprint", d.Fingerprint.String()),
			)
		}
		if p.OnDecision != nil {
			p.OnDecision(d)
		}
		if d.Accepted && emit != nil {
			if err := emit(ctx, d); err != nil {
				return fmt.Errorf("emit frame %d: %w", d.Frame.Index, err)
			}
		}
		return nil
	}

	var err error
	if p.Workers <= 1 {
		err = p.runSequential(ctx, src, fold)
	} else {
		err = p.runParallel(ctx, src, fold)
	}
	return summary, err
}

func (p *Pipeline) runSequential(ctx context.Context, src frame.Source, fold func(context.Context, hashed) error) error {
	for {
		f, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fold(ctx, p.fingerprint(f)); err != nil {
			return err
		}
	}
}

func (p *Pipeline) runParallel(ctx context.Context, src frame.Source, fold func(context.Context, hashed) error) error {
	g, gctx := errgroup.WithContext(ctx)

	type job struct {
		frame frame.Frame
		out   chan<- hashed
	}
	jobs := make(chan job)
	// pending carries one result slot per frame in source order.
	pending := make(chan chan hashed, p.Workers)

	g.Go(func() error {
		defer close(jobs)
		defer close(pending)
		for {
			f, err := src.Next(gctx)
			if errors.Is(err, io.EOF) {
				return nil
			}
			out := make(chan hashed, 1)
			select {
			case pending <- out:
			case <-gctx.Done():
				return gctx.Err()
			}
			if err != nil {
				// Delivered in order so earlier frames still surface their own errors first.
				out <- hashed{err: err}
				return nil
			}
			select {
			case jobs <- job{frame: f, out: out}:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
	})

	for i := 0; i < p.Workers; i++ {
		g.Go(func() error {
			for j := range jobs {
				j.out <- p.fingerprint(j.frame)
			}
			return nil
		})
	}

	g.Go(func() error {
		for out := range pending {
			var h hashed
			select {
			case h = <-out:
			case <-gctx.Done():
				return gctx.Err()
			}
			if err := fold(gctx, h); err != nil {
				return err
			}
		}
		return nil
	})

	return g.Wait()
}

func (p *Pipeline) fingerprint(f frame.Frame) hashed {
	fp, err := p.Engine.Fingerprint(f.Image)
	if err != nil {
		return hashed{frame: f, err: fmt.Errorf("frame %d: %w", f.Index, err)}
	}
	return hashed{frame: f, fp: fp}
}

// Filter runs the full pipeline over src and returns the accepted frames. It
// materializes the result and is meant for short sequences.
func Filter(ctx context.Context, src frame.Source, fp Fingerprinter, threshold int) ([]frame.Frame, Summary, error) {
	engine, err := NewEngine(fp, threshold)
	if err != nil {
		return nil, Summary{}, err
	}
	var accepted []frame.Frame
	p := &Pipeline{Engine: engine, Workers: runtime.GOMAXPROCS(0)}
	summary, err := p.Run(ctx, src, func(_ context.Context, d Decision) error {
		accepted = append(accepted, d.Frame)
		return nil
	})
	return accepted, summary, err
}
