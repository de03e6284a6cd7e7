package extract

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"vid2deck/internal/frame"
	"vid2deck/internal/logging"
	"vid2deck/internal/services"
)

// StreamSource decodes frames piped from ffmpeg as rgb24 rawvideo.
type StreamSource struct {
	cmd      *exec.Cmd
	stdout   io.ReadCloser
	stderr   *tailBuffer
	width    int
	height   int
	interval time.Duration
	logger   *slog.Logger

	index int
	raw   []byte

	closeOnce sync.Once
	done      bool
}

var _ frame.Source = (*StreamSource)(nil)

// OpenStream probes path and starts ffmpeg sampling one frame per interval.
// The process lives until the stream is exhausted or Close is called.
func OpenStream(ctx context.Context, path string, opts Options) (*StreamSource, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	geo, err := Probe(ctx, opts.FFprobeBinary, path)
	if err != nil {
		return nil, err
	}
	return OpenProbed(ctx, path, geo, opts)
}

// OpenProbed starts the stream for a video already probed by the caller.
func OpenProbed(ctx context.Context, path string, geo Geometry, opts Options) (*StreamSource, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if geo.Width <= 0 || geo.Height <= 0 {
		return nil, services.Wrap(services.ErrValidation, "extract", "open stream", fmt.Sprintf("invalid frame size %dx%d", geo.Width, geo.Height), nil)
	}
	width, height := scaledSize(geo.Width, geo.Height, opts.MaxWidth)
	return startStream(ctx, path, width, height, opts)
}

func streamArgs(path string, width, height int, interval time.Duration) []string {
	filter := fpsFilter(interval) + ",scale=" + strconv.Itoa(width) + ":" + strconv.Itoa(height)
	return []string{
		"-nostdin", "-hide_banner", "-loglevel", "error",
		"-i", path,
		"-an", "-sn",
		"-vf", filter,
		"-f", "rawvideo", "-pix_fmt", "rgb24",
		"pipe:1",
	}
}

func startStream(ctx context.Context, path string, width, height int, opts Options) (*StreamSource, error) {
	logger := logging.NewComponentLogger(opts.Logger, "extract")
	args := streamArgs(path, width, height, opts.Interval)
	cmd := exec.CommandContext(ctx, opts.ffmpeg(), args...)
	stderr := &tailBuffer{limit: 4096}
	cmd.Stderr = stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "extract", "start ffmpeg", opts.ffmpeg(), err)
	}
	logger.Debug("ffmpeg stream started",
		logging.String("input", path),
		logging.Int("width", width),
		logging.Int("height", height),
		logging.Duration("interval", opts.Interval),
	)
	return &StreamSource{
		cmd:      cmd,
		stdout:   stdout,
		stderr:   stderr,
		width:    width,
		height:   height,
		interval: opts.Interval,
		logger:   logger,
		raw:      make([]byte, width*height*3),
	}, nil
}

// Size returns the frame dimensions.
func (s *StreamSource) Size() (int, int) { return s.width, s.height }

// Next reads and decodes the next frame. It returns io.EOF once ffmpeg has
// exited cleanly after its last complete frame.
func (s *StreamSource) Next(ctx context.Context) (frame.Frame, error) {
	if err := ctx.Err(); err != nil {
		return frame.Frame{}, err
	}
	if s.done {
		return frame.Frame{}, io.EOF
	}
	n, err := io.ReadFull(s.stdout, s.raw)
	switch {
	case errors.Is(err, io.EOF):
		s.done = true
		if werr := s.wait(); werr != nil {
			return frame.Frame{}, werr
		}
		return frame.Frame{}, io.EOF
	case errors.Is(err, io.ErrUnexpectedEOF):
		s.done = true
		werr := s.wait()
		return frame.Frame{}, services.Wrap(services.ErrExternalTool, "extract", "read frame",
			fmt.Sprintf("truncated frame %d (%d of %d bytes)", s.index, n, len(s.raw)), errors.Join(err, werr))
	case err != nil:
		return frame.Frame{}, fmt.Errorf("read frame %d: %w", s.index, err)
	}

	img := image.NewRGBA(image.Rect(0, 0, s.width, s.height))
	for i, j := 0, 0; i < len(s.raw); i, j = i+3, j+4 {
		img.Pix[j] = s.raw[i]
		img.Pix[j+1] = s.raw[i+1]
		img.Pix[j+2] = s.raw[i+2]
		img.Pix[j+3] = 0xff
	}
	f := frame.Frame{
		Index:     s.index,
		Timestamp: time.Duration(s.index) * s.interval,
		Image:     img,
	}
	s.index++
	return f, nil
}

func (s *StreamSource) wait() error {
	var err error
	s.closeOnce.Do(func() {
		if werr := s.cmd.Wait(); werr != nil {
			err = services.Wrap(services.ErrExternalTool, "extract", "ffmpeg", s.stderr.String(), werr)
		}
	})
	return err
}

// Close stops ffmpeg if it is still running and reaps it.
func (s *StreamSource) Close() error {
	s.closeOnce.Do(func() {
		if s.cmd.Process != nil {
			_ = s.cmd.Process.Kill()
		}
		_ = s.cmd.Wait()
		s.logger.Debug("ffmpeg stream closed", logging.Int("frames", s.index))
	})
	s.done = true
	return nil
}
