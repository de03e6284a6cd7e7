package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"time"

	"vid2deck/internal/frame"
	"vid2deck/internal/logging"
	"vid2deck/internal/phash"
	"vid2deck/internal/services"
)

// framePattern matches files written by ExtractToDir.
var framePattern = regexp.MustCompile(`^frame_(\d+)\.(?i:jpe?g|png)$`)

// FramePattern is the ffmpeg output template used by ExtractToDir.
const FramePattern = "frame_%04d.jpg"

func extractArgs(path, dir string, opts Options) []string {
	filter := fpsFilter(opts.Interval)
	if opts.MaxWidth > 0 {
		filter += ",scale='min(" + strconv.Itoa(opts.MaxWidth) + ",iw)':-2"
	}
	return []string{
		"-nostdin", "-hide_banner", "-loglevel", "error", "-y",
		"-i", path,
		"-an", "-sn",
		"-vf", filter,
		"-q:v", "2",
		filepath.Join(dir, FramePattern),
	}
}

// ExtractToDir writes one JPEG per interval into dir and returns how many
// frames it holds afterwards.
func ExtractToDir(ctx context.Context, path, dir string, opts Options) (int, error) {
	if err := opts.validate(); err != nil {
		return 0, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("create frame directory: %w", err)
	}
	logger := logging.NewComponentLogger(opts.Logger, "extract")
	cmd := exec.CommandContext(ctx, opts.ffmpeg(), extractArgs(path, dir, opts)...)
	stderr := &tailBuffer{limit: 4096}
	cmd.Stderr = stderr
	started := time.Now()
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, ctxErr
		}
		return 0, services.Wrap(services.ErrExternalTool, "extract", "ffmpeg", stderr.String(), err)
	}
	files, err := listFrames(dir)
	if err != nil {
		return 0, err
	}
	logger.Info("frames extracted",
		logging.Int(logging.FieldFrames, len(files)),
		logging.String("dir", dir),
		logging.Duration(logging.FieldDuration, time.Since(started)),
	)
	return len(files), nil
}

type frameFile struct {
	path string
	num  int
}

func listFrames(dir string) ([]frameFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read frame directory: %w", err)
	}
	var files []frameFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m := framePattern.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		num, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		files = append(files, frameFile{path: filepath.Join(dir, entry.Name()), num: num})
	}
	sort.Slice(files, func(i, j int) bool {
		if files[i].num != files[j].num {
			return files[i].num < files[j].num
		}
		return files[i].path < files[j].path
	})
	return files, nil
}

// DirSource decodes frame_NNNN images from a directory in numeric order.
type DirSource struct {
	files    []frameFile
	interval time.Duration
	pos      int
}

var _ frame.Source = (*DirSource)(nil)

// OpenDir lists the frames in dir. Decoding happens lazily in Next.
func OpenDir(dir string, interval time.Duration) (*DirSource, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("interval %s: %w", interval, ErrInvalidInterval)
	}
	files, err := listFrames(dir)
	if err != nil {
		return nil, err
	}
	return &DirSource{files: files, interval: interval}, nil
}

// Len returns the number of frames in the directory.
func (d *DirSource) Len() int { return len(d.files) }

// Next decodes the next frame. Undecodable files fail with phash.ErrImageDecode.
func (d *DirSource) Next(ctx context.Context) (frame.Frame, error) {
	if err := ctx.Err(); err != nil {
		return frame.Frame{}, err
	}
	if d.pos >= len(d.files) {
		return frame.Frame{}, io.EOF
	}
	file := d.files[d.pos]
	img, err := phash.DecodeFile(file.path)
	if err != nil {
		return frame.Frame{}, err
	}
	f := frame.Frame{
		Index:     d.pos,
		Timestamp: time.Duration(d.pos) * d.interval,
		Image:     img,
		Path:      file.path,
	}
	d.pos++
	return f, nil
}

// Close is a no-op; files are opened and closed per frame.
func (d *DirSource) Close() error { return nil }

// HasFrames reports whether dir already holds extracted frames.
func HasFrames(dir string) bool {
	files, err := listFrames(dir)
	return err == nil && len(files) > 0
}

// ClearFrames removes extracted frame files from dir, leaving anything else.
func ClearFrames(dir string) error {
	files, err := listFrames(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	for _, f := range files {
		if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

