package workflow_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/gofrs/flock"

	"vid2deck/internal/catalog"
	"vid2deck/internal/config"
	"vid2deck/internal/dedup"
	"vid2deck/internal/logging"
	"vid2deck/internal/services"
	"vid2deck/internal/testsupport"
	"vid2deck/internal/workflow"
)

const ffprobeStub = `echo '{"streams":[{"codec_type":"video","width":8,"height":8}],"format":{"duration":"10.0"}}'
`

// ffmpegStreamStub emits five 8x8 rgb24 frames: A A B B A, where A is dark on
// the left and B is bright on top.
const ffmpegStreamStub = `a() { for i in 1 2 3 4 5 6 7 8; do head -c 12 /dev/zero; head -c 12 /dev/zero | tr '\000' '\377'; done; }
b() { head -c 96 /dev/zero | tr '\000' '\377'; head -c 96 /dev/zero; }
a; a; b; b; a
`

// ffmpegFilesStub copies $FRAME_A and $FRAME_B into the output directory in
// the order A A B B A and counts its invocations in $FFMPEG_CALLS.
const ffmpegFilesStub = `echo run >> "$FFMPEG_CALLS"
for arg in "$@"; do out="$arg"; done
dir=$(dirname "$out")
cp "$FRAME_A" "$dir/frame_0001.jpg"
cp "$FRAME_A" "$dir/frame_0002.jpg"
cp "$FRAME_B" "$dir/frame_0003.jpg"
cp "$FRAME_B" "$dir/frame_0004.jpg"
cp "$FRAME_A" "$dir/frame_0005.jpg"
`

func writeVideo(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("not really a video"), 0o644); err != nil {
		t.Fatalf("write video: %v", err)
	}
	return path
}

func TestBuildStreamModeLocalFile(t *testing.T) {
	cfg := testsupport.NewConfig(t,
		testsupport.WithThreshold(5),
		testsupport.WithMode(config.ModeStream),
		testsupport.WithScript("ffprobe", ffprobeStub),
		testsupport.WithScript("ffmpeg", ffmpegStreamStub),
	)
	store := testsupport.MustOpenCatalog(t, cfg)
	runner := workflow.NewRunner(cfg, logging.NewNop(), workflow.WithCatalog(store))

	var (
		mu     sync.Mutex
		events []workflow.Progress
	)
	video := writeVideo(t, "intro_lecture.mp4")
	result, err := runner.Build(context.Background(), workflow.Request{
		Input: video,
		Progress: func(p workflow.Progress) {
			mu.Lock()
			events = append(events, p)
			mu.Unlock()
		},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if result.Summary.Frames != 5 || result.Summary.Accepted != 3 || result.Summary.Rejected != 2 {
		t.Fatalf("unexpected summary: %+v", result.Summary)
	}
	if len(result.Summary.Spans) != 2 {
		t.Fatalf("expected two duplicate spans, got %+v", result.Summary.Spans)
	}
	if filepath.Base(result.DeckDir) != "Intro Lecture" {
		t.Fatalf("deck dir = %s", result.DeckDir)
	}
	wantImages := []string{"0-00-00.jpg", "0-00-04.jpg", "0-00-08.jpg"}
	if len(result.Deck.Slides) != len(wantImages) {
		t.Fatalf("slides = %+v", result.Deck.Slides)
	}
	for i, slide := range result.Deck.Slides {
		if slide.Image != wantImages[i] {
			t.Fatalf("slide %d image = %s, want %s", i, slide.Image, wantImages[i])
		}
		if _, err := os.Stat(filepath.Join(result.DeckDir, slide.Image)); err != nil {
			t.Fatalf("slide image missing: %v", err)
		}
	}
	if link := result.Deck.Slides[1].Link; !strings.HasPrefix(link, "file://") || !strings.HasSuffix(link, "#t=4") {
		t.Fatalf("local link = %s", link)
	}
	if _, err := os.Stat(result.Manifest); err != nil {
		t.Fatalf("manifest missing: %v", err)
	}

	run, err := store.GetRun(context.Background(), result.RunID)
	if err != nil || run == nil {
		t.Fatalf("GetRun: %v %v", run, err)
	}
	if run.Status != catalog.RunCompleted || run.Accepted != 3 || run.Frames != 5 {
		t.Fatalf("unexpected catalog run: %+v", run)
	}
	recorded, err := store.Slides(context.Background(), result.RunID)
	if err != nil || len(recorded) != 3 {
		t.Fatalf("catalog slides = %d %v", len(recorded), err)
	}

	mu.Lock()
	defer mu.Unlock()
	var last workflow.Progress
	for _, p := range events {
		if p.Stage == workflow.StageDedup {
			last = p
		}
	}
	if last.Done != 5 || last.Total != 5 || last.Accepted != 3 {
		t.Fatalf("last dedup progress = %+v", last)
	}
}

func TestBuildAutoThresholdReusesFrameCache(t *testing.T) {
	fixtures := t.TempDir()
	frameA := filepath.Join(fixtures, "a.jpg")
	frameB := filepath.Join(fixtures, "b.jpg")
	testsupport.WriteImage(t, frameA, testsupport.Checkerboard(64, 64, 8, 30, 220))
	testsupport.WriteImage(t, frameB, testsupport.Split(64, 64, 0, 255))
	calls := filepath.Join(t.TempDir(), "ffmpeg-calls")
	t.Setenv("FRAME_A", frameA)
	t.Setenv("FRAME_B", frameB)
	t.Setenv("FFMPEG_CALLS", calls)

	cfg := testsupport.NewConfig(t,
		testsupport.WithMode(config.ModeFiles),
		testsupport.WithScript("ffprobe", ffprobeStub),
		testsupport.WithScript("ffmpeg", ffmpegFilesStub),
	)
	cfg.Dedup.AutoThreshold = true
	cfg.Slides.ThumbnailWidth = 16
	runner := workflow.NewRunner(cfg, logging.NewNop())
	video := writeVideo(t, "talk.mp4")

	for attempt := 1; attempt <= 2; attempt++ {
		result, err := runner.Build(context.Background(), workflow.Request{Input: video, BaseName: "deck"})
		if err != nil {
			t.Fatalf("Build attempt %d: %v", attempt, err)
		}
		if result.Calibration == nil || result.Calibration.Frames != 5 {
			t.Fatalf("calibration = %+v", result.Calibration)
		}
		if result.Summary.Threshold != result.Calibration.Threshold || result.Summary.Threshold < 1 {
			t.Fatalf("threshold %d does not match calibration %+v", result.Summary.Threshold, result.Calibration)
		}
		if result.Summary.Accepted != 3 {
			t.Fatalf("accepted = %d", result.Summary.Accepted)
		}
		// Slides are copied from the cached JPEG frames.
		if got := result.Deck.Slides[0].Thumbnail; got != filepath.Join("thumbs", "0-00-00.jpg") {
			t.Fatalf("thumbnail = %q", got)
		}
	}

	data, err := os.ReadFile(calls)
	if err != nil {
		t.Fatalf("read ffmpeg calls: %v", err)
	}
	if n := strings.Count(string(data), "run"); n != 1 {
		t.Fatalf("ffmpeg should run once with a warm frame cache, ran %d times", n)
	}
}

func TestBuildSeparatesFrameCacheForSameNamedFiles(t *testing.T) {
	fixtures := t.TempDir()
	frameA := filepath.Join(fixtures, "a.jpg")
	frameB := filepath.Join(fixtures, "b.jpg")
	testsupport.WriteImage(t, frameA, testsupport.Checkerboard(64, 64, 8, 30, 220))
	testsupport.WriteImage(t, frameB, testsupport.Split(64, 64, 0, 255))
	calls := filepath.Join(t.TempDir(), "ffmpeg-calls")
	t.Setenv("FRAME_A", frameA)
	t.Setenv("FRAME_B", frameB)
	t.Setenv("FFMPEG_CALLS", calls)

	cfg := testsupport.NewConfig(t,
		testsupport.WithThreshold(5),
		testsupport.WithMode(config.ModeFiles),
		testsupport.WithScript("ffprobe", ffprobeStub),
		testsupport.WithScript("ffmpeg", ffmpegFilesStub),
	)
	runner := workflow.NewRunner(cfg, logging.NewNop())
	first := writeVideo(t, "talk.mp4")
	second := writeVideo(t, "talk.mp4")

	builds := []struct {
		input string
		base  string
	}{
		{first, "first"},
		{second, "second"},
		{first, "first"},
	}
	for _, b := range builds {
		if _, err := runner.Build(context.Background(), workflow.Request{Input: b.input, BaseName: b.base}); err != nil {
			t.Fatalf("Build %s: %v", b.input, err)
		}
	}

	data, err := os.ReadFile(calls)
	if err != nil {
		t.Fatalf("read ffmpeg calls: %v", err)
	}
	if n := strings.Count(string(data), "run"); n != 2 {
		t.Fatalf("ffmpeg should run once per distinct video, ran %d times", n)
	}
	entries, err := os.ReadDir(filepath.Join(cfg.Paths.CacheDir, "frames"))
	if err != nil {
		t.Fatalf("read frame cache: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("frame cache entries = %d, want 2", len(entries))
	}
}

func TestBuildClearsPreviousDeck(t *testing.T) {
	cfg := testsupport.NewConfig(t,
		testsupport.WithScript("ffprobe", ffprobeStub),
		testsupport.WithScript("ffmpeg", ffmpegStreamStub),
	)
	deckDir := filepath.Join(cfg.Paths.OutputDir, "deck")
	stale := filepath.Join(deckDir, "0-09-59.jpg")
	notes := filepath.Join(deckDir, "notes.md")
	for _, path := range []string{stale, notes} {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	runner := workflow.NewRunner(cfg, logging.NewNop())
	if _, err := runner.Build(context.Background(), workflow.Request{Input: writeVideo(t, "v.mp4"), BaseName: "deck"}); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatalf("stale slide should be removed, stat err = %v", err)
	}
	if _, err := os.Stat(notes); err != nil {
		t.Fatalf("unrelated file removed: %v", err)
	}
}

func TestBuildRejectsLockedDeck(t *testing.T) {
	cfg := testsupport.NewConfig(t,
		testsupport.WithScript("ffprobe", ffprobeStub),
		testsupport.WithScript("ffmpeg", ffmpegStreamStub),
	)
	deckDir := filepath.Join(cfg.Paths.OutputDir, "busy")
	if err := os.MkdirAll(deckDir, 0o755); err != nil {
		t.Fatal(err)
	}
	held := flock.New(filepath.Join(deckDir, ".vid2deck.lock"))
	if ok, err := held.TryLock(); !ok || err != nil {
		t.Fatalf("TryLock: %v %v", ok, err)
	}
	defer held.Unlock()

	runner := workflow.NewRunner(cfg, logging.NewNop())
	_, err := runner.Build(context.Background(), workflow.Request{Input: writeVideo(t, "v.mp4"), BaseName: "busy"})
	if !errors.Is(err, workflow.ErrDeckLocked) {
		t.Fatalf("expected ErrDeckLocked, got %v", err)
	}
}

func TestBuildRejectsThresholdAboveBits(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithThreshold(65))
	runner := workflow.NewRunner(cfg, logging.NewNop())
	_, err := runner.Build(context.Background(), workflow.Request{Input: "ignored.mp4"})
	if !errors.Is(err, dedup.ErrInvalidThreshold) || !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected invalid threshold, got %v", err)
	}
	if services.ExitCode(err) != services.ExitValidation {
		t.Fatalf("exit code = %d", services.ExitCode(err))
	}
}

func TestBuildRecordsFailedRun(t *testing.T) {
	cfg := testsupport.NewConfig(t,
		testsupport.WithScript("ffprobe", ffprobeStub),
		testsupport.WithScript("ffmpeg", "echo 'decoder exploded' >&2\nexit 1\n"),
	)
	store := testsupport.MustOpenCatalog(t, cfg)
	runner := workflow.NewRunner(cfg, logging.NewNop(), workflow.WithCatalog(store))

	result, err := runner.Build(context.Background(), workflow.Request{Input: writeVideo(t, "broken.mp4")})
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
	run, getErr := store.GetRun(context.Background(), result.RunID)
	if getErr != nil || run == nil {
		t.Fatalf("GetRun: %v %v", run, getErr)
	}
	if run.Status != catalog.RunFailed || !strings.Contains(run.ErrorMessage, "decoder exploded") {
		t.Fatalf("unexpected run: %+v", run)
	}
}

func TestBuildEmptyVideo(t *testing.T) {
	cfg := testsupport.NewConfig(t,
		testsupport.WithScript("ffprobe", ffprobeStub),
		testsupport.WithScript("ffmpeg", "exit 0\n"),
	)
	cfg.Dedup.AutoThreshold = true
	runner := workflow.NewRunner(cfg, logging.NewNop())
	result, err := runner.Build(context.Background(), workflow.Request{Input: writeVideo(t, "empty.mp4")})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if result.Summary.Frames != 0 || len(result.Deck.Slides) != 0 {
		t.Fatalf("expected empty deck, got %+v", result.Summary)
	}
	if result.Calibration.Threshold != dedup.DefaultThreshold {
		t.Fatalf("threshold = %d", result.Calibration.Threshold)
	}
	if _, err := os.Stat(result.Manifest); err != nil {
		t.Fatalf("manifest should exist for an empty deck: %v", err)
	}
}
