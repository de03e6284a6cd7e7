package catalog_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"vid2deck/internal/catalog"
	"vid2deck/internal/dedup"
	"vid2deck/internal/testsupport"
)

func TestOpenCreatesSchemaAndReopens(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenCatalog(t, cfg)
	ctx := context.Background()

	if err := store.RememberTitle(ctx, "dQw4w9WgXcQ", "Talk"); err != nil {
		t.Fatalf("RememberTitle: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := catalog.Open(cfg.CatalogPath())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	title, ok, err := reopened.LookupTitle(ctx, "dQw4w9WgXcQ")
	if err != nil || !ok || title != "Talk" {
		t.Fatalf("LookupTitle after reopen = %q %v %v", title, ok, err)
	}
}

func TestOpenRejectsSchemaMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")
	store, err := catalog.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	store.Close()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	if _, err := db.Exec("UPDATE schema_version SET version = 99"); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	db.Close()

	if _, err := catalog.Open(path); !errors.Is(err, catalog.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}

func TestTitleCache(t *testing.T) {
	store := testsupport.MustOpenCatalog(t, testsupport.NewConfig(t))
	ctx := context.Background()

	if _, ok, err := store.LookupTitle(ctx, "missing"); ok || err != nil {
		t.Fatalf("unknown id: ok=%v err=%v", ok, err)
	}
	if err := store.UpsertVideo(ctx, catalog.Video{Key: "abc", SourcePath: "/videos/abc.mp4"}); err != nil {
		t.Fatalf("UpsertVideo: %v", err)
	}
	if _, ok, _ := store.LookupTitle(ctx, "abc"); ok {
		t.Fatal("video without title should not be a cache hit")
	}
	if err := store.RememberTitle(ctx, "abc", "Gophers"); err != nil {
		t.Fatalf("RememberTitle: %v", err)
	}
	video, err := store.GetVideo(ctx, "abc")
	if err != nil || video == nil {
		t.Fatalf("GetVideo: %v %v", video, err)
	}
	if video.Title != "Gophers" || video.SourcePath != "/videos/abc.mp4" || video.YouTubeID != "abc" {
		t.Fatalf("upsert should merge fields: %+v", video)
	}
	if missing, err := store.GetVideo(ctx, "nope"); missing != nil || err != nil {
		t.Fatalf("GetVideo unknown = %v %v", missing, err)
	}
}

func startRun(t *testing.T, store *catalog.Store, key string) *catalog.Run {
	t.Helper()
	run, err := store.StartRun(context.Background(), catalog.RunParams{
		VideoKey:        key,
		Input:           "https://youtu.be/" + key,
		Title:           "Talk " + key,
		DeckDir:         "/decks/" + key,
		IntervalSeconds: 2,
		Threshold:       5,
		Algorithm:       "average",
		HashSize:        8,
		Mode:            "stream",
	})
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	return run
}

func TestRunLifecycle(t *testing.T) {
	store := testsupport.MustOpenCatalog(t, testsupport.NewConfig(t))
	ctx := context.Background()

	run := startRun(t, store, "video1")
	if run.Status != catalog.RunRunning || len(run.ID) != 36 {
		t.Fatalf("unexpected run: %+v", run)
	}
	for i, ts := range []float64{0, 4} {
		slide := catalog.Slide{RunID: run.ID, Index: i, Seconds: ts, Image: fmt.Sprintf("0-00-%02d.jpg", int(ts))}
		if err := store.AddSlide(ctx, slide); err != nil {
			t.Fatalf("AddSlide: %v", err)
		}
	}
	if err := store.CompleteRun(ctx, run.ID, dedup.Summary{Frames: 3, Accepted: 2, Rejected: 1, Threshold: 7}); err != nil {
		t.Fatalf("CompleteRun: %v", err)
	}

	got, err := store.GetRun(ctx, run.ID)
	if err != nil || got == nil {
		t.Fatalf("GetRun: %v %v", got, err)
	}
	if got.Status != catalog.RunCompleted || got.Frames != 3 || got.Accepted != 2 || got.Rejected != 1 || got.Threshold != 7 {
		t.Fatalf("unexpected completed run: %+v", got)
	}
	if got.FinishedAt == nil || got.Elapsed(time.Now()) < 0 {
		t.Fatalf("finished_at not recorded: %+v", got)
	}
	if got.Mode != "stream" || got.Title != "Talk video1" {
		t.Fatalf("params not persisted: %+v", got)
	}

	slides, err := store.Slides(ctx, run.ID)
	if err != nil {
		t.Fatalf("Slides: %v", err)
	}
	if len(slides) != 2 || slides[1].Seconds != 4 || slides[1].Index != 1 {
		t.Fatalf("unexpected slides: %+v", slides)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Videos != 1 || stats.Slides != 2 || stats.Runs[catalog.RunCompleted] != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	if err := store.DeleteRun(ctx, run.ID); err != nil {
		t.Fatalf("DeleteRun: %v", err)
	}
	if slides, _ := store.Slides(ctx, run.ID); len(slides) != 0 {
		t.Fatalf("slides should cascade on delete, got %d", len(slides))
	}
}

func TestFailRun(t *testing.T) {
	store := testsupport.MustOpenCatalog(t, testsupport.NewConfig(t))
	ctx := context.Background()

	run := startRun(t, store, "video2")
	if err := store.FailRun(ctx, run.ID, errors.New("ffmpeg exited 1")); err != nil {
		t.Fatalf("FailRun: %v", err)
	}
	got, err := store.GetRun(ctx, run.ShortID())
	if err != nil || got == nil {
		t.Fatalf("GetRun by prefix: %v %v", got, err)
	}
	if got.Status != catalog.RunFailed || got.ErrorMessage != "ffmpeg exited 1" {
		t.Fatalf("unexpected failed run: %+v", got)
	}
	if err := store.FailRun(ctx, "00000000-0000-0000-0000-000000000000", errors.New("x")); err == nil {
		t.Fatal("expected error for unknown run")
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	store := testsupport.MustOpenCatalog(t, testsupport.NewConfig(t))
	ctx := context.Background()

	var ids []string
	for _, key := range []string{"a", "b", "c"} {
		ids = append(ids, startRun(t, store, key).ID)
		time.Sleep(2 * time.Millisecond)
	}
	runs, err := store.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != ids[2] || runs[1].ID != ids[1] {
		t.Fatalf("unexpected order: %v", runs)
	}
	all, err := store.ListRuns(ctx, 0)
	if err != nil || len(all) != 3 {
		t.Fatalf("ListRuns(0) = %d %v", len(all), err)
	}
}

func TestGetRunPrefixHandling(t *testing.T) {
	store := testsupport.MustOpenCatalog(t, testsupport.NewConfig(t))
	ctx := context.Background()
	startRun(t, store, "a")
	startRun(t, store, "b")

	if run, err := store.GetRun(ctx, "zz"); run != nil || err != nil {
		t.Fatalf("non-hex prefix = %v %v", run, err)
	}
	if run, err := store.GetRun(ctx, "%"); run != nil || err != nil {
		t.Fatalf("wildcard prefix = %v %v", run, err)
	}
	runs, _ := store.ListRuns(ctx, 0)
	common := commonPrefix(runs[0].ID, runs[1].ID)
	if common == "" {
		return
	}
	if _, err := store.GetRun(ctx, common); !errors.Is(err, catalog.ErrAmbiguousRun) {
		t.Fatalf("expected ambiguous prefix error, got %v", err)
	}
}

func commonPrefix(a, b string) string {
	n := 0
	for n < len(a) && n < len(b) && a[n] == b[n] {
		n++
	}
	return strings.ToLower(a[:n])
}
