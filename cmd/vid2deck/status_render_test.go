package main

import (
	"fmt"
	"io"
	"strings"
	"testing"

	"vid2deck/internal/catalog"
	"vid2deck/internal/deps"
	"vid2deck/internal/preflight"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("FFmpeg", statusError, "binary \"ffmpeg\" not found", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "FFmpeg:", "[ERROR] binary \"ffmpeg\" not found")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("FFmpeg", statusOK, "Ready", true)
	if !strings.HasPrefix(got, ansiGreen) {
		t.Fatalf("expected green prefix, got %q", got)
	}
	if !strings.HasSuffix(got, ansiReset) {
		t.Fatalf("expected reset suffix, got %q", got)
	}
}

func TestDependencyLines(t *testing.T) {
	statuses := []deps.Status{
		{Name: "FFmpeg", Command: "ffmpeg", Available: true, Version: "ffmpeg version 7.1"},
		{Name: "FFprobe", Command: "ffprobe", Detail: "binary \"ffprobe\" not found"},
		{Name: "yt-dlp", Command: "yt-dlp", Optional: true, Detail: "binary \"yt-dlp\" not found"},
	}
	lines := dependencyLines(statuses, false)
	if len(lines) != 5 {
		t.Fatalf("expected 5 lines, got %d: %q", len(lines), lines)
	}
	if !strings.Contains(lines[0], "[ERROR] 1 required dependencies missing") {
		t.Fatalf("expected error summary first, got %q", lines[0])
	}
	if !strings.Contains(lines[1], "[OK] Ready (ffmpeg version 7.1)") {
		t.Fatalf("expected version in ready line, got %q", lines[1])
	}
	if !strings.Contains(lines[2], "[ERROR] binary \"ffprobe\" not found") {
		t.Fatalf("expected error for required binary, got %q", lines[2])
	}
	if !strings.Contains(lines[3], "[WARN]") || !strings.Contains(lines[3], "YouTube") {
		t.Fatalf("expected warning for optional binary, got %q", lines[3])
	}
	if !strings.Contains(lines[4], "FFprobe, yt-dlp") {
		t.Fatalf("expected missing dependencies summary, got %q", lines[4])
	}
}

func TestDependencyLinesAllReady(t *testing.T) {
	lines := dependencyLines([]deps.Status{{Name: "FFmpeg", Command: "ffmpeg", Available: true}}, false)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %q", lines)
	}
	requireContains(t, lines[0], "[OK] All required dependencies available")
	requireContains(t, lines[1], "Ready (command: ffmpeg)")
}

func TestPreflightAndCatalogLines(t *testing.T) {
	lines := preflightLines([]preflight.Result{
		{Name: "Output directory", Passed: true, Detail: "/tmp/out (writable)"},
		{Name: "Cache free space", Passed: false, Detail: "10 MB free"},
	}, false)
	requireContains(t, lines[0], "[OK] /tmp/out (writable)")
	requireContains(t, lines[1], "[ERROR] 10 MB free")

	lines = catalogLines(catalog.Stats{
		Videos: 2,
		Slides: 14,
		Runs:   map[catalog.RunStatus]int{catalog.RunFailed: 1, catalog.RunCompleted: 3},
	}, false)
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %q", lines)
	}
	requireContains(t, lines[2], "Runs Completed:")
	requireContains(t, lines[3], "[WARN] 1")
}

func TestShouldColorizeNonFile(t *testing.T) {
	if shouldColorize(io.Discard) {
		t.Fatalf("expected non-file writer to disable color")
	}
}
