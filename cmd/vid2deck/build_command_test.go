package main

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"vid2deck/internal/config"
	"vid2deck/internal/services"
	"vid2deck/internal/testsupport"
)

const ffprobeStub = `echo '{"streams":[{"codec_type":"video","width":8,"height":8}],"format":{"duration":"10.0"}}'
`

// ffmpegStreamStub emits five 8x8 rgb24 frames: A A B B A.
const ffmpegStreamStub = `a() { for i in 1 2 3 4 5 6 7 8; do head -c 12 /dev/zero; head -c 12 /dev/zero | tr '\000' '\377'; done; }
b() { head -c 96 /dev/zero | tr '\000' '\377'; head -c 96 /dev/zero; }
a; a; b; b; a
`

func setupBuildEnv(t *testing.T) (*cliTestEnv, string) {
	t.Helper()
	env := setupCLITestEnv(t,
		testsupport.WithThreshold(5),
		testsupport.WithMode(config.ModeStream),
		testsupport.WithScript("ffprobe", ffprobeStub),
		testsupport.WithScript("ffmpeg", ffmpegStreamStub),
	)
	video := filepath.Join(env.baseDir, "intro_lecture.mp4")
	if err := os.WriteFile(video, []byte("not really a video"), 0o644); err != nil {
		t.Fatalf("write video: %v", err)
	}
	return env, video
}

func TestBuildCommandWritesDeckAndRecordsRun(t *testing.T) {
	env, video := setupBuildEnv(t)

	out, _, err := runCLI(t, []string{"build", video, "talk", "--no-progress"}, env.configPath)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	deckDir := filepath.Join(env.cfg.Paths.OutputDir, "talk")
	requireContains(t, out, "Deck: "+deckDir)
	requireContains(t, out, "Slides: 3 of 5 frames (2 duplicates dropped)")
	requireContains(t, out, "0-00-04.jpg")
	if _, err := os.Stat(filepath.Join(deckDir, "deck.json")); err != nil {
		t.Fatalf("manifest missing: %v", err)
	}

	out, _, err = runCLI(t, []string{"runs"}, env.configPath)
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	requireContains(t, out, "Intro Lecture")
	requireContains(t, out, "Completed")

	out, _, err = runCLI(t, []string{"runs", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("runs --json: %v", err)
	}
	var views []runView
	if err := json.Unmarshal([]byte(out), &views); err != nil {
		t.Fatalf("decode runs: %v\n%s", err, out)
	}
	if len(views) != 1 || views[0].Accepted != 3 || views[0].Frames != 5 || views[0].DeckDir != deckDir {
		t.Fatalf("unexpected runs: %+v", views)
	}
	runID := views[0].ID

	out, _, err = runCLI(t, []string{"show", runID[:8]}, env.configPath)
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	requireContains(t, out, runID)
	requireContains(t, out, "3 of 5 frames")
	requireContains(t, out, "0:08")

	out, _, err = runCLI(t, []string{"runs", "rm", runID}, env.configPath)
	if err != nil {
		t.Fatalf("runs rm: %v", err)
	}
	requireContains(t, out, "Removed run "+runID[:8])

	_, _, err = runCLI(t, []string{"show", runID}, env.configPath)
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found after removal, got %v", err)
	}
	if _, err := os.Stat(deckDir); err != nil {
		t.Fatalf("deck directory should survive rm: %v", err)
	}
}

func TestBuildCommandJSONWithAutoThreshold(t *testing.T) {
	env, video := setupBuildEnv(t)

	out, _, err := runCLI(t, []string{"build", video, "--threshold", "auto", "--manifest", "yml", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	var report buildReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode report: %v\n%s", err, out)
	}
	if report.Calibration == nil || report.Threshold != report.Calibration.Threshold {
		t.Fatalf("expected calibrated threshold, got %+v", report)
	}
	if report.Frames != 5 || len(report.Slides) != report.Accepted {
		t.Fatalf("unexpected report: %+v", report)
	}
	if !strings.HasSuffix(report.Manifest, "deck.yaml") {
		t.Fatalf("manifest = %s", report.Manifest)
	}
	if report.Title != "Intro Lecture" {
		t.Fatalf("title = %q", report.Title)
	}
}

func TestBuildCommandRejectsThresholdAboveBits(t *testing.T) {
	env, video := setupBuildEnv(t)

	_, _, err := runCLI(t, []string{"build", video, "--threshold", "65"}, env.configPath)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if code := services.ExitCode(err); code != services.ExitValidation {
		t.Fatalf("exit code = %d", code)
	}
	if _, err := os.Stat(filepath.Join(env.cfg.Paths.OutputDir, "Intro Lecture")); !os.IsNotExist(err) {
		t.Fatalf("no deck should be written, stat err = %v", err)
	}
}

func TestBuildCommandRequiresFFmpeg(t *testing.T) {
	env, video := setupBuildEnv(t)
	env.cfg.Extraction.FFmpegBinary = "vid2deck-missing-ffmpeg"
	writeTestConfig(t, env.configPath, env.cfg)

	_, _, err := runCLI(t, []string{"build", video}, env.configPath)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	requireContains(t, err.Error(), "FFmpeg")
}

func TestParseThresholdFlag(t *testing.T) {
	tests := []struct {
		in       string
		want     int
		wantAuto bool
		wantErr  bool
	}{
		{in: "0", want: 0},
		{in: " 12 ", want: 12},
		{in: "auto", wantAuto: true},
		{in: "AUTO", wantAuto: true},
		{in: "-1", wantErr: true},
		{in: "five", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		got, auto, err := parseThresholdFlag(tt.in)
		if tt.wantErr {
			if !errors.Is(err, services.ErrValidation) {
				t.Fatalf("parseThresholdFlag(%q) err = %v, want validation error", tt.in, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("parseThresholdFlag(%q): %v", tt.in, err)
		}
		if got != tt.want || auto != tt.wantAuto {
			t.Fatalf("parseThresholdFlag(%q) = %d, %v", tt.in, got, auto)
		}
	}
}

func parseBuildFlags(t *testing.T, args ...string) (*cobra.Command, buildFlags) {
	t.Helper()
	cmd := &cobra.Command{Use: "build"}
	var flags buildFlags
	registerBuildFlags(cmd, &flags)
	if err := cmd.ParseFlags(args); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	return cmd, flags
}

func TestApplyBuildFlags(t *testing.T) {
	base := testsupport.NewConfig(t, testsupport.WithThreshold(20))

	cmd, flags := parseBuildFlags(t, "--threshold", "auto", "--hash-size", "4", "-i", "0.5", "--manifest", "YAML", "--mode", "files")
	cfg, err := applyBuildFlags(cmd, base, flags)
	if err != nil {
		t.Fatalf("applyBuildFlags: %v", err)
	}
	if !cfg.Dedup.AutoThreshold || cfg.Dedup.Threshold != 16 || cfg.Dedup.HashSize != 4 {
		t.Fatalf("unexpected dedup settings: %+v", cfg.Dedup)
	}
	if cfg.Extraction.IntervalSeconds != 0.5 || cfg.Extraction.Mode != config.ModeFiles || cfg.Slides.ManifestFormat != "yaml" {
		t.Fatalf("unexpected overrides: %+v %+v", cfg.Extraction, cfg.Slides)
	}
	if base.Dedup.AutoThreshold || base.Dedup.HashSize != 8 || base.Extraction.Mode != config.ModeStream {
		t.Fatalf("base config was modified: %+v", base.Dedup)
	}

	cmd, flags = parseBuildFlags(t, "--threshold", "17", "--hash-size", "4")
	if _, err := applyBuildFlags(cmd, base, flags); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected threshold above 16 bits to fail, got %v", err)
	}

	cmd, flags = parseBuildFlags(t, "--algorithm", "wavelet")
	if _, err := applyBuildFlags(cmd, base, flags); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected unknown algorithm to fail, got %v", err)
	}

	cmd, flags = parseBuildFlags(t)
	cfg, err = applyBuildFlags(cmd, base, flags)
	if err != nil {
		t.Fatalf("no flags: %v", err)
	}
	if cfg.Dedup.Threshold != 20 || cfg.Dedup.Workers != base.Dedup.Workers {
		t.Fatalf("unchanged flags altered config: %+v", cfg.Dedup)
	}
}
