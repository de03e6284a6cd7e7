package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"vid2deck/internal/config"
	"vid2deck/internal/dedup"
	"vid2deck/internal/download"
	"vid2deck/internal/logging"
	"vid2deck/internal/preflight"
	"vid2deck/internal/services"
	"vid2deck/internal/slides"
	"vid2deck/internal/workflow"
)

type buildFlags struct {
	interval   float64
	threshold  string
	workers    int
	algorithm  string
	hashSize   int
	mode       string
	manifest   string
	thumbnails int
	refresh    bool
	jsonOutput bool
	noProgress bool
}

func newBuildCommand(ctx *commandContext) *cobra.Command {
	var flags buildFlags

	cmd := &cobra.Command{
		Use:   "build <url|id|file> [base-name]",
		Short: "Build a slide deck from a video",
		Long: "Build a slide deck from a local video file, a YouTube URL, or a bare YouTube video ID.\n" +
			"The deck is written to <output_dir>/<base-name>; the video title is used when base-name is omitted.",
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			cfg, err := applyBuildFlags(cmd, base, flags)
			if err != nil {
				return err
			}

			input := strings.TrimSpace(args[0])
			_, local, _ := download.ResolveLocal(input)
			if err := preflight.RequireBinaries(cmd.Context(), cfg, !local); err != nil {
				return err
			}

			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			store, err := ctx.openCatalog()
			if err != nil {
				return err
			}
			defer store.Close()

			req := workflow.Request{Input: input, Refresh: flags.refresh}
			if len(args) > 1 {
				req.BaseName = args[1]
			}
			var bar *buildProgress
			if !flags.noProgress && !flags.jsonOutput && shouldColorize(cmd.ErrOrStderr()) {
				bar = newBuildProgress(cmd.ErrOrStderr())
				req.Progress = bar.update
			}

			runner := workflow.NewRunner(cfg, logger, workflow.WithCatalog(store))
			result, err := runner.Build(cmd.Context(), req)
			if bar != nil {
				bar.finish(err != nil)
			}
			if err != nil {
				return err
			}

			if flags.jsonOutput {
				return writeJSON(cmd, newBuildReport(result))
			}
			printBuildResult(cmd.OutOrStdout(), result)
			return nil
		},
	}

	registerBuildFlags(cmd, &flags)
	return cmd
}

func registerBuildFlags(cmd *cobra.Command, flags *buildFlags) {
	f := cmd.Flags()
	f.Float64VarP(&flags.interval, "interval", "i", 0, "Seconds between sampled frames (extraction.interval_seconds)")
	f.StringVar(&flags.threshold, "threshold", "", "Duplicate threshold in bits, or \"auto\" to calibrate from the video")
	f.IntVar(&flags.workers, "workers", 0, "Fingerprinting goroutines (dedup.workers)")
	f.StringVar(&flags.algorithm, "algorithm", "", "Fingerprint algorithm: average or difference")
	f.IntVar(&flags.hashSize, "hash-size", 0, "Fingerprint grid size; the fingerprint has hash-size squared bits")
	f.StringVar(&flags.mode, "mode", "", "Frame source: stream or files")
	f.StringVar(&flags.manifest, "manifest", "", "Manifest format: json or yaml")
	f.IntVar(&flags.thumbnails, "thumbnails", 0, "Thumbnail width in pixels; 0 disables thumbnails")
	f.BoolVar(&flags.refresh, "refresh", false, "Re-extract frames even when cached")
	f.BoolVar(&flags.jsonOutput, "json", false, "Print the result as JSON")
	f.BoolVar(&flags.noProgress, "no-progress", false, "Disable progress bars")
}

// applyBuildFlags returns a copy of base with the changed flags applied and
// revalidated.
func applyBuildFlags(cmd *cobra.Command, base *config.Config, flags buildFlags) (*config.Config, error) {
	cfg := *base
	changed := cmd.Flags().Changed
	if changed("interval") {
		cfg.Extraction.IntervalSeconds = flags.interval
	}
	if changed("threshold") {
		threshold, auto, err := parseThresholdFlag(flags.threshold)
		if err != nil {
			return nil, err
		}
		cfg.Dedup.AutoThreshold = auto
		if !auto {
			cfg.Dedup.Threshold = threshold
		}
	}
	if changed("workers") {
		cfg.Dedup.Workers = flags.workers
	}
	if changed("algorithm") {
		cfg.Dedup.Algorithm = strings.ToLower(strings.TrimSpace(flags.algorithm))
	}
	if changed("hash-size") {
		cfg.Dedup.HashSize = flags.hashSize
	}
	if changed("mode") {
		cfg.Extraction.Mode = strings.ToLower(strings.TrimSpace(flags.mode))
	}
	if changed("manifest") {
		cfg.Slides.ManifestFormat = strings.ToLower(strings.TrimSpace(flags.manifest))
		if cfg.Slides.ManifestFormat == "yml" {
			cfg.Slides.ManifestFormat = slides.FormatYAML
		}
	}
	if changed("thumbnails") {
		cfg.Slides.ThumbnailWidth = flags.thumbnails
	}
	if cfg.Dedup.AutoThreshold && cfg.Dedup.Threshold > cfg.FingerprintBits() {
		// The configured value is unused under auto; keep it from failing validation.
		cfg.Dedup.Threshold = cfg.FingerprintBits()
	}
	if err := cfg.Validate(); err != nil {
		return nil, services.Wrap(services.ErrValidation, "cli", "build flags", "", err)
	}
	return &cfg, nil
}

// parseThresholdFlag accepts a non-negative integer or "auto". Range checks
// against the fingerprint length happen in config validation.
func parseThresholdFlag(value string) (int, bool, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "auto" {
		return 0, true, nil
	}
	threshold, err := strconv.Atoi(value)
	if err != nil {
		return 0, false, services.Wrap(services.ErrValidation, "cli", "threshold", fmt.Sprintf("%q is not an integer or \"auto\"", value), nil)
	}
	if threshold < 0 {
		return 0, false, services.Wrap(services.ErrValidation, "cli", "threshold", "must not be negative", dedup.ErrInvalidThreshold)
	}
	return threshold, false, nil
}

type buildReport struct {
	RunID          string             `json:"run_id"`
	Title          string             `json:"title"`
	VideoID        string             `json:"video_id,omitempty"`
	DeckDir        string             `json:"deck_dir"`
	Manifest       string             `json:"manifest"`
	Frames         int                `json:"frames"`
	Accepted       int                `json:"accepted"`
	Rejected       int                `json:"rejected"`
	Threshold      int                `json:"threshold"`
	Calibration    *dedup.Calibration `json:"calibration,omitempty"`
	ElapsedSeconds float64            `json:"elapsed_seconds"`
	Slides         []slides.Slide     `json:"slides"`
}

func newBuildReport(result workflow.Result) buildReport {
	deckSlides := result.Deck.Slides
	if deckSlides == nil {
		deckSlides = []slides.Slide{}
	}
	return buildReport{
		RunID:          result.RunID,
		Title:          result.Video.Title,
		VideoID:        result.Video.ID,
		DeckDir:        result.DeckDir,
		Manifest:       result.Manifest,
		Frames:         result.Summary.Frames,
		Accepted:       result.Summary.Accepted,
		Rejected:       result.Summary.Rejected,
		Threshold:      result.Summary.Threshold,
		Calibration:    result.Calibration,
		ElapsedSeconds: result.Elapsed.Seconds(),
		Slides:         deckSlides,
	}
}

func printBuildResult(out io.Writer, result workflow.Result) {
	summary := result.Summary
	fmt.Fprintf(out, "Deck: %s\n", result.DeckDir)
	if result.Video.Title != "" {
		fmt.Fprintf(out, "Title: %s\n", result.Video.Title)
	}
	if result.Calibration != nil {
		fmt.Fprintf(out, "Threshold: %d (auto, mean distance %.2f over %d frames)\n",
			summary.Threshold, result.Calibration.Mean, result.Calibration.Frames)
	} else {
		fmt.Fprintf(out, "Threshold: %d\n", summary.Threshold)
	}
	fmt.Fprintf(out, "Slides: %d of %d frames (%d duplicates dropped) in %s\n",
		summary.Accepted, summary.Frames, summary.Rejected, logging.FormatDurationHuman(result.Elapsed))
	if len(result.Deck.Slides) == 0 {
		fmt.Fprintln(out, "No frames were sampled; the deck is empty.")
		return
	}
	fmt.Fprint(out, renderSlideTable(result.Deck.Slides))
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Manifest: %s\n", result.Manifest)
}

func renderSlideTable(deckSlides []slides.Slide) string {
	rows := make([][]string, 0, len(deckSlides))
	for _, s := range deckSlides {
		rows = append(rows, []string{strconv.Itoa(s.Index), s.Time, s.Image, s.Link})
	}
	return renderTable([]string{"#", "Time", "Image", "Link"}, rows, []columnAlignment{alignRight, alignRight})
}
