package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"vid2deck/internal/dedup"
	"vid2deck/internal/extract"
	"vid2deck/internal/frame"
	"vid2deck/internal/logging"
	"vid2deck/internal/services"
	"vid2deck/internal/slides"
	"vid2deck/internal/workflow"
)

type dedupRow struct {
	Index       int    `json:"index"`
	Time        string `json:"time"`
	Accepted    bool   `json:"accepted"`
	Distance    int    `json:"distance"`
	Fingerprint string `json:"fingerprint"`
}

type dedupReport struct {
	Dir       string     `json:"dir"`
	Threshold int        `json:"threshold"`
	Frames    int        `json:"frames"`
	Accepted  int        `json:"accepted"`
	Rejected  int        `json:"rejected"`
	Decisions []dedupRow `json:"decisions"`
}

func newDedupCommand(ctx *commandContext) *cobra.Command {
	var interval float64
	var thresholdFlag string
	var keptOnly bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "dedup <frames-dir>",
		Short: "Run duplicate detection over a directory of extracted frames",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			step := cfg.Interval()
			if cmd.Flags().Changed("interval") {
				step, err = frame.FromSeconds(interval)
				if err == nil && step <= 0 {
					err = extract.ErrInvalidInterval
				}
				if err != nil {
					return services.Wrap(services.ErrValidation, "cli", "dedup", "interval must be a positive number of seconds", err)
				}
			}
			hasher, err := workflow.NewHasher(cfg)
			if err != nil {
				return services.Wrap(services.ErrConfiguration, "cli", "dedup", "fingerprint settings", err)
			}

			threshold, auto := cfg.Dedup.Threshold, cfg.Dedup.AutoThreshold
			if cmd.Flags().Changed("threshold") {
				if threshold, auto, err = parseThresholdFlag(thresholdFlag); err != nil {
					return err
				}
			}
			dir := strings.TrimSpace(args[0])
			if auto {
				src, err := openFramesDir(dir, step)
				if err != nil {
					return err
				}
				cal, err := dedup.Calibrate(cmd.Context(), src, hasher)
				src.Close()
				if err != nil {
					return err
				}
				threshold = cal.Threshold
				fmt.Fprintf(cmd.ErrOrStderr(), "Calibrated threshold %d from %d frames (mean distance %.2f)\n", cal.Threshold, cal.Frames, cal.Mean)
			}
			engine, err := dedup.NewEngine(hasher, threshold)
			if err != nil {
				return services.Wrap(services.ErrValidation, "cli", "dedup", "threshold", err)
			}

			src, err := openFramesDir(dir, step)
			if err != nil {
				return err
			}
			defer src.Close()

			report := dedupReport{Dir: dir, Decisions: []dedupRow{}}
			pipeline := &dedup.Pipeline{
				Engine:  engine,
				Workers: cfg.Dedup.Workers,
				Logger:  logger,
				OnDecision: func(d dedup.Decision) {
					if keptOnly && !d.Accepted {
						return
					}
					report.Decisions = append(report.Decisions, dedupRow{
						Index:       d.Frame.Index,
						Time:        slides.FormatTimestamp(d.Frame.Timestamp),
						Accepted:    d.Accepted,
						Distance:    d.Distance,
						Fingerprint: d.Fingerprint.String(),
					})
				},
			}
			summary, err := pipeline.Run(cmd.Context(), src, nil)
			if err != nil {
				return err
			}
			report.Threshold = summary.Threshold
			report.Frames = summary.Frames
			report.Accepted = summary.Accepted
			report.Rejected = summary.Rejected

			if jsonOutput {
				return writeJSON(cmd, report)
			}
			printDedupReport(cmd.OutOrStdout(), report)
			return nil
		},
	}

	cmd.Flags().Float64VarP(&interval, "interval", "i", 0, "Seconds between frames, used to label timestamps")
	cmd.Flags().StringVar(&thresholdFlag, "threshold", "", "Duplicate threshold in bits, or \"auto\"")
	cmd.Flags().BoolVar(&keptOnly, "kept", false, "List only the frames that would become slides")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print decisions as JSON")
	return cmd
}

func openFramesDir(dir string, interval time.Duration) (*extract.DirSource, error) {
	src, err := extract.OpenDir(dir, interval)
	if errors.Is(err, os.ErrNotExist) {
		return nil, services.Wrap(services.ErrNotFound, "cli", "dedup", dir, err)
	}
	return src, err
}

func printDedupReport(out io.Writer, report dedupReport) {
	if report.Frames == 0 {
		fmt.Fprintf(out, "No frames found in %s\n", report.Dir)
		return
	}
	rows := make([][]string, 0, len(report.Decisions))
	for _, d := range report.Decisions {
		result := "duplicate"
		if d.Accepted {
			result = "slide"
		}
		rows = append(rows, []string{strconv.Itoa(d.Index), d.Time, strconv.Itoa(d.Distance), result, d.Fingerprint})
	}
	fmt.Fprint(out, renderTable([]string{"Frame", "Time", "Distance", "Result", "Fingerprint"}, rows,
		[]columnAlignment{alignRight, alignRight, alignRight}))
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Kept %d of %d frames (%s, threshold %d)\n",
		report.Accepted, report.Frames, logging.FormatPercent(report.Accepted, report.Frames), report.Threshold)
}
