package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"vid2deck/internal/catalog"
	"vid2deck/internal/logging"
	"vid2deck/internal/slides"
)

type showSlide struct {
	Index       int     `json:"index"`
	Seconds     float64 `json:"seconds"`
	Time        string  `json:"time"`
	Image       string  `json:"image"`
	Fingerprint string  `json:"fingerprint,omitempty"`
	Link        string  `json:"link,omitempty"`
}

type showReport struct {
	Run    runView     `json:"run"`
	Slides []showSlide `json:"slides"`
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show a recorded deck build and its slides",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openCatalog()
			if err != nil {
				return err
			}
			defer store.Close()

			run, err := lookupRun(cmd, store, args[0])
			if err != nil {
				return err
			}
			recorded, err := store.Slides(cmd.Context(), run.ID)
			if err != nil {
				return err
			}

			now := time.Now()
			report := showReport{Run: newRunView(*run, now), Slides: make([]showSlide, 0, len(recorded))}
			for _, s := range recorded {
				report.Slides = append(report.Slides, showSlide{
					Index:       s.Index,
					Seconds:     s.Seconds,
					Time:        slides.FormatTimestamp(time.Duration(s.Seconds * float64(time.Second))),
					Image:       s.Image,
					Fingerprint: s.Fingerprint,
					Link:        s.Link,
				})
			}
			if jsonOutput {
				return writeJSON(cmd, report)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderDetails(runDetails(*run, now)))
			if len(report.Slides) == 0 {
				fmt.Fprintln(out, "No slides recorded")
				return nil
			}
			rows := make([][]string, 0, len(report.Slides))
			for _, s := range report.Slides {
				rows = append(rows, []string{strconv.Itoa(s.Index), s.Time, s.Image, s.Link})
			}
			fmt.Fprintln(out, renderTable([]string{"#", "Time", "Image", "Link"}, rows, []columnAlignment{alignRight, alignRight}))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the run as JSON")
	return cmd
}

func runDetails(run catalog.Run, now time.Time) [][2]string {
	threshold := strconv.Itoa(run.Threshold)
	if run.AutoThreshold {
		threshold += " (auto)"
	}
	finished := ""
	if run.FinishedAt != nil {
		finished = formatDisplayTime(*run.FinishedAt)
	}
	return [][2]string{
		{"Run", run.ID},
		{"Title", displayTitle(run)},
		{"Input", run.Input},
		{"Status", formatRunStatus(run.Status)},
		{"Error", run.ErrorMessage},
		{"Deck", run.DeckDir},
		{"Interval", strconv.FormatFloat(run.IntervalSeconds, 'f', -1, 64) + "s"},
		{"Fingerprint", fmt.Sprintf("%s, %d bits", run.Algorithm, run.HashSize*run.HashSize)},
		{"Threshold", threshold},
		{"Mode", run.Mode},
		{"Slides", fmt.Sprintf("%d of %d frames", run.Accepted, run.Frames)},
		{"Started", formatDisplayTime(run.StartedAt)},
		{"Finished", finished},
		{"Elapsed", logging.FormatDurationHuman(run.Elapsed(now))},
	}
}
