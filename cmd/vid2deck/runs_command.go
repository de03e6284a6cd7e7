package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"vid2deck/internal/catalog"
	"vid2deck/internal/logging"
	"vid2deck/internal/services"
)

type runView struct {
	ID              string  `json:"id"`
	VideoKey        string  `json:"video_key"`
	Title           string  `json:"title"`
	Input           string  `json:"input"`
	DeckDir         string  `json:"deck_dir"`
	Status          string  `json:"status"`
	IntervalSeconds float64 `json:"interval_seconds"`
	Threshold       int     `json:"threshold"`
	AutoThreshold   bool    `json:"auto_threshold"`
	Algorithm       string  `json:"algorithm"`
	HashSize        int     `json:"hash_size"`
	Mode            string  `json:"mode"`
	Frames          int     `json:"frames"`
	Accepted        int     `json:"accepted"`
	Rejected        int     `json:"rejected"`
	Error           string  `json:"error,omitempty"`
	StartedAt       string  `json:"started_at"`
	FinishedAt      string  `json:"finished_at,omitempty"`
	ElapsedSeconds  float64 `json:"elapsed_seconds"`
}

func newRunView(run catalog.Run, now time.Time) runView {
	view := runView{
		ID:              run.ID,
		VideoKey:        run.VideoKey,
		Title:           run.Title,
		Input:           run.Input,
		DeckDir:         run.DeckDir,
		Status:          string(run.Status),
		IntervalSeconds: run.IntervalSeconds,
		Threshold:       run.Threshold,
		AutoThreshold:   run.AutoThreshold,
		Algorithm:       run.Algorithm,
		HashSize:        run.HashSize,
		Mode:            run.Mode,
		Frames:          run.Frames,
		Accepted:        run.Accepted,
		Rejected:        run.Rejected,
		Error:           run.ErrorMessage,
		StartedAt:       run.StartedAt.UTC().Format(time.RFC3339),
		ElapsedSeconds:  run.Elapsed(now).Seconds(),
	}
	if run.FinishedAt != nil {
		view.FinishedAt = run.FinishedAt.UTC().Format(time.RFC3339)
	}
	return view
}

func newRunsCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded deck builds",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openCatalog()
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			now := time.Now()
			if jsonOutput {
				views := make([]runView, 0, len(runs))
				for _, run := range runs {
					views = append(views, newRunView(run, now))
				}
				return writeJSON(cmd, views)
			}
			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded")
				return nil
			}
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "Title", "Status", "Slides", "Frames", "Started", "Elapsed"},
				buildRunRows(runs, now),
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignRight},
			))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum runs to list; 0 lists all")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print runs as JSON")

	cmd.AddCommand(newRunsRemoveCommand(ctx))
	return cmd
}

func newRunsRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <run-id>...",
		Short: "Remove runs from the catalog",
		Long:  "Remove runs and their slide records from the catalog. Deck directories on disk are left alone.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openCatalog()
			if err != nil {
				return err
			}
			defer store.Close()

			for _, arg := range args {
				run, err := lookupRun(cmd, store, arg)
				if err != nil {
					return err
				}
				if err := store.DeleteRun(cmd.Context(), run.ID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed run %s (%s)\n", run.ShortID(), displayTitle(*run))
			}
			return nil
		},
	}
}

// lookupRun resolves a full run ID or unique prefix.
func lookupRun(cmd *cobra.Command, store *catalog.Store, id string) (*catalog.Run, error) {
	id = strings.ToLower(strings.TrimSpace(id))
	run, err := store.GetRun(cmd.Context(), id)
	if errors.Is(err, catalog.ErrAmbiguousRun) {
		return nil, services.Wrap(services.ErrValidation, "cli", "lookup run", "use a longer prefix", err)
	}
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, services.Wrap(services.ErrNotFound, "cli", "lookup run", fmt.Sprintf("no run matches %q", id), nil)
	}
	return run, nil
}

func buildRunRows(runs []catalog.Run, now time.Time) [][]string {
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, []string{
			run.ShortID(),
			displayTitle(run),
			formatRunStatus(run.Status),
			strconv.Itoa(run.Accepted),
			strconv.Itoa(run.Frames),
			formatDisplayTime(run.StartedAt),
			logging.FormatDurationHuman(run.Elapsed(now)),
		})
	}
	return rows
}

func displayTitle(run catalog.Run) string {
	if title := strings.TrimSpace(run.Title); title != "" {
		return title
	}
	if run.VideoKey != "" {
		return run.VideoKey
	}
	return "Unknown"
}

func formatRunStatus(status catalog.RunStatus) string {
	s := string(status)
	if s == "" {
		return ""
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func formatDisplayTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("2006-01-02 15:04")
}
