package main

import (
	"io"
	"sync"
	"time"

	"github.com/jedib0t/go-pretty/v6/progress"

	"vid2deck/internal/workflow"
)

var stageMessages = map[string]string{
	workflow.StageDownload:  "Resolving input",
	workflow.StageExtract:   "Extracting frames",
	workflow.StageCalibrate: "Calibrating",
	workflow.StageDedup:     "Selecting slides",
	workflow.StageAssemble:  "Writing deck",
}

// buildProgress renders one tracker per workflow stage. A tracker whose total
// is unknown renders as indeterminate.
type buildProgress struct {
	mu       sync.Mutex
	pw       progress.Writer
	trackers map[string]*progress.Tracker
	totals   map[string]int
	current  *progress.Tracker
}

func newBuildProgress(out io.Writer) *buildProgress {
	pw := progress.NewWriter()
	pw.SetOutputWriter(out)
	pw.SetAutoStop(false)
	pw.SetTrackerLength(30)
	pw.SetUpdateFrequency(100 * time.Millisecond)
	pw.SetStyle(progress.StyleDefault)
	pw.Style().Visibility.ETA = true
	pw.Style().Visibility.Value = true
	go pw.Render()
	return &buildProgress{
		pw:       pw,
		trackers: make(map[string]*progress.Tracker),
		totals:   make(map[string]int),
	}
}

func (b *buildProgress) update(p workflow.Progress) {
	b.mu.Lock()
	defer b.mu.Unlock()

	tracker, ok := b.trackers[p.Stage]
	if !ok {
		if b.current != nil && !b.current.IsDone() {
			b.current.MarkAsDone()
		}
		message := stageMessages[p.Stage]
		if message == "" {
			message = p.Stage
		}
		tracker = &progress.Tracker{Message: message, Total: int64(p.Total), Units: progress.UnitsDefault}
		b.pw.AppendTracker(tracker)
		b.trackers[p.Stage] = tracker
		b.totals[p.Stage] = p.Total
		b.current = tracker
	}
	if p.Total != b.totals[p.Stage] {
		tracker.UpdateTotal(int64(p.Total))
		b.totals[p.Stage] = p.Total
	}
	tracker.SetValue(int64(p.Done))
}

// finish marks every tracker done and waits for the final render.
func (b *buildProgress) finish(failed bool) {
	b.mu.Lock()
	for _, tracker := range b.trackers {
		if tracker.IsDone() {
			continue
		}
		if failed {
			tracker.MarkAsErrored()
		} else {
			tracker.MarkAsDone()
		}
	}
	b.mu.Unlock()

	b.pw.Stop()
	for b.pw.IsRenderInProgress() {
		time.Sleep(10 * time.Millisecond)
	}
}
