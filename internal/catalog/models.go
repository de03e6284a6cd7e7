package catalog

import "time"

// RunStatus tracks a deck build through its lifecycle.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// Video is a processed source. Key is the YouTube ID for downloads and a slug
// of the file name for local inputs.
type Video struct {
	Key        string
	YouTubeID  string
	Title      string
	URL        string
	SourcePath string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// RunParams describe a deck build as it starts.
type RunParams struct {
	VideoKey        string
	Input           string
	Title           string
	DeckDir         string
	IntervalSeconds float64
	Threshold       int
	AutoThreshold   bool
	Algorithm       string
	HashSize        int
	Mode            string
}

// Run is a recorded deck build.
type Run struct {
	ID              string
	VideoKey        string
	Input           string
	Title           string
	DeckDir         string
	IntervalSeconds float64
	Threshold       int
	AutoThreshold   bool
	Algorithm       string
	HashSize        int
	Mode            string
	Status          RunStatus
	Frames          int
	Accepted        int
	Rejected        int
	ErrorMessage    string
	StartedAt       time.Time
	FinishedAt      *time.Time
}

// ShortID returns the first eight characters of the run identifier.
func (r Run) ShortID() string {
	if len(r.ID) > 8 {
		return r.ID[:8]
	}
	return r.ID
}

// Elapsed reports how long the run took, or has taken so far.
func (r Run) Elapsed(now time.Time) time.Duration {
	end := now
	if r.FinishedAt != nil {
		end = *r.FinishedAt
	}
	if end.Before(r.StartedAt) {
		return 0
	}
	return end.Sub(r.StartedAt)
}

// Slide is one retained frame of a run.
type Slide struct {
	RunID       string
	Index       int
	Seconds     float64
	Image       string
	Fingerprint string
	Link        string
}

// Stats summarizes catalog contents.
type Stats struct {
	Videos int
	Runs   map[RunStatus]int
	Slides int
}
