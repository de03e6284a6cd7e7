// Package deps checks the external binaries vid2deck shells out to.
package deps

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"vid2deck/internal/config"
)

// Requirement defines an external dependency.
type Requirement struct {
	Name        string
	Command     string
	Description string
	// VersionFlag is passed to the binary to read its version; empty skips it.
	VersionFlag string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Path        string
	Description string
	Optional    bool
	Available   bool
	Version     string
	Detail      string
}

// Requirements lists the binaries used by the configured pipeline. yt-dlp is
// optional because local files never need it.
func Requirements(cfg *config.Config) []Requirement {
	return []Requirement{
		{Name: "FFmpeg", Command: cfg.Extraction.FFmpegBinary, Description: "Samples frames from the video", VersionFlag: "-version"},
		{Name: "FFprobe", Command: cfg.Extraction.FFprobeBinary, Description: "Reads video geometry and duration", VersionFlag: "-version"},
		{Name: "yt-dlp", Command: cfg.Download.YtDlpBinary, Description: "Downloads remote videos", VersionFlag: "--version", Optional: true},
	}
}

// CheckBinaries resolves each requirement on PATH and, when available, reads
// the first line of its version output.
func CheckBinaries(ctx context.Context, requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		path, err := exec.LookPath(cmd)
		if err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Path = path
		status.Available = true
		if req.VersionFlag != "" {
			status.Version = Version(ctx, path, req.VersionFlag)
		}
		results = append(results, status)
	}
	return results
}

// Missing returns the required (non-optional) dependencies that are unavailable.
func Missing(statuses []Status) []Status {
	var out []Status
	for _, s := range statuses {
		if !s.Available && !s.Optional {
			out = append(out, s)
		}
	}
	return out
}

// Version runs binary with flag and returns the first non-empty output line.
// Failures yield "".
func Version(ctx context.Context, binary, flag string) string {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	out, err := exec.CommandContext(ctx, binary, flag).Output()
	if err != nil {
		return ""
	}
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			return line
		}
	}
	return ""
}
