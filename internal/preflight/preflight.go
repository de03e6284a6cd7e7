package preflight

import (
	"context"
	"strings"

	"vid2deck/internal/config"
	"vid2deck/internal/deps"
	"vid2deck/internal/services"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// minFreeBytes is the space below which the output and cache checks fail.
const minFreeBytes = 512 << 20

// RunAll executes the filesystem checks for cfg.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	results := []Result{
		CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir),
		CheckDirectoryAccess("Cache directory", cfg.Paths.CacheDir),
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
	}
	if strings.TrimSpace(cfg.Paths.LogDir) != "" {
		results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	}
	results = append(results,
		CheckFreeSpace("Output free space", cfg.Paths.OutputDir, minFreeBytes),
		CheckFreeSpace("Cache free space", cfg.Paths.CacheDir, minFreeBytes),
		CheckCatalog(ctx, cfg.CatalogPath()),
	)
	return results
}

// CheckSystemDeps evaluates every external binary the configured pipeline
// can call. The status command and RequireBinaries share this list.
func CheckSystemDeps(ctx context.Context, cfg *config.Config) []deps.Status {
	return deps.CheckBinaries(ctx, deps.Requirements(cfg))
}

// RequireBinaries fails when a required binary is missing. yt-dlp becomes
// required when needDownload is set.
func RequireBinaries(ctx context.Context, cfg *config.Config, needDownload bool) error {
	var missing []string
	for _, status := range CheckSystemDeps(ctx, cfg) {
		if status.Available {
			continue
		}
		if status.Optional && !(needDownload && status.Command == cfg.Download.YtDlpBinary) {
			continue
		}
		missing = append(missing, status.Name+" ("+status.Detail+")")
	}
	if len(missing) == 0 {
		return nil
	}
	return services.Wrap(services.ErrConfiguration, "preflight", "check binaries",
		"missing "+strings.Join(missing, ", "), nil)
}
