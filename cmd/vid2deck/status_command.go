package main

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"vid2deck/internal/catalog"
	"vid2deck/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check external tools, directories and the catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			var lines []string
			if ctx.configPath != "" {
				lines = append(lines, renderStatusLine("Config", statusInfo, ctx.configPath, colorize))
			}
			lines = append(lines, renderSectionHeader("Dependencies", colorize)...)
			lines = append(lines, dependencyLines(preflight.CheckSystemDeps(cmd.Context(), cfg), colorize)...)
			lines = append(lines, renderSectionHeader("Storage", colorize)...)
			lines = append(lines, preflightLines(preflight.RunAll(cmd.Context(), cfg), colorize)...)

			if store, err := ctx.openCatalog(); err == nil {
				stats, statsErr := store.Stats(cmd.Context())
				store.Close()
				if statsErr == nil {
					lines = append(lines, renderSectionHeader("Catalog", colorize)...)
					lines = append(lines, catalogLines(stats, colorize)...)
				}
			}

			for _, line := range lines {
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}
}

func catalogLines(stats catalog.Stats, colorize bool) []string {
	lines := []string{
		renderStatusLine("Videos", statusInfo, fmt.Sprintf("%d", stats.Videos), colorize),
		renderStatusLine("Slides", statusInfo, fmt.Sprintf("%d", stats.Slides), colorize),
	}
	statuses := make([]catalog.RunStatus, 0, len(stats.Runs))
	for status := range stats.Runs {
		statuses = append(statuses, status)
	}
	slices.Sort(statuses)
	for _, status := range statuses {
		kind := statusInfo
		if status == catalog.RunFailed {
			kind = statusWarn
		}
		lines = append(lines, renderStatusLine("Runs "+formatRunStatus(status), kind, fmt.Sprintf("%d", stats.Runs[status]), colorize))
	}
	return lines
}
