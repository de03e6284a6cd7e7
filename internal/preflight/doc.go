// Package preflight provides readiness checks for the external tools and
// filesystem paths vid2deck depends on.
//
// These checks run in two contexts:
//   - The build command calls RequireBinaries before starting so a missing
//     ffmpeg fails fast instead of after a long download.
//   - The status command calls RunAll and CheckSystemDeps to display every
//     check with its detail.
package preflight
