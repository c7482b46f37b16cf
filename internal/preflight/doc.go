// Package preflight provides readiness checks for the filesystem paths and
// external tools framectl depends on.
//
// The frame source resolver calls CheckFreeSpace before decoding a video so a
// full disk fails fast instead of halfway through extraction. The doctor
// command runs RunAll to display overall health.
package preflight
