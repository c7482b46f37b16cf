// Package bridge installs the frame control pipeline around a host's
// generation call sequence.
//
// The host exposes three hook points (host.HookPoints). Install swaps each one
// for a wrapper and remembers the original in a caller-owned HookState;
// Uninstall puts the exact originals back. The batch wrapper resolves frame
// sources and reconciles lengths before delegating. The generation wrapper
// builds the control plan and keeps the injection hook attached while the
// host denoises. The postprocess wrapper runs the plan's post-processors over
// the produced frames.
package bridge
