// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Inspect runs ffprobe against a video and returns the streams and container
// metadata. The helpers on Result pick the first video stream and estimate
// its frame count so the frame source resolver can reject unreadable inputs
// and size its workspace before decoding.
package ffprobe
