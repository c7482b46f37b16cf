// Package framesource turns video files, frame directories and per-unit batch
// lists into ordered frame sequences and reconciles their lengths.
//
// A video file is decoded by ffmpeg into a workspace under paths.frames_dir.
// Each workspace holds a flock lock file next to it for as long as the owning
// call is running, so a resolver starting up can prune workspaces left behind
// by processes that died mid-call. Callers must Release every Source they
// resolve, on every exit path.
package framesource
