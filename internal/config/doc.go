// Package config loads, normalizes, and validates framectl configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// FRAMECTL_FFMPEG. The Config type centralizes the frame workspace, media
// tool, control pipeline, and logging knobs so every component receives
// sanitized values in one pass.
//
// Always obtain settings through this package so downstream code receives
// expanded paths, canonical log formats, and clear validation errors.
package config
