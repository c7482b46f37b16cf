// Package services defines shared utilities consumed by the control pipeline
// and its external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, stage names, and control unit
//     indexes for logging.
//   - Structured error markers plus the Wrap helper that translate failures
//     into consistent run ledger statuses (failed vs rejected).
//
// Use these helpers when wiring new pipeline steps so error handling and
// observability stay uniform.
package services
