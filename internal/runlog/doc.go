// Package runlog records every generation call that passes through the batch
// wrapper: the reconciled video length and batch size, the seeds, the enabled
// units and the final status. It is the persistent counterpart of the
// parameter text a host writes next to its outputs.
//
// The ledger is a SQLite database under paths.state_dir with migrations
// embedded from migrations/*.sql.
package runlog
