// Command framectl inspects and exercises the frame control pipeline outside a
// host: it validates configuration, probes and extracts video frames, plans
// job files (source resolution and length reconciliation), lists the run
// ledger and checks the environment.
package main
