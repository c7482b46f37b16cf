package testsupport

import (
	"testing"

	"framectl/internal/config"
	"framectl/internal/runlog"
)

// MustOpenStore opens the run ledger for cfg and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *runlog.Store {
	t.Helper()

	store, err := runlog.Open(cfg)
	if err != nil {
		t.Fatalf("runlog.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}
