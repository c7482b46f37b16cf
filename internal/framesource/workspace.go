package framesource

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"

	"framectl/internal/logging"
)

const (
	workspacePrefix = "frames-"
	lockSuffix      = ".lock"
)

type workspace struct {
	dir  string
	lock *flock.Flock
}

func createWorkspace(root string) (*workspace, error) {
	dir, err := os.MkdirTemp(root, workspacePrefix+"*")
	if err != nil {
		return nil, err
	}
	lock := flock.New(dir + lockSuffix)
	ok, err := lock.TryLock()
	if err == nil && !ok {
		err = errors.New("workspace lock held by another process")
	}
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("lock workspace: %w", err)
	}
	return &workspace{dir: dir, lock: lock}, nil
}

func (w *workspace) remove() error {
	err := os.RemoveAll(w.dir)
	_ = os.Remove(w.lock.Path())
	if unlockErr := w.lock.Unlock(); unlockErr != nil && err == nil {
		err = unlockErr
	}
	return err
}

// PruneStale removes workspaces under root whose lock can be acquired, which
// means no live call owns them. It returns the number removed.
func PruneStale(root string, logger *slog.Logger) int {
	entries, err := os.ReadDir(root)
	if err != nil {
		return 0
	}
	pruned := 0
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() || !strings.HasPrefix(name, workspacePrefix) {
			continue
		}
		dir := filepath.Join(root, name)
		lock := flock.New(dir + lockSuffix)
		ok, err := lock.TryLock()
		if err != nil || !ok {
			continue
		}
		if err := os.RemoveAll(dir); err != nil {
			logging.WarnWithContext(logger, "failed to prune frame workspace", "workspace_prune_failed",
				logging.String("workspace", dir),
				logging.Error(err),
			)
		} else {
			pruned++
		}
		_ = os.Remove(lock.Path())
		_ = lock.Unlock()
	}
	return pruned
}
