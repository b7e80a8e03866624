package checkpoint

import (
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// Lock is an exclusive-creation lock file guarding a checkpoint. Only
// one orchestrator instance may own a checkpoint at a time; a resumed
// run must acquire the lock before reading the checkpoint.
type Lock struct {
	path string
}

// AcquireLock creates the lock file exclusively, recording the owning
// run ID and pid for diagnostics. Returns ErrLocked (with the current
// owner if readable) when the file already exists.
func AcquireLock(path, runID string) (*Lock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			owner := "unknown"
			if data, readErr := os.ReadFile(path); readErr == nil {
				owner = strings.TrimSpace(string(data))
			}
			return nil, errors.Wrapf(ErrLocked, "%s held by %s", path, owner)
		}
		return nil, errors.Wrapf(err, "create lock %s", path)
	}

	fmt.Fprintf(f, "run_id=%s pid=%d\n", runID, os.Getpid())
	if err := f.Close(); err != nil {
		os.Remove(path)
		return nil, errors.Wrapf(err, "write lock %s", path)
	}
	return &Lock{path: path}, nil
}

// Release removes the lock file.
func (l *Lock) Release() error {
	return os.Remove(l.path)
}
