package lock

import (
	"encoding/hex"
	"fmt"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"lukechampine.com/blake3"

	errUtils "github.com/cloudposse/link-install/errors"
	log "github.com/cloudposse/link-install/pkg/logger"
	"github.com/cloudposse/link-install/pkg/xdg"
)

const (
	// MaxLockRetries is the number of times to retry acquiring a lock.
	maxLockRetries = 50
	// LockRetryDelay is the delay between lock retry attempts.
	lockRetryDelay = 10 * time.Millisecond

	keyLength = 16
)

// RunLock is an advisory cross-process lock held for the duration of a run.
type RunLock struct {
	lock *flock.Flock
	path string
}

// Key returns a stable file-name-safe identifier for an install directory.
func Key(installDir string) string {
	abs, err := filepath.Abs(installDir)
	if err != nil {
		abs = installDir
	}
	sum := blake3.Sum256([]byte(abs))
	return hex.EncodeToString(sum[:keyLength])
}

// PathFor returns the lock file of installDir under the XDG state directory.
// The lock lives outside the install directory so a run never adds files to the working tree.
func PathFor(installDir string) (string, error) {
	dir, err := xdg.GetXDGStateDir("locks", 0o700)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, Key(installDir)+".lock"), nil
}

// Acquire takes the exclusive lock at path, retrying briefly before giving up
// with ErrInstallDirLocked.
func Acquire(path string) (*RunLock, error) {
	fl := flock.New(path)

	var locked bool
	var err error
	for i := 0; i < maxLockRetries; i++ {
		locked, err = fl.TryLock()
		if err != nil {
			return nil, errUtils.Build(errUtils.ErrInstallDirLocked).WithCause(err).WithContext("lock", path).Err()
		}
		if locked {
			break
		}
		time.Sleep(lockRetryDelay)
	}

	if !locked {
		return nil, errUtils.Build(errUtils.ErrInstallDirLocked).
			WithCause(fmt.Errorf("lock %s is held by another process", path)).
			WithHint("Wait for the other link install in this directory to finish").
			Err()
	}

	log.Trace("Acquired run lock", "path", path)
	return &RunLock{lock: fl, path: path}, nil
}

// Path returns the lock file path.
func (l *RunLock) Path() string {
	return l.path
}

// Release unlocks. The lock file itself is left in place.
func (l *RunLock) Release() {
	if err := l.lock.Unlock(); err != nil {
		log.Trace("Failed to release run lock", "error", err, "path", l.path)
	}
}
