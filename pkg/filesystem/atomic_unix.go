//go:build !windows

package filesystem

import (
	"os"

	"github.com/google/renameio/v2"
)

// writeFileAtomicImpl writes through a temp file in the same directory followed by rename.
// Manifests rewritten mid-run are never observed half-written by a concurrent reader or
// by a rollback triggered from a signal handler.
func writeFileAtomicImpl(filename string, data []byte, perm os.FileMode) error {
	return renameio.WriteFile(filename, data, perm)
}
