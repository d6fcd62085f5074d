package filesystem

import (
	"os"
)

// FileSystem defines the filesystem operations link-install mutates the tree with.
// Undo actions and the packager go through it so tests can observe or fail writes.
//
//go:generate go run go.uber.org/mock/mockgen@latest -source=$GOFILE -destination=mock_$GOFILE -package=$GOPACKAGE
type FileSystem interface {
	// Stat returns file info.
	Stat(name string) (os.FileInfo, error)

	// ReadFile reads a file.
	ReadFile(name string) ([]byte, error)

	// WriteFile atomically replaces the content of a file.
	WriteFile(name string, data []byte, perm os.FileMode) error

	// MkdirAll creates a directory and all parent directories.
	MkdirAll(path string, perm os.FileMode) error

	// RemoveAll removes a path and any children. A missing path is not an error.
	RemoveAll(path string) error

	// Rename moves a file, replacing the destination.
	Rename(oldpath, newpath string) error

	// Copy copies a file or directory tree.
	Copy(src, dst string) error
}

// Exists reports whether path exists. Errors other than "not exist" count as existing
// so callers never treat an unreadable file as absent.
func Exists(fs FileSystem, path string) bool {
	_, err := fs.Stat(path)
	return err == nil || !os.IsNotExist(err)
}
