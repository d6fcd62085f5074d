package filesystem

import (
	"errors"
	"os"
	"path/filepath"
	"syscall"

	cp "github.com/otiai10/copy"
)

// OSFileSystem is the FileSystem backed by the local disk.
type OSFileSystem struct{}

// NewOSFileSystem creates a new OS filesystem.
func NewOSFileSystem() *OSFileSystem {
	return &OSFileSystem{}
}

func (o *OSFileSystem) Stat(name string) (os.FileInfo, error) {
	return os.Stat(name)
}

func (o *OSFileSystem) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(name)
}

func (o *OSFileSystem) WriteFile(name string, data []byte, perm os.FileMode) error {
	return WriteFileAtomic(name, data, perm)
}

func (o *OSFileSystem) MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

func (o *OSFileSystem) RemoveAll(path string) error {
	return os.RemoveAll(path)
}

// Rename falls back to copy+remove when the destination is on another device.
func (o *OSFileSystem) Rename(oldpath, newpath string) error {
	err := os.Rename(oldpath, newpath)
	if err == nil {
		return nil
	}
	var linkErr *os.LinkError
	if !errors.As(err, &linkErr) || !errors.Is(linkErr.Err, syscall.EXDEV) {
		return err
	}
	if err := o.Copy(oldpath, newpath); err != nil {
		return err
	}
	return os.Remove(oldpath)
}

// Copy copies src to dst, creating parent directories and preserving permissions.
func (o *OSFileSystem) Copy(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), os.ModePerm); err != nil {
		return err
	}
	return cp.Copy(src, dst, cp.Options{
		OnSymlink: func(string) cp.SymlinkAction {
			return cp.Deep
		},
		PermissionControl: cp.PerservePermission,
		Sync:              true,
	})
}

// WriteFileAtomic writes data so readers never observe a truncated file.
func WriteFileAtomic(filename string, data []byte, perm os.FileMode) error {
	return writeFileAtomicImpl(filename, data, perm)
}
