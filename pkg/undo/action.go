package undo

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"

	errUtils "github.com/cloudposse/link-install/errors"
	"github.com/cloudposse/link-install/pkg/filesystem"
)

const defaultFileMode os.FileMode = 0o644

// Action is a reversible filesystem change.
// Undo must be idempotent: calling it twice leaves the same state as calling it once.
type Action interface {
	Undo() error
	String() string
}

// RecordKind identifies the serialized form of an action.
type RecordKind string

const (
	RecordSnapshot RecordKind = "snapshot"
	RecordRemove   RecordKind = "remove"
)

// Record is the persisted form of an action, written to a Journal before the mutation happens.
type Record struct {
	Kind    RecordKind  `json:"kind"`
	Path    string      `json:"path"`
	Existed bool        `json:"existed,omitempty"`
	Content []byte      `json:"content,omitempty"`
	Mode    os.FileMode `json:"mode,omitempty"`
}

// Recordable is implemented by actions that can be journaled.
type Recordable interface {
	Record() Record
}

// Snapshot restores a file to the bytes it had when the snapshot was taken,
// or deletes it if it did not exist then.
type Snapshot struct {
	fs      filesystem.FileSystem
	path    string
	content []byte
	existed bool
	mode    os.FileMode
}

// NewSnapshot captures the current content of path.
func NewSnapshot(fs filesystem.FileSystem, path string) (*Snapshot, error) {
	s := &Snapshot{fs: fs, path: path, mode: defaultFileMode}

	info, err := fs.Stat(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "snapshot %s", path)
	}
	if info.IsDir() {
		return nil, errors.Newf("snapshot %s: is a directory", path)
	}

	content, err := fs.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "snapshot %s", path)
	}
	s.content = content
	s.existed = true
	s.mode = info.Mode().Perm()
	return s, nil
}

// NewSnapshotWithContent records content already read by the caller as the original bytes of path.
func NewSnapshotWithContent(fs filesystem.FileSystem, path string, content []byte) *Snapshot {
	mode := defaultFileMode
	if info, err := fs.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}
	return &Snapshot{fs: fs, path: path, content: content, existed: true, mode: mode}
}

// Path returns the protected file.
func (s *Snapshot) Path() string {
	return s.path
}

// Content returns the captured bytes.
func (s *Snapshot) Content() []byte {
	return s.content
}

// Existed reports whether the file existed when the snapshot was taken.
func (s *Snapshot) Existed() bool {
	return s.existed
}

func (s *Snapshot) Undo() error {
	if !s.existed {
		return s.fs.RemoveAll(s.path)
	}
	if err := s.fs.MkdirAll(filepath.Dir(s.path), os.ModePerm); err != nil {
		return err
	}
	return s.fs.WriteFile(s.path, s.content, s.mode)
}

func (s *Snapshot) String() string {
	if !s.existed {
		return fmt.Sprintf("restore %s (absent)", s.path)
	}
	return fmt.Sprintf("restore %s (%d bytes)", s.path, len(s.content))
}

func (s *Snapshot) Record() Record {
	return Record{Kind: RecordSnapshot, Path: s.path, Existed: s.existed, Content: s.content, Mode: s.mode}
}

// Remove deletes a path created during the run, recursively.
type Remove struct {
	fs   filesystem.FileSystem
	path string
}

// NewRemove records path for removal.
func NewRemove(fs filesystem.FileSystem, path string) *Remove {
	return &Remove{fs: fs, path: path}
}

// Path returns the path that will be removed.
func (r *Remove) Path() string {
	return r.path
}

func (r *Remove) Undo() error {
	return r.fs.RemoveAll(r.path)
}

func (r *Remove) String() string {
	return "remove " + r.path
}

func (r *Remove) Record() Record {
	return Record{Kind: RecordRemove, Path: r.path}
}

// ActionFromRecord rebuilds an action from its journaled form.
func ActionFromRecord(fs filesystem.FileSystem, rec Record) (Action, error) {
	if rec.Path == "" {
		return nil, errors.Wrap(errUtils.ErrJournalCorrupt, "record without path")
	}
	switch rec.Kind {
	case RecordSnapshot:
		mode := rec.Mode
		if mode == 0 {
			mode = defaultFileMode
		}
		return &Snapshot{fs: fs, path: rec.Path, content: rec.Content, existed: rec.Existed, mode: mode}, nil
	case RecordRemove:
		return NewRemove(fs, rec.Path), nil
	default:
		return nil, errors.Wrapf(errUtils.ErrJournalCorrupt, "unknown record kind %q", rec.Kind)
	}
}
