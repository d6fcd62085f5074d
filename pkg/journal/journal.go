package journal

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	jsoniter "github.com/json-iterator/go"
	bolt "go.etcd.io/bbolt"

	errUtils "github.com/cloudposse/link-install/errors"
	"github.com/cloudposse/link-install/pkg/filesystem"
	"github.com/cloudposse/link-install/pkg/lock"
	log "github.com/cloudposse/link-install/pkg/logger"
	"github.com/cloudposse/link-install/pkg/undo"
	"github.com/cloudposse/link-install/pkg/xdg"
)

var (
	recordsBucket = []byte("records")
	metaBucket    = []byte("meta")
	installDirKey = []byte("install_dir")
	startedKey    = []byte("started_at")
)

const openTimeout = time.Second

// Journal persists undo records in a bbolt database so a run that was killed before it could
// roll back can be reverted later by `link-install recover`.
type Journal struct {
	db   *bolt.DB
	path string
}

// Entry is a pending record.
type Entry struct {
	ID     uint64
	Record undo.Record
}

// PathFor returns the journal file of installDir under the XDG state directory.
func PathFor(installDir string) (string, error) {
	dir, err := xdg.GetXDGStateDir("journals", 0o700)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, lock.Key(installDir)+".db"), nil
}

// Open opens or creates the journal at path.
func Open(path string) (*Journal, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: openTimeout})
	if err != nil {
		return nil, errUtils.Build(errUtils.ErrJournalOpen).WithCause(err).WithContext("path", path).Err()
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(recordsBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(metaBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, errUtils.Build(errUtils.ErrJournalOpen).WithCause(err).WithContext("path", path).Err()
	}
	return &Journal{db: db, path: path}, nil
}

// Path returns the database file.
func (j *Journal) Path() string {
	return j.path
}

// Begin records which install directory the journal belongs to.
func (j *Journal) Begin(installDir string) error {
	return j.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(metaBucket)
		if err := b.Put(installDirKey, []byte(installDir)); err != nil {
			return err
		}
		return b.Put(startedKey, []byte(time.Now().UTC().Format(time.RFC3339)))
	})
}

// InstallDir returns the install directory recorded by Begin.
func (j *Journal) InstallDir() (string, error) {
	var dir string
	err := j.db.View(func(tx *bolt.Tx) error {
		dir = string(tx.Bucket(metaBucket).Get(installDirKey))
		return nil
	})
	return dir, err
}

// Append stores rec and returns its id. Ids increase monotonically.
func (j *Journal) Append(rec undo.Record) (uint64, error) {
	var json = jsoniter.ConfigDefault
	data, err := json.Marshal(rec)
	if err != nil {
		return 0, errors.Join(errUtils.ErrJournalWrite, err)
	}

	var id uint64
	err = j.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(recordsBucket)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		id = seq
		return b.Put(itob(id), data)
	})
	if err != nil {
		return 0, errors.Join(errUtils.ErrJournalWrite, err)
	}
	return id, nil
}

// Retire deletes the record id.
func (j *Journal) Retire(id uint64) error {
	err := j.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(recordsBucket).Delete(itob(id))
	})
	if err != nil {
		return errors.Join(errUtils.ErrJournalWrite, err)
	}
	return nil
}

// Pending lists the records that were neither reversed nor committed, oldest first.
func (j *Journal) Pending() ([]Entry, error) {
	var json = jsoniter.ConfigDefault
	var entries []Entry
	err := j.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(recordsBucket).ForEach(func(k, v []byte) error {
			var rec undo.Record
			if err := json.Unmarshal(v, &rec); err != nil {
				return errUtils.Build(errUtils.ErrJournalCorrupt).WithCause(err).WithContext("id", btoi(k)).Err()
			}
			entries = append(entries, Entry{ID: btoi(k), Record: rec})
			return nil
		})
	})
	return entries, err
}

// Recover reverses every pending record, newest first. Records that were reversed are
// retired; failures are logged and joined into the returned error.
func (j *Journal) Recover(fs filesystem.FileSystem) (int, error) {
	entries, err := j.Pending()
	if err != nil {
		return 0, err
	}

	var errs []error
	recovered := 0
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		action, err := undo.ActionFromRecord(fs, e.Record)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		log.Info("Reverting", "action", action.String())
		if err := action.Undo(); err != nil {
			log.Warn("Failed to revert", "action", action.String(), "error", err)
			errs = append(errs, err)
			continue
		}
		if err := j.Retire(e.ID); err != nil {
			errs = append(errs, err)
			continue
		}
		recovered++
	}

	if len(errs) > 0 {
		return recovered, fmt.Errorf("%w: %w", errUtils.ErrRollbackIncomplete, errors.Join(errs...))
	}
	return recovered, nil
}

// Close closes the database. When no record is pending the file is deleted.
func (j *Journal) Close() error {
	pending, err := j.Pending()
	if cerr := j.db.Close(); cerr != nil {
		return cerr
	}
	if err == nil && len(pending) == 0 {
		if err := os.Remove(j.path); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func btoi(b []byte) uint64 {
	return binary.BigEndian.Uint64(b)
}
