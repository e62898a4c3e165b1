// Package atomicfile implements crash-safe durable writes over a single
// file path: the current file is renamed to a backup, the new content is
// written in its place and fsynced before the backup is discarded, and
// exclusive OS-level locking covers the whole
// critical section of each load or store.
package atomicfile

import (
	"fmt"
	"os"
	"sync"

	"github.com/gofrs/flock"
)

// Store manages atomic, lock-protected access to a single file. One Store
// instance should be used per file path within a process; it owns its own
// mutex and lock handle, with no module-level shared state.
type Store struct {
	path       string
	backupPath string

	// mu serializes in-process access; the OS lock below serializes
	// access across processes. Order is always mu, then the OS lock.
	mu   sync.Mutex
	lock *flock.Flock
}

// New returns a Store for path. The file need not yet exist.
func New(path string) *Store {
	return &Store{
		path:       path,
		backupPath: path + ".backup",
		lock:       flock.New(path + ".lock"),
	}
}

// Load reads the file's current contents under the exclusive lock. A
// missing file returns (nil, nil) — first-run callers are expected to
// treat that as "no committed state yet".
func (s *Store) Load() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.lock.Lock(); err != nil {
		return nil, fmt.Errorf("atomicfile: acquire lock: %w", err)
	}
	defer s.lock.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("atomicfile: read: %w", err)
	}
	return data, nil
}

// BackupExists reports whether an interrupted prior write left a backup
// file behind. Checked on startup per the external-interfaces contract.
func (s *Store) BackupExists() bool {
	_, err := os.Stat(s.backupPath)
	return err == nil
}

// LoadBackup reads the backup file's contents, if present.
func (s *Store) LoadBackup() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.backupPath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("atomicfile: read backup: %w", err)
	}
	return data, nil
}

// Store durably commits data to the file path. On return, the file either
// contains data or — if any step below failed — the prior committed
// content, per this algorithm:
//
//  1. If the target exists, rename it to a sibling ".backup" (the
//     rollback anchor).
//  2. Write the new content to the target path; flush then fsync.
//  3. On success, delete the backup.
//  4. On any failure between 1 and 3, rename the backup back to the
//     target path before returning the error.
func (s *Store) Store(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("atomicfile: acquire lock: %w", err)
	}
	defer s.lock.Unlock()

	hadTarget := false
	if _, err := os.Stat(s.path); err == nil {
		hadTarget = true
		if err := os.Rename(s.path, s.backupPath); err != nil {
			return fmt.Errorf("atomicfile: backup rename: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("atomicfile: stat target: %w", err)
	}

	if err := s.writeAndSync(data); err != nil {
		if hadTarget {
			if rerr := os.Rename(s.backupPath, s.path); rerr != nil {
				return fmt.Errorf("atomicfile: write failed (%v) and rollback failed: %w", err, rerr)
			}
		}
		return fmt.Errorf("atomicfile: write: %w", err)
	}

	if hadTarget {
		if err := os.Remove(s.backupPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("atomicfile: remove backup: %w", err)
		}
	}

	return nil
}

func (s *Store) writeAndSync(data []byte) error {
	f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}

// RestoreBackup renames the backup file back onto the target path,
// recovering the pre-crash committed state. It is a no-op, returning nil,
// when no backup exists.
func (s *Store) RestoreBackup() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.backupPath); os.IsNotExist(err) {
		return nil
	}
	return os.Rename(s.backupPath, s.path)
}
