// Package lockfile implements cross-process advisory locks as lock files
// with stale-holder detection.
package lockfile

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"go.trai.ch/keg/internal/core/ports"
	"go.trai.ch/zerr"
)

// DefaultStaleAfter is how old a lock file may grow before it is presumed
// abandoned by a crashed holder and broken.
const DefaultStaleAfter = 10 * time.Minute

const pollInterval = 50 * time.Millisecond

var _ ports.Locker = (*Locker)(nil)

// Locker hands out advisory locks under a single directory. A lock is one
// file created with O_EXCL; holding the file means holding the lock.
type Locker struct {
	dir        string
	staleAfter time.Duration
}

// New creates a Locker rooted at dir.
func New(dir string) *Locker {
	return &Locker{dir: dir, staleAfter: DefaultStaleAfter}
}

// NewWithStaleAfter creates a Locker with a custom staleness window.
func NewWithStaleAfter(dir string, staleAfter time.Duration) *Locker {
	return &Locker{dir: dir, staleAfter: staleAfter}
}

type lockInfo struct {
	PID       int       `json:"pid"`
	CreatedAt time.Time `json:"created_at"`
}

// Acquire blocks until the named lock is held or ctx is done. The returned
// release removes the lock file; it is safe to call exactly once and runs on
// every exit path of well-behaved callers.
func (l *Locker) Acquire(ctx context.Context, name string) (ports.ReleaseFunc, error) {
	if err := os.MkdirAll(l.dir, 0o750); err != nil {
		return nil, zerr.Wrap(err, "failed to create lock directory")
	}
	path := filepath.Join(l.dir, name+".lock")

	for {
		ok, err := l.tryAcquire(path)
		if err != nil {
			return nil, err
		}
		if ok {
			return func() error {
				if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
					return zerr.With(zerr.Wrap(err, "failed to release lock"), "lock", name)
				}
				return nil
			}, nil
		}

		l.breakIfStale(path)

		select {
		case <-ctx.Done():
			return nil, zerr.With(zerr.Wrap(ctx.Err(), "gave up waiting for lock"), "lock", name)
		case <-time.After(pollInterval):
		}
	}
}

func (l *Locker) tryAcquire(path string) (bool, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644) //nolint:gosec // Path is under the locker's own directory
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return false, nil
		}
		return false, zerr.Wrap(err, "failed to create lock file")
	}
	info := lockInfo{PID: os.Getpid(), CreatedAt: time.Now().UTC()}
	data, _ := json.Marshal(info)
	_, werr := f.Write(data)
	cerr := f.Close()
	if werr != nil || cerr != nil {
		_ = os.Remove(path)
		return false, zerr.Wrap(errors.Join(werr, cerr), "failed to write lock file")
	}
	return true, nil
}

// breakIfStale removes a lock file whose holder is presumed dead. The mtime
// is the staleness signal; a healthy long-running holder is expected to
// finish well inside the window.
func (l *Locker) breakIfStale(path string) {
	st, err := os.Stat(path)
	if err != nil {
		return
	}
	if time.Since(st.ModTime()) > l.staleAfter {
		_ = os.Remove(path)
	}
}
