package cache

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"go.trai.ch/keg/internal/core/domain"
	"go.trai.ch/zerr"
)

const refsFilename = "refcounts.json"

// loadRefs reads the reference table from disk. A missing file means an
// empty table.
func (s *Store) loadRefs() error {
	s.refMu.Lock()
	defer s.refMu.Unlock()

	s.refs = make(map[string][]string)
	data, err := os.ReadFile(filepath.Join(s.root, refsFilename))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return zerr.Wrap(err, "failed to read reference table")
	}
	if err := json.Unmarshal(data, &s.refs); err != nil {
		return zerr.Wrap(err, "failed to decode reference table")
	}
	return nil
}

// saveRefs writes the reference table atomically. Callers must hold refMu.
func (s *Store) saveRefs() error {
	data, err := json.MarshalIndent(s.refs, "", "  ")
	if err != nil {
		return zerr.Wrap(err, "failed to encode reference table")
	}
	path := filepath.Join(s.root, refsFilename)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil { //nolint:gosec // Reference table is world-readable
		return zerr.Wrap(err, "failed to write reference table")
	}
	if err := os.Rename(tmp, path); err != nil {
		return zerr.Wrap(err, "failed to publish reference table")
	}
	return nil
}

// Incref notes that a prefix references the entry. Adding the same prefix
// twice is a no-op.
func (s *Store) Incref(contentHash, prefix string) error {
	s.refMu.Lock()
	defer s.refMu.Unlock()

	refs := s.refs[contentHash]
	if slices.Contains(refs, prefix) {
		return nil
	}
	refs = append(refs, prefix)
	slices.Sort(refs)
	s.refs[contentHash] = refs
	return s.saveRefs()
}

// Decref drops a prefix's reference. Dropping an absent reference is a
// no-op; a count of zero never deletes the entry.
func (s *Store) Decref(contentHash, prefix string) error {
	s.refMu.Lock()
	defer s.refMu.Unlock()

	refs := s.refs[contentHash]
	i := slices.Index(refs, prefix)
	if i < 0 {
		return nil
	}
	refs = slices.Delete(refs, i, i+1)
	if len(refs) == 0 {
		delete(s.refs, contentHash)
	} else {
		s.refs[contentHash] = refs
	}
	return s.saveRefs()
}

// Evict removes an unreferenced entry from disk. Entries still referenced by
// any prefix are protected by domain.ErrCacheEntryBusy.
func (s *Store) Evict(contentHash string) error {
	lock := s.entryLock(contentHash)
	lock.Lock()
	defer lock.Unlock()

	s.refMu.Lock()
	defer s.refMu.Unlock()

	if refs := s.refs[contentHash]; len(refs) > 0 {
		return zerr.With(zerr.With(zerr.Wrap(domain.ErrCacheEntryBusy, "entry is still referenced"), "content_hash", contentHash), "referenced_by", refs)
	}
	if err := os.RemoveAll(s.entryDir(contentHash)); err != nil {
		return zerr.Wrap(err, "failed to remove cache entry")
	}
	return nil
}
