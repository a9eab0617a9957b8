// Package prefix implements the on-disk environment prefix: the per-package
// record store and the transactional link/unlink executor.
package prefix

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.trai.ch/keg/internal/core/domain"
	"go.trai.ch/keg/internal/core/ports"
	"go.trai.ch/zerr"
)

// kegDir is the prefix-internal directory holding records, staging areas and
// the transaction journal.
const kegDir = ".keg"

var _ ports.PrefixStore = (*RecordStore)(nil)

// RecordStore persists one JSON record per installed package under
// <prefix>/.keg/meta. The records on disk are the source of truth for the
// environment state.
type RecordStore struct {
	prefix string
}

// NewRecordStore creates a record store for the given prefix.
func NewRecordStore(prefix string) *RecordStore {
	return &RecordStore{prefix: filepath.Clean(prefix)}
}

// Get retrieves the record for a package name.
func (s *RecordStore) Get(name domain.InternedString) (*domain.PrefixRecord, error) {
	data, err := os.ReadFile(s.recordPath(name.String()))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, zerr.With(zerr.Wrap(domain.ErrRecordNotFound, "no record for package"), "package", name.String())
	}
	if err != nil {
		return nil, zerr.Wrap(err, "failed to read prefix record")
	}
	var rec domain.PrefixRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to decode prefix record"), "package", name.String())
	}
	return &rec, nil
}

// All returns every record, sorted by name.
func (s *RecordStore) All() ([]domain.PrefixRecord, error) {
	entries, err := os.ReadDir(s.metaDir())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, zerr.Wrap(err, "failed to list prefix records")
	}

	var records []domain.PrefixRecord
	for _, entry := range entries {
		name, ok := strings.CutSuffix(entry.Name(), ".json")
		if !ok || entry.IsDir() {
			continue
		}
		rec, err := s.Get(domain.NewInternedString(name))
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, nil
}

// Put writes or replaces the record for its name.
func (s *RecordStore) Put(rec *domain.PrefixRecord) error {
	if err := os.MkdirAll(s.metaDir(), 0o755); err != nil {
		return zerr.Wrap(err, "failed to create record directory")
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return zerr.Wrap(err, "failed to encode prefix record")
	}
	path := s.recordPath(rec.Record.Name.String())
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil { //nolint:gosec // Prefix records are world-readable
		return zerr.Wrap(err, "failed to write prefix record")
	}
	if err := os.Rename(tmp, path); err != nil {
		return zerr.Wrap(err, "failed to publish prefix record")
	}
	return nil
}

// Delete removes the record for a name.
func (s *RecordStore) Delete(name domain.InternedString) error {
	err := os.Remove(s.recordPath(name.String()))
	if errors.Is(err, fs.ErrNotExist) {
		return zerr.With(zerr.Wrap(domain.ErrRecordNotFound, "no record for package"), "package", name.String())
	}
	if err != nil {
		return zerr.Wrap(err, "failed to delete prefix record")
	}
	return nil
}

// State assembles the environment state from the stored records.
func (s *RecordStore) State() (*domain.EnvironmentState, error) {
	records, err := s.All()
	if err != nil {
		return nil, err
	}
	state := domain.NewEnvironmentState()
	for i := range records {
		if err := state.Add(records[i].Installed()); err != nil {
			return nil, err
		}
	}
	return state, nil
}

func (s *RecordStore) metaDir() string {
	return filepath.Join(s.prefix, kegDir, "meta")
}

func (s *RecordStore) recordPath(name string) string {
	return filepath.Join(s.metaDir(), name+".json")
}
