package repodata

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"go.trai.ch/keg/internal/core/domain"
	"go.trai.ch/keg/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.IndexStore = (*Store)(nil)

// Store persists one index snapshot per (channel, subdir) pair as a JSON file
// under its root directory. Saves replace the file atomically via a
// temp-and-rename, so readers never observe a half-written snapshot.
type Store struct {
	mu   sync.RWMutex
	root string
}

// NewStore creates a Store rooted at dir, creating it if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, zerr.Wrap(err, "failed to create index store root")
	}
	return &Store{root: dir}, nil
}

// snapshot is the on-disk form: the index plus the sync state it was
// fetched under.
type snapshot struct {
	State domain.SyncState `json:"state"`
	Index *domain.Index    `json:"index"`
}

// Load reads the cached index for a channel and subdir. A missing file is not
// an error; it returns a nil index with a zero sync state.
func (s *Store) Load(channel, subdir string) (*domain.Index, domain.SyncState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path(channel, subdir))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, domain.SyncState{}, nil
	}
	if err != nil {
		return nil, domain.SyncState{}, zerr.Wrap(err, "failed to read index snapshot")
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, domain.SyncState{}, zerr.With(zerr.Wrap(err, "failed to decode index snapshot"), "channel", channel)
	}
	if snap.Index != nil {
		snap.Index.Reindex()
	}
	return snap.Index, snap.State, nil
}

// Save writes the snapshot for the index's channel and subdir.
func (s *Store) Save(index *domain.Index, state domain.SyncState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(snapshot{State: state, Index: index}, "", "  ")
	if err != nil {
		return zerr.Wrap(err, "failed to encode index snapshot")
	}

	path := s.path(index.Channel, index.Subdir)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return zerr.Wrap(err, "failed to create channel directory")
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil { //nolint:gosec // Index snapshots are world-readable
		return zerr.Wrap(err, "failed to write index snapshot")
	}
	if err := os.Rename(tmp, path); err != nil {
		return zerr.Wrap(err, "failed to publish index snapshot")
	}
	return nil
}

func (s *Store) path(channel, subdir string) string {
	return filepath.Join(s.root, channel, fmt.Sprintf("%s.json", subdir))
}
