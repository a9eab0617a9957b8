package ports

import (
	"go.trai.ch/keg/internal/core/domain"
)

// PrefixStore persists one durable record per installed package inside a
// prefix. It is the on-disk source of truth for the environment state.
//
//go:generate mockgen -source=store.go -destination=mocks/mock_store.go -package=mocks
type PrefixStore interface {
	// Get retrieves the record for a package name.
	// Returns domain.ErrRecordNotFound if absent.
	Get(name domain.InternedString) (*domain.PrefixRecord, error)

	// All returns every record, sorted by name.
	All() ([]domain.PrefixRecord, error)

	// Put writes or replaces the record for its name.
	Put(rec *domain.PrefixRecord) error

	// Delete removes the record for a name. Deleting an absent name is an
	// error.
	Delete(name domain.InternedString) error

	// State assembles the environment state from the stored records.
	State() (*domain.EnvironmentState, error)
}

// IndexStore persists the per-(channel, subdir) local index cache together
// with its sync state. Save replaces the whole snapshot atomically.
type IndexStore interface {
	Load(channel, subdir string) (*domain.Index, domain.SyncState, error)
	Save(index *domain.Index, state domain.SyncState) error
}
