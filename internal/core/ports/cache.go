package ports

import (
	"context"

	"go.trai.ch/keg/internal/core/domain"
)

// PackageCache is the shared, content-addressable store of downloaded and
// extracted packages. Entries are keyed by the record's content hash and are
// either fully present or fully absent, never partial.
//
//go:generate mockgen -source=cache.go -destination=mocks/mock_cache.go -package=mocks
type PackageCache interface {
	// Ensure makes the record's content present and verified in the cache
	// and returns the entry's directory. It is idempotent; concurrent calls
	// for the same hash perform at most one download.
	Ensure(ctx context.Context, record *domain.PackageRecord) (string, error)

	// Manifest returns the verified file manifest of a published entry.
	Manifest(contentHash string) (*domain.Manifest, error)

	// Incref notes that a prefix references the entry.
	Incref(contentHash, prefix string) error

	// Decref drops a prefix's reference. A count of zero never triggers
	// deletion; eviction is explicit.
	Decref(contentHash, prefix string) error

	// Evict removes an unreferenced entry. It returns
	// domain.ErrCacheEntryBusy while any prefix still references it.
	Evict(contentHash string) error
}
