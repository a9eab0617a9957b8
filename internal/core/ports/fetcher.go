package ports

import (
	"context"
	"io"

	"go.trai.ch/keg/internal/core/domain"
)

// Fetcher is the transport boundary of the synchronizer and the cache
// manager. Implementations retry transient failures with bounded backoff and
// surface exhaustion as domain.ErrChannelFetch; a timed-out fetch is never
// reported as "unchanged".
//
//go:generate mockgen -source=fetcher.go -destination=mocks/mock_fetcher.go -package=mocks
type Fetcher interface {
	// FetchIndex downloads the full index document for (channel, subdir).
	// The prior sync state is sent as conditional-request validators; an
	// unchanged index is reported via IndexDocument.Unchanged.
	FetchIndex(ctx context.Context, channel domain.Channel, subdir string, prior domain.SyncState) (*domain.IndexDocument, error)

	// FetchPatches downloads the channel's incremental patch document.
	FetchPatches(ctx context.Context, channel domain.Channel, subdir string) (*domain.PatchSet, error)

	// FetchArchive streams the package archive for a record into dst and
	// returns the byte count written.
	FetchArchive(ctx context.Context, channel domain.Channel, record *domain.PackageRecord, dst io.Writer) (int64, error)
}
