package ports

import (
	"context"

	"go.trai.ch/keg/internal/core/domain"
)

// Synchronizer keeps the local index cache of one or more channels in sync
// with the remote side. Sync either returns an index whose content hash
// matches what the server reports as current, or fails; it never returns a
// partially patched snapshot.
//
//go:generate mockgen -source=synchronizer.go -destination=mocks/mock_synchronizer.go -package=mocks
type Synchronizer interface {
	Sync(ctx context.Context, channel domain.Channel, subdir string) (*domain.Index, error)
}
