package lockfile

import (
	"context"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/grindlemire/graft"
	"go.trai.ch/keg/internal/core/ports"
)

// NodeID is the unique identifier for the locker adapter Graft node.
const NodeID graft.ID = "adapter.locker"

func init() {
	graft.Register(graft.Node[ports.Locker]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(_ context.Context) (ports.Locker, error) {
			return New(filepath.Join(xdg.CacheHome, "keg", "locks")), nil
		},
	})
}
