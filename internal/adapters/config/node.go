package config

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/keg/internal/core/ports"
)

// NodeID is the unique identifier for the config loader Graft node.
const NodeID graft.ID = "adapter.config"

func init() {
	graft.Register(graft.Node[ports.ConfigLoader]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(_ context.Context) (ports.ConfigLoader, error) {
			// An empty Path defers to KEG_CONFIG and file discovery at load
			// time, after the CLI has parsed its flags.
			return &FileLoader{}, nil
		},
	})
}
