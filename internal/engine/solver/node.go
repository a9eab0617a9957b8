package solver

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/keg/internal/adapters/logger" //nolint:depguard // Wired in engine wiring
	"go.trai.ch/keg/internal/core/ports"
)

// NodeID is the unique identifier for the resolver Graft node.
const NodeID graft.ID = "engine.solver"

func init() {
	graft.Register(graft.Node[ports.Solver]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{logger.NodeID},
		Run: func(ctx context.Context) (ports.Solver, error) {
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			return NewResolver(log), nil
		},
	})
}
