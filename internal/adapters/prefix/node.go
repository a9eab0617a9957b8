package prefix

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/keg/internal/adapters/cache"     //nolint:depguard // Wired in adapter wiring
	"go.trai.ch/keg/internal/adapters/lockfile"  //nolint:depguard // Wired in adapter wiring
	"go.trai.ch/keg/internal/adapters/logger"    //nolint:depguard // Wired in adapter wiring
	"go.trai.ch/keg/internal/adapters/telemetry" //nolint:depguard // Wired in adapter wiring
	"go.trai.ch/keg/internal/core/ports"
)

// NodeID is the unique identifier for the executor Graft node.
const NodeID graft.ID = "adapter.prefix.executor"

func init() {
	graft.Register(graft.Node[ports.Executor]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{lockfile.NodeID, cache.NodeID, telemetry.NodeID, logger.NodeID},
		Run: func(ctx context.Context) (ports.Executor, error) {
			locker, err := graft.Dep[ports.Locker](ctx)
			if err != nil {
				return nil, err
			}
			pkgCache, err := graft.Dep[ports.PackageCache](ctx)
			if err != nil {
				return nil, err
			}
			tel, err := graft.Dep[ports.Telemetry](ctx)
			if err != nil {
				return nil, err
			}
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			return NewExecutor(locker, pkgCache, tel, log), nil
		},
	})
}
