package cache

import (
	"context"
	"path/filepath"

	"github.com/grindlemire/graft"
	"go.trai.ch/keg/internal/adapters/config"    //nolint:depguard // Wired in adapter wiring
	"go.trai.ch/keg/internal/adapters/lockfile"  //nolint:depguard // Wired in adapter wiring
	"go.trai.ch/keg/internal/adapters/logger"    //nolint:depguard // Wired in adapter wiring
	"go.trai.ch/keg/internal/adapters/repodata"  //nolint:depguard // Wired in adapter wiring
	"go.trai.ch/keg/internal/adapters/telemetry" //nolint:depguard // Wired in adapter wiring
	"go.trai.ch/keg/internal/core/ports"
)

// NodeID is the unique identifier for the package cache Graft node.
const NodeID graft.ID = "adapter.cache"

func init() {
	graft.Register(graft.Node[ports.PackageCache]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{config.NodeID, repodata.FetcherNodeID, lockfile.NodeID, telemetry.NodeID, logger.NodeID},
		Run: func(ctx context.Context) (ports.PackageCache, error) {
			loader, err := graft.Dep[ports.ConfigLoader](ctx)
			if err != nil {
				return nil, err
			}
			cfg, err := loader.Load()
			if err != nil {
				return nil, err
			}
			fetcher, err := graft.Dep[ports.Fetcher](ctx)
			if err != nil {
				return nil, err
			}
			locker, err := graft.Dep[ports.Locker](ctx)
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
			return NewStore(filepath.Join(cfg.CacheRoot, "cache"), fetcher, cfg.Channels, locker, tel, log)
		},
	})
}
