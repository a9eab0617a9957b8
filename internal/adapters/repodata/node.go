package repodata

import (
	"context"
	"path/filepath"

	"github.com/grindlemire/graft"
	"go.trai.ch/keg/internal/adapters/config"    //nolint:depguard // Wired in adapter wiring
	"go.trai.ch/keg/internal/adapters/logger"    //nolint:depguard // Wired in adapter wiring
	"go.trai.ch/keg/internal/adapters/telemetry" //nolint:depguard // Wired in adapter wiring
	"go.trai.ch/keg/internal/core/ports"
)

const (
	// FetcherNodeID is the unique identifier for the HTTP fetcher Graft node.
	FetcherNodeID graft.ID = "adapter.repodata.fetcher"
	// StoreNodeID is the unique identifier for the index store Graft node.
	StoreNodeID graft.ID = "adapter.repodata.store"
	// NodeID is the unique identifier for the synchronizer Graft node.
	NodeID graft.ID = "adapter.repodata"
)

func init() {
	graft.Register(graft.Node[ports.Fetcher]{
		ID:        FetcherNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{logger.NodeID},
		Run: func(ctx context.Context) (ports.Fetcher, error) {
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			return NewClient(log), nil
		},
	})

	graft.Register(graft.Node[ports.IndexStore]{
		ID:        StoreNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{config.NodeID},
		Run: func(ctx context.Context) (ports.IndexStore, error) {
			loader, err := graft.Dep[ports.ConfigLoader](ctx)
			if err != nil {
				return nil, err
			}
			cfg, err := loader.Load()
			if err != nil {
				return nil, err
			}
			return NewStore(filepath.Join(cfg.CacheRoot, "index"))
		},
	})

	graft.Register(graft.Node[ports.Synchronizer]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{FetcherNodeID, StoreNodeID, telemetry.NodeID, logger.NodeID},
		Run: func(ctx context.Context) (ports.Synchronizer, error) {
			fetcher, err := graft.Dep[ports.Fetcher](ctx)
			if err != nil {
				return nil, err
			}
			store, err := graft.Dep[ports.IndexStore](ctx)
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
			return NewSynchronizer(fetcher, store, tel, log), nil
		},
	})
}
