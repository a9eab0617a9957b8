package app

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/keg/internal/adapters/cache"    //nolint:depguard // Wired in app layer
	"go.trai.ch/keg/internal/adapters/config"   //nolint:depguard // Wired in app layer
	"go.trai.ch/keg/internal/adapters/logger"   //nolint:depguard // Wired in app layer
	"go.trai.ch/keg/internal/adapters/prefix"   //nolint:depguard // Wired in app layer
	"go.trai.ch/keg/internal/adapters/repodata" //nolint:depguard // Wired in app layer
	"go.trai.ch/keg/internal/core/ports"
	"go.trai.ch/keg/internal/engine/solver"
)

// NodeID is the unique identifier for the main App Graft node.
const NodeID graft.ID = "app.main"

func init() {
	graft.Register(graft.Node[*App]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			config.NodeID,
			repodata.NodeID,
			solver.NodeID,
			cache.NodeID,
			prefix.NodeID,
			logger.NodeID,
		},
		Run: func(ctx context.Context) (*App, error) {
			loader, err := graft.Dep[ports.ConfigLoader](ctx)
			if err != nil {
				return nil, err
			}
			sync, err := graft.Dep[ports.Synchronizer](ctx)
			if err != nil {
				return nil, err
			}
			slv, err := graft.Dep[ports.Solver](ctx)
			if err != nil {
				return nil, err
			}
			pkgCache, err := graft.Dep[ports.PackageCache](ctx)
			if err != nil {
				return nil, err
			}
			executor, err := graft.Dep[ports.Executor](ctx)
			if err != nil {
				return nil, err
			}
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			stores := func(p string) ports.PrefixStore {
				return prefix.NewRecordStore(p)
			}
			return New(loader, sync, slv, pkgCache, executor, log, stores), nil
		},
	})
}
