// Package wiring registers all Graft nodes for the application.
package wiring

import (
	// Register adapter nodes.
	_ "go.trai.ch/keg/internal/adapters/cache"
	_ "go.trai.ch/keg/internal/adapters/config"
	_ "go.trai.ch/keg/internal/adapters/lockfile"
	_ "go.trai.ch/keg/internal/adapters/logger"
	_ "go.trai.ch/keg/internal/adapters/prefix"
	_ "go.trai.ch/keg/internal/adapters/repodata"
	_ "go.trai.ch/keg/internal/adapters/telemetry"
	// Register app and engine nodes.
	_ "go.trai.ch/keg/internal/app"
	_ "go.trai.ch/keg/internal/engine/solver"
)
