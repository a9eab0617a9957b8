package telemetry

import (
	"context"
	"os"

	"github.com/grindlemire/graft"
	"go.trai.ch/keg/internal/adapters/telemetry/progrock"
	"go.trai.ch/keg/internal/core/ports"
)

// NodeID is the unique identifier for the telemetry Graft node. It yields the
// progrock recorder when stderr is a terminal and the no-op recorder
// otherwise, so piped output stays clean.
const NodeID graft.ID = "adapter.telemetry"

func init() {
	graft.Register(graft.Node[ports.Telemetry]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(_ context.Context) (ports.Telemetry, error) {
			if isTerminal(os.Stderr) && os.Getenv("KEG_NO_PROGRESS") == "" {
				return progrock.New(), nil
			}
			return NewNoOp(), nil
		},
	})
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
