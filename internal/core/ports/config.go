package ports

import (
	"go.trai.ch/keg/internal/core/domain"
)

// ConfigLoader resolves the effective configuration from its on-disk sources
// and defaults. The returned config is fully validated; the core never sees a
// channel without a URL or a malformed pin.
//
//go:generate mockgen -source=config.go -destination=mocks/mock_config.go -package=mocks
type ConfigLoader interface {
	Load() (*domain.Config, error)
}
