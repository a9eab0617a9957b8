package ports

import (
	"context"

	"go.trai.ch/keg/internal/core/domain"
)

// Executor applies a planned transaction to its target prefix with staged
// commit and rollback. Exactly one executor holds a given prefix at a time.
//
//go:generate mockgen -source=executor.go -destination=mocks/mock_executor.go -package=mocks
type Executor interface {
	Execute(ctx context.Context, tx *domain.Transaction) (*domain.Result, error)
}
