package ports

import "context"

// ReleaseFunc releases a held lock. It is safe to call exactly once.
type ReleaseFunc func() error

// Locker provides scoped advisory locks shared across processes. Acquire
// blocks until the named lock is held or the context is done; stale locks
// left behind by crashed holders are detected and broken.
//
//go:generate mockgen -source=locker.go -destination=mocks/mock_locker.go -package=mocks
type Locker interface {
	Acquire(ctx context.Context, name string) (ReleaseFunc, error)
}
