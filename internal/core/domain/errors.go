package domain

import "go.trai.ch/zerr"

var (
	// ErrChannelFetch is returned when a remote index or archive fetch fails
	// after all retries are exhausted.
	ErrChannelFetch = zerr.New("channel fetch failed")

	// ErrIntegrity is returned when a hash or size does not match what the
	// channel declared. It is never retried automatically.
	ErrIntegrity = zerr.New("integrity verification failed")

	// ErrSolverFault is returned for an internal solver malfunction, such as
	// a malformed formula. It indicates a bug, not a legitimate conflict.
	ErrSolverFault = zerr.New("internal solver fault")

	// ErrLinkConflict is returned when two packages in a planned transaction
	// claim the same target path. No filesystem mutation has occurred.
	ErrLinkConflict = zerr.New("link path conflict")

	// ErrRollbackFailure is returned when a failed transaction could not be
	// rolled back. The prefix is marked inconsistent and requires repair.
	ErrRollbackFailure = zerr.New("rollback failed, prefix inconsistent")

	// ErrPrefixLocked is returned when another executor holds the prefix lock.
	ErrPrefixLocked = zerr.New("prefix is locked by another transaction")

	// ErrDuplicateName is returned when a second record with the same package
	// name is added to an environment state.
	ErrDuplicateName = zerr.New("duplicate package name in environment")

	// ErrRecordNotFound is returned when a prefix record does not exist.
	ErrRecordNotFound = zerr.New("prefix record not found")

	// ErrCacheEntryBusy is returned when evicting a cache entry that is still
	// referenced by at least one environment.
	ErrCacheEntryBusy = zerr.New("cache entry still referenced")

	// ErrBadSpec is returned when a match spec cannot be parsed.
	ErrBadSpec = zerr.New("malformed match spec")

	// ErrPatchChain is returned when an incremental patch sequence cannot be
	// applied (gap, hash mismatch, or expired window). The synchronizer falls
	// back to a full index download on this error.
	ErrPatchChain = zerr.New("patch chain not applicable")
)
