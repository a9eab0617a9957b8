package domain

import "time"

// SyncState is the conditional-fetch bookkeeping kept alongside a locally
// cached index: the validators the server handed out and when we last
// confirmed freshness.
type SyncState struct {
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	FetchedAt    time.Time `json:"fetched_at"`
}

// FreshWithin reports whether the state was confirmed within the given
// window, allowing a sync to skip the network entirely.
func (s SyncState) FreshWithin(window time.Duration, now time.Time) bool {
	if s.FetchedAt.IsZero() || window <= 0 {
		return false
	}
	return now.Sub(s.FetchedAt) < window
}

// IndexDocument is the fetcher's view of one full index download.
type IndexDocument struct {
	// Unchanged is set when the server answered the conditional fetch with
	// "not modified"; the other fields are then zero.
	Unchanged bool

	// Hash is the content hash the server declares for Records.
	Hash    string
	Records []PackageRecord
	State   SyncState
}
