package repodata_test

import (
	"testing"
	"time"

	"go.trai.ch/keg/internal/core/domain"
)

func TestStore_SaveLoadRoundtrip(t *testing.T) {
	store := newStore(t)

	index := domain.NewIndex("main", "noarch", []domain.PackageRecord{
		rec("numpy", "1.21.0"),
		rec("scipy", "1.7.0"),
	})
	state := domain.SyncState{
		ETag:      `"v3"`,
		FetchedAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
	if err := store.Save(index, state); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, gotState, err := store.Load("main", "noarch")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got == nil {
		t.Fatal("Load returned nil index for saved snapshot")
	}
	if got.ContentHash != index.ContentHash {
		t.Errorf("content hash = %s, want %s", got.ContentHash, index.ContentHash)
	}
	if gotState != state {
		t.Errorf("sync state = %+v, want %+v", gotState, state)
	}
	// Lookup structures must be rebuilt after decoding.
	if len(got.Candidates(domain.NewInternedString("numpy"))) != 1 {
		t.Error("loaded index cannot answer candidate lookups")
	}
}

func TestStore_LoadMissingSnapshot(t *testing.T) {
	store := newStore(t)

	index, state, err := store.Load("main", "linux-64")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if index != nil {
		t.Error("missing snapshot returned a non-nil index")
	}
	if state != (domain.SyncState{}) {
		t.Errorf("missing snapshot returned state %+v", state)
	}
}

func TestStore_SaveOverwrites(t *testing.T) {
	store := newStore(t)

	first := domain.NewIndex("main", "noarch", []domain.PackageRecord{rec("numpy", "1.21.0")})
	if err := store.Save(first, domain.SyncState{ETag: `"v1"`}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	second := domain.NewIndex("main", "noarch", []domain.PackageRecord{rec("numpy", "1.22.0")})
	if err := store.Save(second, domain.SyncState{ETag: `"v2"`}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, state, err := store.Load("main", "noarch")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got.ContentHash != second.ContentHash {
		t.Error("load did not observe the latest snapshot")
	}
	if state.ETag != `"v2"` {
		t.Errorf("etag = %q, want %q", state.ETag, `"v2"`)
	}
}
