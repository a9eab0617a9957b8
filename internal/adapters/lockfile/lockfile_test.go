package lockfile_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.trai.ch/keg/internal/adapters/lockfile"
)

func TestLocker_AcquireRelease(t *testing.T) {
	dir := t.TempDir()
	locker := lockfile.New(dir)

	release, err := locker.Acquire(context.Background(), "prefix-env")
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "prefix-env.lock")); err != nil {
		t.Errorf("lock file missing while held: %v", err)
	}

	if err := release(); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "prefix-env.lock")); !os.IsNotExist(err) {
		t.Errorf("lock file survives release: %v", err)
	}
}

func TestLocker_SecondAcquireBlocksUntilReleased(t *testing.T) {
	locker := lockfile.New(t.TempDir())

	release, err := locker.Acquire(context.Background(), "shared")
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	acquired := make(chan error, 1)
	go func() {
		second, err := locker.Acquire(context.Background(), "shared")
		if err == nil {
			defer second() //nolint:errcheck // Test cleanup
		}
		acquired <- err
	}()

	select {
	case <-acquired:
		t.Fatal("second Acquire succeeded while lock was held")
	case <-time.After(150 * time.Millisecond):
	}

	if err := release(); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	select {
	case err := <-acquired:
		if err != nil {
			t.Fatalf("second Acquire failed after release: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("second Acquire never completed after release")
	}
}

func TestLocker_ContextCancelGivesUp(t *testing.T) {
	locker := lockfile.New(t.TempDir())

	release, err := locker.Acquire(context.Background(), "held")
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer release() //nolint:errcheck // Test cleanup

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if _, err := locker.Acquire(ctx, "held"); err == nil {
		t.Fatal("Acquire succeeded despite held lock and expired context")
	}
}

func TestLocker_BreaksStaleLock(t *testing.T) {
	dir := t.TempDir()

	// A lock file left behind by a crashed holder, older than the window.
	path := filepath.Join(dir, "stale.lock")
	if err := os.WriteFile(path, []byte(`{"pid":1,"created_at":"2026-01-01T00:00:00Z"}`), 0o644); err != nil {
		t.Fatalf("write stale lock: %v", err)
	}
	old := time.Now().Add(-time.Hour)
	if err := os.Chtimes(path, old, old); err != nil {
		t.Fatalf("age lock file: %v", err)
	}

	locker := lockfile.NewWithStaleAfter(dir, time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	release, err := locker.Acquire(ctx, "stale")
	if err != nil {
		t.Fatalf("Acquire failed to break stale lock: %v", err)
	}
	defer release() //nolint:errcheck // Test cleanup
}

func TestLocker_DistinctNamesDoNotContend(t *testing.T) {
	locker := lockfile.New(t.TempDir())

	r1, err := locker.Acquire(context.Background(), "env-a")
	if err != nil {
		t.Fatalf("Acquire env-a failed: %v", err)
	}
	defer r1() //nolint:errcheck // Test cleanup

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	r2, err := locker.Acquire(ctx, "env-b")
	if err != nil {
		t.Fatalf("Acquire env-b failed: %v", err)
	}
	defer r2() //nolint:errcheck // Test cleanup
}
