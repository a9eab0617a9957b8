package prefix_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/cespare/xxhash/v2"
	"go.trai.ch/keg/internal/adapters/lockfile"
	"go.trai.ch/keg/internal/adapters/prefix"
	"go.trai.ch/keg/internal/adapters/telemetry"
	"go.trai.ch/keg/internal/core/domain"
	"go.trai.ch/keg/internal/core/ports/mocks"
	"go.uber.org/mock/gomock"
)

type testLogger struct{}

func (testLogger) Info(string) {}
func (testLogger) Warn(string) {}
func (testLogger) Error(error) {}

// pkg describes one test package: its files and the cache directory holding
// them.
type pkg struct {
	record   domain.PackageRecord
	files    []domain.FileRecord
	cacheDir string
}

// makePkg materializes a fake published cache entry for a package.
func makePkg(t *testing.T, cacheRoot, name, version string, files map[string]string) pkg {
	t.Helper()
	rec := pkgRecord(name, version)
	rec.ContentHash = "hash-" + name + "-" + version

	dir := filepath.Join(cacheRoot, rec.ContentHash, "files")
	var frs []domain.FileRecord
	for path, content := range files {
		full := filepath.Join(dir, filepath.FromSlash(path))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		frs = append(frs, domain.FileRecord{
			Path: path,
			Hash: fmt.Sprintf("%016x", xxhash.Sum64([]byte(content))),
			Size: int64(len(content)),
		})
	}
	return pkg{record: rec, files: frs, cacheDir: dir}
}

func (p pkg) link() domain.Action {
	return domain.Action{Kind: domain.ActionLink, Record: p.record, CachePath: p.cacheDir, RequestedByUser: true}
}

func (p pkg) unlink() domain.Action {
	return domain.Action{Kind: domain.ActionUnlink, Record: p.record}
}

// install seeds the prefix with a package as if a previous transaction had
// linked it.
func install(t *testing.T, prefixDir string, p pkg, contents map[string]string) {
	t.Helper()
	for path, content := range contents {
		full := filepath.Join(prefixDir, filepath.FromSlash(path))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	store := prefix.NewRecordStore(prefixDir)
	if err := store.Put(&domain.PrefixRecord{Record: p.record, Files: p.files}); err != nil {
		t.Fatalf("seed record: %v", err)
	}
}

func newExecutor(t *testing.T, cache *mocks.MockPackageCache) *prefix.Executor {
	t.Helper()
	return prefix.NewExecutor(lockfile.New(t.TempDir()), cache, telemetry.NewNoOp(), testLogger{})
}

func expectManifest(cache *mocks.MockPackageCache, p pkg) {
	cache.EXPECT().Manifest(p.record.ContentHash).
		Return(&domain.Manifest{ContentHash: p.record.ContentHash, Files: p.files}, nil).
		AnyTimes()
}

func fileContent(t *testing.T, prefixDir, path string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(prefixDir, filepath.FromSlash(path)))
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

func assertAbsent(t *testing.T, prefixDir, path string) {
	t.Helper()
	if _, err := os.Lstat(filepath.Join(prefixDir, filepath.FromSlash(path))); err == nil {
		t.Errorf("%s exists, want absent", path)
	}
}

func TestExecutor_EmptyTransaction(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	exec := newExecutor(t, mocks.NewMockPackageCache(ctrl))
	result, err := exec.Execute(context.Background(), &domain.Transaction{Prefix: t.TempDir()})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if result.State != domain.StateCommitted {
		t.Errorf("state = %s, want committed", result.State)
	}
}

func TestExecutor_CommitLinks(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	cacheRoot := t.TempDir()
	prefixDir := t.TempDir()
	numpy := makePkg(t, cacheRoot, "numpy", "1.21.0", map[string]string{
		"lib/numpy/core.so": "numpy-core",
		"bin/f2py":          "f2py",
	})
	zlib := makePkg(t, cacheRoot, "zlib", "1.2.11", map[string]string{
		"lib/libz.so": "zlib",
	})

	cache := mocks.NewMockPackageCache(ctrl)
	expectManifest(cache, numpy)
	expectManifest(cache, zlib)

	exec := newExecutor(t, cache)
	tx := &domain.Transaction{Prefix: prefixDir, Actions: []domain.Action{numpy.link(), zlib.link()}}
	result, err := exec.Execute(context.Background(), tx)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if result.State != domain.StateCommitted || result.Linked != 2 || result.Unlinked != 0 {
		t.Errorf("result = %+v", result)
	}

	if got := fileContent(t, prefixDir, "lib/numpy/core.so"); got != "numpy-core" {
		t.Errorf("linked content = %q", got)
	}
	if got := fileContent(t, prefixDir, "lib/libz.so"); got != "zlib" {
		t.Errorf("linked content = %q", got)
	}

	store := prefix.NewRecordStore(prefixDir)
	rec, err := store.Get(domain.NewInternedString("numpy"))
	if err != nil {
		t.Fatalf("record missing after commit: %v", err)
	}
	if !rec.RequestedByUser {
		t.Error("requested-by-user flag not carried to the record")
	}

	// Terminal transactions leave no journal and no staging residue.
	assertAbsent(t, prefixDir, ".keg/txn.json")
	entries, err := os.ReadDir(filepath.Join(prefixDir, ".keg"))
	if err != nil {
		t.Fatalf("read .keg: %v", err)
	}
	for _, e := range entries {
		if e.Name() != "meta" {
			t.Errorf("leftover %s in .keg", e.Name())
		}
	}
}

func TestExecutor_UpgradeReplacesPackage(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	cacheRoot := t.TempDir()
	prefixDir := t.TempDir()
	old := makePkg(t, cacheRoot, "numpy", "1.21.0", map[string]string{"lib/numpy/core.so": "old"})
	install(t, prefixDir, old, map[string]string{"lib/numpy/core.so": "old"})
	newer := makePkg(t, cacheRoot, "numpy", "1.22.0", map[string]string{"lib/numpy/core.so": "new"})

	cache := mocks.NewMockPackageCache(ctrl)
	expectManifest(cache, newer)

	exec := newExecutor(t, cache)
	tx := &domain.Transaction{Prefix: prefixDir, Actions: []domain.Action{old.unlink(), newer.link()}}
	result, err := exec.Execute(context.Background(), tx)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if result.State != domain.StateCommitted || result.Linked != 1 || result.Unlinked != 1 {
		t.Errorf("result = %+v", result)
	}

	if got := fileContent(t, prefixDir, "lib/numpy/core.so"); got != "new" {
		t.Errorf("content after upgrade = %q", got)
	}
	rec, err := prefix.NewRecordStore(prefixDir).Get(domain.NewInternedString("numpy"))
	if err != nil {
		t.Fatalf("record missing: %v", err)
	}
	if rec.Record.Version != "1.22.0" {
		t.Errorf("recorded version = %s", rec.Record.Version)
	}
}

func TestExecutor_RollbackRestoresPriorState(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	cacheRoot := t.TempDir()
	prefixDir := t.TempDir()
	old := makePkg(t, cacheRoot, "numpy", "1.21.0", map[string]string{"lib/numpy/core.so": "old"})
	install(t, prefixDir, old, map[string]string{"lib/numpy/core.so": "old"})
	newer := makePkg(t, cacheRoot, "numpy", "1.22.0", map[string]string{"lib/numpy/core.so": "new"})

	cache := mocks.NewMockPackageCache(ctrl)
	expectManifest(cache, newer)

	boom := errors.New("injected failure")
	exec := newExecutor(t, cache)
	exec.SetBeforeStep(func(step int) error {
		if step == 1 {
			return boom
		}
		return nil
	})

	tx := &domain.Transaction{Prefix: prefixDir, Actions: []domain.Action{old.unlink(), newer.link()}}
	result, err := exec.Execute(context.Background(), tx)
	if !errors.Is(err, boom) {
		t.Fatalf("Execute error = %v, want injected failure", err)
	}
	if result.State != domain.StateRolledBack {
		t.Fatalf("state = %s, want rolled_back", result.State)
	}

	// The completed unlink was undone: file and record are back.
	if got := fileContent(t, prefixDir, "lib/numpy/core.so"); got != "old" {
		t.Errorf("content after rollback = %q, want old", got)
	}
	rec, err := prefix.NewRecordStore(prefixDir).Get(domain.NewInternedString("numpy"))
	if err != nil {
		t.Fatalf("record missing after rollback: %v", err)
	}
	if rec.Record.Version != "1.21.0" {
		t.Errorf("recorded version = %s, want 1.21.0", rec.Record.Version)
	}
	assertAbsent(t, prefixDir, ".keg/txn.json")
}

func TestExecutor_RollbackRemovesLinkedFiles(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	cacheRoot := t.TempDir()
	prefixDir := t.TempDir()
	zlib := makePkg(t, cacheRoot, "zlib", "1.2.11", map[string]string{"lib/zlib/libz.so": "zlib"})
	numpy := makePkg(t, cacheRoot, "numpy", "1.21.0", map[string]string{"lib/numpy/core.so": "numpy"})

	cache := mocks.NewMockPackageCache(ctrl)
	expectManifest(cache, zlib)
	expectManifest(cache, numpy)

	boom := errors.New("injected failure")
	exec := newExecutor(t, cache)
	exec.SetBeforeStep(func(step int) error {
		if step == 1 {
			return boom
		}
		return nil
	})

	tx := &domain.Transaction{Prefix: prefixDir, Actions: []domain.Action{zlib.link(), numpy.link()}}
	result, err := exec.Execute(context.Background(), tx)
	if !errors.Is(err, boom) {
		t.Fatalf("Execute error = %v, want injected failure", err)
	}
	if result.State != domain.StateRolledBack {
		t.Fatalf("state = %s, want rolled_back", result.State)
	}

	assertAbsent(t, prefixDir, "lib/zlib/libz.so")
	// The directories the link created must come out with the files.
	assertAbsent(t, prefixDir, "lib/zlib")
	assertAbsent(t, prefixDir, "lib")
	if _, err := prefix.NewRecordStore(prefixDir).Get(domain.NewInternedString("zlib")); !errors.Is(err, domain.ErrRecordNotFound) {
		t.Errorf("record survives rollback: %v", err)
	}
}

// A cancellation arriving after committing has started must not trigger a
// rollback; the phase runs to completion.
func TestExecutor_CancellationDuringCommitDefers(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	cacheRoot := t.TempDir()
	prefixDir := t.TempDir()
	zlib := makePkg(t, cacheRoot, "zlib", "1.2.11", map[string]string{"lib/libz.so": "zlib"})
	numpy := makePkg(t, cacheRoot, "numpy", "1.21.0", map[string]string{"lib/numpy/core.so": "numpy"})

	cache := mocks.NewMockPackageCache(ctrl)
	expectManifest(cache, zlib)
	expectManifest(cache, numpy)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	exec := newExecutor(t, cache)
	exec.SetBeforeStep(func(step int) error {
		if step == 0 {
			cancel()
		}
		return nil
	})

	tx := &domain.Transaction{Prefix: prefixDir, Actions: []domain.Action{zlib.link(), numpy.link()}}
	result, err := exec.Execute(ctx, tx)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if result.State != domain.StateCommitted {
		t.Fatalf("state = %s, want committed", result.State)
	}
	if got := fileContent(t, prefixDir, "lib/libz.so"); got != "zlib" {
		t.Errorf("lib/libz.so = %q, want zlib", got)
	}
	if got := fileContent(t, prefixDir, "lib/numpy/core.so"); got != "numpy" {
		t.Errorf("lib/numpy/core.so = %q, want numpy", got)
	}
}

func TestExecutor_LinkConflict(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	cacheRoot := t.TempDir()
	prefixDir := t.TempDir()
	zlib := makePkg(t, cacheRoot, "zlib", "1.2.11", map[string]string{"lib/libz.so": "zlib"})

	// An unmanaged file already occupies the target path.
	if err := os.MkdirAll(filepath.Join(prefixDir, "lib"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(prefixDir, "lib", "libz.so"), []byte("unmanaged"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cache := mocks.NewMockPackageCache(ctrl)
	expectManifest(cache, zlib)

	exec := newExecutor(t, cache)
	tx := &domain.Transaction{Prefix: prefixDir, Actions: []domain.Action{zlib.link()}}
	result, err := exec.Execute(context.Background(), tx)
	if !errors.Is(err, domain.ErrLinkConflict) {
		t.Fatalf("Execute error = %v, want ErrLinkConflict", err)
	}
	if result.State != domain.StateRolledBack {
		t.Errorf("state = %s, want rolled_back", result.State)
	}
	if got := fileContent(t, prefixDir, "lib/libz.so"); got != "unmanaged" {
		t.Errorf("conflicting file was touched: %q", got)
	}
}

func TestExecutor_StageFailureLeavesPrefixUntouched(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	prefixDir := t.TempDir()
	rec := pkgRecord("numpy", "1.21.0")
	rec.ContentHash = "absent"

	cache := mocks.NewMockPackageCache(ctrl)
	cache.EXPECT().Manifest("absent").Return(nil, domain.ErrRecordNotFound)

	exec := newExecutor(t, cache)
	tx := &domain.Transaction{Prefix: prefixDir, Actions: []domain.Action{{Kind: domain.ActionLink, Record: rec}}}
	result, err := exec.Execute(context.Background(), tx)
	if !errors.Is(err, domain.ErrRecordNotFound) {
		t.Fatalf("Execute error = %v, want ErrRecordNotFound", err)
	}
	if result.State != domain.StateRolledBack {
		t.Errorf("state = %s, want rolled_back", result.State)
	}
	assertAbsent(t, prefixDir, ".keg/txn.json")
}

func TestExecutor_CorruptCacheEntryCaughtDuringStaging(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	cacheRoot := t.TempDir()
	prefixDir := t.TempDir()
	zlib := makePkg(t, cacheRoot, "zlib", "1.2.11", map[string]string{"lib/libz.so": "zlib"})

	// Corrupt the cache copy after its manifest was computed.
	if err := os.WriteFile(filepath.Join(zlib.cacheDir, "lib", "libz.so"), []byte("tampered"), 0o644); err != nil {
		t.Fatalf("corrupt cache file: %v", err)
	}

	cache := mocks.NewMockPackageCache(ctrl)
	expectManifest(cache, zlib)

	exec := newExecutor(t, cache)
	tx := &domain.Transaction{Prefix: prefixDir, Actions: []domain.Action{zlib.link()}}
	result, err := exec.Execute(context.Background(), tx)
	if !errors.Is(err, domain.ErrIntegrity) {
		t.Fatalf("Execute error = %v, want ErrIntegrity", err)
	}
	if result.State != domain.StateRolledBack {
		t.Errorf("state = %s, want rolled_back", result.State)
	}
	assertAbsent(t, prefixDir, "lib/libz.so")
}

func TestExecutor_RefusesUnfinishedJournal(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	prefixDir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(prefixDir, ".keg"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	journal := []byte(`{"state":"committing","started":"2026-08-01T12:00:00Z"}`)
	if err := os.WriteFile(filepath.Join(prefixDir, ".keg", "txn.json"), journal, 0o644); err != nil {
		t.Fatalf("write journal: %v", err)
	}

	rec := pkgRecord("numpy", "1.21.0")
	exec := newExecutor(t, mocks.NewMockPackageCache(ctrl))
	tx := &domain.Transaction{Prefix: prefixDir, Actions: []domain.Action{{Kind: domain.ActionLink, Record: rec}}}
	_, err := exec.Execute(context.Background(), tx)
	if !errors.Is(err, domain.ErrRollbackFailure) {
		t.Errorf("Execute error = %v, want ErrRollbackFailure", err)
	}
}

func TestExecutor_LockedPrefix(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	locker := mocks.NewMockLocker(ctrl)
	locker.EXPECT().Acquire(gomock.Any(), gomock.Any()).Return(nil, errors.New("held elsewhere"))

	rec := pkgRecord("numpy", "1.21.0")
	exec := prefix.NewExecutor(locker, mocks.NewMockPackageCache(ctrl), telemetry.NewNoOp(), testLogger{})
	tx := &domain.Transaction{Prefix: t.TempDir(), Actions: []domain.Action{{Kind: domain.ActionLink, Record: rec}}}
	_, err := exec.Execute(context.Background(), tx)
	if !errors.Is(err, domain.ErrPrefixLocked) {
		t.Errorf("Execute error = %v, want ErrPrefixLocked", err)
	}
}
