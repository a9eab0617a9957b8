// Package cache implements the shared content-addressable package cache:
// verified downloads, extracted trees with file manifests, and per-prefix
// reference counting.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	"go.trai.ch/keg/internal/core/domain"
	"go.trai.ch/keg/internal/core/ports"
	"go.trai.ch/zerr"
)

const (
	manifestFilename = "manifest.json"
	filesDirname     = "files"
)

var _ ports.PackageCache = (*Store)(nil)

// Store is the on-disk package cache. Every entry lives in its own directory
// keyed by the archive's content hash and is published with a single rename,
// so an entry is either fully present and verified or absent.
type Store struct {
	root      string
	fetcher   ports.Fetcher
	channels  map[string]domain.Channel
	locker    ports.Locker
	telemetry ports.Telemetry
	log       ports.Logger

	entriesMu sync.Mutex
	entries   map[string]*sync.Mutex

	refMu sync.Mutex
	refs  map[string][]string
}

// NewStore creates a Store rooted at dir. Channels are used to resolve a
// record's channel name back to its download URL.
func NewStore(dir string, fetcher ports.Fetcher, channels []domain.Channel, locker ports.Locker, telemetry ports.Telemetry, log ports.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(dir, "pkgs"), 0o755); err != nil {
		return nil, zerr.Wrap(err, "failed to create cache root")
	}
	byName := make(map[string]domain.Channel, len(channels))
	for _, ch := range channels {
		byName[ch.Name] = ch
	}
	s := &Store{
		root:      dir,
		fetcher:   fetcher,
		channels:  byName,
		locker:    locker,
		telemetry: telemetry,
		log:       log,
		entries:   make(map[string]*sync.Mutex),
	}
	if err := s.loadRefs(); err != nil {
		return nil, err
	}
	return s, nil
}

// Ensure makes the record's content present and verified and returns the
// directory holding the extracted files. Concurrent calls for the same hash
// serialize on a per-entry mutex; work across processes serializes on an
// advisory lock file, so at most one of them downloads.
func (s *Store) Ensure(ctx context.Context, record *domain.PackageRecord) (string, error) {
	if record.ContentHash == "" {
		return "", zerr.With(zerr.Wrap(domain.ErrBadSpec, "record is missing a content hash"), "record", record.Key())
	}

	lock := s.entryLock(record.ContentHash)
	lock.Lock()
	defer lock.Unlock()

	entry := s.entryDir(record.ContentHash)
	filesDir := filepath.Join(entry, filesDirname)
	if s.published(entry) {
		return filesDir, nil
	}

	release, err := s.locker.Acquire(ctx, "cache-"+record.ContentHash)
	if err != nil {
		return "", zerr.With(zerr.Wrap(err, "failed to lock cache entry"), "content_hash", record.ContentHash)
	}
	defer release() //nolint:errcheck // Lock release failure leaves a stale lock, broken on next acquire

	// Another process may have finished the entry while we waited.
	if s.published(entry) {
		return filesDir, nil
	}

	ctx, vtx := s.telemetry.Record(ctx, fmt.Sprintf("fetch %s", record.NameVersionBuild()))
	err = s.populate(ctx, record, entry)
	vtx.Complete(err)
	if err != nil {
		return "", err
	}
	return filesDir, nil
}

// published reports whether the entry directory holds a complete entry. The
// manifest is written last before the publishing rename, so its presence is
// the completeness marker.
func (s *Store) published(entry string) bool {
	_, err := os.Stat(filepath.Join(entry, manifestFilename))
	return err == nil
}

func (s *Store) populate(ctx context.Context, record *domain.PackageRecord, entry string) error {
	channel, ok := s.channels[record.Channel]
	if !ok {
		return zerr.With(zerr.Wrap(domain.ErrChannelFetch, "record references unknown channel"), "channel", record.Channel)
	}

	tmpDir, err := os.MkdirTemp(filepath.Join(s.root, "pkgs"), ".partial-*")
	if err != nil {
		return zerr.Wrap(err, "failed to create staging directory")
	}
	defer os.RemoveAll(tmpDir) //nolint:errcheck // Best effort cleanup

	archivePath := filepath.Join(tmpDir, "archive.tar.gz")
	if err := s.download(ctx, channel, record, archivePath); err != nil {
		return err
	}

	filesDir := filepath.Join(tmpDir, filesDirname)
	if err := extractArchive(archivePath, filesDir); err != nil {
		return err
	}
	if err := os.Remove(archivePath); err != nil {
		return zerr.Wrap(err, "failed to remove archive after extraction")
	}

	manifest, err := buildManifest(record.ContentHash, filesDir)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return zerr.Wrap(err, "failed to encode manifest")
	}
	if err := os.WriteFile(filepath.Join(tmpDir, manifestFilename), data, 0o644); err != nil { //nolint:gosec // Manifests are world-readable
		return zerr.Wrap(err, "failed to write manifest")
	}

	if err := os.Rename(tmpDir, entry); err != nil {
		// Another process may have published the same entry first.
		if s.published(entry) {
			return nil
		}
		return zerr.Wrap(err, "failed to publish cache entry")
	}
	s.log.Info(fmt.Sprintf("cached %s (%d files)", record.NameVersionBuild(), len(manifest.Files)))
	return nil
}

// download streams the archive to dst, verifying its sha256 digest and size
// against the record before returning.
func (s *Store) download(ctx context.Context, channel domain.Channel, record *domain.PackageRecord, dst string) error {
	f, err := os.Create(dst) //nolint:gosec // Path is inside our staging directory
	if err != nil {
		return zerr.Wrap(err, "failed to create archive file")
	}

	digest := sha256.New()
	n, err := s.fetcher.FetchArchive(ctx, channel, record, io.MultiWriter(f, digest))
	if cerr := f.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to download archive"), "record", record.Key())
	}

	got := hex.EncodeToString(digest.Sum(nil))
	if got != record.ContentHash {
		return zerr.With(zerr.With(zerr.With(zerr.Wrap(domain.ErrIntegrity, "archive digest mismatch"),
			"record", record.Key()), "want", record.ContentHash), "got", got)
	}
	if record.Size > 0 && n != record.Size {
		return zerr.With(zerr.With(zerr.Wrap(domain.ErrIntegrity, "archive size mismatch"),
			"record", record.Key()), "got", n)
	}
	return nil
}

// buildManifest walks the extracted tree and records every regular file with
// its xxhash64 digest, sorted by path for deterministic manifests.
func buildManifest(contentHash, filesDir string) (*domain.Manifest, error) {
	var files []domain.FileRecord
	err := filepath.WalkDir(filesDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		hash, err := hashFile(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(filesDir, path)
		if err != nil {
			return err
		}
		files = append(files, domain.FileRecord{
			Path: filepath.ToSlash(rel),
			Hash: hash,
			Size: info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, zerr.Wrap(err, "failed to build manifest")
	}
	slices.SortFunc(files, func(a, b domain.FileRecord) int {
		return strings.Compare(a.Path, b.Path)
	})
	return &domain.Manifest{ContentHash: contentHash, Files: files}, nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path) //nolint:gosec // Path comes from walking our own tree
	if err != nil {
		return "", err
	}
	defer f.Close() //nolint:errcheck // Read-only file

	digest := xxhash.New()
	if _, err := io.Copy(digest, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%016x", digest.Sum64()), nil
}

// Manifest returns the verified file manifest of a published entry.
func (s *Store) Manifest(contentHash string) (*domain.Manifest, error) {
	data, err := os.ReadFile(filepath.Join(s.entryDir(contentHash), manifestFilename))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, zerr.With(zerr.Wrap(domain.ErrRecordNotFound, "entry is not published"), "content_hash", contentHash)
	}
	if err != nil {
		return nil, zerr.Wrap(err, "failed to read manifest")
	}
	var m domain.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to decode manifest"), "content_hash", contentHash)
	}
	return &m, nil
}

func (s *Store) entryDir(contentHash string) string {
	return filepath.Join(s.root, "pkgs", contentHash)
}

func (s *Store) entryLock(contentHash string) *sync.Mutex {
	s.entriesMu.Lock()
	defer s.entriesMu.Unlock()
	lock, ok := s.entries[contentHash]
	if !ok {
		lock = &sync.Mutex{}
		s.entries[contentHash] = lock
	}
	return lock
}
