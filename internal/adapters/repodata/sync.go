package repodata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"go.trai.ch/keg/internal/core/domain"
	"go.trai.ch/keg/internal/core/ports"
	"go.trai.ch/zerr"
)

// DefaultFreshnessWindow is how long a confirmed sync stays trusted without
// touching the network again.
const DefaultFreshnessWindow = 5 * time.Minute

var _ ports.Synchronizer = (*Synchronizer)(nil)

// Synchronizer keeps local index snapshots current. It prefers the
// incremental patch stream and falls back to a full conditional download when
// the patch chain does not reach the server's current hash or fails
// verification. Concurrent syncs of the same (channel, subdir) pair are
// coalesced into one network operation.
type Synchronizer struct {
	fetcher   ports.Fetcher
	store     ports.IndexStore
	telemetry ports.Telemetry
	log       ports.Logger
	window    time.Duration
	now       func() time.Time

	group singleflight.Group
}

// NewSynchronizer creates a Synchronizer with the default freshness window.
func NewSynchronizer(fetcher ports.Fetcher, store ports.IndexStore, telemetry ports.Telemetry, log ports.Logger) *Synchronizer {
	return &Synchronizer{
		fetcher:   fetcher,
		store:     store,
		telemetry: telemetry,
		log:       log,
		window:    DefaultFreshnessWindow,
		now:       time.Now,
	}
}

// Sync brings the local snapshot of (channel, subdir) up to date and returns
// it. The returned index either carries the server's current content hash or
// the call fails; no partially patched state ever escapes.
func (s *Synchronizer) Sync(ctx context.Context, channel domain.Channel, subdir string) (*domain.Index, error) {
	key := channel.Name + "/" + subdir
	idx, err, _ := s.group.Do(key, func() (any, error) {
		return s.sync(ctx, channel, subdir)
	})
	if err != nil {
		return nil, err
	}
	return idx.(*domain.Index), nil
}

func (s *Synchronizer) sync(ctx context.Context, channel domain.Channel, subdir string) (*domain.Index, error) {
	ctx, vtx := s.telemetry.Record(ctx, fmt.Sprintf("sync %s/%s", channel.Name, subdir))

	local, state, err := s.store.Load(channel.Name, subdir)
	if err != nil {
		vtx.Complete(err)
		return nil, err
	}

	if local != nil && state.FreshWithin(s.window, s.now()) {
		vtx.Cached()
		return local, nil
	}

	if local != nil {
		idx, err := s.incremental(ctx, channel, subdir, local, state)
		if err == nil {
			vtx.Complete(nil)
			return idx, nil
		}
		if !errors.Is(err, domain.ErrPatchChain) {
			s.log.Warn(fmt.Sprintf("incremental sync of %s/%s failed, falling back to full fetch: %v", channel.Name, subdir, err))
		}
	}

	idx, err := s.full(ctx, channel, subdir, local, state)
	vtx.Complete(err)
	return idx, err
}

// incremental applies the remote patch chain on top of the local snapshot.
// Every step is verified against its declared result hash; any mismatch or
// gap is reported as domain.ErrPatchChain so the caller can fall back.
func (s *Synchronizer) incremental(ctx context.Context, channel domain.Channel, subdir string, local *domain.Index, state domain.SyncState) (*domain.Index, error) {
	ps, err := s.fetcher.FetchPatches(ctx, channel, subdir)
	if err != nil {
		return nil, err
	}

	if ps.Latest == local.ContentHash {
		// The patch document doubles as a freshness probe: matching hashes
		// mean the snapshot is current and only the clock needs refreshing.
		state.FetchedAt = s.now().UTC()
		if err := s.store.Save(local, state); err != nil {
			return nil, err
		}
		return local, nil
	}

	chain, ok := ps.ChainFrom(local.ContentHash)
	if !ok {
		return nil, zerr.With(zerr.With(zerr.Wrap(domain.ErrPatchChain, "no patch chain reaches the local snapshot"), "channel", channel.Name), "have", local.ContentHash)
	}

	records := local.Records
	for _, patch := range chain {
		records, err = applyPatch(records, patch, channel.Name, subdir)
		if err != nil {
			return nil, err
		}
		idx := domain.NewIndex(channel.Name, subdir, records)
		if idx.ContentHash != patch.To {
			return nil, zerr.With(zerr.With(zerr.Wrap(domain.ErrPatchChain, "patch result hash mismatch"), "want", patch.To), "got", idx.ContentHash)
		}
		records = idx.Records
	}

	idx := domain.NewIndex(channel.Name, subdir, records)
	state.FetchedAt = s.now().UTC()
	if err := s.store.Save(idx, state); err != nil {
		return nil, err
	}
	s.log.Info(fmt.Sprintf("synced %s/%s via %d patches (%d records)", channel.Name, subdir, len(chain), len(idx.Records)))
	return idx, nil
}

// applyPatch applies one patch's operations to a record list. Removing an
// absent record or adding a duplicate means the chain does not describe our
// snapshot, which is a chain failure, not data corruption.
func applyPatch(records []domain.PackageRecord, patch domain.Patch, channel, subdir string) ([]domain.PackageRecord, error) {
	byKey := make(map[string]int, len(records))
	for i := range records {
		byKey[records[i].Key()] = i
	}

	out := make([]domain.PackageRecord, len(records))
	copy(out, records)
	for _, op := range patch.Ops {
		rec := op.Record
		rec.Channel = channel
		rec.Subdir = subdir
		key := rec.Key()
		switch op.Op {
		case domain.PatchOpRemove:
			i, ok := byKey[key]
			if !ok {
				return nil, zerr.With(zerr.Wrap(domain.ErrPatchChain, "patch removes unknown record"), "record", key)
			}
			out[i] = out[len(out)-1]
			byKey[out[i].Key()] = i
			out = out[:len(out)-1]
			delete(byKey, key)
		case domain.PatchOpAdd:
			if _, ok := byKey[key]; ok {
				return nil, zerr.With(zerr.Wrap(domain.ErrPatchChain, "patch adds duplicate record"), "record", key)
			}
			byKey[key] = len(out)
			out = append(out, rec)
		default:
			return nil, zerr.With(zerr.Wrap(domain.ErrPatchChain, "unknown patch op"), "op", op.Op)
		}
	}
	return out, nil
}

// full downloads the complete index document, honoring conditional-request
// validators from the prior state. The computed content hash must match what
// the server declares or the payload is rejected as corrupt.
func (s *Synchronizer) full(ctx context.Context, channel domain.Channel, subdir string, local *domain.Index, state domain.SyncState) (*domain.Index, error) {
	doc, err := s.fetcher.FetchIndex(ctx, channel, subdir, state)
	if err != nil {
		return nil, err
	}

	if doc.Unchanged {
		if local == nil {
			return nil, zerr.With(zerr.Wrap(domain.ErrChannelFetch, "server reported unchanged but no local snapshot exists"), "channel", channel.Name)
		}
		state.FetchedAt = s.now().UTC()
		if err := s.store.Save(local, state); err != nil {
			return nil, err
		}
		return local, nil
	}

	if doc.Hash == "" {
		return nil, zerr.With(zerr.Wrap(domain.ErrIntegrity, "server declared no content hash for the index"), "channel", channel.Name)
	}
	records := normalize(doc.Records, channel.Name, subdir)
	idx := domain.NewIndex(channel.Name, subdir, records)
	if idx.ContentHash != doc.Hash {
		return nil, zerr.With(zerr.With(zerr.Wrap(domain.ErrIntegrity, "index content hash mismatch"), "want", doc.Hash), "got", idx.ContentHash)
	}

	syncState := doc.State
	if syncState.FetchedAt.IsZero() {
		syncState.FetchedAt = s.now().UTC()
	}
	if err := s.store.Save(idx, syncState); err != nil {
		return nil, err
	}
	s.log.Info(fmt.Sprintf("synced %s/%s via full fetch (%d records)", channel.Name, subdir, len(idx.Records)))
	return idx, nil
}

// normalize stamps the owning channel and subdir onto every record so
// downstream consumers never see a record that disagrees with its index.
func normalize(records []domain.PackageRecord, channel, subdir string) []domain.PackageRecord {
	out := make([]domain.PackageRecord, len(records))
	copy(out, records)
	for i := range out {
		out[i].Channel = channel
		out[i].Subdir = subdir
	}
	return out
}
