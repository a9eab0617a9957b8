// Package app implements the application layer for keg: it strings the
// synchronizer, solver, planner, cache and executor into the install, remove
// and update pipelines.
package app

import (
	"context"
	"fmt"
	"runtime"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"go.trai.ch/keg/internal/core/domain"
	"go.trai.ch/keg/internal/core/ports"
	"go.trai.ch/keg/internal/engine/planner"
	"go.trai.ch/zerr"
)

// ConflictError carries an unsatisfiable solve outcome up to the CLI. It is
// expected data, distinct from internal faults.
type ConflictError struct {
	Conflict *domain.Conflict
}

// Error renders the minimal conflicting spec set.
func (e *ConflictError) Error() string {
	return e.Conflict.Render()
}

// App represents the main application logic.
type App struct {
	loader   ports.ConfigLoader
	sync     ports.Synchronizer
	solver   ports.Solver
	cache    ports.PackageCache
	executor ports.Executor
	log      ports.Logger

	// stores opens the record store of a prefix; a seam for tests.
	stores func(prefix string) ports.PrefixStore
}

// New creates a new App instance.
func New(loader ports.ConfigLoader, sync ports.Synchronizer, solver ports.Solver, cache ports.PackageCache, executor ports.Executor, log ports.Logger, stores func(prefix string) ports.PrefixStore) *App {
	return &App{
		loader:   loader,
		sync:     sync,
		solver:   solver,
		cache:    cache,
		executor: executor,
		log:      log,
		stores:   stores,
	}
}

// Install resolves the given specs against the prefix and applies the
// resulting transaction.
func (a *App) Install(ctx context.Context, prefix string, rawSpecs []string) (*domain.Result, error) {
	requests, err := parseSpecs(rawSpecs)
	if err != nil {
		return nil, err
	}
	return a.apply(ctx, prefix, requests, nil, false)
}

// Remove takes the named packages out of the prefix, together with anything
// only they required.
func (a *App) Remove(ctx context.Context, prefix string, names []string) (*domain.Result, error) {
	removals := make([]domain.InternedString, 0, len(names))
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			return nil, zerr.Wrap(domain.ErrBadSpec, "empty package name")
		}
		removals = append(removals, domain.NewInternedString(name))
	}
	return a.apply(ctx, prefix, nil, removals, false)
}

// Update re-solves the given specs, or every installed package when all is
// set, allowing newer versions to be picked.
func (a *App) Update(ctx context.Context, prefix string, rawSpecs []string, all bool) (*domain.Result, error) {
	requests, err := parseSpecs(rawSpecs)
	if err != nil {
		return nil, err
	}
	return a.apply(ctx, prefix, requests, nil, all)
}

// List returns the installed records of a prefix in name order.
func (a *App) List(prefix string) ([]domain.InstalledRecord, error) {
	state, err := a.stores(prefix).State()
	if err != nil {
		return nil, err
	}
	return state.Records(), nil
}

// SyncAll brings every configured (channel, subdir) index up to date and
// returns the snapshots in channel priority order.
func (a *App) SyncAll(ctx context.Context) ([]*domain.Index, error) {
	cfg, err := a.loader.Load()
	if err != nil {
		return nil, err
	}
	return a.syncIndices(ctx, cfg)
}

func (a *App) syncIndices(ctx context.Context, cfg *domain.Config) ([]*domain.Index, error) {
	type part struct {
		channel domain.Channel
		subdir  string
	}
	var parts []part
	for _, ch := range cfg.Channels {
		for _, subdir := range cfg.Subdirs {
			parts = append(parts, part{channel: ch, subdir: subdir})
		}
	}

	indices := make([]*domain.Index, len(parts))
	eg, egCtx := errgroup.WithContext(ctx)
	for i, p := range parts {
		eg.Go(func() error {
			idx, err := a.sync.Sync(egCtx, p.channel, p.subdir)
			if err != nil {
				return err
			}
			indices[i] = idx
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return indices, nil
}

// apply runs the full pipeline: sync, solve, plan, ensure, validate, execute.
func (a *App) apply(ctx context.Context, prefix string, requests []domain.MatchSpec, removals []domain.InternedString, updateAll bool) (*domain.Result, error) {
	cfg, err := a.loader.Load()
	if err != nil {
		return nil, err
	}

	// 1. Bring the channel indices up to date.
	indices, err := a.syncIndices(ctx, cfg)
	if err != nil {
		return nil, err
	}

	// 2. Read the installed state from the prefix records.
	store := a.stores(prefix)
	current, err := store.State()
	if err != nil {
		return nil, err
	}

	// 3. Solve for the target state.
	pins, err := parseSpecs(cfg.Pins)
	if err != nil {
		return nil, err
	}
	mode := cfg.Mode
	mode.UpdateAll = updateAll
	outcome, err := a.solver.Resolve(ctx, &domain.SolveRequest{
		Indices:     indices,
		Installed:   current,
		Requests:    requests,
		Removals:    removals,
		Pins:        pins,
		Features:    cfg.Features,
		ChannelRank: cfg.ChannelRank(),
		Mode:        mode,
	})
	if err != nil {
		return nil, err
	}
	if outcome.Conflict != nil {
		return nil, &ConflictError{Conflict: outcome.Conflict}
	}
	if outcome.Solution.NonOptimal {
		a.log.Warn("iteration budget exhausted; applying a valid but possibly non-optimal solution")
	}

	// 4. Plan the transaction.
	tx := planner.Plan(prefix, current, outcome.Solution)
	if tx.Empty() {
		a.log.Info("nothing to do, environment already satisfies the request")
		return &domain.Result{State: domain.StateCommitted}, nil
	}

	// 5. Ensure every package to link is present and verified in the cache.
	if err := a.ensure(ctx, tx); err != nil {
		return nil, err
	}

	// 6. Validate the combined file set before touching the prefix.
	manifests, currentFiles, err := a.collectManifests(tx, store, current)
	if err != nil {
		return nil, err
	}
	if err := planner.ValidateManifests(tx, manifests, current, currentFiles); err != nil {
		return nil, err
	}

	// 7. Reference the new entries, execute, then settle the references to
	// match what actually ended up installed.
	linked := hashesOf(tx.Links())
	for _, hash := range linked {
		if err := a.cache.Incref(hash, prefix); err != nil {
			return nil, err
		}
	}
	result, err := a.executor.Execute(ctx, tx)
	if err != nil || result.State != domain.StateCommitted {
		for _, hash := range linked {
			if derr := a.cache.Decref(hash, prefix); derr != nil {
				a.log.Warn(fmt.Sprintf("failed to drop cache reference %s: %v", hash, derr))
			}
		}
		return result, err
	}
	for _, hash := range hashesOf(tx.Unlinks()) {
		if derr := a.cache.Decref(hash, prefix); derr != nil {
			a.log.Warn(fmt.Sprintf("failed to drop cache reference %s: %v", hash, derr))
		}
	}
	return result, nil
}

// ensure downloads and verifies all link targets in parallel and fills in
// their cache paths.
func (a *App) ensure(ctx context.Context, tx *domain.Transaction) error {
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(runtime.NumCPU())
	for i := range tx.Actions {
		if tx.Actions[i].Kind != domain.ActionLink {
			continue
		}
		action := &tx.Actions[i]
		eg.Go(func() error {
			path, err := a.cache.Ensure(egCtx, &action.Record)
			if err != nil {
				return err
			}
			action.CachePath = path
			return nil
		})
	}
	return eg.Wait()
}

// collectManifests gathers the link manifests keyed by content hash and the
// current file lists of packages staying installed.
func (a *App) collectManifests(tx *domain.Transaction, store ports.PrefixStore, current *domain.EnvironmentState) (map[string]*domain.Manifest, map[string][]domain.FileRecord, error) {
	manifests := make(map[string]*domain.Manifest)
	for _, action := range tx.Links() {
		man, err := a.cache.Manifest(action.Record.ContentHash)
		if err != nil {
			return nil, nil, err
		}
		manifests[action.Record.ContentHash] = man
	}

	currentFiles := make(map[string][]domain.FileRecord)
	for _, inst := range current.Records() {
		rec, err := store.Get(inst.Record.Name)
		if err != nil {
			return nil, nil, err
		}
		currentFiles[inst.Record.Name.String()] = rec.Files
	}
	return manifests, currentFiles, nil
}

func hashesOf(actions []domain.Action) []string {
	var hashes []string
	for _, a := range actions {
		hashes = append(hashes, a.Record.ContentHash)
	}
	slices.Sort(hashes)
	return slices.Compact(hashes)
}

func parseSpecs(raw []string) ([]domain.MatchSpec, error) {
	specs := make([]domain.MatchSpec, 0, len(raw))
	for _, r := range raw {
		spec, err := domain.ParseMatchSpec(r)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}
