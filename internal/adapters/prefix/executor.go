package prefix

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.trai.ch/keg/internal/core/domain"
	"go.trai.ch/keg/internal/core/ports"
	"go.trai.ch/zerr"
)

const journalFilename = "txn.json"

var _ ports.Executor = (*Executor)(nil)

// Executor applies transactions to a prefix. It stages every link before the
// first file of the prefix is touched, journals its phase, and rolls back
// completed steps in reverse order on a mid-commit failure. A prefix touched
// by a transaction is therefore always in the old state, the new state, or
// explicitly marked inconsistent.
type Executor struct {
	locker    ports.Locker
	cache     ports.PackageCache
	telemetry ports.Telemetry
	log       ports.Logger

	// beforeStep is a test seam invoked before each commit step.
	beforeStep func(step int) error
}

// NewExecutor creates an Executor.
func NewExecutor(locker ports.Locker, cache ports.PackageCache, telemetry ports.Telemetry, log ports.Logger) *Executor {
	return &Executor{
		locker:    locker,
		cache:     cache,
		telemetry: telemetry,
		log:       log,
	}
}

// journal is the durable execution phase marker inside the prefix. Its
// presence in a non-terminal state on a later run means a previous
// transaction died mid-flight.
type journal struct {
	State   domain.ExecutionState `json:"state"`
	Started time.Time             `json:"started"`
}

// completedStep is one finished commit step, retained for rollback.
type completedStep struct {
	action domain.Action
	files  []domain.FileRecord
	// prior is the replaced prefix record of an unlink, restored on rollback.
	prior *domain.PrefixRecord
}

// Execute applies the transaction. On success the prefix holds exactly the
// target state; on a mid-commit failure every completed step is undone before
// the original error is returned.
func (e *Executor) Execute(ctx context.Context, tx *domain.Transaction) (*domain.Result, error) {
	if tx.Empty() {
		return &domain.Result{State: domain.StateCommitted}, nil
	}

	release, err := e.locker.Acquire(ctx, lockName(tx.Prefix))
	if err != nil {
		return nil, zerr.With(zerr.Wrap(domain.ErrPrefixLocked, err.Error()), "prefix", tx.Prefix)
	}
	defer release() //nolint:errcheck // Lock release failure leaves a stale lock, broken on next acquire

	ctx, vtx := e.telemetry.Record(ctx, fmt.Sprintf("apply %d actions to %s", len(tx.Actions), filepath.Base(tx.Prefix)))
	result, err := e.execute(ctx, tx, vtx.Stdout())
	vtx.Complete(err)
	return result, err
}

func (e *Executor) execute(ctx context.Context, tx *domain.Transaction, progress io.Writer) (*domain.Result, error) {
	if err := e.checkJournal(tx.Prefix); err != nil {
		return nil, err
	}

	store := NewRecordStore(tx.Prefix)
	id := time.Now().UnixNano()
	stageRoot := filepath.Join(tx.Prefix, kegDir, fmt.Sprintf("stage-%d", id))
	backupRoot := filepath.Join(tx.Prefix, kegDir, fmt.Sprintf("backup-%d", id))
	defer os.RemoveAll(stageRoot) //nolint:errcheck // Best effort cleanup

	if err := e.writeJournal(tx.Prefix, domain.StateStaging); err != nil {
		return nil, err
	}

	staged, err := e.stage(ctx, tx, stageRoot)
	if err != nil {
		// Nothing in the prefix was touched yet; just clear the journal.
		e.clearJournal(tx.Prefix)
		return &domain.Result{State: domain.StateRolledBack}, err
	}

	if err := e.writeJournal(tx.Prefix, domain.StateCommitting); err != nil {
		return nil, err
	}

	result, err := e.commit(tx, store, stageRoot, backupRoot, staged, progress)
	if result != nil && result.State != domain.StateInconsistent {
		// Committed and rolled back are both terminal: the backup area and
		// the journal are only kept while an inconsistent prefix awaits
		// manual repair.
		os.RemoveAll(backupRoot) //nolint:errcheck // Best effort cleanup
		e.clearJournal(tx.Prefix)
	}
	return result, err
}

// checkJournal rejects prefixes carrying a journal from a transaction that
// never reached a terminal state.
func (e *Executor) checkJournal(prefix string) error {
	data, err := os.ReadFile(filepath.Join(prefix, kegDir, journalFilename))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return zerr.Wrap(err, "failed to read transaction journal")
	}
	var j journal
	if err := json.Unmarshal(data, &j); err != nil {
		return zerr.Wrap(err, "failed to decode transaction journal")
	}
	return zerr.With(zerr.With(zerr.Wrap(domain.ErrRollbackFailure, "prefix carries an unfinished transaction"),
		"prefix", prefix), "state", string(j.State))
}

func (e *Executor) writeJournal(prefix string, state domain.ExecutionState) error {
	dir := filepath.Join(prefix, kegDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return zerr.Wrap(err, "failed to create prefix directory")
	}
	data, err := json.Marshal(journal{State: state, Started: time.Now().UTC()})
	if err != nil {
		return zerr.Wrap(err, "failed to encode transaction journal")
	}
	if err := os.WriteFile(filepath.Join(dir, journalFilename), data, 0o644); err != nil { //nolint:gosec // Journal is world-readable
		return zerr.Wrap(err, "failed to write transaction journal")
	}
	return nil
}

func (e *Executor) clearJournal(prefix string) {
	if err := os.Remove(filepath.Join(prefix, kegDir, journalFilename)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		e.log.Warn(fmt.Sprintf("failed to clear transaction journal: %v", err))
	}
}

// markInconsistent replaces the journal with an inconsistent marker. Later
// transactions refuse the prefix until it is repaired.
func (e *Executor) markInconsistent(prefix string) {
	if err := e.writeJournal(prefix, domain.StateInconsistent); err != nil {
		e.log.Error(zerr.Wrap(err, "failed to mark prefix inconsistent"))
	}
}

// stage materializes every link action's files under the stage root, one
// directory per package. The prefix itself is not touched. Returned manifests
// are keyed by package name.
func (e *Executor) stage(ctx context.Context, tx *domain.Transaction, stageRoot string) (map[string][]domain.FileRecord, error) {
	staged := make(map[string][]domain.FileRecord)
	for _, action := range tx.Links() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		manifest, err := e.cache.Manifest(action.Record.ContentHash)
		if err != nil {
			return nil, err
		}
		pkgStage := filepath.Join(stageRoot, action.Record.Name.String())
		for _, file := range manifest.Files {
			src := filepath.Join(action.CachePath, filepath.FromSlash(file.Path))
			dst := filepath.Join(pkgStage, filepath.FromSlash(file.Path))
			if err := linkOrCopy(src, dst); err != nil {
				return nil, zerr.With(zerr.Wrap(err, "failed to stage file"), "path", file.Path)
			}
			if err := verifyStaged(dst, file); err != nil {
				return nil, err
			}
		}
		staged[action.Record.Name.String()] = manifest.Files
	}
	return staged, nil
}

// commit applies the actions in transaction order. Each completed step is
// remembered; the first failure triggers a reverse-order rollback.
func (e *Executor) commit(tx *domain.Transaction, store *RecordStore, stageRoot, backupRoot string, staged map[string][]domain.FileRecord, progress io.Writer) (*domain.Result, error) {
	var completed []completedStep

	fail := func(cause error) (*domain.Result, error) {
		if rberr := e.rollback(tx, store, backupRoot, completed); rberr != nil {
			e.markInconsistent(tx.Prefix)
			return &domain.Result{State: domain.StateInconsistent},
				zerr.With(zerr.With(zerr.Wrap(domain.ErrRollbackFailure, rberr.Error()), "prefix", tx.Prefix), "cause", cause.Error())
		}
		return &domain.Result{State: domain.StateRolledBack}, cause
	}

	// Cancellation is not honored here: once committing has begun the phase
	// runs to completion (or fails on its own terms) so the prefix never
	// pays a rollback for a signal that arrived too late to matter.
	for i, action := range tx.Actions {
		if e.beforeStep != nil {
			if err := e.beforeStep(i); err != nil {
				return fail(err)
			}
		}

		var step completedStep
		var err error
		switch action.Kind {
		case domain.ActionUnlink:
			step, err = e.unlink(tx.Prefix, store, backupRoot, action)
		case domain.ActionLink:
			step, err = e.link(tx.Prefix, store, stageRoot, staged, action)
		default:
			err = zerr.With(zerr.New("unknown action kind"), "kind", action.Kind)
		}
		if err != nil {
			// A step that failed to undo its own partial work leaves the
			// prefix broken beyond what reverse rollback can repair.
			if errors.Is(err, domain.ErrRollbackFailure) {
				e.markInconsistent(tx.Prefix)
				return &domain.Result{State: domain.StateInconsistent}, err
			}
			return fail(err)
		}
		completed = append(completed, step)
		fmt.Fprintf(progress, "%s %s\n", action.Kind, action.Record.NameVersionBuild()) //nolint:errcheck // Progress output is advisory
	}

	result := &domain.Result{State: domain.StateCommitted}
	for _, step := range completed {
		if step.action.Kind == domain.ActionLink {
			result.Linked++
		} else {
			result.Unlinked++
		}
	}
	e.log.Info(fmt.Sprintf("committed transaction on %s: %d linked, %d unlinked", tx.Prefix, result.Linked, result.Unlinked))
	return result, nil
}

// unlink moves a package's files out of the prefix into the backup area and
// deletes its record. A failure partway through moves the already-moved files
// straight back, so a failed step leaves no trace of its own.
func (e *Executor) unlink(prefix string, store *RecordStore, backupRoot string, action domain.Action) (completedStep, error) {
	step := completedStep{action: action}
	rec, err := store.Get(action.Record.Name)
	if err != nil {
		return step, err
	}
	step.prior = rec
	step.files = rec.Files

	backup := filepath.Join(backupRoot, action.Record.Name.String())
	restore := func(moved []domain.FileRecord) error {
		for i := len(moved) - 1; i >= 0; i-- {
			src := filepath.Join(backup, filepath.FromSlash(moved[i].Path))
			dst := filepath.Join(prefix, filepath.FromSlash(moved[i].Path))
			if err := moveFile(src, dst); err != nil {
				return err
			}
		}
		return nil
	}

	var moved []domain.FileRecord
	for _, file := range rec.Files {
		src := filepath.Join(prefix, filepath.FromSlash(file.Path))
		dst := filepath.Join(backup, filepath.FromSlash(file.Path))
		if err := moveFile(src, dst); err != nil {
			err = zerr.With(zerr.Wrap(err, "failed to unlink file"), "path", file.Path)
			if rerr := restore(moved); rerr != nil {
				return step, zerr.With(zerr.Wrap(domain.ErrRollbackFailure, rerr.Error()), "cause", err.Error())
			}
			return step, err
		}
		pruneEmptyDirs(prefix, src)
		moved = append(moved, file)
	}
	if err := store.Delete(action.Record.Name); err != nil {
		if rerr := restore(moved); rerr != nil {
			return step, zerr.With(zerr.Wrap(domain.ErrRollbackFailure, rerr.Error()), "cause", err.Error())
		}
		return step, err
	}
	return step, nil
}

// link moves a package's staged files into the prefix and writes its record.
// A failure partway through removes the files it already placed.
func (e *Executor) link(prefix string, store *RecordStore, stageRoot string, staged map[string][]domain.FileRecord, action domain.Action) (completedStep, error) {
	name := action.Record.Name.String()
	step := completedStep{action: action, files: staged[name]}

	retract := func(moved []domain.FileRecord) error {
		for i := len(moved) - 1; i >= 0; i-- {
			path := filepath.Join(prefix, filepath.FromSlash(moved[i].Path))
			if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}
			pruneEmptyDirs(prefix, path)
		}
		return nil
	}

	pkgStage := filepath.Join(stageRoot, name)
	var moved []domain.FileRecord
	for _, file := range step.files {
		src := filepath.Join(pkgStage, filepath.FromSlash(file.Path))
		dst := filepath.Join(prefix, filepath.FromSlash(file.Path))
		var err error
		if _, lerr := os.Lstat(dst); lerr == nil {
			err = zerr.With(zerr.With(zerr.Wrap(domain.ErrLinkConflict, "target path already exists"), "path", file.Path), "package", name)
		} else if merr := moveFile(src, dst); merr != nil {
			err = zerr.With(zerr.Wrap(merr, "failed to link file"), "path", file.Path)
		}
		if err != nil {
			if rerr := retract(moved); rerr != nil {
				return step, zerr.With(zerr.Wrap(domain.ErrRollbackFailure, rerr.Error()), "cause", err.Error())
			}
			return step, err
		}
		moved = append(moved, file)
	}
	err := store.Put(&domain.PrefixRecord{
		Record:          action.Record,
		Files:           step.files,
		RequestedByUser: action.RequestedByUser,
		LinkedAt:        time.Now().UTC(),
	})
	if err != nil {
		if rerr := retract(moved); rerr != nil {
			return step, zerr.With(zerr.Wrap(domain.ErrRollbackFailure, rerr.Error()), "cause", err.Error())
		}
		return step, err
	}
	return step, nil
}

// rollback undoes completed steps in reverse order: linked files come back
// out, unlinked files are restored from backup together with their records.
func (e *Executor) rollback(tx *domain.Transaction, store *RecordStore, backupRoot string, completed []completedStep) error {
	for i := len(completed) - 1; i >= 0; i-- {
		step := completed[i]
		name := step.action.Record.Name
		switch step.action.Kind {
		case domain.ActionLink:
			for _, file := range step.files {
				path := filepath.Join(tx.Prefix, filepath.FromSlash(file.Path))
				if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
					return zerr.With(zerr.Wrap(err, "failed to remove linked file"), "path", file.Path)
				}
				pruneEmptyDirs(tx.Prefix, path)
			}
			if err := store.Delete(name); err != nil && !errors.Is(err, domain.ErrRecordNotFound) {
				return err
			}
		case domain.ActionUnlink:
			backup := filepath.Join(backupRoot, name.String())
			for _, file := range step.files {
				src := filepath.Join(backup, filepath.FromSlash(file.Path))
				dst := filepath.Join(tx.Prefix, filepath.FromSlash(file.Path))
				if err := moveFile(src, dst); err != nil {
					return zerr.With(zerr.Wrap(err, "failed to restore file"), "path", file.Path)
				}
			}
			if err := store.Put(step.prior); err != nil {
				return err
			}
		}
	}
	return nil
}

// verifyStaged re-checks a staged file against its manifest entry. The cache
// is shared mutable state; corruption must surface before commit touches the
// prefix.
func verifyStaged(path string, file domain.FileRecord) error {
	f, err := os.Open(path) //nolint:gosec // Path is inside our staging directory
	if err != nil {
		return zerr.Wrap(err, "failed to open staged file")
	}
	defer f.Close() //nolint:errcheck // Read-only file

	digest := xxhash.New()
	n, err := io.Copy(digest, f)
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to hash staged file"), "path", file.Path)
	}
	if n != file.Size {
		return zerr.With(zerr.With(zerr.Wrap(domain.ErrIntegrity, "staged file size mismatch"),
			"path", file.Path), "got", n)
	}
	if got := fmt.Sprintf("%016x", digest.Sum64()); got != file.Hash {
		return zerr.With(zerr.With(zerr.Wrap(domain.ErrIntegrity, "staged file digest mismatch"),
			"path", file.Path), "got", got)
	}
	return nil
}

// linkOrCopy hardlinks src to dst, falling back to a copy when the link
// fails (cross-device cache, for instance).
func linkOrCopy(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	if err := os.Link(src, dst); err == nil {
		return nil
	}
	in, err := os.Open(src) //nolint:gosec // Path comes from a verified manifest
	if err != nil {
		return err
	}
	defer in.Close() //nolint:errcheck // Read-only file

	info, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm()) //nolint:gosec // Destination is confined to the stage
	if err != nil {
		return err
	}
	_, err = io.Copy(out, in)
	if cerr := out.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// moveFile renames src to dst, creating parent directories as needed.
func moveFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return os.Rename(src, dst)
}

// pruneEmptyDirs removes the now-empty parent directories of a removed file,
// walking up to the root, so retracting a package restores the directory
// tree exactly. Removal stops at the first non-empty directory.
func pruneEmptyDirs(root, path string) {
	root = filepath.Clean(root)
	for dir := filepath.Dir(path); dir != root && strings.HasPrefix(dir, root+string(filepath.Separator)); dir = filepath.Dir(dir) {
		if err := os.Remove(dir); err != nil {
			return
		}
	}
}

// lockName derives a lock name from a prefix path.
func lockName(prefix string) string {
	clean := filepath.ToSlash(filepath.Clean(prefix))
	return "prefix-" + strings.NewReplacer("/", "_", ":", "_").Replace(clean)
}
