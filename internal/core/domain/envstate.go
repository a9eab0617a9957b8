package domain

import (
	"slices"

	"go.trai.ch/zerr"
)

// InstalledRecord is a PackageRecord together with its per-environment
// metadata.
type InstalledRecord struct {
	Record PackageRecord `json:"record"`

	// RequestedByUser marks packages the user asked for explicitly, as
	// opposed to dependencies pulled in by the solver.
	RequestedByUser bool `json:"requested_by_user"`

	// Pinned restricts future solves of this name to the pinning spec.
	Pinned bool `json:"pinned"`
}

// EnvironmentState is the set of packages installed into one prefix, keyed by
// package name. No two members ever share a name.
type EnvironmentState struct {
	records map[InternedString]InstalledRecord
}

// NewEnvironmentState creates an empty state.
func NewEnvironmentState() *EnvironmentState {
	return &EnvironmentState{
		records: make(map[InternedString]InstalledRecord),
	}
}

// Add inserts a record. It returns ErrDuplicateName if the name is taken.
func (e *EnvironmentState) Add(rec InstalledRecord) error {
	name := rec.Record.Name
	if _, exists := e.records[name]; exists {
		return zerr.With(zerr.Wrap(ErrDuplicateName, "record already present"), "package", name.String())
	}
	e.records[name] = rec
	return nil
}

// Get returns the installed record for a name, if present.
func (e *EnvironmentState) Get(name InternedString) (InstalledRecord, bool) {
	rec, ok := e.records[name]
	return rec, ok
}

// Remove drops the record for a name. Removing an absent name is a no-op.
func (e *EnvironmentState) Remove(name InternedString) {
	delete(e.records, name)
}

// Len returns the number of installed packages.
func (e *EnvironmentState) Len() int {
	return len(e.records)
}

// Names returns all installed names sorted ascending.
func (e *EnvironmentState) Names() []InternedString {
	names := make([]InternedString, 0, len(e.records))
	for name := range e.records {
		names = append(names, name)
	}
	slices.SortFunc(names, func(a, b InternedString) int {
		return stringsCompare(a.String(), b.String())
	})
	return names
}

// Records returns the installed records in name order.
func (e *EnvironmentState) Records() []InstalledRecord {
	names := e.Names()
	recs := make([]InstalledRecord, 0, len(names))
	for _, name := range names {
		recs = append(recs, e.records[name])
	}
	return recs
}

// Clone returns an independent copy of the state.
func (e *EnvironmentState) Clone() *EnvironmentState {
	clone := NewEnvironmentState()
	for name, rec := range e.records {
		clone.records[name] = rec
	}
	return clone
}

func stringsCompare(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
