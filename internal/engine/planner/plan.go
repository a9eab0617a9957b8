// Package planner diffs the current environment state against a solved
// target and produces the ordered transaction the executor applies.
package planner

import (
	"slices"
	"strings"

	"go.trai.ch/keg/internal/core/domain"
	"go.trai.ch/zerr"
)

// Plan classifies every package name present in either state and emits the
// action list: unchanged names are skipped, added names link, removed names
// unlink, and changed builds unlink the old record before linking the new
// one. All unlinks precede all links so the prefix never transiently holds
// two builds of one name; within each group actions run in name order.
func Plan(prefix string, current *domain.EnvironmentState, target *domain.Solution) *domain.Transaction {
	if current == nil {
		current = domain.NewEnvironmentState()
	}
	tx := &domain.Transaction{Prefix: prefix}

	names := unionNames(current, target.State)

	var unlinks, links []domain.Action
	for _, name := range names {
		cur, haveCur := current.Get(name)
		tgt, haveTgt := target.State.Get(name)

		switch {
		case haveCur && haveTgt:
			if cur.Record.SameBuild(&tgt.Record) {
				continue
			}
			unlinks = append(unlinks, domain.Action{Kind: domain.ActionUnlink, Record: cur.Record})
			links = append(links, domain.Action{
				Kind:            domain.ActionLink,
				Record:          tgt.Record,
				RequestedByUser: tgt.RequestedByUser,
			})
		case haveTgt:
			links = append(links, domain.Action{
				Kind:            domain.ActionLink,
				Record:          tgt.Record,
				RequestedByUser: tgt.RequestedByUser,
			})
		default:
			unlinks = append(unlinks, domain.Action{Kind: domain.ActionUnlink, Record: cur.Record})
		}
	}

	tx.Actions = append(tx.Actions, unlinks...)
	tx.Actions = append(tx.Actions, links...)
	return tx
}

// ValidateManifests simulates the file set the transaction leaves behind and
// rejects the plan with domain.ErrLinkConflict when two surviving packages
// claim the same target path. It runs before any filesystem mutation, so a
// failed validation leaves the environment untouched.
func ValidateManifests(tx *domain.Transaction, manifests map[string]*domain.Manifest, current *domain.EnvironmentState, currentFiles map[string][]domain.FileRecord) error {
	unlinked := make(map[string]bool)
	for _, a := range tx.Unlinks() {
		unlinked[a.Record.Name.String()] = true
	}
	linked := make(map[string]bool)
	for _, a := range tx.Links() {
		linked[a.Record.Name.String()] = true
	}

	owner := make(map[string]string)

	// Files of packages that stay installed untouched.
	if current != nil {
		for _, inst := range current.Records() {
			name := inst.Record.Name.String()
			if unlinked[name] || linked[name] {
				continue
			}
			for _, f := range currentFiles[name] {
				owner[f.Path] = name
			}
		}
	}

	for _, a := range tx.Links() {
		man, ok := manifests[a.Record.ContentHash]
		if !ok {
			return zerr.With(zerr.New("missing manifest for planned link"), "record", a.Record.Key())
		}
		name := a.Record.Name.String()
		for _, f := range man.Files {
			if prev, taken := owner[f.Path]; taken {
				return zerr.With(zerr.With(zerr.With(zerr.Wrap(domain.ErrLinkConflict, "two packages claim the same path"),
					"path", f.Path),
					"package", name),
					"conflicts_with", prev)
			}
			owner[f.Path] = name
		}
	}
	return nil
}

func unionNames(current *domain.EnvironmentState, target *domain.EnvironmentState) []domain.InternedString {
	seen := make(map[domain.InternedString]bool)
	var names []domain.InternedString
	add := func(list []domain.InternedString) {
		for _, n := range list {
			if !seen[n] {
				seen[n] = true
				names = append(names, n)
			}
		}
	}
	if current != nil {
		add(current.Names())
	}
	add(target.Names())
	slices.SortFunc(names, func(a, b domain.InternedString) int {
		return strings.Compare(a.String(), b.String())
	})
	return names
}
