package solver

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"go.trai.ch/keg/internal/core/domain"
)

// minimalUnsatSubset shrinks the request groups to a minimal set that is
// still unsatisfiable against the structural clauses, by deletion: drop one
// group, re-check, and keep the drop whenever the rest stays UNSAT. The
// routine is pure over the clause representation so it can be exercised with
// synthetic instances.
func (r *Resolver) minimalUnsatSubset(ctx context.Context, p *problem, budget *iterationBudget) ([]specGroup, error) {
	retained := make([]specGroup, len(p.groups))
	copy(retained, p.groups)

	for i := 0; i < len(retained); {
		trial := make([]specGroup, 0, len(retained)-1)
		trial = append(trial, retained[:i]...)
		trial = append(trial, retained[i+1:]...)

		_, ok, err := r.solve(ctx, p.formula(trial), budget)
		if err != nil {
			return retained, err
		}
		if !ok {
			// Still unsatisfiable without this group; it is not part of
			// the core.
			retained = trial
			continue
		}
		i++
	}
	return retained, nil
}

// explain turns a minimal unsatisfiable group set into conflict entries with
// per-spec reasons: which dependency or direct selection makes the specs
// irreconcilable.
func explain(p *problem, core []specGroup) *domain.Conflict {
	demands := make([]map[domain.InternedString][]int, len(core))
	labels := make([]map[domain.InternedString]string, len(core))
	for i, g := range core {
		demands[i], labels[i] = groupDemands(p, g)
	}

	conflict := &domain.Conflict{}
	for i, g := range core {
		var reasons []string
		for _, name := range sortedNames(demands[i]) {
			vars := demands[i][name]
			for j := range core {
				if j == i {
					continue
				}
				otherVars, ok := demands[j][name]
				if !ok {
					continue
				}
				if intersects(vars, otherVars) {
					continue
				}
				if name == g.spec.Name {
					reasons = append(reasons, fmt.Sprintf("conflicts with %s", core[j].label))
				} else {
					reasons = append(reasons, fmt.Sprintf("requires %s", labels[i][name]))
				}
				break
			}
		}
		entry := domain.ConflictEntry{Spec: g.label}
		if len(reasons) > 0 {
			entry.Reason = strings.Join(dedupSorted(reasons), "; ")
		}
		conflict.Entries = append(conflict.Entries, entry)
	}
	return conflict
}

// groupDemands maps each package name a group selects over, directly or via
// its best candidate's dependencies, to the candidate variables it accepts.
func groupDemands(p *problem, g specGroup) (map[domain.InternedString][]int, map[domain.InternedString]string) {
	demands := map[domain.InternedString][]int{
		g.spec.Name: g.matchVars,
	}
	labels := map[domain.InternedString]string{
		g.spec.Name: g.label,
	}

	if len(g.matchVars) == 0 {
		return demands, labels
	}
	best := p.candidates[g.matchVars[0]-1]
	for _, depText := range best.rec.Depends {
		spec, err := domain.ParseMatchSpec(depText)
		if err != nil {
			continue
		}
		var vars []int
		for _, c := range p.byName[spec.Name] {
			if spec.Matches(c.rec) {
				vars = append(vars, c.variable)
			}
		}
		demands[spec.Name] = vars
		labels[spec.Name] = spec.String()
	}
	return demands, labels
}

func sortedNames(m map[domain.InternedString][]int) []domain.InternedString {
	names := make([]domain.InternedString, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	slices.SortFunc(names, func(a, b domain.InternedString) int {
		return strings.Compare(a.String(), b.String())
	})
	return names
}

func intersects(a, b []int) bool {
	set := make(map[int]bool, len(a))
	for _, v := range a {
		set[v] = true
	}
	for _, v := range b {
		if set[v] {
			return true
		}
	}
	return false
}

func dedupSorted(in []string) []string {
	seen := make(map[string]bool, len(in))
	var out []string
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
