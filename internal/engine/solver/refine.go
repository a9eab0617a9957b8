package solver

import (
	"context"

	"go.trai.ch/keg/internal/core/domain"
	"go.trai.ch/keg/internal/core/ports"
)

// refine walks the fixed preference order from the highest tier down,
// narrowing the formula with additional clauses after each successful solve:
//
//  1. keep installed packages that were not requested for removal
//  2. avoid downgrading installed packages (unless downgrades are allowed)
//  3. prefer higher-priority channels, then newer versions, then the
//     deterministic tie-break, locked in per name as unit clauses; an
//     installed build the user never asked to move ranks first
//
// A candidate clause that makes the formula unsatisfiable is retracted and
// the previous model stands, so every accepted step is a strict improvement.
// The loop stops early when the iteration budget runs out, flagging the
// model as non-optimal.
func (r *Resolver) refine(ctx context.Context, p *problem, f *ports.Formula, model []bool, budget *iterationBudget) ([]bool, bool) {
	improve := func(clause ...int) bool {
		if budget.exhausted() {
			return false
		}
		f.Clauses = append(f.Clauses, clause)
		next, ok, err := r.solve(ctx, f, budget)
		if err != nil || !ok {
			f.Clauses = f.Clauses[:len(f.Clauses)-1]
			return false
		}
		model = next
		return true
	}

	// Tier 1: fewest removals of packages not explicitly requested gone.
	if p.req.Installed != nil {
		for _, name := range p.req.Installed.Names() {
			if budget.exhausted() {
				return model, true
			}
			if p.removals[name] || p.chosen(model, name) != nil {
				continue
			}
			var clause []int
			for _, c := range p.byName[name] {
				clause = append(clause, c.variable)
			}
			if len(clause) > 0 {
				improve(clause...)
			}
		}
	}

	// Tier 2: fewest downgrades of installed packages.
	if p.req.Installed != nil && !p.req.Mode.AllowDowngrade {
		for _, inst := range p.req.Installed.Records() {
			name := inst.Record.Name
			if budget.exhausted() {
				return model, true
			}
			cur := p.chosen(model, name)
			if cur == nil {
				continue
			}
			installedVersion, err := domain.ParseVersion(inst.Record.Version)
			if err != nil {
				continue
			}
			var clause []int
			for _, c := range p.byName[name] {
				if c.version.Compare(installedVersion) >= 0 {
					clause = append(clause, c.variable)
				}
			}
			if len(clause) == 0 {
				continue
			}
			if cur.version.Compare(installedVersion) >= 0 {
				// Already non-downgrading; pin that property in so later
				// tiers cannot regress it.
				f.Clauses = append(f.Clauses, clause)
				continue
			}
			improve(clause...)
		}
	}

	// Tiers 3-5: per name, lock in the most preferred reachable candidate.
	// Candidate order within a name already encodes channel rank, version
	// recency, and the final tie-break; preferred puts an installed build
	// first when nothing asked the name to move.
	for _, name := range p.names {
		if budget.exhausted() {
			return model, true
		}
		cur := p.chosen(model, name)
		if cur == nil {
			continue
		}
		locked := false
		for _, c := range p.preferred(name) {
			if c == cur {
				break
			}
			if improve(c.variable) {
				locked = true
				break
			}
		}
		if !locked {
			f.Clauses = append(f.Clauses, []int{cur.variable})
		}
	}

	return model, budget.exhausted()
}

// preferred returns the candidates of a name in refinement preference order.
// A name the user never asked to move prefers its installed build, so
// uninvolved packages stay put; every other name, and every name under
// update-all, follows the plain candidate order.
func (p *problem) preferred(name domain.InternedString) []*candidate {
	cands := p.byName[name]
	if p.req.Mode.UpdateAll || p.nameIsRequested(name) {
		return cands
	}
	for i, c := range cands {
		if !c.installed {
			continue
		}
		if i == 0 {
			return cands
		}
		out := make([]*candidate, 0, len(cands))
		out = append(out, c)
		out = append(out, cands[:i]...)
		out = append(out, cands[i+1:]...)
		return out
	}
	return cands
}

// nameIsRequested reports whether the name was explicitly requested.
func (p *problem) nameIsRequested(name domain.InternedString) bool {
	for _, spec := range p.req.Requests {
		if spec.Name == name {
			return true
		}
	}
	return false
}
