package solver

import (
	"slices"
	"strings"

	"go.trai.ch/keg/internal/core/domain"
	"go.trai.ch/keg/internal/core/ports"
	"go.trai.ch/zerr"
)

const unrankedChannel = 1 << 20

// candidate is one decision variable of the solve: a package record that may
// end up in the target environment.
type candidate struct {
	rec      *domain.PackageRecord
	variable int
	rank     int
	version  domain.Version

	// installed is set when this exact build is already in the environment.
	installed bool
}

type groupKind int

const (
	groupRequest groupKind = iota
	groupRemoval
	groupPin
)

// specGroup ties the clauses contributed by one user input to its textual
// spec, so an unsatisfiable core can be reported in the user's own terms.
type specGroup struct {
	label   string
	kind    groupKind
	spec    domain.MatchSpec
	clauses [][]int

	// matchVars are the candidate variables the spec itself selects over,
	// used when deriving conflict reasons.
	matchVars []int
}

// problem is the fully built formula plus the bookkeeping needed to rank
// models and explain conflicts.
type problem struct {
	req        *domain.SolveRequest
	candidates []*candidate
	byName     map[domain.InternedString][]*candidate
	names      []domain.InternedString

	// hard holds the structural clauses that are never retracted:
	// dependency implications, at-most-one-per-name, pins, removals.
	hard ports.Formula

	// groups are the retractable request groups used for unsat-core search.
	groups []specGroup

	// noMatch collects request specs with zero candidates; the solve is
	// conflicted before the backend ever runs.
	noMatch []domain.ConflictEntry

	removals map[domain.InternedString]bool
}

func buildProblem(req *domain.SolveRequest) (*problem, error) {
	p := &problem{
		req:      req,
		byName:   make(map[domain.InternedString][]*candidate),
		removals: make(map[domain.InternedString]bool),
	}
	for _, name := range req.Removals {
		p.removals[name] = true
	}

	if err := p.collectCandidates(); err != nil {
		return nil, err
	}
	p.assignVariables()
	if err := p.buildStructuralClauses(); err != nil {
		return nil, err
	}
	p.buildGroups()
	return p, nil
}

// collectCandidates gathers one candidate per visible record across all
// indices, plus installed records no index carries anymore (so keeping them
// stays expressible). Track-feature-tagged records are shut out unless the
// feature was requested.
func (p *problem) collectCandidates() error {
	features := make(map[string]bool, len(p.req.Features))
	for _, f := range p.req.Features {
		features[f] = true
	}

	seen := make(map[string]bool)
	add := func(rec *domain.PackageRecord, installed bool) error {
		if seen[rec.Key()] {
			return nil
		}
		seen[rec.Key()] = true
		v, err := domain.ParseVersion(rec.Version)
		if err != nil {
			return zerr.With(zerr.Wrap(err, "index record carries unparsable version"), "record", rec.Key())
		}
		p.byName[rec.Name] = append(p.byName[rec.Name], &candidate{
			rec:       rec,
			rank:      p.channelRank(rec.Channel),
			version:   v,
			installed: installed,
		})
		return nil
	}

	for _, idx := range p.req.Indices {
		for i := range idx.Records {
			rec := &idx.Records[i]
			if domain.TrackFeatureExcluded(rec, features) {
				continue
			}
			if err := add(rec, p.isInstalledBuild(rec)); err != nil {
				return err
			}
		}
	}

	if p.req.Installed != nil {
		for _, inst := range p.req.Installed.Records() {
			rec := inst.Record
			if err := add(&rec, true); err != nil {
				return err
			}
		}
	}

	if p.req.Mode.StrictChannelPriority {
		p.applyStrictChannelPriority()
	}
	return nil
}

func (p *problem) isInstalledBuild(rec *domain.PackageRecord) bool {
	if p.req.Installed == nil {
		return false
	}
	inst, ok := p.req.Installed.Get(rec.Name)
	return ok && inst.Record.SameBuild(rec)
}

// applyStrictChannelPriority drops every candidate of a name that comes from
// a channel ranked below the best channel carrying that name.
func (p *problem) applyStrictChannelPriority() {
	for name, cands := range p.byName {
		best := unrankedChannel + 1
		for _, c := range cands {
			if c.rank < best {
				best = c.rank
			}
		}
		kept := cands[:0]
		for _, c := range cands {
			if c.rank == best || c.installed {
				kept = append(kept, c)
			}
		}
		p.byName[name] = kept
	}
}

func (p *problem) channelRank(channel string) int {
	if rank, ok := p.req.ChannelRank[channel]; ok {
		return rank
	}
	return unrankedChannel
}

// assignVariables numbers candidates deterministically: names ascending, and
// within a name by preference order (channel rank, version descending, build
// number descending, build descending).
func (p *problem) assignVariables() {
	p.names = make([]domain.InternedString, 0, len(p.byName))
	for name := range p.byName {
		p.names = append(p.names, name)
	}
	slices.SortFunc(p.names, func(a, b domain.InternedString) int {
		return strings.Compare(a.String(), b.String())
	})

	next := 1
	for _, name := range p.names {
		cands := p.byName[name]
		slices.SortFunc(cands, func(a, b *candidate) int {
			if c := a.rank - b.rank; c != 0 {
				return c
			}
			if c := b.version.Compare(a.version); c != 0 {
				return c
			}
			if c := b.rec.BuildNumber - a.rec.BuildNumber; c != 0 {
				return c
			}
			if c := strings.Compare(b.rec.Build, a.rec.Build); c != 0 {
				return c
			}
			return strings.Compare(a.rec.Channel, b.rec.Channel)
		})
		for _, c := range cands {
			c.variable = next
			next++
			p.candidates = append(p.candidates, c)
		}
	}
	p.hard.NumVars = next - 1
}

func (p *problem) buildStructuralClauses() error {
	for _, name := range p.names {
		cands := p.byName[name]

		// At most one build of a name.
		for i := 0; i < len(cands); i++ {
			for j := i + 1; j < len(cands); j++ {
				p.hard.Add(-cands[i].variable, -cands[j].variable)
			}
		}

		for _, c := range cands {
			if err := p.addDependencyClauses(c); err != nil {
				return err
			}
			if err := p.addConstrainClauses(c); err != nil {
				return err
			}
		}
	}

	// Removals and pins are hard: the user said so explicitly.
	for name := range p.removals {
		for _, c := range p.byName[name] {
			p.hard.Add(-c.variable)
		}
	}
	for _, pin := range p.req.Pins {
		for _, c := range p.byName[pin.Name] {
			if !pin.Matches(c.rec) {
				p.hard.Add(-c.variable)
			}
		}
	}
	return nil
}

// addDependencyClauses encodes: candidate true implies at least one match of
// each of its dependency specs is true. A dependency with no candidates at
// all makes the candidate itself unusable.
func (p *problem) addDependencyClauses(c *candidate) error {
	for _, depText := range c.rec.Depends {
		spec, err := domain.ParseMatchSpec(depText)
		if err != nil {
			return zerr.With(zerr.Wrap(err, "index record carries malformed dependency spec"), "record", c.rec.Key())
		}
		clause := []int{-c.variable}
		for _, dep := range p.byName[spec.Name] {
			if spec.Matches(dep.rec) {
				clause = append(clause, dep.variable)
			}
		}
		p.hard.Add(clause...)
	}
	return nil
}

// addConstrainClauses encodes: if this candidate is chosen and a package of a
// constrained name is present, that package must satisfy the constrain spec.
func (p *problem) addConstrainClauses(c *candidate) error {
	for _, conText := range c.rec.Constrains {
		spec, err := domain.ParseMatchSpec(conText)
		if err != nil {
			return zerr.With(zerr.Wrap(err, "index record carries malformed constrain spec"), "record", c.rec.Key())
		}
		for _, other := range p.byName[spec.Name] {
			if !spec.Matches(other.rec) {
				p.hard.Add(-c.variable, -other.variable)
			}
		}
	}
	return nil
}

// buildGroups creates the retractable clause group for each request spec.
func (p *problem) buildGroups() {
	for _, spec := range p.req.Requests {
		var vars []int
		for _, c := range p.byName[spec.Name] {
			if spec.Matches(c.rec) {
				vars = append(vars, c.variable)
			}
		}
		if len(vars) == 0 {
			p.noMatch = append(p.noMatch, domain.ConflictEntry{
				Spec:   spec.String(),
				Reason: "no candidate in any configured channel matches",
			})
			continue
		}
		p.groups = append(p.groups, specGroup{
			label:     spec.String(),
			kind:      groupRequest,
			spec:      spec,
			clauses:   [][]int{vars},
			matchVars: vars,
		})
	}
}

// formula assembles hard clauses plus the given groups.
func (p *problem) formula(groups []specGroup) *ports.Formula {
	f := &ports.Formula{
		NumVars: p.hard.NumVars,
		Clauses: slices.Clone(p.hard.Clauses),
	}
	for _, g := range groups {
		f.Clauses = append(f.Clauses, g.clauses...)
	}
	return f
}

// chosen returns the candidate of a name selected by the model, if any.
func (p *problem) chosen(model []bool, name domain.InternedString) *candidate {
	for _, c := range p.byName[name] {
		if model[c.variable] {
			return c
		}
	}
	return nil
}
