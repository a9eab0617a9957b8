// Package solver implements constraint resolution over channel indices: it
// turns the installed state plus the user's requests into a consistent
// target package set, or a minimal conflict explanation when none exists.
package solver

import (
	"context"
	"errors"

	"go.trai.ch/keg/internal/core/domain"
	"go.trai.ch/keg/internal/core/ports"
	"go.trai.ch/zerr"
)

// DefaultMaxIterations bounds the refinement loop when the request does not
// set its own budget. Each backend solve call costs one iteration.
const DefaultMaxIterations = 1000

var _ ports.Solver = (*Resolver)(nil)

// Resolver implements ports.Solver over an abstract SAT backend. One Resolve
// call is CPU-bound and single-threaded; independent calls share no mutable
// state and may run in parallel.
type Resolver struct {
	sat ports.SATSolver
	log ports.Logger
}

// NewResolver creates a Resolver with the built-in DPLL backend.
func NewResolver(log ports.Logger) *Resolver {
	return &Resolver{sat: NewDPLL(), log: log}
}

// NewResolverWithBackend creates a Resolver over a caller-supplied backend.
func NewResolverWithBackend(sat ports.SATSolver, log ports.Logger) *Resolver {
	return &Resolver{sat: sat, log: log}
}

type iterationBudget struct {
	remaining int
}

func (b *iterationBudget) exhausted() bool {
	return b.remaining <= 0
}

func (b *iterationBudget) spend() {
	b.remaining--
}

func (r *Resolver) solve(ctx context.Context, f *ports.Formula, budget *iterationBudget) ([]bool, bool, error) {
	budget.spend()
	return r.sat.Solve(ctx, f, nil)
}

// Resolve computes a target environment for the request. A legitimate
// conflict comes back inside the outcome; a returned error means the solver
// itself malfunctioned and no plan should be attempted.
func (r *Resolver) Resolve(ctx context.Context, req *domain.SolveRequest) (*domain.SolveOutcome, error) {
	p, err := buildProblem(req)
	if err != nil {
		return nil, zerr.Wrap(domain.ErrSolverFault, err.Error())
	}

	if len(p.noMatch) > 0 {
		return &domain.SolveOutcome{Conflict: &domain.Conflict{Entries: p.noMatch}}, nil
	}

	budget := &iterationBudget{remaining: req.Mode.MaxIterations}
	if budget.remaining <= 0 {
		budget.remaining = DefaultMaxIterations
	}

	f := p.formula(p.groups)
	model, ok, err := r.solve(ctx, f, budget)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return &domain.SolveOutcome{Conflict: &domain.Conflict{Timeout: true}}, nil
		}
		return nil, zerr.Wrap(domain.ErrSolverFault, err.Error())
	}

	if !ok {
		core, err := r.minimalUnsatSubset(ctx, p, budget)
		if err != nil {
			r.log.Warn("unsat core extraction interrupted, reporting coarse conflict")
		}
		return &domain.SolveOutcome{Conflict: explain(p, core)}, nil
	}

	model, nonOptimal := r.refine(ctx, p, f, model, budget)

	solution, err := p.solution(model, nonOptimal)
	if err != nil {
		return nil, err
	}
	return &domain.SolveOutcome{Solution: solution}, nil
}

// solution materializes the final model into an environment state and
// verifies the closure invariants; a violation is a solver fault, never a
// user-facing conflict.
func (p *problem) solution(model []bool, nonOptimal bool) (*domain.Solution, error) {
	state := domain.NewEnvironmentState()
	for _, name := range p.names {
		c := p.chosen(model, name)
		if c == nil {
			continue
		}
		inst := domain.InstalledRecord{Record: *c.rec}
		if prev, ok := installedMeta(p.req.Installed, name); ok {
			inst.RequestedByUser = prev.RequestedByUser
			inst.Pinned = prev.Pinned
		}
		if p.nameIsRequested(name) {
			inst.RequestedByUser = true
		}
		if err := state.Add(inst); err != nil {
			return nil, zerr.Wrap(domain.ErrSolverFault, err.Error())
		}
	}

	if err := verifyClosure(state); err != nil {
		return nil, err
	}
	return &domain.Solution{State: state, NonOptimal: nonOptimal}, nil
}

func installedMeta(installed *domain.EnvironmentState, name domain.InternedString) (domain.InstalledRecord, bool) {
	if installed == nil {
		return domain.InstalledRecord{}, false
	}
	return installed.Get(name)
}

// verifyClosure checks that every member's dependency specs are satisfied by
// another member of the same solution.
func verifyClosure(state *domain.EnvironmentState) error {
	for _, inst := range state.Records() {
		for _, depText := range inst.Record.Depends {
			spec, err := domain.ParseMatchSpec(depText)
			if err != nil {
				return zerr.Wrap(domain.ErrSolverFault, err.Error())
			}
			dep, ok := state.Get(spec.Name)
			if !ok || !spec.Matches(&dep.Record) {
				return zerr.With(zerr.With(zerr.Wrap(domain.ErrSolverFault, "solution leaves a dependency unsatisfied"),
					"package", inst.Record.Key()),
					"unsatisfied_dependency", depText)
			}
		}
	}
	return nil
}
