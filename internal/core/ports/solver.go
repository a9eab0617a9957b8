package ports

import (
	"context"

	"go.trai.ch/keg/internal/core/domain"
)

// Solver turns index snapshots, the installed state, and the user's requests
// into a consistent target package set or a diagnosable conflict. A returned
// Conflict is expected data; an error is an internal solver fault.
//
//go:generate mockgen -source=solver.go -destination=mocks/mock_solver.go -package=mocks
type Solver interface {
	Resolve(ctx context.Context, req *domain.SolveRequest) (*domain.SolveOutcome, error)
}

// SATSolver is the single capability the resolution engine needs from a
// boolean-satisfiability backend, so any backend can be substituted. The
// preference and ranking logic lives outside this abstraction.
type SATSolver interface {
	// Solve reports whether the formula is satisfiable under the given
	// assumption literals, and if so returns a model indexed by variable.
	Solve(ctx context.Context, formula *Formula, assumptions []int) (model []bool, ok bool, err error)
}

// Formula is a boolean formula in conjunctive normal form. Literals are
// non-zero integers: v means variable v is true, -v means it is false.
// Variables are numbered from 1.
type Formula struct {
	NumVars int
	Clauses [][]int
}

// Add appends a clause.
func (f *Formula) Add(clause ...int) {
	f.Clauses = append(f.Clauses, clause)
}
