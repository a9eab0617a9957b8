package solver

import (
	"context"

	"go.trai.ch/keg/internal/core/ports"
	"go.trai.ch/zerr"
)

// DPLL is a small, deterministic boolean-satisfiability backend implementing
// ports.SATSolver. Branching always picks the lowest-numbered unassigned
// variable and tries false first, so identical formulas yield identical
// models on every run and every machine.
type DPLL struct{}

// NewDPLL creates a new DPLL backend.
func NewDPLL() *DPLL {
	return &DPLL{}
}

const ctxCheckInterval = 2048

type satState struct {
	clauses [][]int
	assign  []int8 // 0 unknown, 1 true, -1 false; indexed by variable
	steps   int
	ctx     context.Context
}

// Solve implements ports.SATSolver.
func (d *DPLL) Solve(ctx context.Context, f *ports.Formula, assumptions []int) ([]bool, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, zerr.Wrap(err, "sat search interrupted")
	}
	st := &satState{
		clauses: make([][]int, 0, len(f.Clauses)+len(assumptions)),
		assign:  make([]int8, f.NumVars+1),
		ctx:     ctx,
	}
	st.clauses = append(st.clauses, f.Clauses...)
	for _, lit := range assumptions {
		st.clauses = append(st.clauses, []int{lit})
	}

	for _, c := range st.clauses {
		if len(c) == 0 {
			return nil, false, nil
		}
		for _, lit := range c {
			v := lit
			if v < 0 {
				v = -v
			}
			if v == 0 || v > f.NumVars {
				return nil, false, zerr.With(zerr.New("literal out of range"), "literal", lit)
			}
		}
	}

	ok, err := st.search()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	model := make([]bool, f.NumVars+1)
	for v := 1; v <= f.NumVars; v++ {
		model[v] = st.assign[v] == 1
	}
	return model, true, nil
}

func (st *satState) tick() error {
	st.steps++
	if st.steps%ctxCheckInterval == 0 {
		if err := st.ctx.Err(); err != nil {
			return zerr.Wrap(err, "sat search interrupted")
		}
	}
	return nil
}

// propagate runs unit propagation to a fixpoint. It returns false on an
// empty clause.
func (st *satState) propagate() (bool, error) {
	for {
		if err := st.tick(); err != nil {
			return false, err
		}
		changed := false
		for _, clause := range st.clauses {
			satisfied := false
			unassigned := 0
			var unit int
			for _, lit := range clause {
				switch st.value(lit) {
				case 1:
					satisfied = true
				case 0:
					unassigned++
					unit = lit
				}
				if satisfied {
					break
				}
			}
			if satisfied {
				continue
			}
			if unassigned == 0 {
				return false, nil
			}
			if unassigned == 1 {
				st.set(unit)
				changed = true
			}
		}
		if !changed {
			return true, nil
		}
	}
}

func (st *satState) search() (bool, error) {
	ok, err := st.propagate()
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	v := st.firstUnassigned()
	if v == 0 {
		return true, nil
	}

	saved := make([]int8, len(st.assign))
	copy(saved, st.assign)

	// False first: the preferred default is to not install a candidate.
	for _, lit := range []int{-v, v} {
		st.set(lit)
		ok, err := st.search()
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
		copy(st.assign, saved)
	}
	return false, nil
}

func (st *satState) firstUnassigned() int {
	for v := 1; v < len(st.assign); v++ {
		if st.assign[v] == 0 {
			return v
		}
	}
	return 0
}

func (st *satState) value(lit int) int8 {
	if lit > 0 {
		return st.assign[lit]
	}
	return -st.assign[-lit]
}

func (st *satState) set(lit int) {
	if lit > 0 {
		st.assign[lit] = 1
	} else {
		st.assign[-lit] = -1
	}
}
