package domain

import (
	"fmt"
	"strings"
)

// SolveMode carries the policy flags handed down by the configuration layer.
type SolveMode struct {
	// AllowDowngrade permits the solver to select versions older than the
	// installed ones without penalizing the model.
	AllowDowngrade bool

	// StrictChannelPriority forbids candidates of a name from any channel
	// ranked below the highest-priority channel that carries the name.
	StrictChannelPriority bool

	// UpdateAll relaxes every installed spec to its bare name so the solver
	// is free to pick the newest consistent set.
	UpdateAll bool

	// MaxIterations bounds the refinement loop. Zero means the default.
	MaxIterations int
}

// SolveRequest is the full, self-contained input of one resolve call. The
// solver shares no state with its caller beyond this snapshot.
type SolveRequest struct {
	Indices   []*Index
	Installed *EnvironmentState

	// Requests are the install/update specs the user asked for.
	Requests []MatchSpec

	// Removals name packages to take out of the environment.
	Removals []InternedString

	// Pins restrict their names to the pinning spec's matches.
	Pins []MatchSpec

	// Features are the requested track features.
	Features []string

	// ChannelRank maps channel name to priority rank, lower is better.
	// Channels absent from the map rank after all ranked ones.
	ChannelRank map[string]int

	Mode SolveMode
}

// Solution is the solver's answer: a dependency-closed, name-unique target
// environment state.
type Solution struct {
	State *EnvironmentState

	// NonOptimal is set when the iteration budget expired before the
	// refinement loop converged; the model is valid but may not be the most
	// preferred one.
	NonOptimal bool
}

// ConflictEntry pairs one input spec with the reason it cannot be satisfied.
type ConflictEntry struct {
	Spec   string
	Reason string
}

// Conflict explains a legitimate UNSAT outcome with a minimal set of
// irreconcilable input specs. It is data, not a fault: callers decide how to
// surface it.
type Conflict struct {
	Entries []ConflictEntry

	// Timeout is set when the budget expired with no model found at all.
	Timeout bool
}

// Render formats the minimal conflicting spec set for the user.
func (c *Conflict) Render() string {
	var b strings.Builder
	if c.Timeout {
		b.WriteString("solve aborted: iteration budget exhausted before a model was found\n")
	} else {
		b.WriteString("the following specs cannot be satisfied together:\n")
	}
	for _, e := range c.Entries {
		fmt.Fprintf(&b, "  - %s", e.Spec)
		if e.Reason != "" {
			fmt.Fprintf(&b, " (%s)", e.Reason)
		}
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

// SolveOutcome is either a Solution or a Conflict, never both.
type SolveOutcome struct {
	Solution *Solution
	Conflict *Conflict
}
