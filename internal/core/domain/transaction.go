package domain

// ActionKind discriminates the two transaction primitives.
type ActionKind int

const (
	// ActionUnlink removes a package's files from the prefix.
	ActionUnlink ActionKind = iota
	// ActionLink materializes a package's files into the prefix.
	ActionLink
)

// String returns the action kind name.
func (k ActionKind) String() string {
	switch k {
	case ActionUnlink:
		return "unlink"
	case ActionLink:
		return "link"
	default:
		return "unknown"
	}
}

// Action is one link or unlink step of a transaction.
type Action struct {
	Kind   ActionKind
	Record PackageRecord

	// CachePath is the published cache entry directory for link actions,
	// filled in after the cache manager has ensured the package.
	CachePath string

	// RequestedByUser is carried through to the prefix record on link.
	RequestedByUser bool
}

// Transaction is the ordered action list produced by the planner. All
// unlinks precede all links so the prefix never holds two builds of one name.
type Transaction struct {
	Prefix  string
	Actions []Action
}

// Links returns the link actions in transaction order.
func (t *Transaction) Links() []Action {
	return t.filter(ActionLink)
}

// Unlinks returns the unlink actions in transaction order.
func (t *Transaction) Unlinks() []Action {
	return t.filter(ActionUnlink)
}

func (t *Transaction) filter(kind ActionKind) []Action {
	var out []Action
	for _, a := range t.Actions {
		if a.Kind == kind {
			out = append(out, a)
		}
	}
	return out
}

// Empty reports whether the transaction has nothing to do.
func (t *Transaction) Empty() bool {
	return len(t.Actions) == 0
}

// ExecutionState names the executor's phase for one transaction.
type ExecutionState string

const (
	StatePlanned      ExecutionState = "planned"
	StateStaging      ExecutionState = "staging"
	StateCommitting   ExecutionState = "committing"
	StateCommitted    ExecutionState = "committed"
	StateRollingBack  ExecutionState = "rolling_back"
	StateRolledBack   ExecutionState = "rolled_back"
	StateInconsistent ExecutionState = "inconsistent"
)

// Result summarizes a finished transaction.
type Result struct {
	State    ExecutionState
	Linked   int
	Unlinked int
}
