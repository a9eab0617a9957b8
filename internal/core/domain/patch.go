package domain

// PatchOp is one record-level mutation inside an index patch.
type PatchOp struct {
	// Op is "add" or "remove".
	Op     string        `json:"op"`
	Record PackageRecord `json:"record"`
}

const (
	PatchOpAdd    = "add"
	PatchOpRemove = "remove"
)

// Patch is one step of the incremental repodata stream. It may only be
// applied to an index whose content hash equals From, and the result must
// hash to To.
type Patch struct {
	From string    `json:"from"`
	To   string    `json:"to"`
	Ops  []PatchOp `json:"ops"`
}

// PatchSet is the channel's patch document: the server's current index hash
// plus the ordered, gap-free patch window leading up to it. Consumers verify
// the whole chain by hashes alone.
type PatchSet struct {
	Latest  string  `json:"latest"`
	Patches []Patch `json:"patches"`
}

// ChainFrom returns the contiguous sub-sequence of patches leading from the
// given hash to Latest, or false when no such chain exists inside the window.
func (ps *PatchSet) ChainFrom(hash string) ([]Patch, bool) {
	if hash == ps.Latest {
		return nil, true
	}
	start := -1
	for i, p := range ps.Patches {
		if p.From == hash {
			start = i
			break
		}
	}
	if start < 0 {
		return nil, false
	}
	chain := []Patch{ps.Patches[start]}
	for i := start + 1; i < len(ps.Patches); i++ {
		if ps.Patches[i].From != chain[len(chain)-1].To {
			return nil, false
		}
		chain = append(chain, ps.Patches[i])
	}
	if chain[len(chain)-1].To != ps.Latest {
		return nil, false
	}
	return chain, true
}
