package domain

import "time"

// PrefixRecord is the durable per-package metadata written into a prefix on
// link and removed on unlink. The set of prefix records on disk is the source
// of truth for what is installed, independent of any in-memory state.
type PrefixRecord struct {
	Record          PackageRecord `json:"record"`
	Files           []FileRecord  `json:"files"`
	RequestedByUser bool          `json:"requested_by_user"`
	Pinned          bool          `json:"pinned"`
	LinkedAt        time.Time     `json:"linked_at"`
}

// Installed converts a prefix record to its environment state entry.
func (p *PrefixRecord) Installed() InstalledRecord {
	return InstalledRecord{
		Record:          p.Record,
		RequestedByUser: p.RequestedByUser,
		Pinned:          p.Pinned,
	}
}
