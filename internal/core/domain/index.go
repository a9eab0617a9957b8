package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"slices"
	"strings"
)

// Index is the immutable snapshot of one (channel, subdir) partition of the
// package universe. A successful sync replaces the whole snapshot; nothing
// ever mutates one in place.
type Index struct {
	Channel     string          `json:"channel"`
	Subdir      string          `json:"subdir"`
	ContentHash string          `json:"content_hash"`
	Records     []PackageRecord `json:"records"`

	byName map[InternedString][]*PackageRecord
}

// NewIndex builds an index snapshot. Records are sorted into canonical order
// and the content hash is computed over them, so two indexes holding the same
// records are byte-identical regardless of input order.
func NewIndex(channel, subdir string, records []PackageRecord) *Index {
	idx := &Index{
		Channel: channel,
		Subdir:  subdir,
		Records: slices.Clone(records),
	}
	SortRecords(idx.Records)
	idx.ContentHash = HashRecords(idx.Records)
	idx.Reindex()
	return idx
}

// Reindex rebuilds the name lookup table. It must be called once after
// deserializing an index, before concurrent readers are let loose.
func (idx *Index) Reindex() {
	idx.byName = make(map[InternedString][]*PackageRecord, len(idx.Records))
	for i := range idx.Records {
		r := &idx.Records[i]
		idx.byName[r.Name] = append(idx.byName[r.Name], r)
	}
}

// SortRecords orders records canonically by (name, version descending, build
// number descending, build descending, channel, subdir).
func SortRecords(records []PackageRecord) {
	slices.SortFunc(records, func(a, b PackageRecord) int {
		if c := strings.Compare(a.Name.String(), b.Name.String()); c != 0 {
			return c
		}
		av, aerr := ParseVersion(a.Version)
		bv, berr := ParseVersion(b.Version)
		if aerr == nil && berr == nil {
			if c := bv.Compare(av); c != 0 {
				return c
			}
		} else if c := strings.Compare(b.Version, a.Version); c != 0 {
			return c
		}
		if c := b.BuildNumber - a.BuildNumber; c != 0 {
			return c
		}
		if c := strings.Compare(b.Build, a.Build); c != 0 {
			return c
		}
		if c := strings.Compare(a.Channel, b.Channel); c != 0 {
			return c
		}
		return strings.Compare(a.Subdir, b.Subdir)
	})
}

// HashRecords computes the sha256 content hash of a canonically sorted record
// list. Each record's JSON encoding is fed through the digest with a NUL
// separator so record boundaries cannot collide.
func HashRecords(records []PackageRecord) string {
	h := sha256.New()
	for i := range records {
		data, err := json.Marshal(&records[i])
		if err != nil {
			// PackageRecord has no unmarshalable fields; this cannot happen.
			continue
		}
		_, _ = h.Write(data)
		_, _ = h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Candidates returns the records for a name, most preferred first per the
// canonical record order. The returned slice aliases the index; callers must
// not modify it.
func (idx *Index) Candidates(name InternedString) []*PackageRecord {
	return idx.byName[name]
}

// Names returns every distinct package name in the index, sorted.
func (idx *Index) Names() []InternedString {
	seen := make(map[InternedString]bool)
	var names []InternedString
	for i := range idx.Records {
		name := idx.Records[i].Name
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	slices.SortFunc(names, func(a, b InternedString) int {
		return strings.Compare(a.String(), b.String())
	})
	return names
}
