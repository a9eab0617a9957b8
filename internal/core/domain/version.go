package domain

import (
	"strconv"
	"strings"

	"go.trai.ch/zerr"
)

// Version is a parsed package version with a total order.
//
// The string is lowercased, split on '.', '-', and '_' into segments, and each
// segment is split into numeric and alphabetic runs. Numeric runs compare
// numerically, alphabetic runs compare lexically, and an absent run sorts
// after an alphabetic run so that pre-releases like "1.0a" precede "1.0".
// An optional "N!" epoch prefix dominates everything after it.
type Version struct {
	raw      string
	epoch    int64
	segments [][]versionRun
}

type versionRun struct {
	num   int64
	alpha string
	isNum bool
}

// ParseVersion parses a version string.
func ParseVersion(s string) (Version, error) {
	raw := s
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return Version{}, zerr.With(zerr.Wrap(ErrBadSpec, "version is empty"), "version", raw)
	}

	v := Version{raw: raw}
	if bang := strings.IndexByte(s, '!'); bang >= 0 {
		epoch, err := strconv.ParseInt(s[:bang], 10, 64)
		if err != nil {
			return Version{}, zerr.With(zerr.Wrap(err, "invalid epoch"), "version", raw)
		}
		v.epoch = epoch
		s = s[bang+1:]
	}

	for _, seg := range strings.FieldsFunc(s, func(r rune) bool {
		return r == '.' || r == '-' || r == '_'
	}) {
		runs, err := splitRuns(seg)
		if err != nil {
			return Version{}, zerr.With(err, "version", raw)
		}
		v.segments = append(v.segments, runs)
	}
	if len(v.segments) == 0 {
		return Version{}, zerr.With(zerr.Wrap(ErrBadSpec, "version has no segments"), "version", raw)
	}
	return v, nil
}

// MustParseVersion is ParseVersion for trusted literals; it panics on error.
func MustParseVersion(s string) Version {
	v, err := ParseVersion(s)
	if err != nil {
		panic(err)
	}
	return v
}

func splitRuns(seg string) ([]versionRun, error) {
	var runs []versionRun
	i := 0
	for i < len(seg) {
		j := i
		if seg[i] >= '0' && seg[i] <= '9' {
			for j < len(seg) && seg[j] >= '0' && seg[j] <= '9' {
				j++
			}
			n, err := strconv.ParseInt(seg[i:j], 10, 64)
			if err != nil {
				return nil, zerr.Wrap(err, "numeric run overflow")
			}
			runs = append(runs, versionRun{num: n, isNum: true})
		} else {
			for j < len(seg) && (seg[j] < '0' || seg[j] > '9') {
				j++
			}
			runs = append(runs, versionRun{alpha: seg[i:j]})
		}
		i = j
	}
	if len(runs) == 0 {
		return nil, zerr.Wrap(ErrBadSpec, "segment has no runs")
	}
	return runs, nil
}

// Compare returns -1, 0, or 1 as v orders before, equal to, or after other.
func (v Version) Compare(other Version) int {
	if v.epoch != other.epoch {
		return cmpInt64(v.epoch, other.epoch)
	}

	n := max(len(v.segments), len(other.segments))
	for i := range n {
		if c := cmpSegment(segmentAt(v.segments, i), segmentAt(other.segments, i)); c != 0 {
			return c
		}
	}
	return 0
}

var zeroSegment = []versionRun{{isNum: true}}

func segmentAt(segs [][]versionRun, i int) []versionRun {
	if i < len(segs) {
		return segs[i]
	}
	// Missing trailing segments compare as numeric zero: "1.0" == "1.0.0".
	return zeroSegment
}

func cmpSegment(a, b []versionRun) int {
	n := max(len(a), len(b))
	for i := range n {
		ar, br := runAt(a, i), runAt(b, i)
		if c := cmpRun(ar, br); c != 0 {
			return c
		}
	}
	return 0
}

func runAt(runs []versionRun, i int) versionRun {
	if i < len(runs) {
		return runs[i]
	}
	// A missing run is numeric zero, which sorts after any alphabetic run:
	// "1.0a" < "1.0".
	return versionRun{isNum: true}
}

func cmpRun(a, b versionRun) int {
	if a.isNum != b.isNum {
		if a.isNum {
			return 1
		}
		return -1
	}
	if a.isNum {
		return cmpInt64(a.num, b.num)
	}
	return strings.Compare(a.alpha, b.alpha)
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// StartsWith reports whether v begins with every segment of prefix. It backs
// wildcard constraints such as "1.2.*".
func (v Version) StartsWith(prefix Version) bool {
	if v.epoch != prefix.epoch {
		return false
	}
	if len(prefix.segments) > len(v.segments) {
		return false
	}
	for i, seg := range prefix.segments {
		if cmpSegment(v.segments[i], seg) != 0 {
			return false
		}
	}
	return true
}

// String returns the original version string.
func (v Version) String() string {
	return v.raw
}
