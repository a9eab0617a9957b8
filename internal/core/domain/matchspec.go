package domain

import (
	"path"
	"strings"

	"go.trai.ch/zerr"
)

// MatchSpec is a pure query over PackageRecord fields:
//
//	[channel::]name [version-expression [build-glob]]
//
// The name is exact. The version expression supports the comparison operators
// ==, !=, >=, >, <=, <, wildcard forms like "1.2.*", comma for AND, and "|"
// for OR. The build string is a glob. Evaluation is stateless and
// deterministic; both the solver and the planner rely on that.
type MatchSpec struct {
	Raw     string
	Channel string
	Name    InternedString
	Version VersionConstraint
	Build   string
}

// ParseMatchSpec parses the textual form of a match spec.
func ParseMatchSpec(text string) (MatchSpec, error) {
	spec := MatchSpec{Raw: strings.TrimSpace(text)}
	rest := spec.Raw
	if rest == "" {
		return MatchSpec{}, zerr.With(zerr.Wrap(ErrBadSpec, "spec is empty"), "spec", text)
	}

	if idx := strings.Index(rest, "::"); idx >= 0 {
		spec.Channel = strings.TrimSpace(rest[:idx])
		rest = rest[idx+2:]
	}

	fields := strings.Fields(rest)
	if len(fields) == 0 || len(fields) > 3 {
		return MatchSpec{}, zerr.With(zerr.Wrap(ErrBadSpec, "spec has an unexpected number of fields"), "spec", text)
	}

	name := fields[0]
	// Inline operator form: "name>=1.2" carries the expression in one token.
	if cut := strings.IndexAny(name, "<>=!"); cut >= 0 {
		if len(fields) > 2 {
			return MatchSpec{}, zerr.With(zerr.Wrap(ErrBadSpec, "spec mixes inline and separate constraints"), "spec", text)
		}
		fields = append([]string{name[:cut], name[cut:]}, fields[1:]...)
		name = fields[0]
	}
	if name == "" || strings.ContainsAny(name, "*?<>=!,|") {
		return MatchSpec{}, zerr.With(zerr.With(zerr.Wrap(ErrBadSpec, "spec has an invalid package name"), "spec", text), "name", name)
	}
	spec.Name = NewInternedString(name)

	if len(fields) > 1 {
		vc, err := ParseVersionConstraint(fields[1])
		if err != nil {
			return MatchSpec{}, zerr.With(err, "spec", text)
		}
		spec.Version = vc
	}
	if len(fields) > 2 {
		spec.Build = fields[2]
	}
	return spec, nil
}

// MustParseMatchSpec is ParseMatchSpec for trusted literals; it panics on error.
func MustParseMatchSpec(text string) MatchSpec {
	s, err := ParseMatchSpec(text)
	if err != nil {
		panic(err)
	}
	return s
}

// Matches reports whether the record satisfies every component of the spec.
func (s MatchSpec) Matches(r *PackageRecord) bool {
	if s.Name != r.Name {
		return false
	}
	if s.Channel != "" && s.Channel != r.Channel {
		return false
	}
	if !s.Version.Empty() {
		v, err := ParseVersion(r.Version)
		if err != nil {
			return false
		}
		if !s.Version.Match(v) {
			return false
		}
	}
	if s.Build != "" {
		ok, err := path.Match(s.Build, r.Build)
		if err != nil || !ok {
			return false
		}
	}
	return true
}

// String returns the original textual form.
func (s MatchSpec) String() string {
	return s.Raw
}

// TrackFeatureExcluded reports whether the record carries a track feature
// that was not requested. Such candidates are shut out of the solve.
func TrackFeatureExcluded(r *PackageRecord, requested map[string]bool) bool {
	for _, f := range r.TrackFeatures {
		if !requested[f] {
			return true
		}
	}
	return false
}

type versionOp int

const (
	opEqual versionOp = iota
	opNotEqual
	opGreater
	opGreaterEqual
	opLess
	opLessEqual
	opStartsWith
)

type versionTest struct {
	op  versionOp
	ver Version
}

// VersionConstraint is a parsed version expression: an OR ("|") of AND (",")
// groups of primitive comparisons.
type VersionConstraint struct {
	raw    string
	groups [][]versionTest
}

// ParseVersionConstraint parses a version expression.
func ParseVersionConstraint(expr string) (VersionConstraint, error) {
	c := VersionConstraint{raw: strings.TrimSpace(expr)}
	if c.raw == "" {
		return c, nil
	}
	for _, group := range strings.Split(c.raw, "|") {
		var tests []versionTest
		for _, atom := range strings.Split(group, ",") {
			t, err := parseVersionTest(strings.TrimSpace(atom))
			if err != nil {
				return VersionConstraint{}, err
			}
			tests = append(tests, t)
		}
		if len(tests) == 0 {
			return VersionConstraint{}, zerr.With(zerr.Wrap(ErrBadSpec, "version expression has an empty branch"), "expr", expr)
		}
		c.groups = append(c.groups, tests)
	}
	return c, nil
}

func parseVersionTest(atom string) (versionTest, error) {
	if atom == "" {
		return versionTest{}, ErrBadSpec
	}

	op := opEqual
	switch {
	case strings.HasPrefix(atom, ">="):
		op, atom = opGreaterEqual, atom[2:]
	case strings.HasPrefix(atom, "<="):
		op, atom = opLessEqual, atom[2:]
	case strings.HasPrefix(atom, "=="):
		op, atom = opEqual, atom[2:]
	case strings.HasPrefix(atom, "!="):
		op, atom = opNotEqual, atom[2:]
	case strings.HasPrefix(atom, ">"):
		op, atom = opGreater, atom[1:]
	case strings.HasPrefix(atom, "<"):
		op, atom = opLess, atom[1:]
	case strings.HasPrefix(atom, "="):
		op, atom = opStartsWith, atom[1:]
	}

	// Wildcard versions reduce to a prefix test: "1.2.*" keeps builds in the
	// 1.2 series. Relational operators just drop the wildcard tail.
	if strings.HasSuffix(atom, ".*") {
		atom = strings.TrimSuffix(atom, ".*")
		if op == opEqual {
			op = opStartsWith
		}
	} else if strings.HasSuffix(atom, "*") {
		atom = strings.TrimSuffix(atom, "*")
		atom = strings.TrimSuffix(atom, ".")
		if op == opEqual {
			op = opStartsWith
		}
	}

	ver, err := ParseVersion(atom)
	if err != nil {
		return versionTest{}, err
	}
	return versionTest{op: op, ver: ver}, nil
}

// Empty reports whether the constraint admits every version.
func (c VersionConstraint) Empty() bool {
	return len(c.groups) == 0
}

// Match evaluates the constraint against a parsed version.
func (c VersionConstraint) Match(v Version) bool {
	if c.Empty() {
		return true
	}
	for _, group := range c.groups {
		ok := true
		for _, t := range group {
			if !t.match(v) {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

func (t versionTest) match(v Version) bool {
	switch t.op {
	case opEqual:
		return v.Compare(t.ver) == 0
	case opNotEqual:
		return v.Compare(t.ver) != 0
	case opGreater:
		return v.Compare(t.ver) > 0
	case opGreaterEqual:
		return v.Compare(t.ver) >= 0
	case opLess:
		return v.Compare(t.ver) < 0
	case opLessEqual:
		return v.Compare(t.ver) <= 0
	case opStartsWith:
		return v.StartsWith(t.ver)
	default:
		return false
	}
}

// String returns the original expression.
func (c VersionConstraint) String() string {
	return c.raw
}
