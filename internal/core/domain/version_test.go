package domain_test

import (
	"errors"
	"testing"

	"go.trai.ch/keg/internal/core/domain"
)

func TestVersion_Compare(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"1.0", "1.0", 0},
		{"1.0", "1.0.0", 0},
		{"1.0", "1.1", -1},
		{"1.2", "1.10", -1},
		{"1.0a", "1.0", -1},
		{"1.0a1", "1.0a2", -1},
		{"1.0alpha", "1.0beta", -1},
		{"2.0", "10.0", -1},
		{"1.0-1", "1.0.1", 0},
		{"1.0_1", "1.0.1", 0},
		{"0!1.0", "1.0", 0},
		{"1!1.0", "2.0", 1},
		{"1.0rc1", "1.0", -1},
		{"1.0.1", "1.0", 1},
	}
	for _, tc := range cases {
		a := domain.MustParseVersion(tc.a)
		b := domain.MustParseVersion(tc.b)
		if got := a.Compare(b); got != tc.want {
			t.Errorf("Compare(%q, %q) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
		if got := b.Compare(a); got != -tc.want {
			t.Errorf("Compare(%q, %q) = %d, want %d", tc.b, tc.a, got, -tc.want)
		}
	}
}

func TestVersion_StartsWith(t *testing.T) {
	cases := []struct {
		v, prefix string
		want      bool
	}{
		{"1.2.3", "1.2", true},
		{"1.2", "1.2", true},
		{"1.20", "1.2", false},
		{"1.2.3", "1.3", false},
		{"1.2", "1.2.3", false},
		{"1!1.2", "1.2", false},
	}
	for _, tc := range cases {
		v := domain.MustParseVersion(tc.v)
		prefix := domain.MustParseVersion(tc.prefix)
		if got := v.StartsWith(prefix); got != tc.want {
			t.Errorf("StartsWith(%q, %q) = %v, want %v", tc.v, tc.prefix, got, tc.want)
		}
	}
}

func TestParseVersion_Invalid(t *testing.T) {
	for _, s := range []string{"", "  ", "..."} {
		_, err := domain.ParseVersion(s)
		if !errors.Is(err, domain.ErrBadSpec) {
			t.Errorf("ParseVersion(%q) error = %v, want ErrBadSpec", s, err)
		}
	}
	if _, err := domain.ParseVersion("x!1.0"); err == nil {
		t.Error("ParseVersion accepted a non-numeric epoch")
	}
}
