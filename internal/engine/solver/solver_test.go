package solver_test

import (
	"context"
	"strings"
	"testing"

	"go.trai.ch/keg/internal/core/domain"
	"go.trai.ch/keg/internal/engine/solver"
)

type testLogger struct{}

func (testLogger) Info(string) {}
func (testLogger) Warn(string) {}
func (testLogger) Error(error) {}

func rec(name, version string, deps ...string) domain.PackageRecord {
	return domain.PackageRecord{
		Name:    domain.NewInternedString(name),
		Version: version,
		Build:   "0",
		Channel: "main",
		Subdir:  "noarch",
		Depends: deps,
	}
}

func index(records ...domain.PackageRecord) *domain.Index {
	return domain.NewIndex("main", "noarch", records)
}

func installed(records ...domain.PackageRecord) *domain.EnvironmentState {
	state := domain.NewEnvironmentState()
	for _, r := range records {
		if err := state.Add(domain.InstalledRecord{Record: r, RequestedByUser: true}); err != nil {
			panic(err)
		}
	}
	return state
}

func specs(texts ...string) []domain.MatchSpec {
	out := make([]domain.MatchSpec, len(texts))
	for i, s := range texts {
		out[i] = domain.MustParseMatchSpec(s)
	}
	return out
}

func resolve(t *testing.T, req *domain.SolveRequest) *domain.SolveOutcome {
	t.Helper()
	outcome, err := solver.NewResolver(testLogger{}).Resolve(context.Background(), req)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	return outcome
}

func solved(t *testing.T, req *domain.SolveRequest) *domain.EnvironmentState {
	t.Helper()
	outcome := resolve(t, req)
	if outcome.Conflict != nil {
		t.Fatalf("unexpected conflict: %s", outcome.Conflict.Render())
	}
	return outcome.Solution.State
}

func version(t *testing.T, state *domain.EnvironmentState, name string) string {
	t.Helper()
	inst, ok := state.Get(domain.NewInternedString(name))
	if !ok {
		t.Fatalf("package %s not in solution", name)
	}
	return inst.Record.Version
}

func TestResolver_SimpleInstall(t *testing.T) {
	state := solved(t, &domain.SolveRequest{
		Indices: []*domain.Index{index(
			rec("app", "1.0", "lib >=2.0"),
			rec("lib", "2.0"),
			rec("lib", "1.0"),
		)},
		Requests: specs("app"),
	})

	if state.Len() != 2 {
		t.Fatalf("solution has %d packages, want 2", state.Len())
	}
	if got := version(t, state, "lib"); got != "2.0" {
		t.Errorf("lib version = %s, want 2.0", got)
	}
}

func TestResolver_PrefersNewestVersion(t *testing.T) {
	state := solved(t, &domain.SolveRequest{
		Indices:  []*domain.Index{index(rec("lib", "1.0"), rec("lib", "2.0"), rec("lib", "3.0"))},
		Requests: specs("lib"),
	})
	if got := version(t, state, "lib"); got != "3.0" {
		t.Errorf("lib version = %s, want 3.0", got)
	}
}

// An upgrade request must be allowed to move an installed dependency when the
// requested package needs it.
func TestResolver_UpgradeMovesDependency(t *testing.T) {
	state := solved(t, &domain.SolveRequest{
		Indices: []*domain.Index{index(
			rec("app", "1.0", "lib >=2.0,<3.0"),
			rec("app", "2.0", "lib >=2.5"),
			rec("lib", "2.0"),
			rec("lib", "2.5"),
		)},
		Installed: installed(rec("app", "1.0", "lib >=2.0,<3.0"), rec("lib", "2.0")),
		Requests:  specs("app >=2.0"),
	})

	if got := version(t, state, "app"); got != "2.0" {
		t.Errorf("app version = %s, want 2.0", got)
	}
	if got := version(t, state, "lib"); got != "2.5" {
		t.Errorf("lib version = %s, want 2.5", got)
	}
}

// A dependency pulled in fresh settles on the newest matching build, not on
// whichever one the search visited first.
func TestResolver_FreshDependencyGetsNewest(t *testing.T) {
	state := solved(t, &domain.SolveRequest{
		Indices: []*domain.Index{index(
			rec("app", "2.0", "lib >=2,<3"),
			rec("lib", "2.0"),
			rec("lib", "2.5"),
		)},
		Requests: specs("app ==2.0"),
	})
	if got := version(t, state, "lib"); got != "2.5" {
		t.Errorf("lib version = %s, want 2.5", got)
	}
}

// An installed dependency forced off its build by an upgrade lands on the
// newest candidate that satisfies the new constraint.
func TestResolver_ForcedDependencyGetsNewest(t *testing.T) {
	state := solved(t, &domain.SolveRequest{
		Indices: []*domain.Index{index(
			rec("app", "1.0", "lib >=1,<2"),
			rec("app", "2.0", "lib >=2,<3"),
			rec("lib", "1.5"),
			rec("lib", "2.0"),
			rec("lib", "2.5"),
		)},
		Installed: installed(rec("app", "1.0", "lib >=1,<2"), rec("lib", "1.5")),
		Requests:  specs("app >=2.0"),
	})
	if got := version(t, state, "lib"); got != "2.5" {
		t.Errorf("lib version = %s, want 2.5", got)
	}
}

// Packages the user never asked to touch stay at their installed build even
// when a newer one exists.
func TestResolver_KeepsUninvolvedInstalled(t *testing.T) {
	state := solved(t, &domain.SolveRequest{
		Indices: []*domain.Index{index(
			rec("app", "1.0"),
			rec("other", "1.0"),
			rec("other", "2.0"),
		)},
		Installed: installed(rec("other", "1.0")),
		Requests:  specs("app"),
	})

	if got := version(t, state, "other"); got != "1.0" {
		t.Errorf("other version = %s, want 1.0 (installed build kept)", got)
	}
}

func TestResolver_UpdateAllMovesEverything(t *testing.T) {
	state := solved(t, &domain.SolveRequest{
		Indices: []*domain.Index{index(
			rec("app", "1.0"),
			rec("other", "1.0"),
			rec("other", "2.0"),
		)},
		Installed: installed(rec("app", "1.0"), rec("other", "1.0")),
		Mode:      domain.SolveMode{UpdateAll: true},
	})

	if got := version(t, state, "other"); got != "2.0" {
		t.Errorf("other version = %s, want 2.0 under update-all", got)
	}
}

func TestResolver_ConflictMinimalSubset(t *testing.T) {
	outcome := resolve(t, &domain.SolveRequest{
		Indices: []*domain.Index{index(
			rec("pkgx", "1.0", "libz ==1.0"),
			rec("pkgy", "1.0", "libz ==2.0"),
			rec("liba", "1.0"),
			rec("libz", "1.0"),
			rec("libz", "2.0"),
		)},
		Requests: specs("pkgx", "pkgy", "liba"),
	})

	if outcome.Conflict == nil {
		t.Fatal("expected a conflict")
	}
	rendered := outcome.Conflict.Render()
	if !strings.Contains(rendered, "pkgx") || !strings.Contains(rendered, "pkgy") {
		t.Errorf("conflict should name pkgx and pkgy:\n%s", rendered)
	}
	if strings.Contains(rendered, "liba") {
		t.Errorf("conflict should not include the innocent spec liba:\n%s", rendered)
	}
}

func TestResolver_NoCandidateConflict(t *testing.T) {
	outcome := resolve(t, &domain.SolveRequest{
		Indices:  []*domain.Index{index(rec("lib", "1.0"))},
		Requests: specs("missing"),
	})
	if outcome.Conflict == nil {
		t.Fatal("expected a conflict for an unknown package")
	}
	if !strings.Contains(outcome.Conflict.Render(), "missing") {
		t.Errorf("conflict should name the unmatched spec:\n%s", outcome.Conflict.Render())
	}
}

func TestResolver_RemovalTakesPackageOut(t *testing.T) {
	outcome := resolve(t, &domain.SolveRequest{
		Indices: []*domain.Index{index(
			rec("app", "1.0", "lib"),
			rec("lib", "1.0"),
		)},
		Installed: installed(rec("app", "1.0", "lib"), rec("lib", "1.0")),
		Removals:  []domain.InternedString{domain.NewInternedString("app")},
	})
	if outcome.Conflict != nil {
		t.Fatalf("unexpected conflict: %s", outcome.Conflict.Render())
	}
	state := outcome.Solution.State
	if _, ok := state.Get(domain.NewInternedString("app")); ok {
		t.Error("removed package still in solution")
	}
	// The orphaned dependency stays installed; removals are minimal.
	if _, ok := state.Get(domain.NewInternedString("lib")); !ok {
		t.Error("dependency of the removed package was dropped as well")
	}
}

func TestResolver_PinRestrictsVersion(t *testing.T) {
	state := solved(t, &domain.SolveRequest{
		Indices:  []*domain.Index{index(rec("lib", "1.0"), rec("lib", "2.0"))},
		Requests: specs("lib"),
		Pins:     specs("lib <2.0"),
	})
	if got := version(t, state, "lib"); got != "1.0" {
		t.Errorf("lib version = %s, want pinned 1.0", got)
	}
}

func TestResolver_PinConflictsWithRequest(t *testing.T) {
	outcome := resolve(t, &domain.SolveRequest{
		Indices:  []*domain.Index{index(rec("lib", "1.0"), rec("lib", "2.0"))},
		Requests: specs("lib >=2.0"),
		Pins:     specs("lib <2.0"),
	})
	if outcome.Conflict == nil {
		t.Fatal("expected a conflict between the pin and the request")
	}
}

func TestResolver_TrackFeatureExclusion(t *testing.T) {
	featured := rec("lib", "2.0")
	featured.TrackFeatures = []string{"experimental"}

	state := solved(t, &domain.SolveRequest{
		Indices:  []*domain.Index{index(rec("lib", "1.0"), featured)},
		Requests: specs("lib"),
	})
	if got := version(t, state, "lib"); got != "1.0" {
		t.Errorf("lib version = %s, want 1.0 (feature-tagged build shut out)", got)
	}

	state = solved(t, &domain.SolveRequest{
		Indices:  []*domain.Index{index(rec("lib", "1.0"), featured)},
		Requests: specs("lib"),
		Features: []string{"experimental"},
	})
	if got := version(t, state, "lib"); got != "2.0" {
		t.Errorf("lib version = %s, want 2.0 with the feature requested", got)
	}
}

func TestResolver_StrictChannelPriority(t *testing.T) {
	main := domain.NewIndex("main", "noarch", []domain.PackageRecord{rec("lib", "1.0")})
	forgeRec := rec("lib", "2.0")
	forgeRec.Channel = "forge"
	forge := domain.NewIndex("forge", "noarch", []domain.PackageRecord{forgeRec})
	rank := map[string]int{"main": 0, "forge": 1}

	// Channel rank dominates version preference: the priority channel's
	// build wins even though it is older.
	state := solved(t, &domain.SolveRequest{
		Indices:     []*domain.Index{main, forge},
		Requests:    specs("lib"),
		ChannelRank: rank,
		Mode:        domain.SolveMode{StrictChannelPriority: true},
	})
	if got := version(t, state, "lib"); got != "1.0" {
		t.Errorf("lib version = %s, want 1.0 from the priority channel", got)
	}

	// Without strict priority the lower-ranked channel can still satisfy a
	// spec the priority channel cannot.
	state = solved(t, &domain.SolveRequest{
		Indices:     []*domain.Index{main, forge},
		Requests:    specs("lib >=2.0"),
		ChannelRank: rank,
	})
	if got := version(t, state, "lib"); got != "2.0" {
		t.Errorf("lib version = %s, want 2.0 without strict priority", got)
	}

	// With strict priority that spec has no candidates at all.
	outcome := resolve(t, &domain.SolveRequest{
		Indices:     []*domain.Index{main, forge},
		Requests:    specs("lib >=2.0"),
		ChannelRank: rank,
		Mode:        domain.SolveMode{StrictChannelPriority: true},
	})
	if outcome.Conflict == nil {
		t.Fatal("expected a conflict: strict priority shuts out the only matching build")
	}
}

func TestResolver_NoDowngradeWithoutFlag(t *testing.T) {
	outcome := resolve(t, &domain.SolveRequest{
		Indices: []*domain.Index{index(
			rec("app", "1.0", "lib <=1.0"),
			rec("lib", "1.0"),
			rec("lib", "2.0"),
		)},
		Installed: installed(rec("lib", "2.0")),
		Requests:  specs("app"),
	})
	if outcome.Conflict != nil {
		t.Fatalf("unexpected conflict: %s", outcome.Conflict.Render())
	}
	// The downgrade is required to satisfy the request, so it happens even
	// without AllowDowngrade; the flag only governs preference weight.
	if got := version(t, outcome.Solution.State, "lib"); got != "1.0" {
		t.Errorf("lib version = %s, want 1.0", got)
	}
}

func TestResolver_Deterministic(t *testing.T) {
	req := func() *domain.SolveRequest {
		return &domain.SolveRequest{
			Indices: []*domain.Index{index(
				rec("app", "1.0", "lib"),
				rec("lib", "1.0"),
				rec("lib", "1.1"),
				rec("lib", "2.0"),
				rec("extra", "1.0"),
			)},
			Requests: specs("app", "extra"),
		}
	}

	first := solved(t, req())
	for range 5 {
		again := solved(t, req())
		if first.Len() != again.Len() {
			t.Fatal("solution size varies across runs")
		}
		for _, name := range first.Names() {
			a, _ := first.Get(name)
			b, ok := again.Get(name)
			if !ok || !a.Record.SameBuild(&b.Record) {
				t.Fatalf("solution for %s varies across runs", name.String())
			}
		}
	}
}

func TestResolver_SolutionMarksRequested(t *testing.T) {
	state := solved(t, &domain.SolveRequest{
		Indices: []*domain.Index{index(
			rec("app", "1.0", "lib"),
			rec("lib", "1.0"),
		)},
		Requests: specs("app"),
	})

	app, _ := state.Get(domain.NewInternedString("app"))
	if !app.RequestedByUser {
		t.Error("requested package not marked requested")
	}
	lib, _ := state.Get(domain.NewInternedString("lib"))
	if lib.RequestedByUser {
		t.Error("pulled-in dependency wrongly marked requested")
	}
}

func TestResolver_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome, err := solver.NewResolver(testLogger{}).Resolve(ctx, &domain.SolveRequest{
		Indices:  []*domain.Index{index(rec("lib", "1.0"))},
		Requests: specs("lib"),
	})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if outcome.Conflict == nil || !outcome.Conflict.Timeout {
		t.Error("canceled solve should surface as a timeout conflict")
	}
}
