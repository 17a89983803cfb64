// Package plan turns a target descriptor and the vendored-library manifest
// into the final build plan: for every sub-library, the translation units to
// compile, the per-file feature flags each specialized unit needs, and the
// dispatch-disable macros its runtime CPU selection must receive.
//
// The plan is a pure value. It is fully determined before any compilation
// begins, carries no state, and no entry depends on another entry having
// been compiled first — the external build executor may consume entries in
// any order or in parallel.
package plan

import (
	"github.com/samber/lo"

	"github.com/meshy-dev/jxlplan/internal/target"
)

// CompileSet is one independently-consumable group of translation units
// sharing the same per-file flags.
type CompileSet struct {
	// Tier the set's code requires; TierGeneric for baseline sources.
	Tier target.Tier `json:"tier"`

	// Sources are the translation units, in manifest order.
	Sources []string `json:"sources"`

	// Flags are per-file frontend feature toggles. The build executor
	// must pass them after any module-wide flags so they take precedence.
	Flags []string `json:"flags,omitempty"`
}

// Unit is the plan entry for one vendored sub-library.
type Unit struct {
	// Library is the logical library name.
	Library string `json:"library"`

	// Upstream is the pinned version the source list mirrors.
	Upstream string `json:"upstream"`

	// IncludeDirs are the library's include paths.
	IncludeDirs []string `json:"include_dirs,omitempty"`

	// Macros are preprocessor defines: the library's own baseline macros
	// followed by the dispatch-disable configuration for this target.
	Macros []string `json:"macros,omitempty"`

	// Sets are the compile groups, baseline first, then specialized tiers
	// in ascending capability order.
	Sets []CompileSet `json:"sets"`
}

// Sources returns every translation unit the plan compiles for this
// library, in set order.
func (u Unit) Sources() []string {
	return lo.FlatMap(u.Sets, func(s CompileSet, _ int) []string { return s.Sources })
}

// Guarantee is the aggregate whole-binary statement a resolved plan makes:
// which SIMD tiers the produced binary embeds and which it excludes.
type Guarantee struct {
	// Arch and Baseline restate the resolved target.
	Arch     string `json:"arch"`
	Baseline string `json:"baseline"`

	// Ceiling and Floor are the classified tier bounds.
	Ceiling string `json:"ceiling"`
	Floor   string `json:"floor"`

	// Embedded and Excluded partition the tier set.
	Embedded []string `json:"embedded"`
	Excluded []string `json:"excluded"`

	// Disabled maps each library to the dispatch identifiers its runtime
	// selection is configured never to consider.
	Disabled map[string][]string `json:"disabled"`
}

// BuildPlan is the resolved, read-only output of one build invocation.
type BuildPlan struct {
	// ManifestVersion identifies the vendored-library catalog revision.
	ManifestVersion string `json:"manifest_version"`

	// Target restates the descriptor the plan was resolved for.
	Target string `json:"target"`

	// GlobalFlags are the validated module-wide flags, guaranteed to
	// contain no instruction-set selectors.
	GlobalFlags []string `json:"global_flags,omitempty"`

	// Units are the per-library plan entries, in manifest order.
	Units []Unit `json:"units"`

	// Guarantee is the aggregate tier statement for the whole binary.
	Guarantee Guarantee `json:"guarantee"`
}

// Unit returns the plan entry for the named library, or false when absent.
func (p *BuildPlan) Unit(name string) (Unit, bool) {
	return lo.Find(p.Units, func(u Unit) bool { return u.Library == name })
}

func newGuarantee(d target.Descriptor, c target.Class, disabled map[string][]string) Guarantee {
	g := Guarantee{
		Arch:     d.Arch.String(),
		Baseline: d.Baseline.String(),
		Ceiling:  c.Ceiling.String(),
		Floor:    c.Floor.String(),
		Disabled: disabled,
	}
	for _, t := range target.AllTiers {
		if c.Embeds(t) {
			g.Embedded = append(g.Embedded, t.String())
		} else {
			g.Excluded = append(g.Excluded, t.String())
		}
	}
	return g
}
