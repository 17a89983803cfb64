package plan

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/samber/lo"

	"github.com/meshy-dev/jxlplan/internal/dispatch"
	"github.com/meshy-dev/jxlplan/internal/manifest"
	"github.com/meshy-dev/jxlplan/internal/target"
)

// ErrMissingVariant reports a capability tier the classifier granted but the
// manifest cannot furnish specialized sources for. The build aborts rather
// than silently omitting a tier it claims to support.
var ErrMissingVariant = errors.New("missing specialized sources for classified tier")

// Select computes the compile sets for one library under the classified
// target: the portable baseline sources always, plus every specialized
// variant whose tier the ceiling covers and whose architecture matches.
//
// Selection is monotone in the tier order — a higher ceiling only ever adds
// sets — and deterministic: identical inputs yield identical output.
func Select(lib manifest.Library, c target.Class) ([]CompileSet, error) {
	selected := lo.Filter(lib.Variants, func(v manifest.Variant, _ int) bool {
		return v.Arch == c.Arch && v.Tier <= c.Ceiling
	})
	sort.SliceStable(selected, func(i, j int) bool { return selected[i].Tier < selected[j].Tier })

	if err := checkTierCoverage(lib, c, selected); err != nil {
		return nil, err
	}

	// Retuned sources are compiled once, inside the variant set that
	// carries their feature toggles, not a second time as baseline.
	retuned := lo.FlatMap(selected, func(v manifest.Variant, _ int) []string {
		if !v.Retune {
			return nil
		}
		return v.Sources
	})
	baseline := lo.Filter(lib.Sources, func(src string, _ int) bool {
		return !lo.Contains(retuned, src)
	})

	sets := []CompileSet{{Tier: target.TierGeneric, Sources: baseline}}
	for _, v := range selected {
		sets = append(sets, CompileSet{Tier: v.Tier, Sources: v.Sources, Flags: v.Flags})
	}
	return sets, nil
}

// checkTierCoverage verifies that every dispatch target the mask will leave
// enabled has sources to back it. Manifest validation already enforces this
// statically; the selector re-checks per invocation so a fatal configuration
// error can never slip through an out-of-band manifest edit.
func checkTierCoverage(lib manifest.Library, c target.Class, selected []manifest.Variant) error {
	if lib.Multiversioned {
		return nil
	}
	for _, mech := range lib.Mechanisms {
		for _, id := range dispatch.IDs(mech, c.Arch) {
			if id.Tier == target.TierGeneric || id.Tier > c.Ceiling {
				continue
			}
			covered := lo.SomeBy(selected, func(v manifest.Variant) bool {
				return v.Tier == id.Tier
			})
			if !covered {
				return fmt.Errorf("%w: library %s, dispatch target %s/%s needs %s sources",
					ErrMissingVariant, lib.Name, mech, id.Name, id.Tier)
			}
		}
	}
	return nil
}

// CheckGlobalFlags rejects module-wide flags that would override the
// per-file instruction-set level of any translation unit. A single global
// "optimize for CPU X" selector could silently broaden every file's
// assumptions past what the target declares, so it is a configuration
// error, not a preference.
func CheckGlobalFlags(flags []string) error {
	for _, flag := range flags {
		if strings.HasPrefix(flag, "-m") {
			return fmt.Errorf("global flag %q selects a machine-dependent code generation level; SIMD levels are fixed per file by the plan", flag)
		}
	}
	return nil
}
