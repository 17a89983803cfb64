package plan

import (
	"fmt"

	"github.com/meshy-dev/jxlplan/internal/dispatch"
	"github.com/meshy-dev/jxlplan/internal/manifest"
	"github.com/meshy-dev/jxlplan/internal/target"
)

// Build resolves the complete plan for one target descriptor.
//
// The descriptor is classified exactly once, and one dispatch-disable mask
// per mechanism is derived from that single classification. Every library
// that participates in a mechanism receives the same mask — never a
// recomputed one — so two sub-libraries linked into the same binary can
// never end up with skewed capability assumptions. The masks are
// cross-checked before any unit is assembled; a disagreement aborts the
// build.
func Build(m *manifest.Manifest, d target.Descriptor, globalFlags []string) (*BuildPlan, error) {
	if err := CheckGlobalFlags(globalFlags); err != nil {
		return nil, err
	}

	class, err := target.Classify(d)
	if err != nil {
		return nil, err
	}

	// One mask per mechanism, derived once and threaded everywhere.
	masks := make(map[dispatch.Mechanism]dispatch.Mask, len(dispatch.Mechanisms))
	ordered := make([]dispatch.Mask, 0, len(dispatch.Mechanisms))
	for _, mech := range dispatch.Mechanisms {
		mask := dispatch.BuildMask(mech, class)
		masks[mech] = mask
		ordered = append(ordered, mask)
	}
	if err := dispatch.Consistent(ordered); err != nil {
		return nil, err
	}

	p := &BuildPlan{
		ManifestVersion: m.Version,
		Target:          d.String(),
		GlobalFlags:     globalFlags,
	}

	disabled := map[string][]string{}
	for _, lib := range m.Libraries {
		sets, err := Select(lib, class)
		if err != nil {
			return nil, fmt.Errorf("select sources: %w", err)
		}

		unit := Unit{
			Library:     lib.Name,
			Upstream:    lib.Upstream,
			IncludeDirs: lib.IncludeDirs,
			Macros:      append([]string(nil), lib.Macros...),
			Sets:        sets,
		}
		names := []string{}
		for _, mech := range lib.Mechanisms {
			mask := masks[mech]
			unit.Macros = append(unit.Macros, mask.Macros(class.Arch)...)
			names = append(names, mask.DisabledNames()...)
		}
		disabled[lib.Name] = names
		p.Units = append(p.Units, unit)
	}

	p.Guarantee = newGuarantee(d, class, disabled)
	return p, nil
}
