// Package dispatch models the runtime CPU-dispatch mechanisms of the
// vendored libraries and computes, per classified target, the set of
// dispatch targets each mechanism must be told to exclude.
//
// Three of the four vendored libraries pick SIMD code paths at process
// startup, each through its own independent, non-interoperable mechanism:
//
//	hwy    — Highway's HWY_DISABLED_TARGETS bitmask (also consumed by the
//	         JPEG XL codec, whose multiversioned units are built on Highway)
//	skcms  — the color-management library's SKCMS_DISABLE_* macros
//	fjxl   — the codec's fast-lossless encoder and its private
//	         FJXL_ENABLE_AVX512 gate
//
// The identifiers below are opaque to this tool: they only have meaning to
// the owning library's CPU-detection code. What matters here is the tier
// each one belongs to, so that a build declaring "no AVX-512" excludes every
// AVX-512-class target before the dispatcher ever probes for it.
package dispatch

import (
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/meshy-dev/jxlplan/internal/target"
)

// Mechanism names one library's runtime dispatch machinery.
type Mechanism string

const (
	// MechHighway is Highway's runtime target selection.
	MechHighway Mechanism = "hwy"

	// MechSKCMS is the color-management library's transform dispatch.
	MechSKCMS Mechanism = "skcms"

	// MechFJXL is the fast-lossless encoder's private AVX-512 gate,
	// independent of Highway.
	MechFJXL Mechanism = "fjxl"
)

// Mechanisms lists every known mechanism in display order.
var Mechanisms = []Mechanism{MechHighway, MechSKCMS, MechFJXL}

// Known reports whether m names a recognized mechanism.
func Known(m Mechanism) bool {
	return lo.Contains(Mechanisms, m)
}

// ID is one dispatch-target identifier: a symbolic name the owning
// mechanism's CPU-detection logic understands at its own runtime.
type ID struct {
	// Name is the identifier as the owning library spells it.
	Name string

	// Mechanism owns the identifier.
	Mechanism Mechanism

	// Tier is the capability tier the identifier's code path requires.
	Tier target.Tier

	// Arch is the architecture the code path exists for.
	Arch target.Arch
}

// catalog enumerates every dispatch target the vendored libraries know, in
// a fixed display order. Kept in sync with the pinned upstream versions in
// the manifest.
var catalog = []ID{
	{"HWY_SSE2", MechHighway, target.TierGeneric, target.ArchX86_64},
	{"HWY_SSSE3", MechHighway, target.TierGeneric, target.ArchX86_64},
	{"HWY_SSE4", MechHighway, target.TierGeneric, target.ArchX86_64},
	{"HWY_AVX2", MechHighway, target.TierAVX2, target.ArchX86_64},
	{"HWY_AVX3", MechHighway, target.TierAVX512, target.ArchX86_64},
	{"HWY_AVX3_ZEN4", MechHighway, target.TierAVX512, target.ArchX86_64},
	{"HWY_AVX3_SPR", MechHighway, target.TierAVX512, target.ArchX86_64},
	{"HWY_NEON", MechHighway, target.TierGeneric, target.ArchARM64},

	{"hsw", MechSKCMS, target.TierAVX2, target.ArchX86_64},
	{"skx", MechSKCMS, target.TierAVX512, target.ArchX86_64},

	{"avx512", MechFJXL, target.TierAVX512, target.ArchX86_64},
}

// Catalog returns every known dispatch identifier in display order.
func Catalog() []ID {
	out := make([]ID, len(catalog))
	copy(out, catalog)
	return out
}

// IDs returns the identifiers a mechanism exposes on the given architecture,
// in catalog order. Architectures with no entries get an empty slice: their
// builds carry the portable code path only.
func IDs(m Mechanism, arch target.Arch) []ID {
	return lo.Filter(catalog, func(id ID, _ int) bool {
		return id.Mechanism == m && id.Arch == arch
	})
}

// Mask is the dispatch-disable mask for one mechanism: the identifiers its
// runtime selection must never consider for this build. It is a pure
// function of the classified target and carries no state of its own.
type Mask struct {
	// Mechanism the mask configures.
	Mechanism Mechanism

	// Ceiling is the tier the mask was derived for. Every mask threaded
	// into one build must agree on this value (see Consistent).
	Ceiling target.Tier

	// Disabled lists the excluded identifiers in catalog order.
	Disabled []ID
}

// BuildMask computes the mask for one mechanism under the classified target.
// Every identifier strictly above the ceiling is disabled — those code paths
// would fault on the declared minimum hardware. Identifiers strictly below
// the floor are disabled too when the target deliberately narrowed its
// floor; identifiers at or above the floor are never touched by narrowing.
func BuildMask(m Mechanism, c target.Class) Mask {
	disabled := lo.Filter(IDs(m, c.Arch), func(id ID, _ int) bool {
		return id.Tier > c.Ceiling || id.Tier < c.Floor
	})
	return Mask{Mechanism: m, Ceiling: c.Ceiling, Disabled: disabled}
}

// DisabledNames returns the excluded identifier names in catalog order.
func (m Mask) DisabledNames() []string {
	return lo.Map(m.Disabled, func(id ID, _ int) string { return id.Name })
}

// Macros renders the mask into the owning mechanism's native preprocessor
// configuration for the given architecture. The returned values are opaque
// NAME or NAME=VALUE strings the build executor passes as -D defines.
func (m Mask) Macros(arch target.Arch) []string {
	switch m.Mechanism {
	case MechHighway:
		if len(m.Disabled) == 0 {
			return nil
		}
		names := m.DisabledNames()
		return []string{fmt.Sprintf("HWY_DISABLED_TARGETS=(%s)", strings.Join(names, "|"))}

	case MechSKCMS:
		return lo.Map(m.Disabled, func(id ID, _ int) string {
			return "SKCMS_DISABLE_" + strings.ToUpper(id.Name)
		})

	case MechFJXL:
		// The gate is a single on/off macro: on only when the AVX-512
		// path exists for this architecture and is not excluded.
		enabled := lo.SomeBy(IDs(MechFJXL, arch), func(id ID) bool {
			return !lo.Contains(m.Disabled, id)
		})
		if enabled {
			return []string{"FJXL_ENABLE_AVX512=1"}
		}
		return []string{"FJXL_ENABLE_AVX512=0"}

	default:
		return nil
	}
}

// ErrInconsistentMasks reports masks derived for different ceilings being
// threaded into one build — two sub-libraries would end up with conflicting
// capability assumptions inside the same binary.
var ErrInconsistentMasks = errors.New("dispatch masks disagree on the ceiling tier")

// Consistent verifies that every mask in one build invocation was derived
// for the same ceiling tier. A disagreement is a fatal internal-consistency
// error: it must never be resolved by picking one library's mask over
// another's.
func Consistent(masks []Mask) error {
	if len(masks) == 0 {
		return nil
	}
	ceiling := masks[0].Ceiling
	for _, m := range masks[1:] {
		if m.Ceiling != ceiling {
			return fmt.Errorf("%w: %s built for %s, %s built for %s",
				ErrInconsistentMasks, masks[0].Mechanism, ceiling, m.Mechanism, m.Ceiling)
		}
	}
	return nil
}
