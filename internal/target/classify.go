package target

import "fmt"

// Class is the result of classifying a Descriptor: the capability ceiling
// the build may embed code for, the floor it must still run on, and the
// per-family booleans the selector and mask builder branch on.
type Class struct {
	// Arch is carried through from the descriptor.
	Arch Arch

	// Ceiling is the highest SIMD tier the declared features fully cover.
	// The build furnishes every tier at or below the ceiling so the
	// runtime dispatchers can choose among them.
	Ceiling Tier

	// Floor is the lowest tier the binary must still run on. Dispatch
	// paths strictly below the floor may be dropped as an optimization.
	Floor Tier

	// HasAVX2 reports whether the full AVX2 family (AVX2+FMA+F16C) is
	// guaranteed present.
	HasAVX2 bool

	// HasAVX512 reports whether the full AVX-512 F/CD/BW/DQ/VL quintet is
	// guaranteed present.
	HasAVX512 bool

	// HasNEON reports whether NEON is guaranteed present (arm64 only).
	HasNEON bool
}

// avx512Quintet is the feature group Highway's AVX3 targets and skcms's skx
// transform both require; a partial AVX-512 declaration does not reach the
// AVX-512 tier.
var avx512Quintet = []Feature{AVX512F, AVX512DQ, AVX512CD, AVX512BW, AVX512VL}

// Classify maps a Descriptor onto its capability class. It is a pure
// function: identical descriptors always classify identically, and only
// declared features count — a V3 baseline without declared AVX-512
// classifies as "AVX2 tier, no AVX-512" even on hardware generations where
// AVX-512 is typically present.
func Classify(d Descriptor) (Class, error) {
	c := Class{
		Arch:      d.Arch,
		HasNEON:   d.Features.Has(NEON),
		HasAVX2:   d.Features.HasAll(AVX2, FMA, F16C),
		HasAVX512: d.Features.HasAll(avx512Quintet...),
	}

	switch {
	case d.Arch == ArchX86_64 && c.HasAVX512:
		c.Ceiling = TierAVX512
	case d.Arch == ArchX86_64 && c.HasAVX2:
		c.Ceiling = TierAVX2
	default:
		// Unrecognized architectures and sub-AVX2 x86 both land on the
		// portable baseline tier. Fail-safe, not fail-fatal.
		c.Ceiling = TierGeneric
	}

	// The floor defaults to the most portable tier; an explicit MinTier
	// narrows it, but never past the ceiling.
	c.Floor = d.MinTier
	if c.Floor > c.Ceiling {
		return Class{}, fmt.Errorf("minimum tier %s exceeds the %s ceiling declared by %s",
			c.Floor, c.Ceiling, d)
	}

	return c, nil
}

// Embeds reports whether the build furnishes code for tier t: everything
// from the floor up to and including the ceiling.
func (c Class) Embeds(t Tier) bool {
	return t >= c.Floor && t <= c.Ceiling
}
