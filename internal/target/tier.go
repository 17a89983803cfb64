package target

import (
	"fmt"
	"strings"
)

// Tier is an ordered SIMD capability level. Tiers form a strict capability
// chain: everything TierGeneric code may execute is also legal at TierAVX2,
// and everything legal at TierAVX2 is legal at TierAVX512.
type Tier uint8

const (
	// TierGeneric is the portable baseline: SSE2 on x86-64 (guaranteed by
	// the ABI), NEON on arm64 (mandatory in ARMv8-A), plain scalar code
	// everywhere else.
	TierGeneric Tier = iota

	// TierAVX2 covers the x86-64-v3 feature class: AVX2 plus FMA and F16C.
	TierAVX2

	// TierAVX512 covers the x86-64-v4 feature class: the AVX-512
	// F/CD/BW/DQ/VL quintet.
	TierAVX512
)

// AllTiers lists every tier in ascending capability order.
var AllTiers = []Tier{TierGeneric, TierAVX2, TierAVX512}

// String returns the canonical lowercase name used in manifests and flags.
func (t Tier) String() string {
	switch t {
	case TierGeneric:
		return "generic"
	case TierAVX2:
		return "avx2"
	case TierAVX512:
		return "avx512"
	default:
		return "unknown"
	}
}

// ParseTier converts a manifest or flag string into a Tier.
func ParseTier(s string) (Tier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "generic", "baseline":
		return TierGeneric, nil
	case "avx2":
		return TierAVX2, nil
	case "avx512", "avx-512":
		return TierAVX512, nil
	default:
		return TierGeneric, fmt.Errorf("unknown SIMD tier %q (valid: generic, avx2, avx512)", s)
	}
}
