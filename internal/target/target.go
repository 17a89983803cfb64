// Package target models the compilation target a build plan is resolved for:
// the CPU architecture, the guaranteed feature baseline, and the SIMD
// capability tier those two imply. Everything here is a pure function of its
// inputs — the package never inspects the machine it runs on (host probing
// lives in internal/hostcpu and only ever feeds descriptors in).
package target

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
)

// Arch identifies a recognized CPU architecture.
type Arch uint8

const (
	// ArchOther is any architecture we have no specialized sources for.
	// It is a valid target, not an error: such builds get the portable
	// baseline tier only.
	ArchOther Arch = iota

	// ArchX86_64 is 64-bit x86 (amd64).
	ArchX86_64

	// ArchARM64 is 64-bit ARM (aarch64). NEON is mandatory there, so the
	// baseline tier already carries vector code.
	ArchARM64
)

// String returns the canonical architecture name.
func (a Arch) String() string {
	switch a {
	case ArchX86_64:
		return "x86-64"
	case ArchARM64:
		return "arm64"
	default:
		return "other"
	}
}

// ParseArch maps common spellings onto an Arch. Unrecognized names resolve
// to ArchOther — graceful degradation to the generic tier, never an error.
func ParseArch(s string) Arch {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "x86-64", "x86_64", "amd64", "x64":
		return ArchX86_64
	case "arm64", "aarch64":
		return ArchARM64
	default:
		return ArchOther
	}
}

// Feature is a named CPU feature flag a target may declare as guaranteed.
type Feature string

// Recognized feature flags, in canonical order.
const (
	SSE2     Feature = "sse2"
	SSE42    Feature = "sse4.2"
	AVX      Feature = "avx"
	AVX2     Feature = "avx2"
	FMA      Feature = "fma"
	F16C     Feature = "f16c"
	AVX512F  Feature = "avx512f"
	AVX512DQ Feature = "avx512dq"
	AVX512CD Feature = "avx512cd"
	AVX512BW Feature = "avx512bw"
	AVX512VL Feature = "avx512vl"
	NEON     Feature = "neon"
)

// featureOrder fixes the canonical ordering of feature sets so that two
// descriptors built from the same flags always compare and print identically.
var featureOrder = []Feature{
	SSE2, SSE42, AVX, AVX2, FMA, F16C,
	AVX512F, AVX512DQ, AVX512CD, AVX512BW, AVX512VL,
	NEON,
}

// ParseFeature validates a feature flag name.
func ParseFeature(s string) (Feature, error) {
	f := Feature(strings.ToLower(strings.TrimSpace(s)))
	if !lo.Contains(featureOrder, f) {
		return "", fmt.Errorf("unknown CPU feature %q", s)
	}
	return f, nil
}

// FeatureSet is an ordered, duplicate-free set of declared CPU features.
type FeatureSet []Feature

// NewFeatureSet normalizes the given features into canonical order.
func NewFeatureSet(features ...Feature) FeatureSet {
	set := lo.Uniq(features)
	out := make(FeatureSet, 0, len(set))
	for _, f := range featureOrder {
		if lo.Contains(set, f) {
			out = append(out, f)
		}
	}
	return out
}

// Has reports whether f is declared in the set.
func (fs FeatureSet) Has(f Feature) bool {
	return lo.Contains(fs, f)
}

// HasAll reports whether every given feature is declared.
func (fs FeatureSet) HasAll(features ...Feature) bool {
	for _, f := range features {
		if !fs.Has(f) {
			return false
		}
	}
	return true
}

// String joins the set for display, "none" when empty.
func (fs FeatureSet) String() string {
	if len(fs) == 0 {
		return "none"
	}
	parts := lo.Map(fs, func(f Feature, _ int) string { return string(f) })
	return strings.Join(parts, " ")
}

// Baseline is the minimum CPU level the produced binary must run on,
// expressed as an x86-64 microarchitecture level. On non-x86 architectures
// only BaselineGeneric is meaningful.
type Baseline uint8

const (
	// BaselineGeneric guarantees only the ABI minimum (SSE2 on x86-64).
	BaselineGeneric Baseline = iota

	// BaselineV2 is x86-64-v2: SSE4.2 class.
	BaselineV2

	// BaselineV3 is x86-64-v3: AVX2, FMA, F16C.
	BaselineV3

	// BaselineV4 is x86-64-v4: AVX-512 F/CD/BW/DQ/VL.
	BaselineV4
)

// String returns the psABI-style baseline name.
func (b Baseline) String() string {
	switch b {
	case BaselineV2:
		return "x86-64-v2"
	case BaselineV3:
		return "x86-64-v3"
	case BaselineV4:
		return "x86-64-v4"
	default:
		return "generic"
	}
}

// ParseBaseline maps a baseline selector string onto a Baseline.
func ParseBaseline(s string) (Baseline, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "generic", "baseline", "x86-64", "x86-64-v1":
		return BaselineGeneric, nil
	case "v2", "x86-64-v2":
		return BaselineV2, nil
	case "v3", "x86-64-v3", "avx2":
		return BaselineV3, nil
	case "v4", "x86-64-v4", "avx512":
		return BaselineV4, nil
	default:
		return BaselineGeneric, fmt.Errorf("unknown CPU baseline %q (valid: generic, v2, v3, v4)", s)
	}
}

// baselineFeatures returns the features a baseline guarantees on x86-64.
// Baselines are cumulative: each level includes everything below it.
func baselineFeatures(b Baseline) FeatureSet {
	switch b {
	case BaselineV2:
		return NewFeatureSet(SSE2, SSE42)
	case BaselineV3:
		return NewFeatureSet(SSE2, SSE42, AVX, AVX2, FMA, F16C)
	case BaselineV4:
		return NewFeatureSet(SSE2, SSE42, AVX, AVX2, FMA, F16C,
			AVX512F, AVX512DQ, AVX512CD, AVX512BW, AVX512VL)
	default:
		return NewFeatureSet(SSE2)
	}
}

// BaselineFor returns the highest baseline level the given feature set
// fully covers — the natural baseline for a build targeting the machine the
// features were probed from.
func BaselineFor(arch Arch, fs FeatureSet) Baseline {
	if arch != ArchX86_64 {
		return BaselineGeneric
	}
	for _, b := range []Baseline{BaselineV4, BaselineV3, BaselineV2} {
		if fs.HasAll(baselineFeatures(b)...) {
			return b
		}
	}
	return BaselineGeneric
}

// Descriptor is the resolved description of one compilation target.
// It is constructed once per build invocation and immutable afterwards;
// every classification and selection downstream is a pure function of it.
type Descriptor struct {
	// Arch is the target CPU architecture.
	Arch Arch

	// Baseline is the guaranteed minimum CPU level.
	Baseline Baseline

	// Features is the full set of declared-guaranteed CPU features:
	// the baseline's implied features plus any explicit extras.
	Features FeatureSet

	// MinTier optionally narrows the minimum supported SIMD tier below
	// which dispatch paths may be dropped. Zero value (TierGeneric) means
	// no narrowing — the safe, maximally portable default.
	MinTier Tier
}

// Option customizes descriptor construction.
type Option func(*Descriptor)

// WithFeatures declares extra guaranteed features beyond the baseline.
func WithFeatures(features ...Feature) Option {
	return func(d *Descriptor) {
		d.Features = NewFeatureSet(append(d.Features, features...)...)
	}
}

// WithMinTier narrows the minimum supported tier (an optimization that
// shrinks the binary; omitting it is always safe).
func WithMinTier(t Tier) Option {
	return func(d *Descriptor) { d.MinTier = t }
}

// NewDescriptor builds a Descriptor for the given architecture and baseline.
// Non-x86-64 architectures ignore the baseline's x86 feature grants: arm64
// gets NEON (mandatory there), everything else gets no SIMD features at all.
func NewDescriptor(arch Arch, baseline Baseline, opts ...Option) Descriptor {
	d := Descriptor{Arch: arch, Baseline: baseline}
	switch arch {
	case ArchX86_64:
		d.Features = baselineFeatures(baseline)
	case ArchARM64:
		d.Features = NewFeatureSet(NEON)
	default:
		d.Features = NewFeatureSet()
	}
	for _, opt := range opts {
		opt(&d)
	}
	// Declared extras can never grant another architecture's features.
	d.Features = filterByArch(d.Arch, d.Features)
	return d
}

// filterByArch drops features foreign to the architecture: a descriptor may
// never declare AVX-512 on arm64 or NEON on x86-64, no matter what the
// caller passed in.
func filterByArch(arch Arch, fs FeatureSet) FeatureSet {
	return NewFeatureSet(lo.Filter(fs, func(f Feature, _ int) bool {
		if f == NEON {
			return arch == ArchARM64
		}
		return arch == ArchX86_64
	})...)
}

// String renders the descriptor for CLI output and error messages.
func (d Descriptor) String() string {
	return fmt.Sprintf("%s/%s [%s]", d.Arch, d.Baseline, d.Features)
}
