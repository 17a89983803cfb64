package plan

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshy-dev/jxlplan/internal/dispatch"
	"github.com/meshy-dev/jxlplan/internal/manifest"
	"github.com/meshy-dev/jxlplan/internal/target"
)

func load(t *testing.T) *manifest.Manifest {
	t.Helper()
	m, err := manifest.Load()
	require.NoError(t, err)
	return m
}

func build(t *testing.T, d target.Descriptor) *BuildPlan {
	t.Helper()
	p, err := Build(load(t), d, nil)
	require.NoError(t, err)
	return p
}

func TestBuildGenericX86(t *testing.T) {
	p := build(t, target.NewDescriptor(target.ArchX86_64, target.BaselineGeneric))

	// Baseline-only sources for the color-management library, and its
	// AVX2- and AVX-512-tier dispatch targets disabled.
	skcms, ok := p.Unit("skcms")
	require.True(t, ok)
	require.Len(t, skcms.Sets, 1)
	assert.Equal(t, target.TierGeneric, skcms.Sets[0].Tier)
	assert.Contains(t, skcms.Macros, "SKCMS_DISABLE_HSW")
	assert.Contains(t, skcms.Macros, "SKCMS_DISABLE_SKX")
	assert.Equal(t, []string{"hsw", "skx"}, p.Guarantee.Disabled["skcms"])

	assert.Equal(t, []string{"generic"}, p.Guarantee.Embedded)
	assert.Equal(t, []string{"avx2", "avx512"}, p.Guarantee.Excluded)
}

func TestBuildAVX2NoAVX512(t *testing.T) {
	p := build(t, target.NewDescriptor(target.ArchX86_64, target.BaselineV3))

	skcms, ok := p.Unit("skcms")
	require.True(t, ok)
	require.Len(t, skcms.Sets, 2)
	assert.Equal(t, target.TierAVX2, skcms.Sets[1].Tier)
	assert.Contains(t, skcms.Sets[1].Sources, "skcms/src/skcms_TransformHsw.cc")
	assert.Equal(t, []string{"-mavx2", "-mf16c", "-mfma"}, skcms.Sets[1].Flags)
	assert.NotContains(t, skcms.Macros, "SKCMS_DISABLE_HSW")
	assert.Contains(t, skcms.Macros, "SKCMS_DISABLE_SKX")

	hwy, ok := p.Unit("highway")
	require.True(t, ok)
	assert.Contains(t, hwy.Macros, "HWY_DISABLED_TARGETS=(HWY_AVX3|HWY_AVX3_ZEN4|HWY_AVX3_SPR)")

	jxl, ok := p.Unit("libjxl")
	require.True(t, ok)
	assert.Contains(t, jxl.Macros, "FJXL_ENABLE_AVX512=0")
	// The codec's Highway-multiversioned units carry the same exclusion
	// as the Highway library itself.
	assert.Contains(t, jxl.Macros, "HWY_DISABLED_TARGETS=(HWY_AVX3|HWY_AVX3_ZEN4|HWY_AVX3_SPR)")

	assert.Equal(t, []string{"generic", "avx2"}, p.Guarantee.Embedded)
	assert.Equal(t, []string{"avx512"}, p.Guarantee.Excluded)
}

func TestBuildAVX512(t *testing.T) {
	p := build(t, target.NewDescriptor(target.ArchX86_64, target.BaselineV4))

	skcms, ok := p.Unit("skcms")
	require.True(t, ok)
	require.Len(t, skcms.Sets, 3, "baseline + AVX2 + AVX-512 sets")
	assert.Contains(t, skcms.Sets[2].Sources, "skcms/src/skcms_TransformSkx.cc")

	jxl, ok := p.Unit("libjxl")
	require.True(t, ok)
	assert.Contains(t, jxl.Macros, "FJXL_ENABLE_AVX512=1")

	// The retuned fast-lossless unit compiles exactly once, in the
	// AVX-512 set with its feature toggles.
	const fastLossless = "libjxl/lib/jxl/enc_fast_lossless.cc"
	assert.NotContains(t, jxl.Sets[0].Sources, fastLossless)
	require.Len(t, jxl.Sets, 2)
	assert.Equal(t, []string{fastLossless}, jxl.Sets[1].Sources)
	assert.Contains(t, jxl.Sets[1].Flags, "-mavx512f")
	count := lo.Count(jxl.Sources(), fastLossless)
	assert.Equal(t, 1, count)

	for _, names := range p.Guarantee.Disabled {
		assert.Empty(t, names, "nothing is disabled at the full ceiling")
	}
	assert.Empty(t, p.Guarantee.Excluded)
}

func TestBuildARM64SelectsNoX86Sources(t *testing.T) {
	p := build(t, target.NewDescriptor(target.ArchARM64, target.BaselineGeneric))

	for _, unit := range p.Units {
		for _, src := range unit.Sources() {
			assert.NotContains(t, src, "Hsw", "x86 source %s selected for arm64", src)
			assert.NotContains(t, src, "Skx", "x86 source %s selected for arm64", src)
		}
		for _, macro := range unit.Macros {
			assert.NotContains(t, macro, "HWY_DISABLED_TARGETS",
				"nothing to exclude on arm64: NEON is the baseline")
		}
	}

	jxl, ok := p.Unit("libjxl")
	require.True(t, ok)
	assert.Contains(t, jxl.Macros, "FJXL_ENABLE_AVX512=0",
		"the codec's private x86 path stays off on arm64")
}

func TestBuildMinTierNarrowsFloor(t *testing.T) {
	p := build(t, target.NewDescriptor(target.ArchX86_64, target.BaselineV4,
		target.WithMinTier(target.TierAVX2)))

	assert.Equal(t, "avx2", p.Guarantee.Floor)
	assert.Equal(t, []string{"avx2", "avx512"}, p.Guarantee.Embedded)
	assert.Equal(t, []string{"generic"}, p.Guarantee.Excluded)

	// The generic Highway dispatch targets fall below the floor.
	for _, lib := range []string{"highway", "libjxl"} {
		disabled := p.Guarantee.Disabled[lib]
		for _, name := range []string{"HWY_SSE2", "HWY_SSSE3", "HWY_SSE4"} {
			assert.Contains(t, disabled, name, "library %s", lib)
		}
		assert.NotContains(t, disabled, "HWY_AVX2", "library %s", lib)
		assert.NotContains(t, disabled, "HWY_AVX3", "library %s", lib)
	}

	// Narrowing changes dispatch only: every baseline translation unit is
	// still compiled, at every tier up to the ceiling.
	skcms, ok := p.Unit("skcms")
	require.True(t, ok)
	require.Len(t, skcms.Sets, 3)
	assert.Contains(t, skcms.Sets[0].Sources, "skcms/skcms.cc")
	assert.Empty(t, p.Guarantee.Disabled["skcms"],
		"no color-management dispatch target sits below the avx2 floor")

	jxl, ok := p.Unit("libjxl")
	require.True(t, ok)
	assert.Contains(t, jxl.Macros, "FJXL_ENABLE_AVX512=1")
}

func TestBuildOtherArchFallsBackToGeneric(t *testing.T) {
	p := build(t, target.NewDescriptor(target.ArchOther, target.BaselineGeneric))
	assert.Equal(t, []string{"generic"}, p.Guarantee.Embedded)
	for _, unit := range p.Units {
		require.Len(t, unit.Sets, 1, "library %s", unit.Library)
	}
}

func TestBuildMonotonicity(t *testing.T) {
	// If tier A's features are a subset of tier B's, A's selected sources
	// must be a subset of B's, for every library.
	baselines := []target.Baseline{
		target.BaselineGeneric, target.BaselineV2, target.BaselineV3, target.BaselineV4,
	}
	var prev *BuildPlan
	for _, b := range baselines {
		p := build(t, target.NewDescriptor(target.ArchX86_64, b))
		if prev != nil {
			for _, prevUnit := range prev.Units {
				unit, ok := p.Unit(prevUnit.Library)
				require.True(t, ok)
				for _, src := range prevUnit.Sources() {
					assert.Contains(t, unit.Sources(), src,
						"%s: %s selected at %s but missing at %s",
						unit.Library, src, prev.Target, p.Target)
				}
			}
		}
		prev = p
	}
}

func TestBuildIdempotent(t *testing.T) {
	d := target.NewDescriptor(target.ArchX86_64, target.BaselineV3)
	a, err := json.Marshal(build(t, d))
	require.NoError(t, err)
	b, err := json.Marshal(build(t, d))
	require.NoError(t, err)
	assert.Equal(t, a, b, "identical descriptors must yield byte-identical plans")
}

func TestBuildRejectsGlobalMachineFlags(t *testing.T) {
	d := target.NewDescriptor(target.ArchX86_64, target.BaselineV3)
	_, err := Build(load(t), d, []string{"-O2", "-march=native"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "-march=native")

	p, err := Build(load(t), d, []string{"-O2", "-fno-exceptions"})
	require.NoError(t, err)
	assert.Equal(t, []string{"-O2", "-fno-exceptions"}, p.GlobalFlags)
}

func TestSelectMissingVariantIsFatal(t *testing.T) {
	// A library whose dispatch targets claim a tier the manifest has no
	// sources for must abort the build, not degrade silently. Built by
	// hand because manifest validation refuses to load such a catalog.
	lib := manifest.Library{
		Name:       "skcms",
		Mechanisms: []dispatch.Mechanism{dispatch.MechSKCMS},
		Sources:    []string{"skcms/skcms.cc"},
	}
	class, err := target.Classify(target.NewDescriptor(target.ArchX86_64, target.BaselineV3))
	require.NoError(t, err)

	_, err = Select(lib, class)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingVariant)
}

func TestGlobalFlagOrderingInSets(t *testing.T) {
	// Per-file flags live on the compile set, never merged into the
	// global list, so the executor cannot lose the precedence boundary.
	p, err := Build(load(t), target.NewDescriptor(target.ArchX86_64, target.BaselineV4), []string{"-O2"})
	require.NoError(t, err)
	for _, f := range p.GlobalFlags {
		assert.False(t, strings.HasPrefix(f, "-m"))
	}
	skcms, _ := p.Unit("skcms")
	assert.Empty(t, skcms.Sets[0].Flags, "baseline sets carry no feature toggles")
}
