package manifest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshy-dev/jxlplan/internal/dispatch"
	"github.com/meshy-dev/jxlplan/internal/target"
)

func TestLoadEmbedded(t *testing.T) {
	m, err := Load()
	require.NoError(t, err)
	assert.NotEmpty(t, m.Version)

	for _, name := range []string{"highway", "brotli", "skcms", "libjxl"} {
		lib, ok := m.Library(name)
		require.True(t, ok, "library %s missing", name)
		assert.NotEmpty(t, lib.Sources, "library %s has no baseline sources", name)
		assert.NotEmpty(t, lib.Upstream)
	}

	brotli, _ := m.Library("brotli")
	assert.Empty(t, brotli.Mechanisms, "brotli has no runtime dispatch")
	assert.Empty(t, brotli.Variants)

	skcms, _ := m.Library("skcms")
	require.Len(t, skcms.Variants, 2)
	assert.Equal(t, target.TierAVX2, skcms.Variants[0].Tier)
	assert.Equal(t, target.TierAVX512, skcms.Variants[1].Tier)

	libjxl, _ := m.Library("libjxl")
	assert.Contains(t, libjxl.Mechanisms, dispatch.MechHighway)
	assert.Contains(t, libjxl.Mechanisms, dispatch.MechFJXL)
	require.Len(t, libjxl.Variants, 1)
	assert.True(t, libjxl.Variants[0].Retune)
}

func TestParseRejectsUnknownMechanism(t *testing.T) {
	_, err := Parse([]byte(`
version: "1"
libraries:
  - name: lcms
    mechanisms: [lcms-fast-float]
    sources: [lcms/src/cmsxform.c]
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown dispatch mechanism")
}

func TestParseRejectsGlobalCodegenFlags(t *testing.T) {
	// A -march flag in a variant would let one file's instruction-set level
	// be driven by an ambient baseline instead of explicit toggles.
	_, err := Parse([]byte(`
version: "1"
libraries:
  - name: skcms
    mechanisms: [skcms]
    sources: [skcms/skcms.cc]
    variants:
      - tier: avx2
        arch: x86-64
        sources: [skcms/src/skcms_TransformHsw.cc]
        flags: [-march=haswell]
      - tier: avx512
        arch: x86-64
        sources: [skcms/src/skcms_TransformSkx.cc]
        flags: [-mavx512f]
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "module-wide code generation baseline")
}

func TestParseRejectsMissingTierCoverage(t *testing.T) {
	// skcms declares an AVX-512 dispatch target (skx); a manifest without
	// the matching variant claims a tier it cannot furnish sources for.
	_, err := Parse([]byte(`
version: "1"
libraries:
  - name: skcms
    mechanisms: [skcms]
    sources: [skcms/skcms.cc]
    variants:
      - tier: avx2
        arch: x86-64
        sources: [skcms/src/skcms_TransformHsw.cc]
        flags: [-mavx2]
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no avx512 source variant")
}

func TestParseRejectsDuplicateVariantSources(t *testing.T) {
	_, err := Parse([]byte(`
version: "1"
libraries:
  - name: demo
    sources: [demo/a.cc]
    variants:
      - tier: avx2
        arch: x86-64
        sources: [demo/a.cc]
        flags: [-mavx2]
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already compiled as baseline")
}

func TestParseRejectsRetuneOfNonBaselineSource(t *testing.T) {
	_, err := Parse([]byte(`
version: "1"
libraries:
  - name: demo
    sources: [demo/a.cc]
    variants:
      - tier: avx2
        arch: x86-64
        retune: true
        sources: [demo/b.cc]
        flags: [-mavx2]
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a baseline source")
}

func TestParseRejectsVariantForUnknownArch(t *testing.T) {
	_, err := Parse([]byte(`
version: "1"
libraries:
  - name: demo
    sources: [demo/a.cc]
    variants:
      - tier: avx2
        arch: mips
        sources: [demo/b.cc]
        flags: [-mavx2]
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a recognized SIMD architecture")
}

func TestParseRejectsDuplicates(t *testing.T) {
	_, err := Parse([]byte(`
version: "1"
libraries:
  - name: demo
    sources: [demo/a.cc, demo/a.cc]
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate baseline source")

	_, err = Parse([]byte(`
version: "1"
libraries:
  - name: demo
    sources: [demo/a.cc]
  - name: demo
    sources: [demo/b.cc]
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate library")
}

func TestParseRequiresVersion(t *testing.T) {
	_, err := Parse([]byte(`
libraries:
  - name: demo
    sources: [demo/a.cc]
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no version")
}
