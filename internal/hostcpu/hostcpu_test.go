package hostcpu

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshy-dev/jxlplan/internal/target"
)

func TestDetect(t *testing.T) {
	p := Detect()
	require.NotNil(t, p)
	assert.Equal(t, target.ParseArch(runtime.GOARCH), p.Arch)
	assert.Greater(t, p.LogicalCores, 0)
}

func TestDescriptorClassifies(t *testing.T) {
	// Whatever the host is, its probe must yield a classifiable
	// descriptor: detection may only ever under-report.
	p := Detect()
	d := p.Descriptor()
	class, err := target.Classify(d)
	require.NoError(t, err)
	assert.LessOrEqual(t, class.Floor, class.Ceiling)

	switch p.Arch {
	case target.ArchARM64:
		assert.True(t, class.HasNEON)
		assert.Equal(t, target.TierGeneric, class.Ceiling)
	case target.ArchOther:
		assert.Empty(t, p.Features)
	}
}

func TestBaselineConsistentWithFeatures(t *testing.T) {
	p := Detect()
	b := p.Baseline()
	if p.Arch != target.ArchX86_64 {
		assert.Equal(t, target.BaselineGeneric, b)
		return
	}
	// The suggested baseline never claims features the probe didn't see.
	d := target.NewDescriptor(target.ArchX86_64, b)
	for _, f := range d.Features {
		assert.True(t, p.Features.Has(f), "baseline %s claims unprobed feature %s", b, f)
	}
}
