// CPU feature detection for ARM64 (Apple Silicon, AWS Graviton, etc.).
package hostcpu

import (
	"runtime"

	"golang.org/x/sys/cpu"

	"github.com/meshy-dev/jxlplan/internal/target"
)

// detectFeatures fills in ARM64 SIMD capability flags. NEON (ASIMD) is
// mandatory on ARMv8-A; the kernel hwcap view is consulted anyway so an
// exotic kernel that hides it yields the portable descriptor instead.
// Darwin exposes no hwcaps, but every Apple Silicon chip has NEON.
func detectFeatures(p *Probe) {
	if cpu.ARM64.HasASIMD || runtime.GOOS == "darwin" {
		p.Features = target.NewFeatureSet(target.NEON)
		return
	}
	p.Features = target.NewFeatureSet()
}
