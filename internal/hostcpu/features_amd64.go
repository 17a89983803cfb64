// CPU feature detection for x86-64. Each feature is probed individually —
// AVX-512 is never assumed simply because AVX2 is present. Older CPUs that
// lack a feature just don't get it in the set.
package hostcpu

import (
	cpuid "github.com/klauspost/cpuid/v2"
	"golang.org/x/sys/cpu"

	"github.com/meshy-dev/jxlplan/internal/target"
)

// detectFeatures fills in x86-64 SIMD capability flags. The common features
// come from golang.org/x/sys/cpu; F16C (which x/sys/cpu does not expose) and
// the AVX-512 subfamilies come from CPUID via klauspost/cpuid.
func detectFeatures(p *Probe) {
	var fs []target.Feature

	// SSE2 is the amd64 ABI baseline, but confirm anyway.
	if cpuid.CPU.Supports(cpuid.SSE2) {
		fs = append(fs, target.SSE2)
	}
	if cpuid.CPU.Supports(cpuid.SSE42) {
		fs = append(fs, target.SSE42)
	}

	// AVX — Sandy Bridge (2011) and later.
	if cpu.X86.HasAVX {
		fs = append(fs, target.AVX)
	}
	// AVX2 — Haswell (2013) and later; the common fast path on x86.
	if cpu.X86.HasAVX2 {
		fs = append(fs, target.AVX2)
	}
	// FMA — fused multiply-add; required for the full AVX2 tier.
	if cpu.X86.HasFMA {
		fs = append(fs, target.FMA)
	}
	// F16C — half-precision conversion, also required for the AVX2 tier.
	if cpuid.CPU.Supports(cpuid.F16C) {
		fs = append(fs, target.F16C)
	}

	// AVX-512 — each subfamily probed separately; the AVX-512 tier needs
	// the full F/DQ/CD/BW/VL quintet.
	for feat, id := range map[target.Feature]cpuid.FeatureID{
		target.AVX512F:  cpuid.AVX512F,
		target.AVX512DQ: cpuid.AVX512DQ,
		target.AVX512CD: cpuid.AVX512CD,
		target.AVX512BW: cpuid.AVX512BW,
		target.AVX512VL: cpuid.AVX512VL,
	} {
		if cpuid.CPU.Supports(id) {
			fs = append(fs, feat)
		}
	}

	p.Features = target.NewFeatureSet(fs...)
}
