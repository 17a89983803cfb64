// Fallback feature detection for unsupported architectures. The feature set
// stays empty — the suggested build is the portable generic tier.

//go:build !amd64 && !arm64

package hostcpu

import "github.com/meshy-dev/jxlplan/internal/target"

func detectFeatures(p *Probe) {
	p.Features = target.NewFeatureSet()
}
