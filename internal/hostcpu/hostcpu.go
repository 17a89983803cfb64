// Package hostcpu probes the CPU of the machine jxlplan runs on, so the
// detect command can suggest a target descriptor matching the local
// hardware. Detection is best-effort: if a feature cannot be confirmed it
// is reported as absent, which only ever makes the suggested build more
// portable, never unsafe.
//
// The resolver itself never calls into this package — classification and
// selection are pure functions of the descriptor. Probing is strictly an
// input convenience, the moral equivalent of -march=native resolved up
// front and written down.
package hostcpu

import (
	"runtime"

	"github.com/meshy-dev/jxlplan/internal/target"
)

// Probe describes the CPU of the current machine.
type Probe struct {
	// ModelName is the human-readable CPU model string, "" if unknown.
	ModelName string

	// LogicalCores is the total number of logical CPUs.
	LogicalCores int

	// Arch is the recognized architecture of the running process.
	Arch target.Arch

	// Features are the confirmed-present CPU features.
	Features target.FeatureSet
}

// Detect probes the current machine. It never returns a hard error: on any
// read failure the affected fields keep conservative defaults.
func Detect() *Probe {
	p := &Probe{
		Arch:         target.ParseArch(runtime.GOARCH),
		LogicalCores: runtime.NumCPU(),
	}
	detectModelName(p)
	detectFeatures(p)
	return p
}

// Baseline returns the highest CPU baseline this machine fully supports.
func (p *Probe) Baseline() target.Baseline {
	return target.BaselineFor(p.Arch, p.Features)
}

// Descriptor builds the target descriptor a native build of this machine
// would use: the probed baseline plus every individually confirmed feature.
func (p *Probe) Descriptor() target.Descriptor {
	return target.NewDescriptor(p.Arch, p.Baseline(), target.WithFeatures(p.Features...))
}
