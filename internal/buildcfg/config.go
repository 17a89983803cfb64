// Package buildcfg defines the per-invocation configuration for jxlplan.
package buildcfg

import (
	"fmt"

	"github.com/meshy-dev/jxlplan/internal/manifest"
	"github.com/meshy-dev/jxlplan/internal/target"
)

// Config holds all settings passed in via CLI flags or environment variables.
type Config struct {
	// Arch is the target architecture name (e.g. "x86-64", "arm64").
	// Unrecognized names are valid and resolve to the generic tier.
	Arch string

	// Baseline is the guaranteed CPU baseline (generic, v2, v3, v4).
	Baseline string

	// Features lists extra declared-guaranteed CPU features beyond the
	// baseline (e.g. "avx512f").
	Features []string

	// MinTier optionally narrows the minimum supported SIMD tier,
	// dropping dispatch paths below it. Empty means no narrowing.
	MinTier string

	// GlobalFlags are module-wide compile flags forwarded into the plan.
	// Machine-dependent flags are rejected: SIMD levels are per-file.
	GlobalFlags []string

	// ManifestPath overrides the embedded vendored-library manifest.
	ManifestPath string

	// OutDir is where the resolved plan is written (empty = dry run).
	OutDir string

	// VendorDir is the root of the vendored source trees, used only to
	// emit transformed copies of patched sources (empty = skip patching).
	VendorDir string
}

// Descriptor resolves the configured target into an immutable descriptor.
func (c *Config) Descriptor() (target.Descriptor, error) {
	baseline, err := target.ParseBaseline(c.Baseline)
	if err != nil {
		return target.Descriptor{}, err
	}

	var opts []target.Option
	if len(c.Features) > 0 {
		feats := make([]target.Feature, 0, len(c.Features))
		for _, name := range c.Features {
			f, err := target.ParseFeature(name)
			if err != nil {
				return target.Descriptor{}, err
			}
			feats = append(feats, f)
		}
		opts = append(opts, target.WithFeatures(feats...))
	}
	if c.MinTier != "" {
		tier, err := target.ParseTier(c.MinTier)
		if err != nil {
			return target.Descriptor{}, err
		}
		opts = append(opts, target.WithMinTier(tier))
	}

	return target.NewDescriptor(target.ParseArch(c.Arch), baseline, opts...), nil
}

// Manifest loads the vendored-library catalog: the override file when one
// is configured, the embedded manifest otherwise.
func (c *Config) Manifest() (*manifest.Manifest, error) {
	if c.ManifestPath != "" {
		return manifest.LoadFile(c.ManifestPath)
	}
	m, err := manifest.Load()
	if err != nil {
		return nil, fmt.Errorf("embedded manifest: %w", err)
	}
	return m, nil
}
