// jxlplan — SIMD build-plan resolver for the JPEG XL static library stack
//
// Usage:
//
//	jxlplan plan --arch x86-64 --baseline v3 --out build/plan
//	jxlplan plan --arch arm64 --out build/plan
//	jxlplan detect
//	jxlplan targets
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/meshy-dev/jxlplan/internal/buildcfg"
	"github.com/meshy-dev/jxlplan/internal/dispatch"
	"github.com/meshy-dev/jxlplan/internal/emit"
	"github.com/meshy-dev/jxlplan/internal/hostcpu"
	"github.com/meshy-dev/jxlplan/internal/plan"
	"github.com/meshy-dev/jxlplan/internal/target"
)

func main() {
	var cfg buildcfg.Config

	root := &cobra.Command{
		Use:   "jxlplan",
		Short: "jxlplan — resolve per-target SIMD build plans for the jxl library stack",
		Long: "jxlplan computes, for one compilation target, which SIMD-specialized\n" +
			"translation units each vendored library compiles, the per-file feature\n" +
			"flags they need, and the dispatch-disable configuration that keeps the\n" +
			"produced binary off instruction sets the target does not guarantee.",
	}

	planCmd := &cobra.Command{
		Use:   "plan",
		Short: "Resolve and emit the build plan for a target",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(&cfg)
		},
	}
	f := planCmd.Flags()
	f.StringVar(&cfg.Arch, "arch", "x86-64", "Target architecture (x86-64, arm64, ...)")
	f.StringVar(&cfg.Baseline, "baseline", "generic", "Guaranteed CPU baseline (generic, v2, v3, v4)")
	f.StringSliceVar(&cfg.Features, "feature", nil, "Extra guaranteed CPU features (repeatable)")
	f.StringVar(&cfg.MinTier, "min-tier", "", "Narrow the minimum supported SIMD tier (optional)")
	f.StringSliceVar(&cfg.GlobalFlags, "cflag", nil, "Module-wide compile flags to record in the plan")
	f.StringVar(&cfg.ManifestPath, "manifest", envOrDefault("JXLPLAN_MANIFEST", ""),
		"Override the embedded vendored-library manifest")
	f.StringVarP(&cfg.OutDir, "out", "o", "", "Output directory (empty = print the guarantee only)")
	f.StringVar(&cfg.VendorDir, "vendor", "", "Vendored source root, for emitting patched copies")

	detectCmd := &cobra.Command{
		Use:   "detect",
		Short: "Probe this machine and suggest a target descriptor",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDetect()
		},
	}

	targetsCmd := &cobra.Command{
		Use:   "targets",
		Short: "List SIMD tiers and the per-library dispatch targets",
		Run: func(cmd *cobra.Command, args []string) {
			runTargets()
		},
	}

	root.AddCommand(planCmd, detectCmd, targetsCmd)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runPlan(cfg *buildcfg.Config) error {
	m, err := cfg.Manifest()
	if err != nil {
		return err
	}
	d, err := cfg.Descriptor()
	if err != nil {
		return err
	}

	p, err := plan.Build(m, d, cfg.GlobalFlags)
	if err != nil {
		return err
	}

	if err := emit.Emit(cfg.OutDir, cfg.VendorDir, p); err != nil {
		return err
	}

	fmt.Print(emit.RenderGuarantee(p))
	if cfg.OutDir != "" {
		fmt.Printf("\nPlan written to %s\n", cfg.OutDir)
	}
	return nil
}

func runDetect() error {
	probe := hostcpu.Detect()
	if probe.ModelName != "" {
		fmt.Printf("CPU:      %s\n", probe.ModelName)
	}
	fmt.Printf("Cores:    %d logical\n", probe.LogicalCores)
	fmt.Printf("Arch:     %s\n", probe.Arch)
	fmt.Printf("SIMD:     %s\n", probe.Features)
	fmt.Printf("Baseline: %s\n", probe.Baseline())

	d := probe.Descriptor()
	class, err := target.Classify(d)
	if err != nil {
		return err
	}
	fmt.Printf("Tier:     %s\n\n", class.Ceiling)
	fmt.Printf("Suggested: jxlplan plan --arch %s --baseline %s\n", probe.Arch, probe.Baseline())
	return nil
}

func runTargets() {
	fmt.Println("Tiers (ascending capability):")
	for _, t := range target.AllTiers {
		fmt.Printf("  %s\n", t)
	}
	fmt.Println()
	fmt.Println("Dispatch targets:")
	for _, mech := range dispatch.Mechanisms {
		fmt.Printf("  %s:\n", mech)
		for _, id := range dispatch.Catalog() {
			if id.Mechanism != mech {
				continue
			}
			fmt.Printf("    %-14s %-8s %s\n", id.Name, id.Tier, id.Arch)
		}
	}
}

// envOrDefault returns the value of an env var, or fallback if unset.
func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
