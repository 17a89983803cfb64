// Package emit renders a resolved build plan into the build executor's
// output directory. The emitted files are plain, stable-ordered text so the
// executor (and humans diffing two plans) can consume them without this
// tool:
//
//	<dir>/plan.json       machine-readable plan, the whole value
//	<dir>/<lib>.plan      per-library compile inputs, one item per line
//	<dir>/guarantee.txt   aggregate SIMD-tier statement for the binary
//
// Emission is a pure rendering of an already-final plan; nothing here feeds
// back into resolution.
package emit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/meshy-dev/jxlplan/internal/patch"
	"github.com/meshy-dev/jxlplan/internal/plan"
)

// Emit validates and writes the whole output set for p. Patched vendored
// copies are staged in memory first, so a pinned-substitution mismatch
// (version drift in the vendored tree) aborts before anything lands in dir
// and a failed run never leaves a partial plan behind.
func Emit(dir, vendorDir string, p *plan.BuildPlan) error {
	patched, err := LoadPatches(vendorDir, p)
	if err != nil {
		return err
	}
	if err := Write(dir, p); err != nil {
		return err
	}
	return WritePatches(dir, patched)
}

// Write serializes p under dir. If dir is empty the call is a no-op
// (dry-run mode: the caller prints the guarantee instead).
func Write(dir string, p *plan.BuildPlan) error {
	if dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal plan: %w", err)
	}
	jsonPath := filepath.Join(dir, "plan.json")
	if err := os.WriteFile(jsonPath, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", jsonPath, err)
	}

	for _, unit := range p.Units {
		path := filepath.Join(dir, unit.Library+".plan")
		if err := os.WriteFile(path, []byte(renderUnit(p, unit)), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}

	guaranteePath := filepath.Join(dir, "guarantee.txt")
	if err := os.WriteFile(guaranteePath, []byte(RenderGuarantee(p)), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", guaranteePath, err)
	}
	return nil
}

// renderUnit returns the per-library compile inputs, one item per line.
// Per-file flags appear on the source line itself, after the global flags
// the header names, so the precedence boundary survives into the file.
func renderUnit(p *plan.BuildPlan, unit plan.Unit) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s %s, resolved by jxlplan (manifest %s); do not edit by hand\n",
		unit.Library, unit.Upstream, p.ManifestVersion)
	fmt.Fprintf(&b, "# target %s\n", p.Target)

	for _, flag := range p.GlobalFlags {
		fmt.Fprintf(&b, "global %s\n", flag)
	}
	for _, dir := range unit.IncludeDirs {
		fmt.Fprintf(&b, "include %s\n", dir)
	}
	for _, macro := range unit.Macros {
		fmt.Fprintf(&b, "define %s\n", macro)
	}
	for _, set := range unit.Sets {
		for _, src := range set.Sources {
			if len(set.Flags) == 0 {
				fmt.Fprintf(&b, "source %s\n", src)
				continue
			}
			fmt.Fprintf(&b, "source %s %s\n", src, strings.Join(set.Flags, " "))
		}
	}
	return b.String()
}

// RenderGuarantee returns the human-readable aggregate tier statement.
func RenderGuarantee(p *plan.BuildPlan) string {
	g := p.Guarantee
	var b strings.Builder
	fmt.Fprintf(&b, "target:   %s\n", p.Target)
	fmt.Fprintf(&b, "ceiling:  %s\n", g.Ceiling)
	fmt.Fprintf(&b, "floor:    %s\n", g.Floor)
	fmt.Fprintf(&b, "embedded: %s\n", strings.Join(g.Embedded, " "))
	if len(g.Excluded) > 0 {
		fmt.Fprintf(&b, "excluded: %s\n", strings.Join(g.Excluded, " "))
	}
	for _, unit := range p.Units {
		names := g.Disabled[unit.Library]
		if len(names) == 0 {
			continue
		}
		fmt.Fprintf(&b, "disabled[%s]: %s\n", unit.Library, strings.Join(names, " "))
	}
	return b.String()
}

// PatchedSource is a transformed vendored source held in memory until the
// whole output set is known to be valid.
type PatchedSource struct {
	// Rel is the source path relative to the vendored root, slash-separated.
	Rel     string
	Content string
}

// LoadPatches reads each vendored source the plan's libraries pin a
// substitution for, applies the substitutions, and returns the transformed
// copies without writing anything. The vendored tree itself is never
// modified. Libraries whose pinned upstream needs no patching are skipped.
func LoadPatches(vendorDir string, p *plan.BuildPlan) ([]PatchedSource, error) {
	if vendorDir == "" {
		return nil, nil
	}
	var files []PatchedSource
	for _, unit := range p.Units {
		for _, sub := range patch.For(unit.Library, unit.Upstream) {
			src := filepath.Join(vendorDir, filepath.FromSlash(sub.Source))
			content, err := os.ReadFile(src)
			if err != nil {
				return nil, fmt.Errorf("read vendored source: %w", err)
			}
			out, err := sub.Apply(string(content))
			if err != nil {
				return nil, err
			}
			files = append(files, PatchedSource{Rel: sub.Source, Content: out})
		}
	}
	return files, nil
}

// WritePatches writes transformed vendored copies under dir/patched/,
// mirroring each source path.
func WritePatches(dir string, files []PatchedSource) error {
	if dir == "" {
		return nil
	}
	for _, f := range files {
		dst := filepath.Join(dir, "patched", filepath.FromSlash(f.Rel))
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return fmt.Errorf("mkdir %s: %w", filepath.Dir(dst), err)
		}
		if err := os.WriteFile(dst, []byte(f.Content), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", dst, err)
		}
	}
	return nil
}
