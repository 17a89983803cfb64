// Package manifest loads the versioned catalog of vendored-library sources:
// which translation units each sub-library compiles, which of them are
// SIMD-specialized variants, and which runtime dispatch mechanisms each
// library participates in.
//
// The manifest mirrors the upstream libraries' own build manifests for the
// pinned versions and is the single input the resolver trusts about the
// vendored trees. Every inconsistency it can detect is a fatal configuration
// error at load time — a build must never silently omit a capability tier it
// claims to support.
package manifest

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"github.com/meshy-dev/jxlplan/internal/dispatch"
	"github.com/meshy-dev/jxlplan/internal/target"
)

//go:embed manifest.yaml
var embedded []byte

// Variant is one SIMD-specialized source group of a library, tied to
// exactly one capability tier on one architecture.
type Variant struct {
	// Tier the variant's code requires.
	Tier target.Tier

	// Arch the variant's sources exist for.
	Arch target.Arch

	// Sources lists the specialized translation units.
	Sources []string

	// Flags are the per-file frontend feature toggles that enable exactly
	// the instruction sets this tier guarantees, never more.
	Flags []string

	// Retune marks a variant that re-flags baseline sources instead of
	// adding new ones (the fast-lossless unit is compiled everywhere but
	// only gets its AVX-512 toggles at that tier).
	Retune bool
}

// Library describes one vendored sub-library.
type Library struct {
	// Name is the logical library name plan entries are keyed by.
	Name string

	// Upstream is the pinned upstream version the source list mirrors.
	Upstream string

	// Mechanisms lists the runtime dispatch mechanisms the library
	// participates in; empty for libraries with no runtime dispatch.
	Mechanisms []dispatch.Mechanism

	// Multiversioned marks libraries whose tiers live inside baseline
	// translation units (Highway's foreach_target machinery) rather than
	// in per-tier files.
	Multiversioned bool

	// IncludeDirs, Macros and Sources are the portable baseline compile
	// inputs, included in every build regardless of tier.
	IncludeDirs []string
	Macros      []string
	Sources     []string

	// Variants are the tier-specialized source groups, ascending by tier.
	Variants []Variant
}

// Manifest is the full, versioned vendored-library catalog.
type Manifest struct {
	// Version identifies the manifest revision for error messages and the
	// emitted plan.
	Version string

	// Libraries in declaration order.
	Libraries []Library
}

// Library returns the named library, or false when absent.
func (m *Manifest) Library(name string) (Library, bool) {
	return lo.Find(m.Libraries, func(l Library) bool { return l.Name == name })
}

// raw mirrors of the YAML schema; converted to typed values during Load.
type rawManifest struct {
	Version   string       `yaml:"version"`
	Libraries []rawLibrary `yaml:"libraries"`
}

type rawLibrary struct {
	Name           string       `yaml:"name"`
	Upstream       string       `yaml:"upstream"`
	Mechanisms     []string     `yaml:"mechanisms"`
	Multiversioned bool         `yaml:"multiversioned"`
	IncludeDirs    []string     `yaml:"include_dirs"`
	Macros         []string     `yaml:"macros"`
	Sources        []string     `yaml:"sources"`
	Variants       []rawVariant `yaml:"variants"`
}

type rawVariant struct {
	Tier    string   `yaml:"tier"`
	Arch    string   `yaml:"arch"`
	Sources []string `yaml:"sources"`
	Flags   []string `yaml:"flags"`
	Retune  bool     `yaml:"retune"`
}

// Load parses and validates the embedded manifest.
func Load() (*Manifest, error) {
	return Parse(embedded)
}

// LoadFile parses and validates a manifest override from disk, used when a
// vendored tree is updated ahead of the embedded catalog.
func LoadFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	return m, nil
}

// Parse decodes and validates manifest YAML.
func Parse(data []byte) (*Manifest, error) {
	var raw rawManifest
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}

	m := &Manifest{Version: raw.Version}
	for _, rl := range raw.Libraries {
		lib, err := convertLibrary(rl)
		if err != nil {
			return nil, fmt.Errorf("library %q: %w", rl.Name, err)
		}
		m.Libraries = append(m.Libraries, lib)
	}

	if err := m.validate(); err != nil {
		return nil, err
	}
	return m, nil
}

func convertLibrary(rl rawLibrary) (Library, error) {
	lib := Library{
		Name:           rl.Name,
		Upstream:       rl.Upstream,
		Multiversioned: rl.Multiversioned,
		IncludeDirs:    rl.IncludeDirs,
		Macros:         rl.Macros,
		Sources:        rl.Sources,
	}

	for _, name := range rl.Mechanisms {
		mech := dispatch.Mechanism(name)
		if !dispatch.Known(mech) {
			return Library{}, fmt.Errorf("unknown dispatch mechanism %q", name)
		}
		lib.Mechanisms = append(lib.Mechanisms, mech)
	}

	for i, rv := range rl.Variants {
		v, err := convertVariant(rv)
		if err != nil {
			return Library{}, fmt.Errorf("variant %d: %w", i, err)
		}
		lib.Variants = append(lib.Variants, v)
	}
	return lib, nil
}

func convertVariant(rv rawVariant) (Variant, error) {
	tier, err := target.ParseTier(rv.Tier)
	if err != nil {
		return Variant{}, err
	}
	arch := target.ParseArch(rv.Arch)
	if arch == target.ArchOther {
		return Variant{}, fmt.Errorf("variant architecture %q is not a recognized SIMD architecture", rv.Arch)
	}
	return Variant{
		Tier:    tier,
		Arch:    arch,
		Sources: rv.Sources,
		Flags:   rv.Flags,
		Retune:  rv.Retune,
	}, nil
}

// validate enforces every manifest invariant the resolver relies on.
func (m *Manifest) validate() error {
	if m.Version == "" {
		return fmt.Errorf("manifest has no version")
	}
	if len(m.Libraries) == 0 {
		return fmt.Errorf("manifest lists no libraries")
	}

	names := map[string]bool{}
	for _, lib := range m.Libraries {
		if lib.Name == "" {
			return fmt.Errorf("library with empty name")
		}
		if names[lib.Name] {
			return fmt.Errorf("duplicate library %q", lib.Name)
		}
		names[lib.Name] = true

		if err := validateLibrary(lib); err != nil {
			return fmt.Errorf("library %q: %w", lib.Name, err)
		}
	}
	return nil
}

func validateLibrary(lib Library) error {
	if len(lib.Sources) == 0 {
		return fmt.Errorf("no baseline sources")
	}
	if dup := firstDuplicate(lib.Sources); dup != "" {
		return fmt.Errorf("duplicate baseline source %q", dup)
	}

	seen := map[string]bool{}
	for _, v := range lib.Variants {
		key := fmt.Sprintf("%s/%s", v.Arch, v.Tier)
		if seen[key] {
			return fmt.Errorf("duplicate %s variant", key)
		}
		seen[key] = true

		if err := validateVariant(lib, v); err != nil {
			return fmt.Errorf("%s variant: %w", key, err)
		}
	}

	return validateTierCoverage(lib)
}

func validateVariant(lib Library, v Variant) error {
	if len(v.Sources) == 0 {
		return fmt.Errorf("no sources")
	}
	for _, src := range v.Sources {
		inBaseline := lo.Contains(lib.Sources, src)
		if v.Retune && !inBaseline {
			return fmt.Errorf("retune source %q is not a baseline source", src)
		}
		if !v.Retune && inBaseline {
			return fmt.Errorf("source %q already compiled as baseline", src)
		}
	}
	for _, flag := range v.Flags {
		if err := checkPerFileFlag(flag); err != nil {
			return err
		}
	}
	return nil
}

// checkPerFileFlag rejects anything that is not a plain frontend feature
// toggle. Per-file flags must take precedence over module-wide defaults, so
// ambient code-generation selectors (-march, -mtune, -O) can never hide in a
// variant and silently broaden or narrow a file's instruction-set level.
func checkPerFileFlag(flag string) error {
	if strings.HasPrefix(flag, "-march=") || strings.HasPrefix(flag, "-mtune=") {
		return fmt.Errorf("flag %q sets a module-wide code generation baseline; per-file flags must be feature toggles", flag)
	}
	if !strings.HasPrefix(flag, "-m") {
		return fmt.Errorf("flag %q is not a frontend feature toggle", flag)
	}
	return nil
}

// validateTierCoverage checks that every tier a library's dispatch
// identifiers can select has matching specialized sources. Multiversioned
// libraries generate their tiers inside baseline units, so only per-file
// partitioned libraries are checked.
func validateTierCoverage(lib Library) error {
	if lib.Multiversioned {
		return nil
	}
	for _, mech := range lib.Mechanisms {
		for _, arch := range []target.Arch{target.ArchX86_64, target.ArchARM64} {
			for _, id := range dispatch.IDs(mech, arch) {
				if id.Tier == target.TierGeneric {
					continue // served by baseline sources
				}
				covered := lo.SomeBy(lib.Variants, func(v Variant) bool {
					return v.Tier == id.Tier && v.Arch == arch
				})
				if !covered {
					return fmt.Errorf("dispatch target %s/%s has no %s source variant",
						mech, id.Name, id.Tier)
				}
			}
		}
	}
	return nil
}

func firstDuplicate(items []string) string {
	seen := map[string]bool{}
	for _, it := range items {
		if seen[it] {
			return it
		}
		seen[it] = true
	}
	return ""
}
