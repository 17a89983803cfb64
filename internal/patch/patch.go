// Package patch applies the fixed, versioned textual substitutions some
// pinned upstreams need before their SIMD gates can be driven from the
// build. The one current patch rewrites the fast-lossless encoder's
// hard-coded compiler-sniffing AVX-512 gate so the FJXL_ENABLE_AVX512 macro
// the plan emits is honored unconditionally; upstreams that already accept
// the macro natively need no patching and should prefer the macro.
//
// Apply is a pure function of its input. Each substitution is pinned to one
// upstream version's exact text: if the expected text is absent the vendored
// tree has drifted from the manifest, which is a fatal configuration error,
// never a silent fallthrough.
package patch

import (
	"errors"
	"fmt"
	"strings"
)

// ErrPatchMismatch reports a vendored source that no longer contains the
// text a versioned substitution expects.
var ErrPatchMismatch = errors.New("patched source does not match pinned upstream version")

// Substitution is one exact-text replacement pinned to an upstream version.
type Substitution struct {
	// Library and Upstream pin the substitution to one manifest entry.
	Library  string
	Upstream string

	// Source is the manifest path of the file the substitution rewrites.
	Source string

	// Find is the exact upstream text; Replace is its substitute.
	Find    string
	Replace string
}

// table lists every substitution, keyed implicitly by (library, upstream,
// source). Kept deliberately tiny: every entry is technical debt that goes
// away once the upstream accepts the knob natively.
var table = []Substitution{
	{
		Library:  "libjxl",
		Upstream: "0.8.2",
		Source:   "libjxl/lib/jxl/enc_fast_lossless.cc",
		Find: "#if defined(__AVX512F__) && defined(__AVX512VL__) && \\\n" +
			"    defined(__AVX512CD__) && defined(__AVX512BW__)\n" +
			"#define FJXL_ENABLE_AVX512 1\n" +
			"#endif",
		Replace: "#ifndef FJXL_ENABLE_AVX512\n" +
			"#define FJXL_ENABLE_AVX512 0\n" +
			"#endif",
	},
}

// For returns the substitutions registered for one library version, in
// table order. An empty result means the upstream needs no patching.
func For(library, upstream string) []Substitution {
	var out []Substitution
	for _, s := range table {
		if s.Library == library && s.Upstream == upstream {
			out = append(out, s)
		}
	}
	return out
}

// Apply rewrites content with the substitution. The expected text must
// occur exactly once; zero or multiple occurrences mean the vendored tree
// is not the pinned version.
func (s Substitution) Apply(content string) (string, error) {
	switch strings.Count(content, s.Find) {
	case 1:
		return strings.Replace(content, s.Find, s.Replace, 1), nil
	case 0:
		return "", fmt.Errorf("%w: %s (%s %s): expected text not found",
			ErrPatchMismatch, s.Source, s.Library, s.Upstream)
	default:
		return "", fmt.Errorf("%w: %s (%s %s): expected text occurs more than once",
			ErrPatchMismatch, s.Source, s.Library, s.Upstream)
	}
}
