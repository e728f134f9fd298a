// Package patch renders a fitted bound into the test source as a
// replacement literal and writes the patched copy together with a
// unified diff.
package patch

import (
	"bytes"
	"errors"
	"fmt"
	"go/parser"
	"go/token"
	"go/types"
	"math"
	"os"
	"path/filepath"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/unbound-force/boundfit/internal/scrape"
	"github.com/unbound-force/boundfit/internal/taxonomy"
)

// ErrNoLabel is returned when a patch is requested for an outcome
// without a tightness label.
var ErrNoLabel = errors.New("patch: outcome has no tightness label")

// ErrUnchanged is returned when the rendered bound is identical to the
// literal already in the source, so there is nothing to patch.
var ErrUnchanged = errors.New("patch: rendered bound equals the existing literal")

// Suffix returns the artifact suffix: "l" for slack-present, "t" for
// margin-narrow, with "e" appended when sampling did not converge.
func Suffix(label taxonomy.TightnessLabel, converged bool) (string, error) {
	var s string
	switch label {
	case taxonomy.LabelSlackPresent:
		s = "l"
	case taxonomy.LabelMarginNarrow:
		s = "t"
	default:
		return "", fmt.Errorf("%w: %q", ErrNoLabel, label)
	}
	if !converged {
		s += "e"
	}
	return s, nil
}

// Generator writes patch artifacts under OutDir.
type Generator struct {
	OutDir string

	// Fractional is set when the compared quantity was observed with
	// non-integer values. Integer literals are then rendered in
	// decimal notation so the fitted bound is not rounded away.
	Fractional bool
}

// Fractional reports whether any value has a fractional part.
func Fractional(values []float64) bool {
	for _, v := range values {
		if v != math.Trunc(v) {
			return true
		}
	}
	return false
}

// Generate substitutes bound for the spec's literal and writes
// <basename>.patch_<suffix> and <basename>.diff_<suffix>. The test
// file must hold its original content. The same inputs always
// produce byte-identical artifacts.
func (g Generator) Generate(spec taxonomy.AssertionSpec, bound float64, label taxonomy.TightnessLabel, converged bool) (*taxonomy.PatchArtifact, error) {
	suffix, err := Suffix(label, converged)
	if err != nil {
		return nil, err
	}

	src, err := os.ReadFile(spec.File)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", spec.File, err)
	}
	patched, literal, err := g.Apply(spec, src, bound)
	if err != nil {
		return nil, err
	}
	if bytes.Equal(patched, src) {
		return nil, fmt.Errorf("%w: %s at %s", ErrUnchanged, literal, spec.Location())
	}
	diff, err := Diff(spec.Basename(), src, patched)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(g.OutDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory %s: %w", g.OutDir, err)
	}
	art := &taxonomy.PatchArtifact{
		Spec:        spec,
		Bound:       bound,
		Literal:     literal,
		Suffix:      suffix,
		Diff:        diff,
		PatchedPath: filepath.Join(g.OutDir, spec.Basename()+".patch_"+suffix),
		DiffPath:    filepath.Join(g.OutDir, spec.Basename()+".diff_"+suffix),
	}
	if err := os.WriteFile(art.PatchedPath, patched, 0o644); err != nil {
		return nil, fmt.Errorf("writing patched copy: %w", err)
	}
	if err := os.WriteFile(art.DiffPath, []byte(diff), 0o644); err != nil {
		return nil, fmt.Errorf("writing diff: %w", err)
	}
	return art, nil
}

// Apply returns src with the spec's literal replaced by the rendered
// bound, along with the rendered literal.
func (g Generator) Apply(spec taxonomy.AssertionSpec, src []byte, bound float64) ([]byte, string, error) {
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, spec.File, src, parser.ParseComments)
	if err != nil {
		return nil, "", fmt.Errorf("parsing %s: %w", spec.File, err)
	}
	site, ok := scrape.LocateSite(fset, f, spec.Test, spec.Line)
	if !ok {
		return nil, "", fmt.Errorf("assertion not found at %s", spec.Location())
	}
	if got := types.ExprString(site.Literal); got != spec.Literal {
		return nil, "", fmt.Errorf("literal at %s is %s, expected %s", spec.Location(), got, spec.Literal)
	}

	render := RenderLiteral
	if g.Fractional {
		render = renderFractional
	}
	literal, err := render(spec.Literal, bound, spec.Direction)
	if err != nil {
		return nil, "", err
	}

	tf := fset.File(site.Literal.Pos())
	start, end := tf.Offset(site.Literal.Pos()), tf.Offset(site.Literal.End())
	out := make([]byte, 0, len(src)+len(literal))
	out = append(out, src[:start]...)
	out = append(out, literal...)
	out = append(out, src[end:]...)
	return out, literal, nil
}

// Diff renders a unified diff between the original and patched
// source.
func Diff(name string, before, after []byte) (string, error) {
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(before)),
		B:        difflib.SplitLines(string(after)),
		FromFile: "a/" + name,
		ToFile:   "b/" + name,
		Context:  3,
	})
}
