// Package faults implements the single-site fault transforms used to build
// mutant variants of a target source file. Each transform alters exactly
// one construct so a kill maps to a diagnosable cause.
package faults

import (
	"go/ast"
	"go/token"

	"github.com/pmezard/go-difflib/difflib"
	m "drq.dev/pkg/drq/internal/model"
)

// Site is one candidate fault location together with its replacement text.
// Start and End are byte offsets into the file content.
type Site struct {
	Kind     m.FaultKind
	Line     int
	Column   int
	Start    int
	End      int
	Original string
	Mutated  string
}

// Apply splices the site's replacement into content, returning a new slice.
// It returns nil when the offsets do not fit the content.
func (s Site) Apply(content []byte) []byte {
	return replaceRange(content, s.Start, s.End, s.Mutated)
}

// Collect returns every candidate fault site of the requested kinds whose
// construct starts inside the [lo, hi) byte range. Callers restrict the
// range to the target function body so faults land in the code under test.
func Collect(fset *token.FileSet, file *ast.File, content []byte, kinds []m.FaultKind, lo, hi int) []Site {
	var sites []Site

	for _, kind := range kinds {
		switch kind {
		case m.FaultOperatorSwap:
			sites = append(sites, collectOperatorSwaps(fset, file, content)...)
		case m.FaultComparisonSwap:
			sites = append(sites, collectComparisonSwaps(fset, file)...)
		case m.FaultBoundaryShift:
			sites = append(sites, collectBoundaryShifts(fset, file)...)
		case m.FaultOffByOne:
			sites = append(sites, collectOffByOne(fset, file)...)
		case m.FaultNegation:
			sites = append(sites, collectNegations(fset, file, content)...)
		}
	}

	inRange := sites[:0]

	for _, site := range sites {
		if site.Start >= lo && site.Start < hi {
			inRange = append(inRange, site)
		}
	}

	return inRange
}

// Diff renders a unified diff between the original and mutated source so
// surviving mutants can be shown to users and generators.
func Diff(original, mutated []byte) string {
	unified := difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(original)),
		B:        difflib.SplitLines(string(mutated)),
		FromFile: "original",
		ToFile:   "mutated",
		Context:  2,
	}

	text, err := difflib.GetUnifiedDiffString(unified)
	if err != nil {
		return ""
	}

	return text
}

// offsetForPos converts a token position into a byte offset.
func offsetForPos(fset *token.FileSet, pos token.Pos) (int, bool) {
	if !pos.IsValid() {
		return 0, false
	}

	file := fset.File(pos)
	if file == nil {
		return 0, false
	}

	return file.Offset(pos), true
}

// replaceRange returns a copy of content with [start, end) replaced.
func replaceRange(content []byte, start, end int, replacement string) []byte {
	if start < 0 || end > len(content) || start > end {
		return nil
	}

	mutated := make([]byte, 0, len(content)-(end-start)+len(replacement))
	mutated = append(mutated, content[:start]...)
	mutated = append(mutated, replacement...)
	mutated = append(mutated, content[end:]...)

	return mutated
}

// spanSite builds a Site for the [start, end) range covered by a node.
func spanSite(fset *token.FileSet, kind m.FaultKind, pos token.Pos, start, end int, original, mutated string) Site {
	position := fset.Position(pos)

	return Site{
		Kind:     kind,
		Line:     position.Line,
		Column:   position.Column,
		Start:    start,
		End:      end,
		Original: original,
		Mutated:  mutated,
	}
}
