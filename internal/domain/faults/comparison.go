package faults

import (
	"go/ast"
	"go/token"

	m "drq.dev/pkg/drq/internal/model"
)

// collectComparisonSwaps proposes the mirror operator for each comparison,
// e.g. < becomes > and == becomes !=. The mirror is deliberately not the
// boundary-adjacent operator so the two kinds stay distinct.
func collectComparisonSwaps(fset *token.FileSet, file *ast.File) []Site {
	return collectComparisons(fset, file, m.FaultComparisonSwap, mirrorComparison)
}

// collectBoundaryShifts relaxes or tightens each ordered comparison at its
// boundary: < becomes <= and > becomes >=. Equality operators have no
// boundary variant.
func collectBoundaryShifts(fset *token.FileSet, file *ast.File) []Site {
	return collectComparisons(fset, file, m.FaultBoundaryShift, boundaryComparison)
}

func collectComparisons(fset *token.FileSet, file *ast.File, kind m.FaultKind, alternative func(token.Token) (token.Token, bool)) []Site {
	var sites []Site

	ast.Inspect(file, func(n ast.Node) bool {
		bin, ok := n.(*ast.BinaryExpr)
		if !ok || !isComparisonOp(bin.Op) {
			return true
		}

		alt, ok := alternative(bin.Op)
		if !ok {
			return true
		}

		start, ok := offsetForPos(fset, bin.OpPos)
		if !ok {
			return true
		}

		original := bin.Op.String()
		sites = append(sites, spanSite(fset, kind, bin.OpPos,
			start, start+len(original), original, alt.String()))

		return true
	})

	return sites
}

func isComparisonOp(op token.Token) bool {
	return op == token.LSS || op == token.GTR || op == token.LEQ ||
		op == token.GEQ || op == token.EQL || op == token.NEQ
}

func mirrorComparison(op token.Token) (token.Token, bool) {
	switch op {
	case token.LSS:
		return token.GTR, true
	case token.GTR:
		return token.LSS, true
	case token.LEQ:
		return token.GEQ, true
	case token.GEQ:
		return token.LEQ, true
	case token.EQL:
		return token.NEQ, true
	case token.NEQ:
		return token.EQL, true
	default:
		return token.ILLEGAL, false
	}
}

func boundaryComparison(op token.Token) (token.Token, bool) {
	switch op {
	case token.LSS:
		return token.LEQ, true
	case token.LEQ:
		return token.LSS, true
	case token.GTR:
		return token.GEQ, true
	case token.GEQ:
		return token.GTR, true
	default:
		return token.ILLEGAL, false
	}
}
