package faults

import (
	"go/ast"
	"go/token"

	m "drq.dev/pkg/drq/internal/model"
)

// collectOperatorSwaps finds arithmetic binary expressions and proposes one
// site per alternative operator.
func collectOperatorSwaps(fset *token.FileSet, file *ast.File, _ []byte) []Site {
	var sites []Site

	ast.Inspect(file, func(n ast.Node) bool {
		bin, ok := n.(*ast.BinaryExpr)
		if !ok || !isArithmeticOp(bin.Op) {
			return true
		}

		// Swapping + on string operands is the only combination that
		// compiles, so string concatenation yields no usable faults.
		if isStringLiteral(bin.X) || isStringLiteral(bin.Y) {
			return true
		}

		start, ok := offsetForPos(fset, bin.OpPos)
		if !ok {
			return true
		}

		original := bin.Op.String()

		for _, alt := range arithmeticAlternatives(bin.Op) {
			if alt == token.REM && (isFloatLiteral(bin.X) || isFloatLiteral(bin.Y)) {
				continue
			}

			sites = append(sites, spanSite(fset, m.FaultOperatorSwap, bin.OpPos,
				start, start+len(original), original, alt.String()))
		}

		return true
	})

	return sites
}

// isArithmeticOp checks if a token is an arithmetic operator.
func isArithmeticOp(op token.Token) bool {
	return op == token.ADD || op == token.SUB || op == token.MUL || op == token.QUO || op == token.REM
}

// arithmeticAlternatives returns all alternative operators for a swap.
func arithmeticAlternatives(original token.Token) []token.Token {
	allOps := []token.Token{token.ADD, token.SUB, token.MUL, token.QUO, token.REM}

	var alternatives []token.Token

	for _, op := range allOps {
		if op != original {
			alternatives = append(alternatives, op)
		}
	}

	return alternatives
}

func isStringLiteral(expr ast.Expr) bool {
	lit, ok := expr.(*ast.BasicLit)
	return ok && lit.Kind == token.STRING
}

func isFloatLiteral(expr ast.Expr) bool {
	lit, ok := expr.(*ast.BasicLit)
	return ok && lit.Kind == token.FLOAT
}
