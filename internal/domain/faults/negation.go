package faults

import (
	"go/ast"
	"go/token"

	m "drq.dev/pkg/drq/internal/model"
)

// collectNegations wraps branch conditions in a logical not. If statement
// conditions and for loop conditions both qualify; range clauses and
// condition-free loops have nothing to invert.
func collectNegations(fset *token.FileSet, file *ast.File, content []byte) []Site {
	var sites []Site

	ast.Inspect(file, func(n ast.Node) bool {
		switch stmt := n.(type) {
		case *ast.IfStmt:
			if site, ok := negateCondition(fset, stmt.Cond, content); ok {
				sites = append(sites, site)
			}
		case *ast.ForStmt:
			if stmt.Cond == nil {
				return true
			}

			if site, ok := negateCondition(fset, stmt.Cond, content); ok {
				sites = append(sites, site)
			}
		}

		return true
	})

	return sites
}

// negateCondition builds the site replacing cond with its inversion.
func negateCondition(fset *token.FileSet, cond ast.Expr, content []byte) (Site, bool) {
	start, ok := offsetForPos(fset, cond.Pos())
	if !ok {
		return Site{}, false
	}

	end, ok := offsetForPos(fset, cond.End())
	if !ok || start < 0 || end > len(content) || start >= end {
		return Site{}, false
	}

	original := string(content[start:end])

	return spanSite(fset, m.FaultNegation, cond.Pos(), start, end, original, "!("+original+")"), true
}
