package faults

import (
	"go/ast"
	"go/token"
	"math"
	"strconv"

	m "drq.dev/pkg/drq/internal/model"
)

// collectOffByOne increments integer literals by one. Literals that do not
// parse as signed 64-bit integers (or would overflow) are skipped.
func collectOffByOne(fset *token.FileSet, file *ast.File) []Site {
	var sites []Site

	ast.Inspect(file, func(n ast.Node) bool {
		lit, ok := n.(*ast.BasicLit)
		if !ok || lit.Kind != token.INT {
			return true
		}

		value, err := strconv.ParseInt(lit.Value, 0, 64)
		if err != nil || value == math.MaxInt64 {
			return true
		}

		start, ok := offsetForPos(fset, lit.Pos())
		if !ok {
			return true
		}

		sites = append(sites, spanSite(fset, m.FaultOffByOne, lit.Pos(),
			start, start+len(lit.Value), lit.Value, strconv.FormatInt(value+1, 10)))

		return true
	})

	return sites
}
