package adapter

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
)

// GoFileAdapter encapsulates Go-specific parsing and function lookup so the
// domain layer can focus on evolution rules while delegating language details
// to an infrastructure component.
type GoFileAdapter interface {
	// Parse builds an AST using the provided file set and source bytes.
	Parse(fileSet *token.FileSet, filename string, src []byte) (*ast.File, error)

	// PackageName returns the package clause of a parsed file.
	PackageName(file *ast.File) string

	// Functions lists the plain top-level functions declared in a file,
	// excluding methods and init.
	Functions(file *ast.File) []string

	// FunctionSpan returns the byte range of the named function's body.
	FunctionSpan(fileSet *token.FileSet, file *ast.File, name string) (start, end int, err error)
}

// LocalGoFileAdapter provides a concrete GoFileAdapter backed by go/parser.
type LocalGoFileAdapter struct{}

// NewLocalGoFileAdapter constructs a LocalGoFileAdapter.
func NewLocalGoFileAdapter() *LocalGoFileAdapter {
	return &LocalGoFileAdapter{}
}

// Parse builds an AST for the provided filename/source pair.
func (a *LocalGoFileAdapter) Parse(fileSet *token.FileSet, filename string, src []byte) (*ast.File, error) {
	return parser.ParseFile(fileSet, filename, src, parser.ParseComments)
}

// PackageName returns the package clause of a parsed file.
func (a *LocalGoFileAdapter) PackageName(file *ast.File) string {
	if file.Name == nil {
		return ""
	}

	return file.Name.Name
}

// Functions lists the plain top-level functions declared in a file.
func (a *LocalGoFileAdapter) Functions(file *ast.File) []string {
	var names []string

	for _, decl := range file.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok || fn.Recv != nil || fn.Name.Name == "init" {
			continue
		}

		names = append(names, fn.Name.Name)
	}

	return names
}

// FunctionSpan returns the byte range of the named function's body so fault
// sites can be restricted to the code under test.
func (a *LocalGoFileAdapter) FunctionSpan(fileSet *token.FileSet, file *ast.File, name string) (int, int, error) {
	for _, decl := range file.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok || fn.Recv != nil || fn.Name.Name != name {
			continue
		}

		if fn.Body == nil {
			return 0, 0, fmt.Errorf("function %s has no body", name)
		}

		tokenFile := fileSet.File(fn.Body.Lbrace)
		if tokenFile == nil {
			return 0, 0, fmt.Errorf("no position information for function %s", name)
		}

		return tokenFile.Offset(fn.Body.Lbrace), tokenFile.Offset(fn.Body.Rbrace) + 1, nil
	}

	return 0, 0, fmt.Errorf("function %s not found", name)
}
