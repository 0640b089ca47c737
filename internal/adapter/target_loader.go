package adapter

import (
	"fmt"
	"go/ast"
	"go/token"
	"path/filepath"
	"strings"

	m "drq.dev/pkg/drq/internal/model"
)

// TargetLoader resolves a Go source file into the target the engine evolves
// a suite for.
type TargetLoader interface {
	// LoadTarget reads and parses the file at path and binds the run to the
	// named function. An empty name picks the single exported function of
	// the file; anything else is ambiguous and rejected.
	LoadTarget(path m.Path, function string) (m.TargetSource, error)
}

// LocalTargetLoader loads targets from the local filesystem.
type LocalTargetLoader struct {
	fs      SourceFSAdapter
	goFiles GoFileAdapter
}

// NewLocalTargetLoader constructs a LocalTargetLoader.
func NewLocalTargetLoader(fs SourceFSAdapter, goFiles GoFileAdapter) *LocalTargetLoader {
	return &LocalTargetLoader{fs: fs, goFiles: goFiles}
}

// LoadTarget reads, hashes and parses the target file and resolves the
// function under test.
func (l *LocalTargetLoader) LoadTarget(path m.Path, function string) (m.TargetSource, error) {
	code, err := l.fs.ReadFile(path)
	if err != nil {
		return m.TargetSource{}, fmt.Errorf("failed to read target %s: %w", path, err)
	}

	hash, err := l.fs.HashFile(path)
	if err != nil {
		return m.TargetSource{}, fmt.Errorf("failed to hash target %s: %w", path, err)
	}

	file, err := l.goFiles.Parse(token.NewFileSet(), filepath.Base(string(path)), code)
	if err != nil {
		return m.TargetSource{}, fmt.Errorf("target %s does not parse: %w", path, err)
	}

	function, err = l.resolveFunction(path, file, function)
	if err != nil {
		return m.TargetSource{}, err
	}

	return m.TargetSource{
		Path:     path,
		Code:     code,
		Hash:     hash,
		Package:  l.goFiles.PackageName(file),
		Function: function,
	}, nil
}

// resolveFunction checks an explicit function name against the file, or
// infers one when the file declares exactly one exported function.
func (l *LocalTargetLoader) resolveFunction(path m.Path, file *ast.File, function string) (string, error) {
	declared := l.goFiles.Functions(file)

	if function != "" {
		for _, name := range declared {
			if name == function {
				return function, nil
			}
		}

		return "", fmt.Errorf("function %s not found in %s", function, path)
	}

	var exported []string

	for _, name := range declared {
		if token.IsExported(name) {
			exported = append(exported, name)
		}
	}

	switch len(exported) {
	case 0:
		return "", fmt.Errorf("target %s declares no exported function, name one explicitly", path)
	case 1:
		return exported[0], nil
	default:
		return "", fmt.Errorf("target %s declares %d exported functions (%s), name one explicitly",
			path, len(exported), strings.Join(exported, ", "))
	}
}
