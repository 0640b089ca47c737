package faults

import (
	"go/ast"
	"go/parser"
	"go/token"
	"strings"
	"testing"

	m "drq.dev/pkg/drq/internal/model"
)

const classifySource = `package sample

func classify(n int) string {
	if n > 10 {
		return "big"
	}

	return "small"
}

func double(n int) int {
	return n * 2
}
`

func parseSource(t *testing.T, src string) (*token.FileSet, *ast.File) {
	t.Helper()

	fset := token.NewFileSet()

	file, err := parser.ParseFile(fset, "sample.go", src, parser.ParseComments)
	if err != nil {
		t.Fatalf("failed to parse fixture: %v", err)
	}

	return fset, file
}

// funcBodyRange returns the byte offsets of the named function's body.
func funcBodyRange(t *testing.T, fset *token.FileSet, file *ast.File, name string) (int, int) {
	t.Helper()

	for _, decl := range file.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok || fn.Name.Name != name || fn.Body == nil {
			continue
		}

		lo, ok1 := offsetForPos(fset, fn.Body.Lbrace)
		hi, ok2 := offsetForPos(fset, fn.Body.Rbrace)

		if !ok1 || !ok2 {
			t.Fatalf("no offsets for function %s", name)
		}

		return lo, hi + 1
	}

	t.Fatalf("function %s not found in fixture", name)

	return 0, 0
}

func TestCollect(t *testing.T) {
	t.Run("returns only requested kinds", func(t *testing.T) {
		fset, file := parseSource(t, classifySource)

		sites := Collect(fset, file, []byte(classifySource), []m.FaultKind{m.FaultNegation}, 0, len(classifySource))

		if len(sites) != 1 {
			t.Fatalf("expected 1 negation site, got %d", len(sites))
		}

		if sites[0].Kind != m.FaultNegation {
			t.Errorf("expected negation kind, got %s", sites[0].Kind)
		}
	})

	t.Run("restricts sites to the byte range", func(t *testing.T) {
		fset, file := parseSource(t, classifySource)

		lo, hi := funcBodyRange(t, fset, file, "double")

		sites := Collect(fset, file, []byte(classifySource), m.AllFaultKinds(), lo, hi)

		if len(sites) == 0 {
			t.Fatal("expected sites inside double, got none")
		}

		for _, site := range sites {
			if site.Start < lo || site.Start >= hi {
				t.Errorf("site at offset %d escapes range [%d, %d)", site.Start, lo, hi)
			}

			if site.Kind == m.FaultNegation {
				t.Errorf("negation site found in double, which has no branch")
			}
		}
	})

	t.Run("returns nothing for a file without candidate constructs", func(t *testing.T) {
		src := "package sample\n\nvar name = \"drq\"\n"
		fset, file := parseSource(t, src)

		sites := Collect(fset, file, []byte(src), m.AllFaultKinds(), 0, len(src))

		if len(sites) != 0 {
			t.Errorf("expected no sites, got %d", len(sites))
		}
	})
}

func TestSiteApply(t *testing.T) {
	t.Run("mutated content still parses", func(t *testing.T) {
		fset, file := parseSource(t, classifySource)

		sites := Collect(fset, file, []byte(classifySource), m.AllFaultKinds(), 0, len(classifySource))

		if len(sites) == 0 {
			t.Fatal("expected sites, got none")
		}

		for _, site := range sites {
			mutated := site.Apply([]byte(classifySource))
			if mutated == nil {
				t.Fatalf("apply returned nil for site %s at offset %d", site.Kind, site.Start)
			}

			if _, err := parser.ParseFile(token.NewFileSet(), "mutated.go", mutated, 0); err != nil {
				t.Errorf("mutated source from %s site does not parse: %v", site.Kind, err)
			}
		}
	})

	t.Run("rejects out of range offsets", func(t *testing.T) {
		site := Site{Start: 5, End: 100, Mutated: "x"}

		if got := site.Apply([]byte("short")); got != nil {
			t.Errorf("expected nil for out of range site, got %q", got)
		}
	})
}

func TestReplaceRange(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		start, end  int
		replacement string
		expected    string
	}{
		{"replaces middle", "a + b", 2, 3, "-", "a - b"},
		{"replaces with longer text", "a + b", 2, 3, "*10+", "a *10+ b"},
		{"inserts at start", "b", 0, 0, "a", "ab"},
		{"deletes range", "abc", 1, 2, "", "ac"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := replaceRange([]byte(tt.content), tt.start, tt.end, tt.replacement)
			if string(got) != tt.expected {
				t.Errorf("replaceRange = %q, expected %q", got, tt.expected)
			}
		})
	}

	t.Run("rejects invalid ranges", func(t *testing.T) {
		if got := replaceRange([]byte("abc"), -1, 2, "x"); got != nil {
			t.Errorf("expected nil for negative start, got %q", got)
		}

		if got := replaceRange([]byte("abc"), 0, 9, "x"); got != nil {
			t.Errorf("expected nil for end past content, got %q", got)
		}

		if got := replaceRange([]byte("abc"), 2, 1, "x"); got != nil {
			t.Errorf("expected nil for inverted range, got %q", got)
		}
	})
}

func TestDiff(t *testing.T) {
	original := []byte("package sample\n\nfunc f() int { return 1 }\n")
	mutated := []byte("package sample\n\nfunc f() int { return 2 }\n")

	diff := Diff(original, mutated)

	if !strings.Contains(diff, "--- original") || !strings.Contains(diff, "+++ mutated") {
		t.Errorf("diff missing file headers:\n%s", diff)
	}

	if !strings.Contains(diff, "-func f() int { return 1 }") {
		t.Errorf("diff missing removed line:\n%s", diff)
	}

	if !strings.Contains(diff, "+func f() int { return 2 }") {
		t.Errorf("diff missing added line:\n%s", diff)
	}
}
