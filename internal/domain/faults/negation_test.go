package faults

import (
	"go/parser"
	"go/token"
	"testing"

	m "drq.dev/pkg/drq/internal/model"
)

func TestCollectNegations(t *testing.T) {
	t.Run("inverts if and for conditions", func(t *testing.T) {
		src := "package sample\n\nfunc grow(n int) int {\n\tif n > 0 {\n\t\tfor n < 100 {\n\t\t\tn *= 2\n\t\t}\n\t}\n\n\treturn n\n}\n"
		fset, file := parseSource(t, src)

		sites := collectNegations(fset, file, []byte(src))

		if len(sites) != 2 {
			t.Fatalf("expected 2 sites, got %d", len(sites))
		}

		expected := map[string]string{
			"n > 0":   "!(n > 0)",
			"n < 100": "!(n < 100)",
		}

		for _, site := range sites {
			if site.Kind != m.FaultNegation {
				t.Errorf("expected negation kind, got %s", site.Kind)
			}

			mutated, ok := expected[site.Original]
			if !ok {
				t.Errorf("unexpected condition %q", site.Original)
				continue
			}

			if site.Mutated != mutated {
				t.Errorf("expected %q, got %q", mutated, site.Mutated)
			}
		}
	})

	t.Run("covers each branch of an else-if chain", func(t *testing.T) {
		src := "package sample\n\nfunc sign(n int) int {\n\tif n > 0 {\n\t\treturn 1\n\t} else if n < 0 {\n\t\treturn -1\n\t}\n\n\treturn 0\n}\n"
		fset, file := parseSource(t, src)

		sites := collectNegations(fset, file, []byte(src))

		if len(sites) != 2 {
			t.Fatalf("expected 2 sites, got %d", len(sites))
		}
	})

	t.Run("ignores condition-free loops", func(t *testing.T) {
		src := "package sample\n\nfunc wait(ch chan int) int {\n\tfor {\n\t\treturn <-ch\n\t}\n}\n"
		fset, file := parseSource(t, src)

		if sites := collectNegations(fset, file, []byte(src)); len(sites) != 0 {
			t.Errorf("expected no sites, got %d", len(sites))
		}
	})

	t.Run("applied inversion still parses", func(t *testing.T) {
		src := "package sample\n\nfunc check(a, b bool) bool {\n\tif a && !b {\n\t\treturn true\n\t}\n\n\treturn false\n}\n"
		fset, file := parseSource(t, src)

		sites := collectNegations(fset, file, []byte(src))

		if len(sites) != 1 {
			t.Fatalf("expected 1 site, got %d", len(sites))
		}

		mutated := sites[0].Apply([]byte(src))

		if _, err := parser.ParseFile(token.NewFileSet(), "mutated.go", mutated, 0); err != nil {
			t.Errorf("inverted condition does not parse: %v", err)
		}
	})
}
