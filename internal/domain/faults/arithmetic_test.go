package faults

import (
	"go/token"
	"testing"

	m "drq.dev/pkg/drq/internal/model"
)

func TestCollectOperatorSwaps(t *testing.T) {
	t.Run("proposes every alternative for an addition", func(t *testing.T) {
		src := "package sample\n\nfunc sum(a, b int) int {\n\treturn a + b\n}\n"
		fset, file := parseSource(t, src)

		sites := collectOperatorSwaps(fset, file, []byte(src))

		if len(sites) != 4 {
			t.Fatalf("expected 4 sites, got %d", len(sites))
		}

		expected := map[string]bool{"-": false, "*": false, "/": false, "%": false}

		for _, site := range sites {
			if site.Kind != m.FaultOperatorSwap {
				t.Errorf("expected operator-swap kind, got %s", site.Kind)
			}

			if site.Original != "+" {
				t.Errorf("expected original +, got %s", site.Original)
			}

			if _, ok := expected[site.Mutated]; ok {
				expected[site.Mutated] = true
			}
		}

		for op, found := range expected {
			if !found {
				t.Errorf("expected a swap to %s, but not found", op)
			}
		}
	})

	t.Run("skips string concatenation", func(t *testing.T) {
		src := "package sample\n\nfunc greet(name string) string {\n\treturn \"hello \" + name\n}\n"
		fset, file := parseSource(t, src)

		sites := collectOperatorSwaps(fset, file, []byte(src))

		if len(sites) != 0 {
			t.Errorf("expected no sites for string concatenation, got %d", len(sites))
		}
	})

	t.Run("skips the modulo alternative for float operands", func(t *testing.T) {
		src := "package sample\n\nfunc half(x float64) float64 {\n\treturn x / 2.0\n}\n"
		fset, file := parseSource(t, src)

		sites := collectOperatorSwaps(fset, file, []byte(src))

		if len(sites) != 3 {
			t.Fatalf("expected 3 sites, got %d", len(sites))
		}

		for _, site := range sites {
			if site.Mutated == "%" {
				t.Error("modulo proposed for float operand, which cannot compile")
			}
		}
	})
}

func TestIsArithmeticOp(t *testing.T) {
	tests := []struct {
		op       token.Token
		expected bool
	}{
		{token.ADD, true},
		{token.SUB, true},
		{token.MUL, true},
		{token.QUO, true},
		{token.REM, true},
		{token.EQL, false},
		{token.LSS, false},
		{token.LAND, false},
	}

	for _, tt := range tests {
		t.Run(tt.op.String(), func(t *testing.T) {
			if got := isArithmeticOp(tt.op); got != tt.expected {
				t.Errorf("isArithmeticOp(%s) = %v, expected %v", tt.op, got, tt.expected)
			}
		})
	}
}

func TestArithmeticAlternatives(t *testing.T) {
	tests := []struct {
		original token.Token
		expected []token.Token
	}{
		{token.ADD, []token.Token{token.SUB, token.MUL, token.QUO, token.REM}},
		{token.SUB, []token.Token{token.ADD, token.MUL, token.QUO, token.REM}},
		{token.REM, []token.Token{token.ADD, token.SUB, token.MUL, token.QUO}},
	}

	for _, tt := range tests {
		t.Run(tt.original.String(), func(t *testing.T) {
			result := arithmeticAlternatives(tt.original)

			if len(result) != len(tt.expected) {
				t.Fatalf("expected %d alternatives, got %d", len(tt.expected), len(result))
			}

			expectedOps := make(map[token.Token]bool)
			for _, op := range tt.expected {
				expectedOps[op] = true
			}

			for _, op := range result {
				if !expectedOps[op] {
					t.Errorf("unexpected alternative: %s", op)
				}
			}
		})
	}
}
