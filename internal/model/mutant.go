// Package model defines the data structures for test-suite evolution.
package model

import "fmt"

// FaultKind is the category of a single-site fault transform.
type FaultKind string

const (
	// FaultOperatorSwap replaces an arithmetic operator (+, -, *, /, %).
	FaultOperatorSwap FaultKind = "operator-swap"
	// FaultComparisonSwap mirrors a comparison operator (e.g. < becomes >).
	FaultComparisonSwap FaultKind = "comparison-swap"
	// FaultBoundaryShift relaxes or tightens a comparison boundary (< vs <=).
	FaultBoundaryShift FaultKind = "boundary-shift"
	// FaultOffByOne increments an integer literal.
	FaultOffByOne FaultKind = "off-by-one"
	// FaultNegation inverts a branch or loop condition.
	FaultNegation FaultKind = "negation"
)

// AllFaultKinds returns every supported fault kind in a stable order.
func AllFaultKinds() []FaultKind {
	return []FaultKind{
		FaultOperatorSwap,
		FaultComparisonSwap,
		FaultBoundaryShift,
		FaultOffByOne,
		FaultNegation,
	}
}

// ParseFaultKind converts a config string into a FaultKind.
func ParseFaultKind(s string) (FaultKind, error) {
	for _, kind := range AllFaultKinds() {
		if string(kind) == s {
			return kind, nil
		}
	}

	return "", fmt.Errorf("unknown fault kind %q", s)
}

// FaultSite pinpoints the single construct a mutant altered.
type FaultSite struct {
	Line     int    `json:"line"`
	Column   int    `json:"column"`
	Original string `json:"original"`
	Mutated  string `json:"mutated"`
}

// Mutant is one deliberately faulty variant of the target source. The set
// of mutants is fixed when a Run initializes and is shared read-only by
// every generation of that Run.
type Mutant struct {
	ID   string    `json:"id"`
	Kind FaultKind `json:"kind"`
	Site FaultSite `json:"site"`
	Code []byte    `json:"-"`
	Diff string    `json:"diff,omitempty"`
}
