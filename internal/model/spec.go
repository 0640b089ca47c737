package model

// TargetSpec is the already-structured description of what the evolved
// suite must verify. The engine consumes this struct as-is; decoding a
// spec file into it is the caller's concern.
type TargetSpec struct {
	Name        string `json:"name" yaml:"name"`
	Function    string `json:"function" yaml:"function"`
	Description string `json:"description,omitempty" yaml:"description"`
	// MinCoverage is the coverage fraction the suite should reach. It is
	// fed back to the generator when a candidate falls short; it does not
	// change the scoring formula.
	MinCoverage float64  `json:"min_coverage,omitempty" yaml:"min_coverage"`
	Categories  []string `json:"categories,omitempty" yaml:"categories"`
	// Weights optionally overrides the configured fitness weights.
	Weights *FitnessWeights `json:"weights,omitempty" yaml:"weights"`
	// Budget optionally overrides the configured generation budget.
	Budget int `json:"budget,omitempty" yaml:"budget"`
}
