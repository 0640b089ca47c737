package model

// Generation is one generate-evaluate-score iteration within a Run.
// Indexes are 1-based. A generation whose candidate could not be produced
// or parsed carries only Err; it has no evaluation and no score.
type Generation struct {
	Index int `json:"index"`
	// SuiteCode is persisted as its own file by the history layer and is
	// excluded from JSON exports to keep them readable.
	SuiteCode string            `json:"-"`
	Eval      *EvaluationResult `json:"evaluation,omitempty"`
	Score     *FitnessScore     `json:"score,omitempty"`
	Accepted  bool              `json:"accepted"`
	Err       string            `json:"error,omitempty"`
}

// Evaluated reports whether this generation produced a scored candidate.
func (g Generation) Evaluated() bool {
	return g.Err == "" && g.Eval != nil && g.Score != nil
}
