package model

// FitnessWeights sets the relative weight of each fitness term. The scorer
// normalizes by the sum of the weights that are in play, so callers may use
// any positive scale.
type FitnessWeights struct {
	Pass     float64 `json:"pass" yaml:"pass"`
	Coverage float64 `json:"coverage" yaml:"coverage"`
	Kill     float64 `json:"kill" yaml:"kill"`
}

// DefaultFitnessWeights favors correctness on the real implementation,
// then coverage, then bug detection.
func DefaultFitnessWeights() FitnessWeights {
	return FitnessWeights{Pass: 0.5, Coverage: 0.3, Kill: 0.2}
}

// IsZero reports whether no weight is set.
func (w FitnessWeights) IsZero() bool {
	return w.Pass == 0 && w.Coverage == 0 && w.Kill == 0
}

// FitnessScore is the comparable quality of one generation's suite,
// deterministic for a given EvaluationResult and weight set.
type FitnessScore struct {
	Total    float64 `json:"total"`
	PassRate float64 `json:"pass_rate"`
	Coverage float64 `json:"coverage"`
	KillRate float64 `json:"kill_rate"`
	// KillRateValid is false when the Run's mutant population is empty;
	// the kill term is then excluded from Total rather than zeroed.
	KillRateValid bool `json:"kill_rate_valid"`
	// Disqualified marks a suite whose false positives exceeded the
	// configured tolerance. A disqualified suite never becomes the best.
	Disqualified bool           `json:"disqualified"`
	Weights      FitnessWeights `json:"weights"`
}
