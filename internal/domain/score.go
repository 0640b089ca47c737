package domain

import (
	m "drq.dev/pkg/drq/internal/model"
)

// Score combines an evaluation into one comparable fitness value.
//
// Each term is weighted and the sum is normalized by the active weights, so
// totals stay on [0, 1] even when the kill term is excluded. The kill term
// is active only when the run has a mutant population: a trivial target
// with no mutants must not be scored as if every mutant survived.
//
// A suite whose false positives exceed tolerance, or whose harness run
// against the correct implementation did not complete, is disqualified and
// hard-zeroed. Identical inputs always produce identical scores.
func Score(eval m.EvaluationResult, weights m.FitnessWeights, tolerance int) m.FitnessScore {
	if weights.IsZero() {
		weights = m.DefaultFitnessWeights()
	}

	score := m.FitnessScore{
		Weights:  weights,
		Coverage: eval.Correct.Coverage,
	}

	if total := eval.TestCount(); total > 0 {
		score.PassRate = float64(eval.PassedOnCorrect()) / float64(total)
	}

	if population := len(eval.Mutants); population > 0 {
		score.KillRateValid = true
		score.KillRate = float64(eval.KilledCount()) / float64(population)
	}

	activeWeight := weights.Pass + weights.Coverage
	weighted := weights.Pass*score.PassRate + weights.Coverage*score.Coverage

	if score.KillRateValid {
		activeWeight += weights.Kill
		weighted += weights.Kill * score.KillRate
	}

	if activeWeight > 0 {
		score.Total = weighted / activeWeight
	}

	if eval.FalsePositives() > tolerance || !eval.CorrectUsable() {
		score.Total = 0
		score.Disqualified = true
	}

	return score
}

// Better reports whether candidate should replace incumbent as the run's
// best suite. A nil incumbent means no suite has been accepted yet. Equal
// totals prefer the candidate: later generations refine earlier ones.
func Better(candidate m.FitnessScore, incumbent *m.FitnessScore) bool {
	if candidate.Disqualified {
		return false
	}

	if incumbent == nil {
		return true
	}

	return candidate.Total >= incumbent.Total
}
