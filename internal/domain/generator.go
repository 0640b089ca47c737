package domain

import (
	"fmt"

	"drq.dev/pkg/drq/internal/adapter"
	m "drq.dev/pkg/drq/internal/model"
)

// maxFeedbackDiffs caps how many surviving-mutant diffs are forwarded to the
// generator so feedback stays digestible.
const maxFeedbackDiffs = 3

// GenerationError marks a generation whose candidate could not be produced.
// The run recovers by skipping to the next generation until the consecutive
// failure limit is reached.
type GenerationError struct {
	Generation int
	Err        error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation %d: candidate generation failed: %v", e.Generation, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// feedbackFrom distills an evaluated generation into generator guidance.
// Generations that failed before evaluation yield no feedback.
func feedbackFrom(gen m.Generation, spec m.TargetSpec, mutants []m.Mutant) *adapter.Feedback {
	if !gen.Evaluated() {
		return nil
	}

	fb := &adapter.Feedback{Score: *gen.Score}

	for _, test := range gen.Eval.Correct.Tests {
		if test.Outcome == m.TestFailed {
			fb.FailingTests = append(fb.FailingTests, test.Name)
		}
	}

	for _, mutant := range mutants {
		if len(fb.SurvivingDiffs) == maxFeedbackDiffs {
			break
		}

		if !gen.Eval.Killed(mutant.ID) {
			fb.SurvivingDiffs = append(fb.SurvivingDiffs, mutant.Diff)
		}
	}

	if spec.MinCoverage > 0 && gen.Score.Coverage < spec.MinCoverage {
		fb.Notes = append(fb.Notes, fmt.Sprintf("coverage %.0f%% is below the specified minimum %.0f%%",
			gen.Score.Coverage*100, spec.MinCoverage*100))
	}

	if gen.Score.Disqualified {
		fb.Notes = append(fb.Notes, "the suite fails against the correct implementation; fix the failing assertions first")
	}

	return fb
}
