package model

import "time"

// Outcome classifies one sandbox evaluation of a suite against a variant.
type Outcome string

const (
	// OutcomePass means every test in the suite passed.
	OutcomePass Outcome = "pass"
	// OutcomeFail means at least one assertion did not hold.
	OutcomeFail Outcome = "fail"
	// OutcomeError means the harness itself could not complete (build
	// failure, crash outside a test).
	OutcomeError Outcome = "error"
	// OutcomeTimeout means the evaluation exceeded its wall-clock bound.
	// It is never folded into OutcomeFail.
	OutcomeTimeout Outcome = "timeout"
)

// TestOutcome is the status of a single test function within a suite run.
type TestOutcome string

const (
	TestPassed  TestOutcome = "pass"
	TestFailed  TestOutcome = "fail"
	TestSkipped TestOutcome = "skip"
)

// TestCaseResult records one test function's status for one variant run.
type TestCaseResult struct {
	Name    string        `json:"name"`
	Outcome TestOutcome   `json:"outcome"`
	Elapsed time.Duration `json:"elapsed,omitempty"`
}

// CorrectVariantID keys the correct-implementation run inside an
// EvaluationResult; mutant runs are keyed by their mutant ID.
const CorrectVariantID = "correct"

// VariantResult is the raw outcome of running one suite against exactly one
// target variant in the sandbox.
type VariantResult struct {
	VariantID string           `json:"variant_id"`
	Outcome   Outcome          `json:"outcome"`
	Tests     []TestCaseResult `json:"tests,omitempty"`
	Coverage  float64          `json:"coverage"`
	Elapsed   time.Duration    `json:"elapsed"`
	Output    string           `json:"output,omitempty"`
}

// EvaluationResult aggregates one generation's sandbox runs, keyed by
// variant identity rather than completion order.
type EvaluationResult struct {
	Correct VariantResult            `json:"correct"`
	Mutants map[string]VariantResult `json:"mutants,omitempty"`
}

// TestCount reports how many test functions ran against the correct
// implementation.
func (r EvaluationResult) TestCount() int {
	return len(r.Correct.Tests)
}

// PassedOnCorrect counts tests that passed against the correct
// implementation.
func (r EvaluationResult) PassedOnCorrect() int {
	passed := 0

	for _, tc := range r.Correct.Tests {
		if tc.Outcome == TestPassed {
			passed++
		}
	}

	return passed
}

// FalsePositives counts tests that failed against the correct
// implementation. A suite with false positives flags bugs that do not
// exist, which makes it unusable regardless of its kill rate.
func (r EvaluationResult) FalsePositives() int {
	failed := 0

	for _, tc := range r.Correct.Tests {
		if tc.Outcome == TestFailed {
			failed++
		}
	}

	return failed
}

// CorrectUsable reports whether the correct-implementation run completed as
// a normal test run. Timeouts and harness errors against the correct
// implementation leave no trustworthy signal.
func (r EvaluationResult) CorrectUsable() bool {
	return r.Correct.Outcome == OutcomePass || r.Correct.Outcome == OutcomeFail
}

// Killed reports whether the named mutant was detected: the suite must
// behave on the correct implementation and observably reject the mutant
// (failing tests or a timeout such as an induced infinite loop). Harness
// errors against a mutant are recorded but never counted as kills.
func (r EvaluationResult) Killed(mutantID string) bool {
	if !r.CorrectUsable() {
		return false
	}

	mr, ok := r.Mutants[mutantID]
	if !ok {
		return false
	}

	return mr.Outcome == OutcomeFail || mr.Outcome == OutcomeTimeout
}

// KilledCount counts mutants this evaluation killed.
func (r EvaluationResult) KilledCount() int {
	killed := 0

	for id := range r.Mutants {
		if r.Killed(id) {
			killed++
		}
	}

	return killed
}
