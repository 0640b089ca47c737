package model

import "time"

// RunStatus is the lifecycle state of a Run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// TerminationReason records why a Run stopped.
type TerminationReason string

const (
	// TerminationTargetReached means the best score met the target fitness
	// before the budget ran out.
	TerminationTargetReached TerminationReason = "target_fitness_reached"
	// TerminationBudgetExhausted means every budgeted generation ran.
	TerminationBudgetExhausted TerminationReason = "budget_exhausted"
	// TerminationGeneratorFailure means the consecutive generation-failure
	// limit was exceeded.
	TerminationGeneratorFailure TerminationReason = "generator_failure"
	// TerminationCancelled means the run context was cancelled.
	TerminationCancelled TerminationReason = "cancelled"
)

// Run is one evolution session over a single target. It owns an ordered
// sequence of Generations and the mutant population fixed at
// initialization. Once a Run reaches a terminal status it is never
// modified again.
type Run struct {
	ID         string `json:"id"`
	TargetPath Path   `json:"target_path"`
	TargetHash string `json:"target_hash"`
	SpecName   string `json:"spec_name,omitempty"`
	Budget     int    `json:"budget"`
	// Seed is the effective mutant-selection seed. It is recorded even when
	// derived from the run ID so a run can be reproduced exactly.
	Seed        int64             `json:"seed"`
	StartedAt   time.Time         `json:"started_at"`
	EndedAt     time.Time         `json:"ended_at"`
	Status      RunStatus         `json:"status"`
	Termination TerminationReason `json:"termination,omitempty"`
	// Cause holds the error detail that escalated a Run to failed.
	Cause   string   `json:"cause,omitempty"`
	Mutants []Mutant `json:"mutants"`
	// Generations are persisted separately by the history layer.
	Generations []Generation `json:"-"`
	// BestIndex is the 1-based index of the best accepted generation,
	// or 0 while no suite has been accepted.
	BestIndex int `json:"best_index"`
}

// Best returns the best accepted generation, if any.
func (r *Run) Best() (Generation, bool) {
	if r.BestIndex <= 0 {
		return Generation{}, false
	}

	for _, gen := range r.Generations {
		if gen.Index == r.BestIndex {
			return gen, true
		}
	}

	return Generation{}, false
}

// BestScore returns the best accepted score, if any.
func (r *Run) BestScore() (FitnessScore, bool) {
	best, ok := r.Best()
	if !ok || best.Score == nil {
		return FitnessScore{}, false
	}

	return *best.Score, true
}
