package adapter

import (
	"context"

	m "drq.dev/pkg/drq/internal/model"
)

// TestGenerator produces a candidate test-suite source for one generation.
// The engine treats generation as an external collaborator: implementations
// shell out to LLM-backed tooling or replay pre-built suites, and the engine
// only consumes the returned source text.
type TestGenerator interface {
	Generate(ctx context.Context, req GenerationRequest) ([]byte, error)
}

// GenerationRequest carries everything the generator needs to produce a
// candidate suite for one generation.
type GenerationRequest struct {
	Spec       m.TargetSpec
	Target     m.TargetSource
	Generation int

	// Feedback is nil for the first generation.
	Feedback *Feedback
}

// Feedback summarizes the previous evaluated generation so the generator can
// improve on it rather than start over.
type Feedback struct {
	Score          m.FitnessScore
	FailingTests   []string
	SurvivingDiffs []string
	Notes          []string
}
