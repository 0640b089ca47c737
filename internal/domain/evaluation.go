package domain

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"drq.dev/pkg/drq/internal/adapter"
	m "drq.dev/pkg/drq/internal/model"
)

// evaluator fans one candidate suite out across the correct implementation
// and every mutant of the run.
type evaluator struct {
	sandbox  adapter.SandboxRunner
	parallel int
	timeout  time.Duration
}

func newEvaluator(sandbox adapter.SandboxRunner, parallel int, timeout time.Duration) *evaluator {
	return &evaluator{
		sandbox:  sandbox,
		parallel: parallel,
		timeout:  timeout,
	}
}

// EvaluateSuite runs the suite once per variant, concurrently up to the
// configured limit. Results are keyed by variant identity, never by
// completion order. A sandbox failure for one variant degrades to an error
// outcome for that variant; only cancellation aborts the whole step.
func (e *evaluator) EvaluateSuite(ctx context.Context, target m.TargetSource, mutants []m.Mutant, suite []byte) (m.EvaluationResult, error) {
	result := m.EvaluationResult{
		Mutants: make(map[string]m.VariantResult, len(mutants)),
	}

	var mu sync.Mutex

	group, groupCtx := errgroup.WithContext(ctx)
	if e.parallel > 0 {
		group.SetLimit(e.parallel)
	}

	group.Go(func() error {
		variant, err := e.evaluateVariant(groupCtx, target, m.CorrectVariantID, target.Code, suite, true)
		if err != nil {
			return err
		}

		mu.Lock()
		result.Correct = variant
		mu.Unlock()

		return nil
	})

	for _, mutant := range mutants {
		mutant := mutant
		group.Go(func() error {
			variant, err := e.evaluateVariant(groupCtx, target, mutant.ID, mutant.Code, suite, false)
			if err != nil {
				return err
			}

			mu.Lock()
			result.Mutants[mutant.ID] = variant
			mu.Unlock()

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return m.EvaluationResult{}, err
	}

	return result, nil
}

// evaluateVariant wraps one sandbox call. Coverage is only collected for
// the correct implementation; mutant coverage feeds nothing.
func (e *evaluator) evaluateVariant(ctx context.Context, target m.TargetSource, variantID string, variantCode, suite []byte, withCoverage bool) (m.VariantResult, error) {
	variant, err := e.sandbox.Evaluate(ctx, adapter.EvalRequest{
		VariantID:    variantID,
		TargetSource: variantCode,
		SuiteSource:  suite,
		Package:      target.Package,
		Timeout:      e.timeout,
		WithCoverage: withCoverage,
	})

	switch {
	case err == nil:
		return variant, nil
	case ctx.Err() != nil:
		return m.VariantResult{}, ctx.Err()
	default:
		slog.Error("Sandbox evaluation failed", "variant", variantID, "error", err)

		return m.VariantResult{
			VariantID: variantID,
			Outcome:   m.OutcomeError,
			Output:    err.Error(),
		}, nil
	}
}
