// Package domain contains the test-suite evolution engine: the evolution
// loop, fault injection, sandbox evaluation fan-out and fitness scoring.
package domain

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"go/token"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"drq.dev/pkg/drq/internal/adapter"
	"drq.dev/pkg/drq/internal/controller"
	m "drq.dev/pkg/drq/internal/model"
)

// Default configuration values applied by Config.withDefaults.
const (
	DefaultGenerations            = 8
	DefaultMutantCount            = 5
	DefaultParallel               = 4
	DefaultTargetFitness          = 0.95
	DefaultMaxConsecutiveFailures = 3
)

// RunState is the engine's position in the evolution state machine. States
// are logged on every transition so a run can be traced from the outside.
type RunState string

// Engine states.
const (
	StateInitializing        RunState = "initializing"
	StateGeneratingCandidate RunState = "generating_candidate"
	StateEvaluating          RunState = "evaluating"
	StateScoring             RunState = "scoring"
	StateDecidingAcceptance  RunState = "deciding_acceptance"
	StateCompleted           RunState = "completed"
	StateFailed              RunState = "failed"
)

// Config tunes one evolution run. Zero values fall back to defaults, so the
// zero Config is usable.
type Config struct {
	// Generations is the generation budget per run.
	Generations int

	// MutantCount is the requested mutant population size.
	MutantCount int

	// FaultKinds restricts the fault transforms. Empty means all kinds.
	FaultKinds []m.FaultKind

	// Parallel bounds concurrent sandbox evaluations.
	Parallel int

	// EvaluationTimeout is the wall-clock bound per sandbox run.
	EvaluationTimeout time.Duration

	// TargetFitness ends the run early once an accepted score reaches it.
	// A target above 1 never triggers an early stop.
	TargetFitness float64

	// MaxConsecutiveFailures is how many generator failures in a row the
	// run absorbs before it fails.
	MaxConsecutiveFailures int

	// FalsePositiveTolerance is the number of tests allowed to fail
	// against the correct implementation before a suite is disqualified.
	FalsePositiveTolerance int

	// Seed fixes mutant selection. Zero derives a seed from the run ID.
	Seed int64

	// Weights sets the fitness term weights. Zero falls back to defaults.
	Weights m.FitnessWeights
}

func (c Config) withDefaults() Config {
	if c.Generations <= 0 {
		c.Generations = DefaultGenerations
	}

	if c.MutantCount <= 0 {
		c.MutantCount = DefaultMutantCount
	}

	if c.Parallel <= 0 {
		c.Parallel = DefaultParallel
	}

	if c.EvaluationTimeout <= 0 {
		c.EvaluationTimeout = adapter.DefaultEvalTimeout
	}

	if c.TargetFitness <= 0 {
		c.TargetFitness = DefaultTargetFitness
	}

	if c.MaxConsecutiveFailures <= 0 {
		c.MaxConsecutiveFailures = DefaultMaxConsecutiveFailures
	}

	if c.Weights.IsZero() {
		c.Weights = m.DefaultFitnessWeights()
	}

	return c
}

// Validate rejects configurations no run could honor.
func (c Config) Validate() error {
	if c.Weights.Pass < 0 || c.Weights.Coverage < 0 || c.Weights.Kill < 0 {
		return fmt.Errorf("fitness weights must not be negative")
	}

	if c.FalsePositiveTolerance < 0 {
		return fmt.Errorf("false positive tolerance must not be negative")
	}

	return nil
}

// EvolveArgs carries the per-run inputs of Evolve.
type EvolveArgs struct {
	Target    m.TargetSource
	Spec      m.TargetSpec
	Generator adapter.TestGenerator
}

// Engine drives the evolution loop from initialization to a terminal run.
type Engine interface {
	Evolve(ctx context.Context, args EvolveArgs) (*m.Run, error)
}

type engine struct {
	adapter.GoFileAdapter
	adapter.HistoryStore
	controller.UI
	FaultInjector
	*evaluator

	cfg Config
}

// NewEngine wires the evolution loop with its collaborators.
func NewEngine(
	goFiles adapter.GoFileAdapter,
	injector FaultInjector,
	sandbox adapter.SandboxRunner,
	history adapter.HistoryStore,
	ui controller.UI,
	cfg Config,
) Engine {
	cfg = cfg.withDefaults()

	return &engine{
		GoFileAdapter: goFiles,
		HistoryStore:  history,
		UI:            ui,
		FaultInjector: injector,
		evaluator:     newEvaluator(sandbox, cfg.Parallel, cfg.EvaluationTimeout),
		cfg:           cfg,
	}
}

// Evolve runs the full evolution loop for one target and returns the
// terminal run record. An error before the run record exists (unusable
// target, invalid configuration) returns nil; after that the run is always
// persisted and returned, with a non-nil error when it failed.
func (e *engine) Evolve(ctx context.Context, args EvolveArgs) (*m.Run, error) {
	if args.Generator == nil {
		return nil, fmt.Errorf("missing test generator")
	}

	if err := e.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	budget := e.cfg.Generations
	if args.Spec.Budget > 0 {
		budget = args.Spec.Budget
	}

	weights := e.cfg.Weights
	if args.Spec.Weights != nil && !args.Spec.Weights.IsZero() {
		weights = *args.Spec.Weights
	}

	slog.Debug("State transition", "state", StateInitializing, "target", args.Target.Path, "function", args.Target.Function)

	runID := uuid.NewString()

	seed := e.cfg.Seed
	if seed == 0 {
		seed = deriveSeed(runID)
	}

	mutants, err := e.Generate(ctx, args.Target, FaultOptions{
		Count: e.cfg.MutantCount,
		Kinds: e.cfg.FaultKinds,
		Seed:  seed,
	})
	if err != nil {
		// Nothing has been persisted yet: an unusable target fails the
		// run before it exists.
		return nil, fmt.Errorf("failed to initialize run: %w", err)
	}

	if len(mutants) == 0 {
		slog.Warn("No viable mutants for target, kill term excluded from scoring", "target", args.Target.Path)
	}

	run := &m.Run{
		ID:         runID,
		TargetPath: args.Target.Path,
		TargetHash: args.Target.Hash,
		SpecName:   args.Spec.Name,
		Budget:     budget,
		Seed:       seed,
		StartedAt:  time.Now().UTC(),
		Status:     m.RunRunning,
		Mutants:    mutants,
	}

	if err := e.BeginRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to persist run: %w", err)
	}

	if err := e.Start(ctx, controller.WithRunMode(budget)); err != nil {
		slog.Error("Failed to start UI", "error", err)
		return nil, err
	}

	e.DisplayRunStarted(ctx, run, args.Target)
	e.DisplayMutantSummary(ctx, run.Mutants)

	runErr := e.runGenerations(ctx, run, args, weights)

	slog.Debug("State transition", "state", terminalState(run), "run", run.ID, "termination", run.Termination)

	e.finalize(ctx, run)

	e.DisplayRunSummary(ctx, run)
	e.Wait(ctx)
	e.Close(ctx)

	return run, runErr
}

// runGenerations iterates the generate-evaluate-score-accept cycle until
// the budget runs out, the target fitness is reached, the generator fails
// too often in a row, or the context is cancelled. It sets the terminal
// status on the run and returns the error that stopped it, if any.
func (e *engine) runGenerations(ctx context.Context, run *m.Run, args EvolveArgs, weights m.FitnessWeights) error {
	consecutiveFailures := 0

	// The zero Generation reports Evaluated() == false, so the first
	// request carries no feedback.
	var lastEvaluated m.Generation

	for index := 1; index <= run.Budget; index++ {
		e.DisplayGenerationStarted(ctx, index, run.Budget)
		slog.Debug("State transition", "state", StateGeneratingCandidate, "run", run.ID, "generation", index)

		req := adapter.GenerationRequest{
			Spec:       args.Spec,
			Target:     args.Target,
			Generation: index,
			Feedback:   feedbackFrom(lastEvaluated, args.Spec, run.Mutants),
		}

		code, genErr := e.generateCandidate(ctx, args.Generator, req)

		if ctx.Err() != nil {
			return e.cancelRun(ctx, run)
		}

		if genErr != nil {
			consecutiveFailures++

			gen := m.Generation{Index: index, Err: genErr.Error()}
			e.recordGeneration(ctx, run, gen)
			e.DisplayGenerationResult(ctx, gen)

			slog.Error("Candidate generation failed", "run", run.ID, "generation", index, "consecutive", consecutiveFailures, "error", genErr)

			if consecutiveFailures > e.cfg.MaxConsecutiveFailures {
				run.Status = m.RunFailed
				run.Termination = m.TerminationGeneratorFailure
				run.Cause = genErr.Error()

				return fmt.Errorf("generator failed %d times in a row: %w", consecutiveFailures, genErr)
			}

			continue
		}

		consecutiveFailures = 0

		slog.Debug("State transition", "state", StateEvaluating, "run", run.ID, "generation", index)

		result, err := e.EvaluateSuite(ctx, args.Target, run.Mutants, code)
		if err != nil {
			// EvaluateSuite fails only when the run context is cancelled.
			return e.cancelRun(ctx, run)
		}

		slog.Debug("State transition", "state", StateScoring, "run", run.ID, "generation", index)

		score := Score(result, weights, e.cfg.FalsePositiveTolerance)

		slog.Debug("State transition", "state", StateDecidingAcceptance, "run", run.ID, "generation", index)

		gen := m.Generation{
			Index:     index,
			SuiteCode: string(code),
			Eval:      &result,
			Score:     &score,
		}

		var incumbent *m.FitnessScore
		if best, ok := run.BestScore(); ok {
			incumbent = &best
		}

		if Better(score, incumbent) {
			gen.Accepted = true
			run.BestIndex = index
		}

		e.recordGeneration(ctx, run, gen)
		e.DisplayGenerationResult(ctx, gen)

		lastEvaluated = gen

		slog.Info("Generation scored", "run", run.ID, "generation", index, "total", score.Total, "accepted", gen.Accepted)

		if gen.Accepted && score.Total >= e.cfg.TargetFitness {
			run.Status = m.RunCompleted
			run.Termination = m.TerminationTargetReached

			return nil
		}
	}

	run.Status = m.RunCompleted
	run.Termination = m.TerminationBudgetExhausted

	return nil
}

// generateCandidate asks the generator boundary for a suite and insists the
// result parses as Go. A malformed candidate is a generation failure and
// never reaches the sandbox.
func (e *engine) generateCandidate(ctx context.Context, generator adapter.TestGenerator, req adapter.GenerationRequest) ([]byte, error) {
	code, err := generator.Generate(ctx, req)
	if err != nil {
		return nil, &GenerationError{Generation: req.Generation, Err: err}
	}

	if len(bytes.TrimSpace(code)) == 0 {
		return nil, &GenerationError{Generation: req.Generation, Err: fmt.Errorf("empty candidate suite")}
	}

	if _, err := e.Parse(token.NewFileSet(), "candidate_test.go", code); err != nil {
		return nil, &GenerationError{Generation: req.Generation, Err: fmt.Errorf("candidate does not parse: %w", err)}
	}

	return code, nil
}

// recordGeneration appends the generation to the run and hands it to the
// history sink immediately, so an interrupted run keeps its finished work.
// Persistence failures are logged, not fatal: the in-memory run stays
// authoritative and finalize rewrites the record.
func (e *engine) recordGeneration(ctx context.Context, run *m.Run, gen m.Generation) {
	run.Generations = append(run.Generations, gen)

	if err := e.AppendGeneration(context.WithoutCancel(ctx), run.ID, gen); err != nil {
		slog.Error("Failed to persist generation", "run", run.ID, "generation", gen.Index, "error", err)
	}
}

func (e *engine) cancelRun(ctx context.Context, run *m.Run) error {
	err := ctx.Err()
	if err == nil {
		err = context.Canceled
	}

	run.Status = m.RunFailed
	run.Termination = m.TerminationCancelled
	run.Cause = err.Error()

	slog.Warn("Run cancelled", "run", run.ID, "generations", len(run.Generations))

	return err
}

// finalize seals the run record. Persistence runs on a detached context so
// a cancelled run is still written out.
func (e *engine) finalize(ctx context.Context, run *m.Run) {
	run.EndedAt = time.Now().UTC()

	if err := e.FinalizeRun(context.WithoutCancel(ctx), run); err != nil {
		slog.Error("Failed to finalize run record", "run", run.ID, "error", err)
	}
}

func terminalState(run *m.Run) RunState {
	if run.Status == m.RunFailed {
		return StateFailed
	}

	return StateCompleted
}

// deriveSeed folds a run ID into a deterministic seed so runs without an
// explicit seed are still reproducible from their recorded ID.
func deriveSeed(runID string) int64 {
	sum := sha256.Sum256([]byte(runID))

	return int64(binary.BigEndian.Uint64(sum[:8]))
}
