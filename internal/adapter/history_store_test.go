package adapter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	m "drq.dev/pkg/drq/internal/model"
)

func newTestHistoryStore(t *testing.T) (*LocalHistoryStore, string) {
	t.Helper()

	root := filepath.Join(t.TempDir(), "runs")

	return NewLocalHistoryStore(NewLocalSourceFSAdapter(), root), root
}

func historyRun(id string, started time.Time) *m.Run {
	return &m.Run{
		ID:         id,
		TargetPath: "examples/average/average.go",
		TargetHash: "ab12cd34ef56ab78",
		Budget:     3,
		Seed:       42,
		StartedAt:  started,
		Status:     m.RunRunning,
		Mutants: []m.Mutant{
			{
				ID:   "m1",
				Kind: m.FaultComparisonSwap,
				Site: m.FaultSite{Line: 4, Column: 12, Original: "==", Mutated: "!="},
			},
		},
	}
}

func scoredGeneration(index int, total float64, accepted bool) m.Generation {
	return m.Generation{
		Index:     index,
		SuiteCode: fmt.Sprintf("package mathutil\n\n// candidate %d\n", index),
		Eval: &m.EvaluationResult{
			Correct: m.VariantResult{VariantID: m.CorrectVariantID, Outcome: m.OutcomePass, Coverage: 0.8},
			Mutants: map[string]m.VariantResult{
				"m1": {VariantID: "m1", Outcome: m.OutcomeFail},
			},
		},
		Score: &m.FitnessScore{
			Total:         total,
			PassRate:      1,
			Coverage:      0.8,
			KillRate:      1,
			KillRateValid: true,
			Weights:       m.DefaultFitnessWeights(),
		},
		Accepted: accepted,
	}
}

func TestLocalHistoryStore_RoundTrip(t *testing.T) {
	store, root := newTestHistoryStore(t)
	ctx := context.Background()

	run := historyRun("run-roundtrip", time.Now().UTC().Truncate(time.Second))
	require.NoError(t, store.BeginRun(ctx, run))

	first := scoredGeneration(1, 0.7, true)
	second := scoredGeneration(2, 0.9, true)

	for _, gen := range []m.Generation{first, second} {
		run.Generations = append(run.Generations, gen)
		require.NoError(t, store.AppendGeneration(ctx, run.ID, gen))
	}

	run.Status = m.RunCompleted
	run.Termination = m.TerminationBudgetExhausted
	run.BestIndex = 2
	run.EndedAt = run.StartedAt.Add(time.Minute)
	require.NoError(t, store.FinalizeRun(ctx, run))

	dir := filepath.Join(root, run.ID)
	for _, name := range []string{"run.json", "generations.json", "suite_gen_001.go.txt", "suite_gen_002.go.txt", "best_suite_test.go"} {
		_, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err, "expected %s to exist", name)
	}

	_, err := os.Stat(filepath.Join(dir, "generations.gob"))
	require.True(t, os.IsNotExist(err), "spill should be retired on finalize")

	loaded, err := store.LoadRun(ctx, run.ID)
	require.NoError(t, err)
	require.Equal(t, m.RunCompleted, loaded.Status)
	require.Equal(t, m.TerminationBudgetExhausted, loaded.Termination)
	require.Equal(t, 2, loaded.BestIndex)
	require.Equal(t, int64(42), loaded.Seed)
	require.Len(t, loaded.Mutants, 1)
	require.Len(t, loaded.Generations, 2)
	require.InDelta(t, 0.9, loaded.Generations[1].Score.Total, 1e-9)
	require.True(t, loaded.Generations[1].Accepted)

	suite, err := store.LoadSuite(ctx, run.ID, 2)
	require.NoError(t, err)
	require.Equal(t, second.SuiteCode, string(suite))

	best, err := os.ReadFile(filepath.Join(dir, "best_suite_test.go"))
	require.NoError(t, err)
	require.Equal(t, second.SuiteCode, string(best))
}

func TestLocalHistoryStore_InterruptedRunReplaysSpill(t *testing.T) {
	store, root := newTestHistoryStore(t)
	ctx := context.Background()

	run := historyRun("run-interrupted", time.Now().UTC())
	require.NoError(t, store.BeginRun(ctx, run))
	require.NoError(t, store.AppendGeneration(ctx, run.ID, scoredGeneration(1, 0.6, true)))

	// A fresh store stands in for a new process inspecting the crashed run.
	reopened := NewLocalHistoryStore(NewLocalSourceFSAdapter(), root)

	loaded, err := reopened.LoadRun(ctx, run.ID)
	require.NoError(t, err)
	require.Equal(t, m.RunRunning, loaded.Status)
	require.Len(t, loaded.Generations, 1)
	require.Equal(t, 1, loaded.Generations[0].Index)
	require.InDelta(t, 0.6, loaded.Generations[0].Score.Total, 1e-9)
}

func TestLocalHistoryStore_ListRuns(t *testing.T) {
	store, root := newTestHistoryStore(t)
	ctx := context.Background()

	older := historyRun("run-older", time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	newer := historyRun("run-newer", time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC))

	require.NoError(t, store.BeginRun(ctx, older))
	require.NoError(t, store.BeginRun(ctx, newer))

	// Stray files in the root must not break listing.
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0o600))

	runs, err := store.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	require.Equal(t, "run-newer", runs[0].ID)
	require.Equal(t, "run-older", runs[1].ID)
}

func TestLocalHistoryStore_ListRunsMissingRoot(t *testing.T) {
	store := NewLocalHistoryStore(NewLocalSourceFSAdapter(), filepath.Join(t.TempDir(), "absent"))

	runs, err := store.ListRuns(context.Background())
	require.NoError(t, err)
	require.Empty(t, runs)
}

func TestLocalHistoryStore_AppendWithoutBegin(t *testing.T) {
	store, _ := newTestHistoryStore(t)

	err := store.AppendGeneration(context.Background(), "unknown", scoredGeneration(1, 0.5, false))
	require.Error(t, err)
	require.Contains(t, err.Error(), "no open generation spill")
}

func TestLocalHistoryStore_LoadSuiteMissing(t *testing.T) {
	store, _ := newTestHistoryStore(t)
	ctx := context.Background()

	run := historyRun("run-nosuites", time.Now().UTC())
	require.NoError(t, store.BeginRun(ctx, run))

	_, err := store.LoadSuite(ctx, run.ID, 7)
	require.Error(t, err)
}

func TestLocalHistoryStore_FailedGenerationKeepsNoSuite(t *testing.T) {
	store, root := newTestHistoryStore(t)
	ctx := context.Background()

	run := historyRun("run-genfail", time.Now().UTC())
	require.NoError(t, store.BeginRun(ctx, run))

	failed := m.Generation{Index: 1, Err: "generation 1: candidate generation failed: generator exited"}
	run.Generations = append(run.Generations, failed)
	require.NoError(t, store.AppendGeneration(ctx, run.ID, failed))

	run.Status = m.RunFailed
	run.Termination = m.TerminationGeneratorFailure
	run.Cause = failed.Err
	require.NoError(t, store.FinalizeRun(ctx, run))

	dir := filepath.Join(root, run.ID)
	_, err := os.Stat(filepath.Join(dir, "suite_gen_001.go.txt"))
	require.True(t, os.IsNotExist(err))

	_, err = os.Stat(filepath.Join(dir, "best_suite_test.go"))
	require.True(t, os.IsNotExist(err))

	loaded, err := store.LoadRun(ctx, run.ID)
	require.NoError(t, err)
	require.Equal(t, m.RunFailed, loaded.Status)
	require.Equal(t, failed.Err, loaded.Cause)
	require.Len(t, loaded.Generations, 1)
	require.Equal(t, failed.Err, loaded.Generations[0].Err)
}
