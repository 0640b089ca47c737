package controller

import (
	"bytes"
	"context"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	m "drq.dev/pkg/drq/internal/model"
)

func drive(t *testing.T, rm runModel, msgs ...tea.Msg) runModel {
	t.Helper()

	for _, msg := range msgs {
		updated, _ := rm.Update(msg)

		var ok bool

		rm, ok = updated.(runModel)
		require.True(t, ok, "Update should keep returning runModel")
	}

	return rm
}

func TestRunModel_ViewFollowsRunLifecycle(t *testing.T) {
	run := sampleRun()
	target := m.TargetSource{Path: "examples/average/average.go", Function: "CalculateAverage"}

	rm := drive(t, newRunModel(8),
		runStartedMsg{run: run, target: target},
		mutantsMsg(sampleMutants()),
	)

	view := rm.View()
	require.Contains(t, view, "Evolving tests for CalculateAverage (examples/average/average.go)")
	require.Contains(t, view, "Run 3e9a1c2b | budget 8 | seed 42 | 2 mutants")
	require.Contains(t, view, "0/8 generations")

	rm = drive(t, rm, generationStartedMsg{index: 1, budget: 8})
	require.Contains(t, rm.View(), "gen 1  generating candidate...")

	rm = drive(t, rm, generationResultMsg(evaluatedGeneration(1, 0.65, true)))

	view = rm.View()
	require.Contains(t, view, "gen 1  fitness 0.65  pass 100%  cov 80%  kills 1/2")
	require.Contains(t, view, "new best")
	require.Contains(t, view, "1/8 generations")
	require.NotContains(t, view, "generating candidate")

	rm = drive(t, rm,
		generationResultMsg(evaluatedGeneration(2, 0.90, true)),
		runSummaryMsg(run),
	)

	view = rm.View()
	require.Contains(t, view, "Run complete: target fitness reached after 2 generation(s)")
	require.Contains(t, view, "Best suite: generation 2, fitness 0.90")
	require.Contains(t, view, "press q to quit")
}

func TestRunModel_GenerationLineVariants(t *testing.T) {
	tests := []struct {
		name         string
		gen          m.Generation
		wantContains []string
		wantAbsent   []string
	}{
		{
			name:         "generator failure",
			gen:          m.Generation{Index: 3, Err: "candidate generation failed: model unavailable"},
			wantContains: []string{"gen 3", "model unavailable"},
			wantAbsent:   []string{"fitness"},
		},
		{
			name:         "disqualified suite",
			gen:          disqualifiedGeneration(),
			wantContains: []string{"gen 1", "kills n/a", "disqualified"},
			wantAbsent:   []string{"new best"},
		},
		{
			name:         "rejected suite",
			gen:          evaluatedGeneration(2, 0.40, false),
			wantContains: []string{"gen 2  fitness 0.40"},
			wantAbsent:   []string{"new best", "disqualified"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rm := drive(t, newRunModel(8), generationResultMsg(tt.gen))
			view := rm.View()

			for _, want := range tt.wantContains {
				require.Contains(t, view, want)
			}

			for _, absent := range tt.wantAbsent {
				require.NotContains(t, view, absent)
			}
		})
	}
}

func TestRunModel_FailedRunSummary(t *testing.T) {
	run := sampleRun()
	run.Status = m.RunFailed
	run.Termination = m.TerminationGeneratorFailure
	run.Cause = "generator exploded"
	run.BestIndex = 0
	run.Generations = nil

	rm := drive(t, newRunModel(8), runSummaryMsg(run))

	view := rm.View()
	require.Contains(t, view, "Run failed: generator failure (generator exploded)")
	require.Contains(t, view, "No suite was accepted")
}

func TestRunModel_QuitKeys(t *testing.T) {
	keys := []tea.KeyMsg{
		{Type: tea.KeyRunes, Runes: []rune("q")},
		{Type: tea.KeyCtrlC},
		{Type: tea.KeyEsc},
	}

	for _, key := range keys {
		t.Run(key.String(), func(t *testing.T) {
			updated, cmd := newRunModel(8).Update(key)

			require.NotNil(t, cmd, "quit key should produce a command")
			require.IsType(t, tea.QuitMsg{}, cmd())

			rm, ok := updated.(runModel)
			require.True(t, ok)
			require.Empty(t, rm.View(), "quitting model should render nothing")
		})
	}
}

func TestRunModel_WindowSizeCapsProgressWidth(t *testing.T) {
	rm := drive(t, newRunModel(8), tea.WindowSizeMsg{Width: 200, Height: 50})
	require.Equal(t, 60, rm.progress.Width)

	rm = drive(t, rm, tea.WindowSizeMsg{Width: 40, Height: 50})
	require.Equal(t, 36, rm.progress.Width)
}

func TestTUI_HistoryViewsRenderDirectly(t *testing.T) {
	var buf bytes.Buffer

	tui := &TUI{output: &buf}
	ctx := context.Background()

	require.NoError(t, tui.Start(ctx, WithHistoryMode()))
	require.Nil(t, tui.program, "history mode should not launch the event loop")

	require.NoError(t, tui.DisplayRunList(ctx, nil))
	require.Contains(t, buf.String(), "No recorded runs")

	buf.Reset()
	require.NoError(t, tui.DisplayRunList(ctx, []m.Run{*sampleRun()}))

	output := buf.String()
	require.Contains(t, output, "3e9a1c2b")
	require.Contains(t, output, "examples/average/average.go")
	require.Contains(t, output, "0.90")

	buf.Reset()
	require.NoError(t, tui.DisplayRunDetail(ctx, sampleRun()))

	output = buf.String()
	require.Contains(t, output, "Run 3e9a1c2b-5f47-4d6e-9a0b-1c2d3e4f5a6b")
	require.Contains(t, output, "spec average")
	require.Contains(t, output, "Mutants: 2 | seed 42")

	// Wait and Close are no-ops without a running program.
	tui.Wait(ctx)
	tui.Close(ctx)
}

func TestTUI_CancelledContextRejectsHistoryViews(t *testing.T) {
	var buf bytes.Buffer

	tui := &TUI{output: &buf}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.Error(t, tui.Start(ctx, WithHistoryMode()))
	require.Error(t, tui.DisplayRunList(ctx, []m.Run{*sampleRun()}))
	require.Error(t, tui.DisplayRunDetail(ctx, sampleRun()))
	require.Empty(t, buf.String())
}

func TestTUI_DisplayBeforeStartIsSafe(t *testing.T) {
	var buf bytes.Buffer

	tui := &TUI{output: &buf}
	ctx := context.Background()

	tui.DisplayRunStarted(ctx, sampleRun(), m.TargetSource{Function: "CalculateAverage"})
	tui.DisplayMutantSummary(ctx, sampleMutants())
	tui.DisplayGenerationStarted(ctx, 1, 8)
	tui.DisplayGenerationResult(ctx, evaluatedGeneration(1, 0.65, true))
	tui.DisplayRunSummary(ctx, sampleRun())
	tui.Wait(ctx)
	tui.Close(ctx)

	require.Empty(t, buf.String())
}
