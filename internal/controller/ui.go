// Package controller provides the run progress and history views of drq.
package controller

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	m "drq.dev/pkg/drq/internal/model"
)

// StartMode defines what the UI is about to present.
type StartMode int

// Available StartMode values.
const (
	ModeRun StartMode = iota
	ModeHistory
)

// StartOption is a functional option for Start.
type StartOption func(*StartConfig)

// StartConfig holds configuration for starting the UI.
type StartConfig struct {
	mode   StartMode
	budget int
}

// WithRunMode sets the UI to live evolution mode with the given generation
// budget.
func WithRunMode(budget int) StartOption {
	return func(c *StartConfig) {
		c.mode = ModeRun
		c.budget = budget
	}
}

// WithHistoryMode sets the UI to history browsing mode.
func WithHistoryMode() StartOption {
	return func(c *StartConfig) {
		c.mode = ModeHistory
	}
}

// UI receives evolution progress events and renders history views.
// Implementations can use different output methods (simple text, TUI).
type UI interface {
	Start(ctx context.Context, options ...StartOption) error
	Close(ctx context.Context)
	Wait(ctx context.Context) // Wait for the UI to finish (user closes it)
	DisplayRunStarted(ctx context.Context, run *m.Run, target m.TargetSource)
	DisplayMutantSummary(ctx context.Context, mutants []m.Mutant)
	DisplayGenerationStarted(ctx context.Context, index int, budget int)
	DisplayGenerationResult(ctx context.Context, gen m.Generation)
	DisplayRunSummary(ctx context.Context, run *m.Run)
	DisplayRunList(ctx context.Context, runs []m.Run) error
	DisplayRunDetail(ctx context.Context, run *m.Run) error
}

// NewUI selects the TUI on interactive terminals and the plain printer
// everywhere else.
func NewUI(cmd *cobra.Command, interactive bool) UI {
	if interactive {
		return NewTUI()
	}

	return NewSimpleUI(cmd)
}

// IsTTY reports whether f is attached to an interactive terminal.
func IsTTY(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}

	return info.Mode()&os.ModeCharDevice != 0
}
