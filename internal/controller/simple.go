package controller

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	m "drq.dev/pkg/drq/internal/model"
)

// SimpleUI implements UI as plain line output on the cobra command. It is
// the non-interactive renderer used for pipes, CI and history queries.
type SimpleUI struct {
	cmd *cobra.Command
}

// NewSimpleUI creates a new SimpleUI.
func NewSimpleUI(cmd *cobra.Command) *SimpleUI {
	return &SimpleUI{cmd: cmd}
}

// Start initializes the UI.
func (s *SimpleUI) Start(ctx context.Context, _ ...StartOption) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return nil
}

// Close finalizes the UI.
func (s *SimpleUI) Close(ctx context.Context) {
	if err := ctx.Err(); err != nil {
		return
	}
}

// Wait blocks until the UI is closed (no-op for SimpleUI).
func (s *SimpleUI) Wait(ctx context.Context) {
	if err := ctx.Err(); err != nil {
		return
	}
	// SimpleUI doesn't block - it just prints and continues
}

// DisplayRunStarted prints the run header.
func (s *SimpleUI) DisplayRunStarted(ctx context.Context, run *m.Run, target m.TargetSource) {
	if err := ctx.Err(); err != nil {
		return
	}

	s.printf("Evolving tests for %s (%s)\n", target.Function, target.Path)
	s.printf("Run %s | budget %d generations | seed %d\n", shortID(run.ID), run.Budget, run.Seed)
}

// DisplayMutantSummary prints the mutant population table.
func (s *SimpleUI) DisplayMutantSummary(ctx context.Context, mutants []m.Mutant) {
	if err := ctx.Err(); err != nil {
		return
	}

	if len(mutants) == 0 {
		s.printf("No viable mutants: fitness will not include a kill term\n")
		return
	}

	s.printf("\n%s\n", renderMutantTable(mutants))
}

// DisplayGenerationStarted announces the next generation.
func (s *SimpleUI) DisplayGenerationStarted(ctx context.Context, index, budget int) {
	if err := ctx.Err(); err != nil {
		return
	}

	s.printf("Generation %d/%d: generating candidate suite\n", index, budget)
}

// DisplayGenerationResult prints the scored outcome of one generation.
func (s *SimpleUI) DisplayGenerationResult(ctx context.Context, gen m.Generation) {
	if err := ctx.Err(); err != nil {
		return
	}

	if gen.Err != "" {
		s.printf("Generation %d failed: %s\n", gen.Index, gen.Err)
		return
	}

	if !gen.Evaluated() {
		return
	}

	line := fmt.Sprintf("Generation %d: fitness %.2f (pass %.0f%%, coverage %.0f%%, kills %s)",
		gen.Index, gen.Score.Total, gen.Score.PassRate*100, gen.Score.Coverage*100, formatKills(gen))

	switch {
	case gen.Score.Disqualified:
		line += fmt.Sprintf(" -> disqualified, %d test(s) fail on the correct implementation", gen.Eval.FalsePositives())
	case gen.Accepted:
		line += " -> new best"
	}

	s.printf("%s\n", line)
}

// DisplayRunSummary prints the terminal state of the run.
func (s *SimpleUI) DisplayRunSummary(ctx context.Context, run *m.Run) {
	if err := ctx.Err(); err != nil {
		return
	}

	switch run.Status {
	case m.RunFailed:
		s.printf("Run failed: %s", formatTermination(run.Termination))

		if run.Cause != "" {
			s.printf(" (%s)", run.Cause)
		}

		s.printf("\n")
	default:
		s.printf("Run complete: %s after %d generation(s)\n", formatTermination(run.Termination), len(run.Generations))
	}

	if best, ok := run.BestScore(); ok {
		s.printf("Best suite: generation %d, fitness %.2f\n", run.BestIndex, best.Total)
	} else {
		s.printf("No suite was accepted\n")
	}
}

// DisplayRunList renders the run history table.
func (s *SimpleUI) DisplayRunList(ctx context.Context, runs []m.Run) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if len(runs) == 0 {
		s.printf("No recorded runs\n")
		return nil
	}

	s.printf("\n%s", renderRunListTable(runs))

	return nil
}

// DisplayRunDetail renders one recorded run, generation by generation.
func (s *SimpleUI) DisplayRunDetail(ctx context.Context, run *m.Run) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.printf("%s", renderRunDetail(run))

	return nil
}

func (s *SimpleUI) printf(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(s.cmd.OutOrStdout(), format, args...)
}

func renderMutantTable(mutants []m.Mutant) string {
	var tableBuffer bytes.Buffer

	table := tablewriter.NewWriter(&tableBuffer)
	table.SetHeader([]string{"Mutant", "Kind", "Line", "Change"})
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetColumnAlignment([]int{
		tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_CENTER, tablewriter.ALIGN_LEFT,
	})

	for _, mutant := range mutants {
		table.Append([]string{
			shortID(mutant.ID),
			string(mutant.Kind),
			fmt.Sprintf("%d", mutant.Site.Line),
			fmt.Sprintf("%s -> %s", mutant.Site.Original, mutant.Site.Mutated),
		})
	}

	table.SetFooter([]string{"", "", "", fmt.Sprintf("%d mutants", len(mutants))})
	table.Render()

	return tableBuffer.String()
}

func renderRunListTable(runs []m.Run) string {
	var tableBuffer bytes.Buffer

	table := tablewriter.NewWriter(&tableBuffer)
	table.SetHeader([]string{"Run", "Started", "Target", "Status", "Fitness", "Gens"})
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetColumnAlignment([]int{
		tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_LEFT, tablewriter.ALIGN_CENTER, tablewriter.ALIGN_CENTER,
	})

	for _, run := range runs {
		fitness := "-"
		if best, ok := run.BestScore(); ok {
			fitness = fmt.Sprintf("%.2f", best.Total)
		}

		table.Append([]string{
			shortID(run.ID),
			run.StartedAt.Format("2006-01-02 15:04"),
			string(run.TargetPath),
			string(run.Status),
			fitness,
			fmt.Sprintf("%d", len(run.Generations)),
		})
	}

	table.Render()

	return tableBuffer.String()
}

func renderGenerationTable(run *m.Run) string {
	var tableBuffer bytes.Buffer

	table := tablewriter.NewWriter(&tableBuffer)
	table.SetHeader([]string{"Gen", "Fitness", "Pass", "Coverage", "Kills", "Result"})
	table.SetBorder(false)
	table.SetCenterSeparator("")

	for _, gen := range run.Generations {
		if !gen.Evaluated() {
			table.Append([]string{fmt.Sprintf("%d", gen.Index), "-", "-", "-", "-", "failed"})
			continue
		}

		result := "rejected"

		switch {
		case gen.Score.Disqualified:
			result = "disqualified"
		case gen.Index == run.BestIndex:
			result = "best"
		case gen.Accepted:
			result = "accepted"
		}

		table.Append([]string{
			fmt.Sprintf("%d", gen.Index),
			fmt.Sprintf("%.2f", gen.Score.Total),
			fmt.Sprintf("%.0f%%", gen.Score.PassRate*100),
			fmt.Sprintf("%.0f%%", gen.Score.Coverage*100),
			formatKills(gen),
			result,
		})
	}

	table.Render()

	return tableBuffer.String()
}

// renderRunDetail renders one recorded run, generation by generation.
func renderRunDetail(run *m.Run) string {
	var out strings.Builder

	fmt.Fprintf(&out, "Run %s\n", run.ID)
	fmt.Fprintf(&out, "Target: %s", run.TargetPath)

	if run.SpecName != "" {
		fmt.Fprintf(&out, " (spec %s)", run.SpecName)
	}

	fmt.Fprintf(&out, "\nStarted: %s\n", run.StartedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&out, "Status: %s, %s", run.Status, formatTermination(run.Termination))

	if run.Cause != "" {
		fmt.Fprintf(&out, " (%s)", run.Cause)
	}

	fmt.Fprintf(&out, "\nMutants: %d | seed %d\n", len(run.Mutants), run.Seed)

	if len(run.Generations) > 0 {
		fmt.Fprintf(&out, "\n%s", renderGenerationTable(run))
	}

	if diffs := survivingDiffs(run); len(diffs) > 0 {
		out.WriteString("\nMutants surviving the best suite:\n")

		for _, diff := range diffs {
			out.WriteString(diff)
			out.WriteString("\n")
		}
	}

	return out.String()
}

// survivingDiffs lists the diffs of mutants the best suite did not kill.
func survivingDiffs(run *m.Run) []string {
	best, ok := run.Best()
	if !ok || !best.Evaluated() {
		return nil
	}

	var diffs []string

	for _, mutant := range run.Mutants {
		if best.Eval.Killed(mutant.ID) || mutant.Diff == "" {
			continue
		}

		diffs = append(diffs, mutant.Diff)
	}

	return diffs
}

func formatKills(gen m.Generation) string {
	if !gen.Score.KillRateValid {
		return "n/a"
	}

	return fmt.Sprintf("%d/%d", gen.Eval.KilledCount(), len(gen.Eval.Mutants))
}

func formatTermination(termination m.TerminationReason) string {
	switch termination {
	case m.TerminationTargetReached:
		return "target fitness reached"
	case m.TerminationBudgetExhausted:
		return "generation budget exhausted"
	case m.TerminationGeneratorFailure:
		return "generator failure"
	case m.TerminationCancelled:
		return "cancelled"
	default:
		return string(termination)
	}
}

// shortID truncates an identifier for display.
func shortID(id string) string {
	const width = 8

	if len(id) <= width {
		return id
	}

	return id[:width]
}
