package controller

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	m "drq.dev/pkg/drq/internal/model"
)

// TUI implements UI as a live Bubble Tea view of the evolution run. History
// views are short tables and render directly, without the event loop.
type TUI struct {
	output  io.Writer
	program *tea.Program
	done    chan struct{}
}

// NewTUI creates a new TUI writing to stdout.
func NewTUI() *TUI {
	return &TUI{output: os.Stdout}
}

// Start launches the run view. History mode needs no event loop.
func (t *TUI) Start(ctx context.Context, options ...StartOption) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	config := &StartConfig{}
	for _, option := range options {
		option(config)
	}

	if config.mode != ModeRun {
		return nil
	}

	t.done = make(chan struct{})
	t.program = tea.NewProgram(newRunModel(config.budget), tea.WithOutput(t.output), tea.WithContext(ctx))

	go func() {
		defer close(t.done)

		if _, err := t.program.Run(); err != nil && ctx.Err() == nil {
			fmt.Fprintf(t.output, "display error: %v\n", err)
		}
	}()

	return nil
}

// Close shuts the event loop down.
func (t *TUI) Close(ctx context.Context) {
	if t.program == nil {
		return
	}

	t.program.Quit()

	select {
	case <-t.done:
	case <-ctx.Done():
	}
}

// Wait blocks until the user dismisses the view or the context ends.
func (t *TUI) Wait(ctx context.Context) {
	if t.done == nil {
		return
	}

	select {
	case <-t.done:
	case <-ctx.Done():
	}
}

func (t *TUI) send(msg tea.Msg) {
	if t.program == nil {
		return
	}

	t.program.Send(msg)
}

// DisplayRunStarted feeds the run header into the view.
func (t *TUI) DisplayRunStarted(_ context.Context, run *m.Run, target m.TargetSource) {
	t.send(runStartedMsg{run: run, target: target})
}

// DisplayMutantSummary feeds the mutant population into the view.
func (t *TUI) DisplayMutantSummary(_ context.Context, mutants []m.Mutant) {
	t.send(mutantsMsg(mutants))
}

// DisplayGenerationStarted marks a generation as in flight.
func (t *TUI) DisplayGenerationStarted(_ context.Context, index, budget int) {
	t.send(generationStartedMsg{index: index, budget: budget})
}

// DisplayGenerationResult appends a finished generation to the view.
func (t *TUI) DisplayGenerationResult(_ context.Context, gen m.Generation) {
	t.send(generationResultMsg(gen))
}

// DisplayRunSummary feeds the terminal state into the view.
func (t *TUI) DisplayRunSummary(_ context.Context, run *m.Run) {
	t.send(runSummaryMsg(run))
}

// DisplayRunList renders the run history table directly.
func (t *TUI) DisplayRunList(ctx context.Context, runs []m.Run) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if len(runs) == 0 {
		_, err := fmt.Fprintln(t.output, "No recorded runs")
		return err
	}

	_, err := fmt.Fprintf(t.output, "\n%s", renderRunListTable(runs))

	return err
}

// DisplayRunDetail renders one recorded run directly.
func (t *TUI) DisplayRunDetail(ctx context.Context, run *m.Run) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := fmt.Fprint(t.output, renderRunDetail(run))

	return err
}

// Messages feeding the run model.
type (
	runStartedMsg struct {
		run    *m.Run
		target m.TargetSource
	}
	mutantsMsg           []m.Mutant
	generationStartedMsg struct {
		index  int
		budget int
	}
	generationResultMsg m.Generation
	runSummaryMsg       *m.Run
)

// tuiStyles holds the lipgloss styles of the run view.
type tuiStyles struct {
	title lipgloss.Style
	muted lipgloss.Style
	good  lipgloss.Style
	bad   lipgloss.Style
	warn  lipgloss.Style
	best  lipgloss.Style
}

func defaultTUIStyles() tuiStyles {
	return tuiStyles{
		title: lipgloss.NewStyle().Bold(true),
		muted: lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		good:  lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		bad:   lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
		warn:  lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		best:  lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true),
	}
}

// runModel is the Bubble Tea model of a live evolution run.
type runModel struct {
	budget   int
	function string
	target   string
	runID    string
	seed     int64
	mutants  int

	inFlight    int
	generations []m.Generation
	run         *m.Run

	progress progress.Model
	styles   tuiStyles
	width    int
	quitting bool
}

func newRunModel(budget int) runModel {
	return runModel{
		budget:   budget,
		progress: progress.New(progress.WithDefaultGradient()),
		styles:   defaultTUIStyles(),
	}
}

func (rm runModel) Init() tea.Cmd {
	return nil
}

func (rm runModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		rm.width = msg.Width

		rm.progress.Width = msg.Width - 4
		if rm.progress.Width > 60 {
			rm.progress.Width = 60
		}

		return rm, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			rm.quitting = true
			return rm, tea.Quit
		}

		return rm, nil

	case runStartedMsg:
		rm.runID = msg.run.ID
		rm.seed = msg.run.Seed
		rm.budget = msg.run.Budget
		rm.function = msg.target.Function
		rm.target = string(msg.target.Path)

		return rm, nil

	case mutantsMsg:
		rm.mutants = len(msg)

		return rm, nil

	case generationStartedMsg:
		rm.inFlight = msg.index
		rm.budget = msg.budget

		return rm, nil

	case generationResultMsg:
		rm.inFlight = 0
		rm.generations = append(rm.generations, m.Generation(msg))

		return rm, nil

	case runSummaryMsg:
		rm.run = (*m.Run)(msg)

		return rm, nil
	}

	return rm, nil
}

func (rm runModel) View() string {
	if rm.quitting {
		return ""
	}

	var b strings.Builder

	rm.renderHeader(&b)
	rm.renderProgress(&b)
	rm.renderGenerations(&b)
	rm.renderSummary(&b)

	return b.String()
}

func (rm runModel) renderHeader(b *strings.Builder) {
	if rm.function == "" {
		b.WriteString(rm.styles.title.Render("Evolving tests") + "\n")
		return
	}

	b.WriteString(rm.styles.title.Render(fmt.Sprintf("Evolving tests for %s (%s)", rm.function, rm.target)) + "\n")
	b.WriteString(rm.styles.muted.Render(fmt.Sprintf("Run %s | budget %d | seed %d | %d mutants",
		shortID(rm.runID), rm.budget, rm.seed, rm.mutants)) + "\n\n")
}

func (rm runModel) renderProgress(b *strings.Builder) {
	if rm.budget <= 0 {
		return
	}

	fraction := float64(len(rm.generations)) / float64(rm.budget)
	if fraction > 1 {
		fraction = 1
	}

	fmt.Fprintf(b, "  %s %d/%d generations\n\n", rm.progress.ViewAs(fraction), len(rm.generations), rm.budget)
}

func (rm runModel) renderGenerations(b *strings.Builder) {
	for _, gen := range rm.generations {
		b.WriteString("  " + rm.generationLine(gen) + "\n")
	}

	if rm.inFlight > 0 {
		fmt.Fprintf(b, "  %s gen %d  generating candidate...\n", rm.styles.muted.Render("▶"), rm.inFlight)
	}
}

func (rm runModel) generationLine(gen m.Generation) string {
	if gen.Err != "" {
		return fmt.Sprintf("%s gen %d  %s", rm.styles.bad.Render("✗"), gen.Index, rm.styles.muted.Render(gen.Err))
	}

	if !gen.Evaluated() {
		return fmt.Sprintf("• gen %d", gen.Index)
	}

	line := fmt.Sprintf("gen %d  fitness %.2f  pass %.0f%%  cov %.0f%%  kills %s",
		gen.Index, gen.Score.Total, gen.Score.PassRate*100, gen.Score.Coverage*100, formatKills(gen))

	switch {
	case gen.Score.Disqualified:
		return rm.styles.warn.Render("!") + " " + line + rm.styles.warn.Render("  disqualified")
	case gen.Accepted:
		return rm.styles.good.Render("✓") + " " + line + rm.styles.best.Render("  new best")
	default:
		return rm.styles.muted.Render("•") + " " + line
	}
}

func (rm runModel) renderSummary(b *strings.Builder) {
	if rm.run == nil {
		return
	}

	b.WriteString("\n")

	switch rm.run.Status {
	case m.RunFailed:
		line := fmt.Sprintf("Run failed: %s", formatTermination(rm.run.Termination))
		if rm.run.Cause != "" {
			line += fmt.Sprintf(" (%s)", rm.run.Cause)
		}

		b.WriteString(rm.styles.bad.Render(line) + "\n")
	default:
		b.WriteString(rm.styles.good.Render(fmt.Sprintf("Run complete: %s after %d generation(s)",
			formatTermination(rm.run.Termination), len(rm.run.Generations))) + "\n")
	}

	if best, ok := rm.run.BestScore(); ok {
		b.WriteString(fmt.Sprintf("Best suite: generation %d, fitness %.2f\n", rm.run.BestIndex, best.Total))
	} else {
		b.WriteString("No suite was accepted\n")
	}

	b.WriteString(rm.styles.muted.Render("\npress q to quit") + "\n")
}
