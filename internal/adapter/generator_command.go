package adapter

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	m "drq.dev/pkg/drq/internal/model"
)

// DefaultGenerateTimeout bounds one generator invocation. LLM-backed
// commands are slow, so the default is generous.
const DefaultGenerateTimeout = 5 * time.Minute

// CommandGenerator produces candidate suites by running an external command
// once per generation. The request is written to the command's stdin as
// YAML and the candidate suite is read from its stdout; a nonzero exit
// fails the generation with the command's stderr attached.
type CommandGenerator struct {
	command string
	args    []string
	dir     string
	timeout time.Duration
}

// CommandGeneratorOption adjusts a CommandGenerator.
type CommandGeneratorOption func(*CommandGenerator)

// WithCommandDir sets the working directory of the generator command.
func WithCommandDir(dir string) CommandGeneratorOption {
	return func(g *CommandGenerator) {
		g.dir = dir
	}
}

// WithCommandTimeout overrides the per-invocation timeout.
func WithCommandTimeout(timeout time.Duration) CommandGeneratorOption {
	return func(g *CommandGenerator) {
		g.timeout = timeout
	}
}

// NewCommandGenerator constructs a CommandGenerator for the given command
// line.
func NewCommandGenerator(command string, args []string, opts ...CommandGeneratorOption) *CommandGenerator {
	g := &CommandGenerator{
		command: command,
		args:    args,
		timeout: DefaultGenerateTimeout,
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// Generate runs the command for one generation and returns its stdout as
// the candidate suite.
func (g *CommandGenerator) Generate(ctx context.Context, req GenerationRequest) ([]byte, error) {
	payload, err := yaml.Marshal(newGeneratorPayload(req))
	if err != nil {
		return nil, fmt.Errorf("failed to encode generation request: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, g.command, g.args...)
	cmd.Dir = g.dir
	cmd.Stdin = bytes.NewReader(payload)
	// Wrapper scripts can leave children holding the pipes open.
	cmd.WaitDelay = 5 * time.Second
	cmd.Env = append(os.Environ(),
		fmt.Sprintf("DRQ_GENERATION=%d", req.Generation),
		fmt.Sprintf("DRQ_TARGET=%s", req.Target.Path),
		fmt.Sprintf("DRQ_FUNCTION=%s", req.Target.Function),
	)

	var stdout, stderr bytes.Buffer

	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			return nil, fmt.Errorf("generator command failed: %w", err)
		}

		return nil, fmt.Errorf("generator command failed: %w: %s", err, truncateOutput([]byte(detail)))
	}

	return stdout.Bytes(), nil
}

// generatorPayload is the YAML document written to the generator command.
// It is a dedicated wire shape so the command contract stays stable when
// internal types change.
type generatorPayload struct {
	Generation int              `yaml:"generation"`
	Spec       m.TargetSpec     `yaml:"spec"`
	Target     payloadTarget    `yaml:"target"`
	Feedback   *payloadFeedback `yaml:"feedback,omitempty"`
}

type payloadTarget struct {
	Path     string `yaml:"path"`
	Package  string `yaml:"package"`
	Function string `yaml:"function"`
	Source   string `yaml:"source"`
}

type payloadFeedback struct {
	Score          payloadScore `yaml:"score"`
	FailingTests   []string     `yaml:"failing_tests,omitempty"`
	SurvivingDiffs []string     `yaml:"surviving_mutants,omitempty"`
	Notes          []string     `yaml:"notes,omitempty"`
}

type payloadScore struct {
	Total        float64 `yaml:"total"`
	PassRate     float64 `yaml:"pass_rate"`
	Coverage     float64 `yaml:"coverage"`
	KillRate     float64 `yaml:"kill_rate"`
	Disqualified bool    `yaml:"disqualified,omitempty"`
}

func newGeneratorPayload(req GenerationRequest) generatorPayload {
	p := generatorPayload{
		Generation: req.Generation,
		Spec:       req.Spec,
		Target: payloadTarget{
			Path:     string(req.Target.Path),
			Package:  req.Target.Package,
			Function: req.Target.Function,
			Source:   string(req.Target.Code),
		},
	}

	if req.Feedback != nil {
		p.Feedback = &payloadFeedback{
			Score: payloadScore{
				Total:        req.Feedback.Score.Total,
				PassRate:     req.Feedback.Score.PassRate,
				Coverage:     req.Feedback.Score.Coverage,
				KillRate:     req.Feedback.Score.KillRate,
				Disqualified: req.Feedback.Score.Disqualified,
			},
			FailingTests:   req.Feedback.FailingTests,
			SurvivingDiffs: req.Feedback.SurvivingDiffs,
			Notes:          req.Feedback.Notes,
		}
	}

	return p
}
