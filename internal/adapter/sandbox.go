package adapter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"go/parser"
	"go/token"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"golang.org/x/mod/modfile"

	m "drq.dev/pkg/drq/internal/model"
)

const (
	targetFileName   = "target.go"
	suiteFileName    = "target_test.go"
	coverProfileName = "cover.out"
	workspacePattern = "drq-eval-*"

	sandboxModulePath = "drqsandbox"
	defaultGoVersion  = "1.24"
	defaultGoBinary   = "go"

	// outputLimit caps captured toolchain output per evaluation.
	outputLimit = 8 * 1024
)

// DefaultEvalTimeout bounds one evaluation when the caller does not supply
// a timeout.
const DefaultEvalTimeout = 60 * time.Second

// EvalRequest describes one sandbox evaluation: a candidate suite run
// against exactly one target variant.
type EvalRequest struct {
	// VariantID keys the result (CorrectVariantID or a mutant ID).
	VariantID string

	// TargetSource is the variant source placed next to the suite.
	TargetSource []byte

	// SuiteSource is the candidate test-suite source. Its package clause
	// is rewritten to Package before the run.
	SuiteSource []byte

	// Package is the target's package name.
	Package string

	// Timeout bounds the evaluation wall clock.
	Timeout time.Duration

	// WithCoverage requests statement coverage of the target file.
	WithCoverage bool
}

// SandboxRunner executes one candidate suite against one target variant in
// an isolated workspace. Implementations must leave no residue between
// calls: repeated identical requests yield identical outcomes.
type SandboxRunner interface {
	Evaluate(ctx context.Context, req EvalRequest) (m.VariantResult, error)
}

// LocalSandboxRunner evaluates suites out of process via the Go toolchain.
// Every call builds a throwaway single-package module in a fresh temporary
// directory, so concurrent evaluations never share mutable state and a
// hanging suite can be killed without poisoning the parent process.
type LocalSandboxRunner struct {
	fs            SourceFSAdapter
	goBinary      string
	goVersion     string
	memoryLimit   int64
	keepArtifacts bool
}

// SandboxOption adjusts a LocalSandboxRunner.
type SandboxOption func(*LocalSandboxRunner)

// WithGoBinary overrides the toolchain binary used for evaluations.
func WithGoBinary(path string) SandboxOption {
	return func(s *LocalSandboxRunner) {
		s.goBinary = path
	}
}

// WithGoVersion sets the go directive of the synthesized sandbox module.
func WithGoVersion(version string) SandboxOption {
	return func(s *LocalSandboxRunner) {
		s.goVersion = version
	}
}

// WithMemoryLimit applies a soft memory limit (bytes) to the test process
// via GOMEMLIMIT. Zero means no limit.
func WithMemoryLimit(limit int64) SandboxOption {
	return func(s *LocalSandboxRunner) {
		s.memoryLimit = limit
	}
}

// WithKeepArtifacts retains evaluation workspaces for debugging instead of
// removing them.
func WithKeepArtifacts(keep bool) SandboxOption {
	return func(s *LocalSandboxRunner) {
		s.keepArtifacts = keep
	}
}

// NewLocalSandboxRunner constructs a LocalSandboxRunner.
func NewLocalSandboxRunner(fs SourceFSAdapter, opts ...SandboxOption) *LocalSandboxRunner {
	s := &LocalSandboxRunner{
		fs:        fs,
		goBinary:  defaultGoBinary,
		goVersion: defaultGoVersion,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Evaluate runs the suite against the variant and classifies the outcome.
// Timeouts and harness failures are values on the result, never folded into
// a test failure; an error return means the evaluation could not be staged
// at all or the surrounding context was cancelled.
func (s *LocalSandboxRunner) Evaluate(ctx context.Context, req EvalRequest) (m.VariantResult, error) {
	if err := validateEvalRequest(req); err != nil {
		return m.VariantResult{}, err
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = DefaultEvalTimeout
	}

	dir, err := s.fs.CreateTempDir(workspacePattern)
	if err != nil {
		return m.VariantResult{}, fmt.Errorf("failed to create sandbox workspace: %w", err)
	}

	defer func() {
		if s.keepArtifacts {
			slog.Debug("Keeping sandbox workspace", "variant", req.VariantID, "dir", dir)
			return
		}

		if err := s.fs.RemoveAll(dir); err != nil {
			slog.Error("Failed to clean sandbox workspace", "dir", dir, "error", err)
		}
	}()

	if err := s.populateWorkspace(dir, req); err != nil {
		return m.VariantResult{}, err
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	coverPath := s.fs.JoinPath(string(dir), coverProfileName)

	args := []string{"test", "-json"}
	if req.WithCoverage {
		args = append(args, "-coverprofile="+string(coverPath))
	}

	// The harness timeout must lose the race against the context deadline
	// so a hang is always classified as a timeout, yet it still reaps a
	// test binary orphaned by the kill.
	args = append(args, "-timeout", (2 * timeout).String(), ".")

	cmd := exec.CommandContext(runCtx, s.goBinary, args...)
	cmd.Dir = string(dir)
	cmd.Env = s.sandboxEnv()
	cmd.WaitDelay = 5 * time.Second

	var output bytes.Buffer

	cmd.Stdout = &output
	cmd.Stderr = &output

	started := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(started)

	// Caller-initiated cancellation is not a variant outcome.
	if ctx.Err() != nil {
		return m.VariantResult{}, ctx.Err()
	}

	raw := output.Bytes()

	result := m.VariantResult{
		VariantID: req.VariantID,
		Tests:     parseTestEvents(bytes.NewReader(raw)),
		Elapsed:   elapsed,
		Output:    truncateOutput(raw),
	}

	switch {
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		result.Outcome = m.OutcomeTimeout
	case runErr == nil:
		result.Outcome = m.OutcomePass
	case failedTestCount(result.Tests) > 0:
		result.Outcome = m.OutcomeFail
	default:
		// Nonzero exit without a failing test: the harness never got to
		// run the suite (build failure, panic outside a test, vet error).
		result.Outcome = m.OutcomeError
	}

	if req.WithCoverage && (result.Outcome == m.OutcomePass || result.Outcome == m.OutcomeFail) {
		coverage, err := coverageForFile(string(coverPath), targetFileName)
		if err != nil {
			slog.Warn("Failed to read coverage profile", "variant", req.VariantID, "error", err)
		} else {
			result.Coverage = coverage
		}
	}

	return result, nil
}

func validateEvalRequest(req EvalRequest) error {
	switch {
	case req.VariantID == "":
		return fmt.Errorf("missing variant ID")
	case len(req.TargetSource) == 0:
		return fmt.Errorf("missing target source")
	case len(req.SuiteSource) == 0:
		return fmt.Errorf("missing suite source")
	case req.Package == "":
		return fmt.Errorf("missing target package")
	}

	return nil
}

// populateWorkspace lays out the throwaway module: target variant, suite
// and a go.mod, nothing else.
func (s *LocalSandboxRunner) populateWorkspace(dir m.Path, req EvalRequest) error {
	suite, err := normalizeSuitePackage(req.SuiteSource, req.Package)
	if err != nil {
		return err
	}

	modContent, err := sandboxModFile(s.goVersion)
	if err != nil {
		return err
	}

	files := []struct {
		name    string
		content []byte
	}{
		{targetFileName, req.TargetSource},
		{suiteFileName, suite},
		{"go.mod", modContent},
	}

	for _, file := range files {
		path := s.fs.JoinPath(string(dir), file.name)
		if err := s.fs.WriteFile(path, file.content, 0o600); err != nil {
			return fmt.Errorf("failed to write %s: %w", file.name, err)
		}
	}

	return nil
}

// sandboxEnv inherits the parent environment (the toolchain needs its build
// cache) but pins the switches that keep evaluations hermetic.
func (s *LocalSandboxRunner) sandboxEnv() []string {
	env := append(os.Environ(), "CGO_ENABLED=0", "GOPROXY=off", "GOFLAGS=-mod=mod")

	if s.memoryLimit > 0 {
		env = append(env, fmt.Sprintf("GOMEMLIMIT=%d", s.memoryLimit))
	}

	return env
}

// normalizeSuitePackage rewrites the suite's package clause to the target
// package so generated suites compile next to the variant regardless of the
// clause the generator chose.
func normalizeSuitePackage(suite []byte, pkg string) ([]byte, error) {
	fset := token.NewFileSet()

	file, err := parser.ParseFile(fset, suiteFileName, suite, parser.PackageClauseOnly)
	if err != nil {
		return nil, fmt.Errorf("candidate suite has no package clause: %w", err)
	}

	if file.Name.Name == pkg {
		return suite, nil
	}

	tokenFile := fset.File(file.Name.Pos())
	if tokenFile == nil {
		return nil, fmt.Errorf("no position information for suite package clause")
	}

	start := tokenFile.Offset(file.Name.Pos())
	end := tokenFile.Offset(file.Name.End())

	normalized := make([]byte, 0, len(suite)-(end-start)+len(pkg))
	normalized = append(normalized, suite[:start]...)
	normalized = append(normalized, pkg...)
	normalized = append(normalized, suite[end:]...)

	return normalized, nil
}

// sandboxModFile renders the go.mod of the synthesized module.
func sandboxModFile(goVersion string) ([]byte, error) {
	mf := new(modfile.File)

	if err := mf.AddModuleStmt(sandboxModulePath); err != nil {
		return nil, err
	}

	if err := mf.AddGoStmt(goVersion); err != nil {
		return nil, err
	}

	return mf.Format()
}

func failedTestCount(tests []m.TestCaseResult) int {
	failed := 0

	for _, tc := range tests {
		if tc.Outcome == m.TestFailed {
			failed++
		}
	}

	return failed
}

func truncateOutput(raw []byte) string {
	if len(raw) <= outputLimit {
		return string(raw)
	}

	return string(raw[:outputLimit]) + "\n... (output truncated)"
}
