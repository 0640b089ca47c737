package cmd

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"drq.dev/pkg/drq/internal/adapter"
	"drq.dev/pkg/drq/internal/domain"
	domainmocks "drq.dev/pkg/drq/internal/domain/mocks"
	m "drq.dev/pkg/drq/internal/model"
)

const averageTarget = `package mathutil

import "errors"

// CalculateAverage returns the arithmetic mean of values.
func CalculateAverage(values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, errors.New("empty input")
	}

	sum := 0.0
	for _, v := range values {
		sum += v
	}

	return sum / float64(len(values)), nil
}
`

// writeRunFixture drops a parseable target file and an empty suites
// directory into a temp dir.
func writeRunFixture(t *testing.T) (targetPath, suitesDir string) {
	t.Helper()

	dir := t.TempDir()
	targetPath = filepath.Join(dir, "average.go")
	require.NoError(t, os.WriteFile(targetPath, []byte(averageTarget), 0o600))

	suitesDir = filepath.Join(dir, "suites")
	require.NoError(t, os.Mkdir(suitesDir, 0o750))

	return targetPath, suitesDir
}

// swapEngineFactory replaces the engine factory for one test and captures
// the config each invocation received.
func swapEngineFactory(t *testing.T, engine domain.Engine) *[]domain.Config {
	t.Helper()

	var configs []domain.Config

	original := newEvolutionEngine
	newEvolutionEngine = func(_ *cobra.Command, cfg domain.Config) domain.Engine {
		configs = append(configs, cfg)
		return engine
	}

	t.Cleanup(func() { newEvolutionEngine = original })

	return &configs
}

func newRunTestCmd() *cobra.Command {
	cmd := newRootCmd()
	cmd.AddCommand(newRunCmd())
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	return cmd
}

func TestRunCmd_ReplaySuites(t *testing.T) {
	targetPath, suitesDir := writeRunFixture(t)

	mockEngine := domainmocks.NewMockEngine(t)
	configs := swapEngineFactory(t, mockEngine)

	mockEngine.On("Evolve", mock.Anything, mock.MatchedBy(func(args domain.EvolveArgs) bool {
		_, isReplay := args.Generator.(*adapter.ReplayGenerator)

		return isReplay &&
			args.Target.Function == "CalculateAverage" &&
			args.Target.Package == "mathutil" &&
			args.Target.Path == m.Path(targetPath)
	})).Return(&m.Run{ID: "run-1", Status: m.RunCompleted}, nil)

	cmd := newRunTestCmd()
	cmd.SetArgs([]string{"run", targetPath, "--suites", suitesDir, "--generations", "3"})

	require.NoError(t, cmd.Execute())
	require.Len(t, *configs, 1)
	assert.Equal(t, 3, (*configs)[0].Generations)

	mockEngine.AssertExpectations(t)
}

func TestRunCmd_CommandGenerator(t *testing.T) {
	targetPath, _ := writeRunFixture(t)

	mockEngine := domainmocks.NewMockEngine(t)
	swapEngineFactory(t, mockEngine)

	mockEngine.On("Evolve", mock.Anything, mock.MatchedBy(func(args domain.EvolveArgs) bool {
		_, isCommand := args.Generator.(*adapter.CommandGenerator)
		return isCommand
	})).Return(&m.Run{ID: "run-2", Status: m.RunCompleted}, nil)

	cmd := newRunTestCmd()
	cmd.SetArgs([]string{"run", targetPath, "--generator", "python3 generate_suite.py"})

	require.NoError(t, cmd.Execute())
	mockEngine.AssertExpectations(t)
}

func TestRunCmd_SpecSelectsFunction(t *testing.T) {
	dir := t.TempDir()

	targetPath := filepath.Join(dir, "pair.go")
	source := "package pair\n\nfunc First(values []int) int { return values[0] }\n\nfunc Last(values []int) int { return values[len(values)-1] }\n"
	require.NoError(t, os.WriteFile(targetPath, []byte(source), 0o600))

	specPath := filepath.Join(dir, "drq.yaml")
	specSource := "name: last-element\nfunction: Last\nmin_coverage: 0.9\n"
	require.NoError(t, os.WriteFile(specPath, []byte(specSource), 0o600))

	suitesDir := filepath.Join(dir, "suites")
	require.NoError(t, os.Mkdir(suitesDir, 0o750))

	mockEngine := domainmocks.NewMockEngine(t)
	swapEngineFactory(t, mockEngine)

	mockEngine.On("Evolve", mock.Anything, mock.MatchedBy(func(args domain.EvolveArgs) bool {
		return args.Spec.Name == "last-element" &&
			args.Spec.MinCoverage == 0.9 &&
			args.Target.Function == "Last"
	})).Return(&m.Run{ID: "run-3", Status: m.RunCompleted}, nil)

	cmd := newRunTestCmd()
	cmd.SetArgs([]string{"run", targetPath, "--spec", specPath, "--suites", suitesDir})

	require.NoError(t, cmd.Execute())
	mockEngine.AssertExpectations(t)
}

func TestRunCmd_ConfigFromFlags(t *testing.T) {
	targetPath, suitesDir := writeRunFixture(t)

	mockEngine := domainmocks.NewMockEngine(t)
	configs := swapEngineFactory(t, mockEngine)

	mockEngine.On("Evolve", mock.Anything, mock.Anything).
		Return(&m.Run{ID: "run-4", Status: m.RunCompleted}, nil)

	cmd := newRunTestCmd()
	cmd.SetArgs([]string{
		"run", targetPath, "--suites", suitesDir,
		"--mutants", "7", "--parallel", "2", "--target-fitness", "0.8",
		"--timeout", "30s", "--seed", "11",
	})

	require.NoError(t, cmd.Execute())
	require.Len(t, *configs, 1)

	cfg := (*configs)[0]
	assert.Equal(t, 7, cfg.MutantCount)
	assert.Equal(t, 2, cfg.Parallel)
	assert.InDelta(t, 0.8, cfg.TargetFitness, 1e-9)
	assert.Equal(t, 30*time.Second, cfg.EvaluationTimeout)
	assert.Equal(t, int64(11), cfg.Seed)
	assert.Equal(t, m.DefaultFitnessWeights(), cfg.Weights)

	mockEngine.AssertExpectations(t)
}

func TestRunCmd_FailedRunPropagatesError(t *testing.T) {
	targetPath, suitesDir := writeRunFixture(t)

	mockEngine := domainmocks.NewMockEngine(t)
	swapEngineFactory(t, mockEngine)

	evolveErr := errors.New("generator gave up")
	mockEngine.On("Evolve", mock.Anything, mock.Anything).
		Return(&m.Run{ID: "run-5", Status: m.RunFailed}, evolveErr)

	cmd := newRunTestCmd()
	cmd.SetArgs([]string{"run", targetPath, "--suites", suitesDir})

	err := cmd.Execute()
	require.ErrorIs(t, err, evolveErr)
}

func TestRunCmd_RequiresTarget(t *testing.T) {
	cmd := newRunTestCmd()
	cmd.SetArgs([]string{"run"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "target source file is required")
}

func TestRunCmd_RequiresGenerator(t *testing.T) {
	targetPath, _ := writeRunFixture(t)

	cmd := newRunTestCmd()
	cmd.SetArgs([]string{"run", targetPath})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a test generator is required")
}

func TestRunCmd_RejectsMissingSuitesDir(t *testing.T) {
	targetPath, _ := writeRunFixture(t)

	cmd := newRunTestCmd()
	cmd.SetArgs([]string{"run", targetPath, "--suites", filepath.Join(t.TempDir(), "absent")})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "suites directory")
}

func TestRunCmd_RejectsGeneratorAndSuites(t *testing.T) {
	targetPath, suitesDir := writeRunFixture(t)

	cmd := newRunTestCmd()
	cmd.SetArgs([]string{"run", targetPath, "--suites", suitesDir, "--generator", "gen.sh"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mutually exclusive")
}

func TestRunCmd_RejectsUnknownFaultKind(t *testing.T) {
	targetPath, suitesDir := writeRunFixture(t)

	t.Setenv("DRQ_RUN_FAULT_KINDS", "comparison-swap banana")

	cmd := newRunTestCmd()
	cmd.SetArgs([]string{"run", targetPath, "--suites", suitesDir})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown fault kind")
}

func TestNewRunCmd(t *testing.T) {
	cmd := newRunCmd()

	assert.Equal(t, "run [target.go]", cmd.Use)
	assert.NotEmpty(t, cmd.Short)
	assert.Equal(t, runLongDescription, cmd.Long)

	for _, name := range []string{
		specFlagName, suitesFlagName, generatorFlagName, generationsFlagName,
		mutantsFlagName, parallelFlagName, targetFitnessFlagName,
		timeoutFlagName, seedFlagName, keepArtifactsFlagName,
	} {
		assert.NotNil(t, cmd.Flags().Lookup(name), "flag %s", name)
	}
}
