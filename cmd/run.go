package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"drq.dev/pkg/drq/internal/adapter"
	"drq.dev/pkg/drq/internal/controller"
	"drq.dev/pkg/drq/internal/domain"
	m "drq.dev/pkg/drq/internal/model"
)

var runSpecFlag string
var runSuitesFlag string
var runGeneratorFlag string
var runGenerationsFlag int
var runMutantsFlag int
var runParallelFlag int
var runTargetFitnessFlag float64
var runTimeoutFlag time.Duration
var runSeedFlag int64
var runKeepArtifactsFlag bool

// newEvolutionEngine builds a fully wired engine for one run. Tests swap
// this out for a mock.
var newEvolutionEngine = func(cmd *cobra.Command, cfg domain.Config) domain.Engine {
	sandbox := adapter.NewLocalSandboxRunner(fsAdapter,
		adapter.WithKeepArtifacts(viper.GetBool(runKeepArtifactsKey)))
	history := adapter.NewLocalHistoryStore(fsAdapter, viper.GetString(outputConfigKey))
	ui := controller.NewUI(cmd, stdoutIsTTY)
	injector := domain.NewFaultInjector(goFileAdapter)

	return domain.NewEngine(goFileAdapter, injector, sandbox, history, ui, cfg)
}

// runCmd represents the run command.
var runCmd = newRunCmd()

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [target.go]",
		Short: "Evolve a test suite for one Go function",
		Long:  runLongDescription,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return fmt.Errorf("a target source file is required")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			spec, err := loadTargetSpec(runSpecFlag)
			if err != nil {
				return err
			}

			target, err := targetLoader.LoadTarget(m.Path(args[0]), spec.Function)
			if err != nil {
				return err
			}

			generator, err := selectGenerator()
			if err != nil {
				return err
			}

			cfg, err := buildRunConfig()
			if err != nil {
				return err
			}

			engine := newEvolutionEngine(cmd, cfg)

			_, err = engine.Evolve(ctx, domain.EvolveArgs{
				Target:    target,
				Spec:      spec,
				Generator: generator,
			})

			return err
		},
	}

	configureRunFlags(cmd)

	return cmd
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func configureRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&runSpecFlag, specFlagName, "s", "", "target spec file (yaml: name, function, description, min_coverage, ...)")

	cmd.Flags().StringVarP(&runGeneratorFlag, generatorFlagName, "g", "", "external generator command, whitespace-split (request arrives as yaml on stdin)")
	bindFlagToConfig(cmd.Flags().Lookup(generatorFlagName), runGeneratorKey)

	cmd.Flags().StringVar(&runSuitesFlag, suitesFlagName, "", "directory of pre-written candidate suites to replay in lexical order")
	bindFlagToConfig(cmd.Flags().Lookup(suitesFlagName), runSuitesKey)

	cmd.Flags().IntVar(&runGenerationsFlag, generationsFlagName, domain.DefaultGenerations, "generation budget for the run")
	bindFlagToConfig(cmd.Flags().Lookup(generationsFlagName), runGenerationsKey)

	cmd.Flags().IntVar(&runMutantsFlag, mutantsFlagName, domain.DefaultMutantCount, "number of mutants to seed into the target")
	bindFlagToConfig(cmd.Flags().Lookup(mutantsFlagName), runMutantsKey)

	cmd.Flags().IntVarP(&runParallelFlag, parallelFlagName, "p", domain.DefaultParallel, "number of parallel sandbox evaluations")
	bindFlagToConfig(cmd.Flags().Lookup(parallelFlagName), runParallelKey)

	cmd.Flags().Float64Var(&runTargetFitnessFlag, targetFitnessFlagName, domain.DefaultTargetFitness, "fitness at which the run stops early")
	bindFlagToConfig(cmd.Flags().Lookup(targetFitnessFlagName), runTargetFitnessKey)

	cmd.Flags().DurationVar(&runTimeoutFlag, timeoutFlagName, adapter.DefaultEvalTimeout, "wall-clock limit per sandbox evaluation")
	bindFlagToConfig(cmd.Flags().Lookup(timeoutFlagName), runEvalTimeoutKey)

	cmd.Flags().Int64Var(&runSeedFlag, seedFlagName, defaultSeed, "mutant selection seed (0 derives one from the run ID)")
	bindFlagToConfig(cmd.Flags().Lookup(seedFlagName), runSeedKey)

	cmd.Flags().BoolVar(&runKeepArtifactsFlag, keepArtifactsFlagName, defaultKeepArtifacts, "keep sandbox workspaces for debugging instead of deleting them")
	bindFlagToConfig(cmd.Flags().Lookup(keepArtifactsFlagName), runKeepArtifactsKey)
}

// loadTargetSpec decodes the target spec file, if one was named.
func loadTargetSpec(path string) (m.TargetSpec, error) {
	if path == "" {
		return m.TargetSpec{}, nil
	}

	data, err := fsAdapter.ReadFile(m.Path(path))
	if err != nil {
		return m.TargetSpec{}, fmt.Errorf("failed to read spec %s: %w", path, err)
	}

	var spec m.TargetSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return m.TargetSpec{}, fmt.Errorf("failed to parse spec %s: %w", path, err)
	}

	return spec, nil
}

// selectGenerator picks the candidate source for the run: an external
// command or a replay directory, never both.
func selectGenerator() (adapter.TestGenerator, error) {
	suitesDir := viper.GetString(runSuitesKey)
	command := strings.TrimSpace(viper.GetString(runGeneratorKey))

	switch {
	case suitesDir != "" && command != "":
		return nil, fmt.Errorf("--%s and --%s are mutually exclusive", generatorFlagName, suitesFlagName)
	case suitesDir != "":
		info, err := fsAdapter.FileInfo(m.Path(suitesDir))
		if err != nil {
			return nil, fmt.Errorf("suites directory %s: %w", suitesDir, err)
		}

		if !info.IsDir() {
			return nil, fmt.Errorf("suites path %s is not a directory", suitesDir)
		}

		return adapter.NewReplayGenerator(fsAdapter, m.Path(suitesDir)), nil
	case command != "":
		parts := strings.Fields(command)
		return adapter.NewCommandGenerator(parts[0], parts[1:]), nil
	default:
		return nil, fmt.Errorf("a test generator is required: set --%s or --%s", generatorFlagName, suitesFlagName)
	}
}

func buildRunConfig() (domain.Config, error) {
	kinds, err := parseFaultKinds(viper.GetStringSlice(runFaultKindsKey))
	if err != nil {
		return domain.Config{}, err
	}

	return domain.Config{
		Generations:            viper.GetInt(runGenerationsKey),
		MutantCount:            viper.GetInt(runMutantsKey),
		FaultKinds:             kinds,
		Parallel:               viper.GetInt(runParallelKey),
		EvaluationTimeout:      viper.GetDuration(runEvalTimeoutKey),
		TargetFitness:          viper.GetFloat64(runTargetFitnessKey),
		MaxConsecutiveFailures: viper.GetInt(runMaxFailuresKey),
		FalsePositiveTolerance: viper.GetInt(runFalsePositiveKey),
		Seed:                   viper.GetInt64(runSeedKey),
		Weights: m.FitnessWeights{
			Pass:     viper.GetFloat64(fitnessPassWeightKey),
			Coverage: viper.GetFloat64(fitnessCoverageWeightKey),
			Kill:     viper.GetFloat64(fitnessKillWeightKey),
		},
	}, nil
}

// parseFaultKinds validates the configured fault kinds. An empty list means
// every kind.
func parseFaultKinds(values []string) ([]m.FaultKind, error) {
	if len(values) == 0 {
		return nil, nil
	}

	known := make(map[m.FaultKind]bool)
	for _, kind := range m.AllFaultKinds() {
		known[kind] = true
	}

	kinds := make([]m.FaultKind, 0, len(values))

	for _, value := range values {
		kind := m.FaultKind(strings.TrimSpace(value))
		if !known[kind] {
			return nil, fmt.Errorf("unknown fault kind %q", value)
		}

		kinds = append(kinds, kind)
	}

	return kinds, nil
}
