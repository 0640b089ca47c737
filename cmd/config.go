package cmd

import (
	"errors"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"drq.dev/pkg/drq/internal/adapter"
	"drq.dev/pkg/drq/internal/domain"
	m "drq.dev/pkg/drq/internal/model"
)

const (
	configVersionKey     = "version"
	currentConfigVersion = 1

	configBaseName   = "drq"
	configFileName   = configBaseName + ".yaml"
	configFolderPath = "."

	outputFlagName        = "output"
	verboseFlagName       = "verbose"
	specFlagName          = "spec"
	suitesFlagName        = "suites"
	generatorFlagName     = "generator"
	generationsFlagName   = "generations"
	mutantsFlagName       = "mutants"
	parallelFlagName      = "parallel"
	targetFitnessFlagName = "target-fitness"
	timeoutFlagName       = "timeout"
	seedFlagName          = "seed"
	keepArtifactsFlagName = "keep-artifacts"

	outputConfigKey          = "output"
	runGeneratorKey          = "run.generator"
	runSuitesKey             = "run.suites"
	runGenerationsKey        = "run.generations"
	runMutantsKey            = "run.mutants"
	runFaultKindsKey         = "run.fault_kinds"
	runParallelKey           = "run.parallel"
	runEvalTimeoutKey        = "run.evaluation_timeout"
	runTargetFitnessKey      = "run.target_fitness"
	runMaxFailuresKey        = "run.max_consecutive_failures"
	runFalsePositiveKey      = "run.false_positive_tolerance"
	runSeedKey               = "run.seed"
	runKeepArtifactsKey      = "run.keep_artifacts"
	fitnessPassWeightKey     = "fitness.pass_weight"
	fitnessCoverageWeightKey = "fitness.coverage_weight"
	fitnessKillWeightKey     = "fitness.kill_weight"

	defaultRunsDir       = ".drq-runs"
	defaultKeepArtifacts = false
	defaultSeed          = int64(0)

	envPrefix = "DRQ"

	logFilenameKey   = "log.filename"
	logLevelKey      = "log.level"
	logVerboseKey    = "log.verbose"
	logMaxSizeKey    = "log.max_size"
	logMaxBackupsKey = "log.max_backups"
	logMaxAgeKey     = "log.max_age"
	logCompressKey   = "log.compress"

	defaultLogFilename   = ".drq.log"
	defaultLogLevel      = int(slog.LevelInfo)
	defaultLogVerbose    = false
	defaultLogMaxSize    = 10
	defaultLogMaxBackups = 3
	defaultLogMaxAge     = 28
	defaultLogCompress   = true
)

var globalLogger *slog.Logger

func init() {
	viper.SetConfigName(configBaseName)
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configFolderPath)
	viper.SetConfigFile(filepath.Join(configFolderPath, configFileName))
	viper.AutomaticEnv()
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	viper.SetDefault(configVersionKey, currentConfigVersion)
	viper.SetDefault(outputConfigKey, defaultRunsDir)
	viper.SetDefault(runGeneratorKey, "")
	viper.SetDefault(runSuitesKey, "")
	viper.SetDefault(runGenerationsKey, domain.DefaultGenerations)
	viper.SetDefault(runMutantsKey, domain.DefaultMutantCount)
	viper.SetDefault(runFaultKindsKey, []string{})
	viper.SetDefault(runParallelKey, domain.DefaultParallel)
	viper.SetDefault(runEvalTimeoutKey, adapter.DefaultEvalTimeout)
	viper.SetDefault(runTargetFitnessKey, domain.DefaultTargetFitness)
	viper.SetDefault(runMaxFailuresKey, domain.DefaultMaxConsecutiveFailures)
	viper.SetDefault(runFalsePositiveKey, 0)
	viper.SetDefault(runSeedKey, defaultSeed)
	viper.SetDefault(runKeepArtifactsKey, defaultKeepArtifacts)

	defaultWeights := m.DefaultFitnessWeights()
	viper.SetDefault(fitnessPassWeightKey, defaultWeights.Pass)
	viper.SetDefault(fitnessCoverageWeightKey, defaultWeights.Coverage)
	viper.SetDefault(fitnessKillWeightKey, defaultWeights.Kill)

	// Logging defaults (used by config/env and as fallbacks for flags).
	viper.SetDefault(logFilenameKey, defaultLogFilename)
	viper.SetDefault(logLevelKey, defaultLogLevel)
	viper.SetDefault(logVerboseKey, defaultLogVerbose)
	viper.SetDefault(logMaxSizeKey, defaultLogMaxSize)
	viper.SetDefault(logMaxBackupsKey, defaultLogMaxBackups)
	viper.SetDefault(logMaxAgeKey, defaultLogMaxAge)
	viper.SetDefault(logCompressKey, defaultLogCompress)

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return
		}

		return
	}
}

func parseSlogLevel(value string, defaultLevel slog.Level) slog.Level {
	level := strings.ToLower(strings.TrimSpace(value))
	if level == "" {
		return defaultLevel
	}

	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}

	// Allow numeric slog levels as well (e.g. -4 for debug).
	if n, err := strconv.Atoi(level); err == nil {
		return slog.Level(n)
	}

	return defaultLevel
}

// configureLogger configures the global slog logger.
//
// By default it logs at Info; if verbose is true it logs at Debug.
func configureLogger(logPath string, verbose bool) {
	if strings.TrimSpace(logPath) == "" {
		logPath = viper.GetString(logFilenameKey)
	}

	if strings.TrimSpace(logPath) == "" {
		logPath = defaultLogFilename
	}

	var logLevel slog.Level
	if verbose {
		logLevel = slog.LevelDebug
	} else {
		logLevel = parseSlogLevel(viper.GetString(logLevelKey), slog.LevelInfo)
	}

	logWriter := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    viper.GetInt(logMaxSizeKey),
		MaxBackups: viper.GetInt(logMaxBackupsKey),
		MaxAge:     viper.GetInt(logMaxAgeKey),
		Compress:   viper.GetBool(logCompressKey),
	}

	handler := slog.NewTextHandler(logWriter, &slog.HandlerOptions{
		AddSource: true,
		Level:     logLevel,
	})

	globalLogger = slog.New(handler)
	slog.SetDefault(globalLogger)
}
