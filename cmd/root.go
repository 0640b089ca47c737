// Package cmd provides the root command and CLI setup for drq.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"drq.dev/pkg/drq/internal/adapter"
	"drq.dev/pkg/drq/internal/controller"
)

var goFileAdapter adapter.GoFileAdapter
var fsAdapter adapter.SourceFSAdapter
var targetLoader adapter.TargetLoader

// stdoutIsTTY decides between the live TUI and plain output. Tests force it
// off so command output lands in their buffers.
var stdoutIsTTY = controller.IsTTY(os.Stdout)

// runsDirFlag is a root-level flag shared by commands that read/write run
// records.
var runsDirFlag string

// verboseFlag raises the log level to debug.
var verboseFlag bool

func init() {
	// Initialize shared dependencies.
	goFileAdapter = adapter.NewLocalGoFileAdapter()
	fsAdapter = adapter.NewLocalSourceFSAdapter()
	targetLoader = adapter.NewLocalTargetLoader(fsAdapter, goFileAdapter)
}

const rootLongDescription = `Drq evolves a unit test suite for a single Go function. Each generation an
external generator proposes a candidate suite; drq runs it in isolation
against the real implementation and against a fixed population of seeded
faults, scores the result, and keeps the best suite it has seen.

Candidate suites come from the command named by --generator (fed the
request as YAML on stdin) or from a directory of pre-written suites
(--suites). Finished runs are stored under the output directory and can be
inspected with "drq history" and exported with "drq select".`

const runLongDescription = `Run the evolution loop against one target source file.

The target function is taken from the spec file (--spec) or inferred when
the file declares exactly one exported function. Every generation and its
candidate suite are persisted as soon as they are scored, so an interrupted
run remains inspectable.`

const historyLongDescription = `List recorded runs, or show one run generation by generation.

The run ID may be abbreviated to any unique prefix, such as the eight
characters the run table shows.`

const selectLongDescription = `Write the best accepted suite of a recorded run to a file.

The run ID may be abbreviated to any unique prefix. The export fails when
the run never accepted a suite.`

// rootCmd represents the base command when called without any subcommands.
var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drq",
		Short: "Test-suite evolution for Go functions",
		Long:  rootLongDescription,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			configureLogger("", viper.GetBool(logVerboseKey))
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	configureRootFlags(cmd)

	return cmd
}

func configureRootFlags(cmd *cobra.Command) {
	// Flag defaults come from the shared constants, not viper: command
	// variables initialize before the config defaults are registered.
	cmd.PersistentFlags().
		StringVarP(
			&runsDirFlag, outputFlagName, "o",
			defaultRunsDir,
			"output directory for run records and evolved suites",
		)
	bindFlagToConfig(cmd.PersistentFlags().Lookup(outputFlagName), outputConfigKey)

	cmd.PersistentFlags().BoolVarP(&verboseFlag, verboseFlagName, "v", defaultLogVerbose, "log at debug level")
	bindFlagToConfig(cmd.PersistentFlags().Lookup(verboseFlagName), logVerboseKey)
}

// bindFlagToConfig wires a Cobra flag to a Viper key so config/env values feed the flag.
func bindFlagToConfig(flag *pflag.Flag, key string) {
	if flag == nil {
		cobra.CheckErr(fmt.Errorf("flag for config key %q not found", key))
		return
	}

	cobra.CheckErr(viper.BindPFlag(key, flag))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
