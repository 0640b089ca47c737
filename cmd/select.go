package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	m "drq.dev/pkg/drq/internal/model"
)

// defaultExportFileName is where select writes the suite when --output is
// not given.
const defaultExportFileName = "best_suite_test.go"

var selectOutputFlag string

// selectCmd represents the select command.
var selectCmd = newSelectCmd()

func newSelectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "select <runID>",
		Short: "Export the best suite of a recorded run",
		Long:  selectLongDescription,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store := newHistoryStore()

			run, err := loadRunByPrefix(ctx, store, args[0])
			if err != nil {
				return err
			}

			if run.BestIndex == 0 {
				return fmt.Errorf("run %s never accepted a suite", run.ID)
			}

			suite, err := store.LoadSuite(ctx, run.ID, run.BestIndex)
			if err != nil {
				return err
			}

			dest := selectOutputFlag
			if dest == "" {
				dest = defaultExportFileName
			}

			if err := fsAdapter.WriteFile(m.Path(dest), suite, 0o644); err != nil {
				return fmt.Errorf("failed to write suite to %s: %w", dest, err)
			}

			cmd.Printf("Exported generation %d of run %s to %s\n", run.BestIndex, run.ID, dest)

			return nil
		},
	}

	// Shadows the root --output (runs directory): for select, --output
	// names the destination file. The runs directory still comes from
	// config or the environment.
	cmd.Flags().StringVarP(&selectOutputFlag, outputFlagName, "o", "", "destination file for the exported suite")

	return cmd
}

func init() {
	rootCmd.AddCommand(selectCmd)
}
