package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"drq.dev/pkg/drq/internal/adapter"
	"drq.dev/pkg/drq/internal/controller"
	m "drq.dev/pkg/drq/internal/model"
)

// historyCmd represents the history command.
var historyCmd = newHistoryCmd()

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [runID]",
		Short: "List recorded runs or inspect one run",
		Long:  historyLongDescription,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store := newHistoryStore()

			ui := controller.NewUI(cmd, stdoutIsTTY)
			if err := ui.Start(ctx, controller.WithHistoryMode()); err != nil {
				return err
			}

			if len(args) == 0 {
				runs, err := store.ListRuns(ctx)
				if err != nil {
					return err
				}

				return ui.DisplayRunList(ctx, runs)
			}

			run, err := loadRunByPrefix(ctx, store, args[0])
			if err != nil {
				return err
			}

			return ui.DisplayRunDetail(ctx, run)
		},
	}

	return cmd
}

func init() {
	rootCmd.AddCommand(historyCmd)
}

func newHistoryStore() adapter.HistoryStore {
	return adapter.NewLocalHistoryStore(fsAdapter, viper.GetString(outputConfigKey))
}

// loadRunByPrefix resolves a possibly abbreviated run ID against the store.
func loadRunByPrefix(ctx context.Context, store adapter.HistoryStore, id string) (*m.Run, error) {
	run, err := store.LoadRun(ctx, id)
	if err == nil {
		return run, nil
	}

	runs, listErr := store.ListRuns(ctx)
	if listErr != nil {
		return nil, err
	}

	var matches []string

	for _, candidate := range runs {
		if strings.HasPrefix(candidate.ID, id) {
			matches = append(matches, candidate.ID)
		}
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("no recorded run matches %q", id)
	case 1:
		return store.LoadRun(ctx, matches[0])
	default:
		return nil, fmt.Errorf("run ID %q is ambiguous (%d matches)", id, len(matches))
	}
}
