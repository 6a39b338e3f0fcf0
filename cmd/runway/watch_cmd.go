package main

import (
	"fmt"
	"log/slog"

	"github.com/runway-sync/runway/internal/runway"
	"github.com/runway-sync/runway/internal/sync"
	"github.com/runway-sync/runway/internal/watch"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newWatchCmd())
}

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Sync once, then again whenever an input file changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			debounce, _ := cmd.Flags().GetDuration("debounce")
			concurrency, _ := cmd.Flags().GetInt("concurrency")

			project, err := openProject(cmd, concurrency)
			if err != nil {
				return err
			}
			defer project.Close()

			key, err := targetKey(cmd, project.Config())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s, press Ctrl+C to stop\n", cyan("watching"), project.Config().Root())
			defer slog.Info("Bye!")

			return project.Watch(cmd.Context(), key, runway.WatchOptions{
				Debounce: debounce,
				OnPass: func(r *runway.Result) {
					printSummary(out, r)
				},
			})
		},
	}

	targetFlag(cmd)
	cmd.Flags().Duration("debounce", watch.DefaultDebounce, "quiet period after a change before syncing")
	cmd.Flags().IntP("concurrency", "j", sync.DefaultConcurrency, "maximum simultaneous uploads")
	return cmd
}
