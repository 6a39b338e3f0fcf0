package main

import (
	"github.com/runway-sync/runway/internal/sync"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newSyncCmd())
}

func newSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Sync changed assets to a target and regenerate codegen outputs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			force, _ := cmd.Flags().GetBool("force")
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

			result, err := project.Sync(cmd.Context(), key, force)
			if result != nil && result.Report != nil {
				printSummary(cmd.OutOrStdout(), result)
			}
			if err != nil {
				return err
			}
			if !result.Clean() {
				return errPartial
			}
			return nil
		},
	}

	targetFlag(cmd)
	cmd.Flags().BoolP("force", "f", false, "re-sync every asset, ignoring stored fingerprints")
	cmd.Flags().IntP("concurrency", "j", sync.DefaultConcurrency, "maximum simultaneous uploads")
	return cmd
}
