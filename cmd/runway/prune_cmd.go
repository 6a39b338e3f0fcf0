package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newPruneCmd())
}

func newPruneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Forget records of assets that no longer match any input",
		Long: "Forget records of assets that no longer match any input.\n\n" +
			"Only the stored state and codegen outputs change. Uploaded assets are not deleted.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			project, err := openProject(cmd, 0)
			if err != nil {
				return err
			}
			defer project.Close()

			key, err := targetKey(cmd, project.Config())
			if err != nil {
				return err
			}

			pruned, err := project.Prune(key)
			out := cmd.OutOrStdout()
			for _, ident := range pruned {
				fmt.Fprintf(out, "  %s %s\n", yellow("-"), ident)
			}
			fmt.Fprintf(out, "%s %d records\n", green("pruned"), len(pruned))
			if err != nil && len(pruned) > 0 {
				// state was written, only codegen failed
				return fmt.Errorf("%w: %w", errPartial, err)
			}
			return err
		},
	}

	targetFlag(cmd)
	return cmd
}
