package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newCodegenCmd())
}

func newCodegenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "codegen",
		Short: "Regenerate codegen outputs from the stored records without syncing",
		Args:  cobra.NoArgs,
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

			written, err := project.Codegen(key)
			fmt.Fprintf(cmd.OutOrStdout(), "%s %d of %d outputs\n",
				green("generated"), written, len(project.Config().Codegens))
			if err != nil {
				return fmt.Errorf("%w: %w", errPartial, err)
			}
			return nil
		},
	}

	targetFlag(cmd)
	return cmd
}
