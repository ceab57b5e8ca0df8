package commands

import (
	"github.com/spf13/cobra"
)

// Cleanup returns the command that terminates everything the pool owns.
func Cleanup() *cobra.Command {
	var retainCredentials bool

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Terminate all servers owned by the pool",
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := loadOptions()
			if err != nil {
				return err
			}
			opts.RetainCredentials = retainCredentials

			ctx := cmd.Context()
			orch, err := newOrchestrator(ctx, opts)
			if err != nil {
				return err
			}

			if err := orch.Scan(ctx); err != nil {
				return err
			}
			return orch.TerminateAll(ctx)
		},
	}

	cmd.Flags().BoolVar(&retainCredentials, "retain-credentials", false,
		"keep local and remote key material after terminating")
	return cmd
}
