package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stagepool/stagepool/internal/config"
)

// Scan returns the command that adopts orphaned resources into the pool.
func Scan() *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Adopt resources left behind by a previous orchestrator",
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := loadOptions()
			if err != nil {
				return err
			}
			opts.ExitPolicy = config.ExitLeaveRunning

			ctx := cmd.Context()
			orch, err := newOrchestrator(ctx, opts)
			if err != nil {
				return err
			}
			defer orch.Close(ctx)

			if err := orch.Scan(ctx); err != nil {
				return err
			}
			fmt.Printf("pool %s: %d resources registered\n", opts.PoolName, orch.Registry().Len())
			return nil
		},
	}
}
