package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stagepool/stagepool/internal/config"
	"github.com/stagepool/stagepool/internal/resource"
)

// Status returns the command that lists every resource owned by the pool.
func Status() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "List servers and volumes owned by the pool",
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := loadOptions()
			if err != nil {
				return err
			}
			// Status must never mutate remote state, whatever the
			// configured policy says.
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

			all := orch.Registry().All()
			if len(all) == 0 {
				fmt.Printf("pool %s: no resources\n", opts.PoolName)
				return nil
			}
			for _, r := range all {
				switch res := r.(type) {
				case *resource.ManagedServer:
					fmt.Printf("server  %-22s zone=%-12s state=%s\n", res.ID(), res.Zone(), res.State())
				case *resource.ManagedVolume:
					fmt.Printf("volume  %-22s zone=%-12s state=%-10s size=%dGiB\n",
						res.ID(), res.Zone(), res.State(), res.SizeGiB())
				}
			}
			return nil
		},
	}
}
