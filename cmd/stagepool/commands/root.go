// Package commands defines the CLI command structure and flag bindings.
package commands

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/spf13/cobra"

	"github.com/stagepool/stagepool/internal/config"
	"github.com/stagepool/stagepool/internal/orchestrator"
	ec2platform "github.com/stagepool/stagepool/internal/platform/ec2"
)

var (
	configPath string
	poolName   string
	region     string
)

// Root returns the root command for the stagepool CLI.
func Root() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stagepool",
		Short: "Maintain a reusable pool of cloud servers and volumes",
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")
	cmd.PersistentFlags().StringVar(&poolName, "pool", "", "pool name (overrides config)")
	cmd.PersistentFlags().StringVar(&region, "region", "", "region (overrides config)")

	cmd.AddCommand(Status())
	cmd.AddCommand(Scan())
	cmd.AddCommand(Cleanup())

	return cmd
}

// loadOptions resolves options from the config file and flag overrides.
func loadOptions() (config.Options, error) {
	opts := config.DefaultOptions()
	if configPath != "" {
		var err error
		opts, err = config.Load(configPath)
		if err != nil {
			return opts, err
		}
	}
	if poolName != "" {
		opts.PoolName = poolName
	}
	if region != "" {
		opts.Region = region
	}
	return opts, opts.Validate()
}

// newOrchestrator builds an orchestrator backed by the real remote API.
func newOrchestrator(ctx context.Context, opts config.Options) (*orchestrator.Orchestrator, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(opts.Region))
	if err != nil {
		return nil, fmt.Errorf("loading cloud credentials: %w", err)
	}
	gw := ec2platform.NewRealClient(awsCfg, config.LoadTimeouts())
	return orchestrator.New(opts, gw)
}
