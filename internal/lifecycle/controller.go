// Package lifecycle implements bulk state changes over the registry and
// the cleanup executed when an orchestrator's lifetime ends.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/stagepool/stagepool/internal/config"
	"github.com/stagepool/stagepool/internal/credstore"
	"github.com/stagepool/stagepool/internal/gateway"
	"github.com/stagepool/stagepool/internal/poll"
	"github.com/stagepool/stagepool/internal/registry"
	"github.com/stagepool/stagepool/internal/resource"
	"github.com/stagepool/stagepool/internal/util/tags"
)

// Controller issues bulk operations through the gateway and confirms each
// transition with the convergence poller. It never swallows a failed bulk
// operation: unconfirmed transitions surface as errors.
type Controller struct {
	gw       gateway.Client
	reg      *registry.Registry
	creds    *credstore.Store
	opts     config.Options
	timeouts *config.Timeouts
}

// NewController wires a controller to its collaborators.
func NewController(gw gateway.Client, reg *registry.Registry, creds *credstore.Store, opts config.Options, timeouts *config.Timeouts) *Controller {
	return &Controller{gw: gw, reg: reg, creds: creds, opts: opts, timeouts: timeouts}
}

// StartAll starts every registered server and waits for all to be running.
func (c *Controller) StartAll(ctx context.Context) error {
	servers := c.servers()
	if len(servers) == 0 {
		return nil
	}
	log.Printf("[Lifecycle] Starting %d servers", len(servers))
	if err := c.gw.StartServers(ctx, serverIDs(servers)); err != nil {
		return fmt.Errorf("bulk start: %w", err)
	}
	_, err := poll.AwaitTerminal(ctx, pollables(servers),
		[]string{resource.StateRunning, resource.StateTerminated},
		c.timeouts.Lifecycle, poll.WithInterval(c.timeouts.PollInterval))
	if err != nil {
		return fmt.Errorf("confirming start: %w", err)
	}
	return nil
}

// StopAll stops every registered server and waits for all to be stopped.
func (c *Controller) StopAll(ctx context.Context) error {
	servers := c.servers()
	if len(servers) == 0 {
		return nil
	}
	log.Printf("[Lifecycle] Stopping %d servers", len(servers))
	if err := c.gw.StopServers(ctx, serverIDs(servers)); err != nil {
		return fmt.Errorf("bulk stop: %w", err)
	}
	_, err := poll.AwaitTerminal(ctx, pollables(servers),
		[]string{resource.StateStopped, resource.StateTerminated},
		c.timeouts.Lifecycle, poll.WithInterval(c.timeouts.PollInterval))
	if err != nil {
		return fmt.Errorf("confirming stop: %w", err)
	}
	for _, srv := range servers {
		srv.SetReachable(false)
	}
	return nil
}

// TerminateAll terminates every registered server, waits for confirmation,
// evicts the confirmed ones from the registry, and deletes the pool's
// credential material unless the retain policy is set.
func (c *Controller) TerminateAll(ctx context.Context) error {
	var errs []error

	servers := c.servers()
	if len(servers) > 0 {
		log.Printf("[Lifecycle] Terminating %d servers", len(servers))
		if err := c.gw.TerminateServers(ctx, serverIDs(servers)); err != nil {
			errs = append(errs, fmt.Errorf("bulk terminate: %w", err))
		} else {
			states, err := poll.AwaitTerminal(ctx, pollables(servers),
				[]string{resource.StateTerminated},
				c.timeouts.Lifecycle, poll.WithInterval(c.timeouts.PollInterval))
			if err != nil {
				errs = append(errs, fmt.Errorf("confirming termination: %w", err))
			} else {
				for _, srv := range servers {
					if states[srv.ID()] == resource.StateTerminated {
						c.reg.Unregister(srv.ID())
					}
				}
			}
		}
	}

	if !c.opts.RetainCredentials {
		name := c.opts.CredentialName()
		if err := c.gw.DeleteKeyPair(ctx, name); err != nil {
			errs = append(errs, fmt.Errorf("deleting remote key pair %s: %w", name, err))
		}
		if err := c.creds.Delete(name); err != nil {
			errs = append(errs, fmt.Errorf("deleting local credential %s: %w", name, err))
		}
	}

	return errors.Join(errs...)
}

// ExecutePolicy applies the configured exit disposition.
func (c *Controller) ExecutePolicy(ctx context.Context, policy config.ExitPolicy) error {
	switch policy {
	case config.ExitTerminate:
		return c.TerminateAll(ctx)
	case config.ExitStop:
		return c.StopAll(ctx)
	case config.ExitLeaveRunning:
		return nil
	default:
		return fmt.Errorf("unknown exit policy %q", policy)
	}
}

// Scan queries the gateway for resources bearing this pool's ownership
// marker and registers handles for any the registry does not know yet.
// This is how a fresh orchestrator adopts resources a previous instance
// left behind instead of leaking them. It reports which adoptions failed
// without abandoning the rest.
func (c *Controller) Scan(ctx context.Context) error {
	selector := tags.SelectorForPool(c.opts.PoolName)
	var errs []error

	serverInfos, err := c.gw.DescribeServersByTag(ctx, selector)
	if err != nil {
		errs = append(errs, fmt.Errorf("scanning servers: %w", err))
	}
	adopted := 0
	for _, info := range serverInfos {
		if info.State == resource.StateTerminated || info.State == resource.StateShutting {
			continue
		}
		if _, known := c.reg.FindByID(info.ID); known {
			continue
		}
		if err := c.reg.Register(resource.NewManagedServer(info, c.gw)); err != nil {
			errs = append(errs, fmt.Errorf("adopting server %s: %w", info.ID, err))
			continue
		}
		adopted++
	}

	volumeInfos, err := c.gw.DescribeVolumesByTag(ctx, selector)
	if err != nil {
		errs = append(errs, fmt.Errorf("scanning volumes: %w", err))
	}
	for _, info := range volumeInfos {
		if info.State == resource.VolumeDeleting || info.State == resource.VolumeDeleted {
			continue
		}
		if _, known := c.reg.FindByID(info.ID); known {
			continue
		}
		name := info.Tags[tags.KeyName]
		if err := c.reg.Register(resource.NewManagedVolume(info, name, c.gw)); err != nil {
			errs = append(errs, fmt.Errorf("adopting volume %s: %w", info.ID, err))
			continue
		}
		adopted++
	}

	if adopted > 0 {
		log.Printf("[Lifecycle] Adopted %d orphaned resources for pool %s", adopted, c.opts.PoolName)
	}
	return errors.Join(errs...)
}

func (c *Controller) servers() []*resource.ManagedServer {
	var out []*resource.ManagedServer
	for _, r := range c.reg.All() {
		if srv, ok := r.(*resource.ManagedServer); ok {
			out = append(out, srv)
		}
	}
	return out
}

func serverIDs(servers []*resource.ManagedServer) []string {
	ids := make([]string, len(servers))
	for i, s := range servers {
		ids[i] = s.ID()
	}
	return ids
}

func pollables(servers []*resource.ManagedServer) []poll.Pollable {
	out := make([]poll.Pollable, len(servers))
	for i, s := range servers {
		out[i] = s
	}
	return out
}
