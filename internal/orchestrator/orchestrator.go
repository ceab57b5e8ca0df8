// Package orchestrator ties the registry, provisioning engine, and
// lifecycle controller together under one handle with a scoped lifetime:
// constructing an Orchestrator acquires nothing, closing it runs the
// configured exit policy exactly once.
package orchestrator

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/stagepool/stagepool/internal/config"
	"github.com/stagepool/stagepool/internal/credstore"
	"github.com/stagepool/stagepool/internal/gateway"
	"github.com/stagepool/stagepool/internal/lifecycle"
	"github.com/stagepool/stagepool/internal/provision"
	"github.com/stagepool/stagepool/internal/registry"
	"github.com/stagepool/stagepool/internal/resource"
)

// Orchestrator manages one pool of remote resources. Two orchestrators
// never share state; run one per region or pool. A single orchestrator is
// one logical thread of control and is not safe for concurrent use.
type Orchestrator struct {
	opts     config.Options
	timeouts *config.Timeouts

	reg    *registry.Registry
	engine *provision.Engine
	ctl    *lifecycle.Controller

	closeOnce sync.Once
	closeErr  error
}

// New builds an orchestrator over the given gateway. Call Close (typically
// deferred immediately) to run the exit policy on every exit path.
func New(opts config.Options, gw gateway.Client) (*Orchestrator, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	timeouts := config.LoadTimeouts()
	reg := registry.New()
	creds := credstore.NewStore(opts.CredentialDir)

	return &Orchestrator{
		opts:     opts,
		timeouts: timeouts,
		reg:      reg,
		engine:   provision.NewEngine(gw, reg, creds, opts, timeouts),
		ctl:      lifecycle.NewController(gw, reg, creds, opts, timeouts),
	}, nil
}

// Registry exposes the resource index, e.g. for status reporting.
func (o *Orchestrator) Registry() *registry.Registry { return o.reg }

// Engine exposes the provisioning engine for policy overrides.
func (o *Orchestrator) Engine() *provision.Engine { return o.engine }

// AcquireServer returns a usable server satisfying the constraints.
func (o *Orchestrator) AcquireServer(ctx context.Context, c provision.ServerConstraints) (*resource.ManagedServer, error) {
	return o.engine.AcquireServer(ctx, c)
}

// AcquireVolume returns a usable volume satisfying the constraints.
func (o *Orchestrator) AcquireVolume(ctx context.Context, c provision.VolumeConstraints) (*resource.ManagedVolume, error) {
	return o.engine.AcquireVolume(ctx, c)
}

// AttachVolume attaches a volume to a server and waits for convergence.
func (o *Orchestrator) AttachVolume(ctx context.Context, vol *resource.ManagedVolume, srv *resource.ManagedServer, device string) error {
	return o.engine.AttachVolume(ctx, vol, srv, device)
}

// DetachVolume detaches a volume and waits for convergence.
func (o *Orchestrator) DetachVolume(ctx context.Context, vol *resource.ManagedVolume) error {
	return o.engine.DetachVolume(ctx, vol)
}

// StartAll starts every registered server.
func (o *Orchestrator) StartAll(ctx context.Context) error { return o.ctl.StartAll(ctx) }

// StopAll stops every registered server.
func (o *Orchestrator) StopAll(ctx context.Context) error { return o.ctl.StopAll(ctx) }

// TerminateAll terminates every registered server and deletes credential
// material unless retention is configured.
func (o *Orchestrator) TerminateAll(ctx context.Context) error { return o.ctl.TerminateAll(ctx) }

// Scan adopts orphaned resources bearing this pool's ownership marker.
func (o *Orchestrator) Scan(ctx context.Context) error { return o.ctl.Scan(ctx) }

// Close runs the configured exit policy exactly once. Subsequent calls
// return the first result. A failed cleanup is reported, never masked.
func (o *Orchestrator) Close(ctx context.Context) error {
	o.closeOnce.Do(func() {
		log.Printf("[Orchestrator] Closing pool %s (exit policy: %s)", o.opts.PoolName, o.opts.ExitPolicy)
		if err := o.ctl.ExecutePolicy(ctx, o.opts.ExitPolicy); err != nil {
			o.closeErr = fmt.Errorf("exit policy %s: %w", o.opts.ExitPolicy, err)
		}
	})
	return o.closeErr
}
