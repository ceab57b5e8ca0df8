// Package provision implements the provisioning engine: the reuse-or-create
// decision logic that turns an acquisition request into a usable, registered
// resource handle.
package provision

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/stagepool/stagepool/internal/config"
	"github.com/stagepool/stagepool/internal/credstore"
	"github.com/stagepool/stagepool/internal/gateway"
	"github.com/stagepool/stagepool/internal/poll"
	"github.com/stagepool/stagepool/internal/probe"
	"github.com/stagepool/stagepool/internal/registry"
	"github.com/stagepool/stagepool/internal/resource"
	"github.com/stagepool/stagepool/internal/util/tags"
)

// ServerConstraints narrow a server acquisition. Zero values fall back to
// the orchestrator options.
type ServerConstraints struct {
	Zone           string
	InstanceClass  string
	ImagePattern   string
	Architecture   string
	RootDeviceType string
}

// VolumeConstraints narrow a volume acquisition.
type VolumeConstraints struct {
	// Name is the volume's logical name. Empty means an auto-incrementing
	// name unique to this orchestrator instance.
	Name       string
	SizeGiB    int32
	Filesystem string
	Zone       string
}

// Engine acquires servers and volumes, reusing registered idle resources
// where policy allows and provisioning through the gateway otherwise.
// It is not safe for concurrent use; one orchestrator drives one engine.
type Engine struct {
	gw       gateway.Client
	reg      *registry.Registry
	creds    *credstore.Store
	opts     config.Options
	timeouts *config.Timeouts

	zonePolicy ZonePolicy
	prober     probe.Prober

	volumeSeq int
}

// NewEngine wires an engine to its collaborators.
func NewEngine(gw gateway.Client, reg *registry.Registry, creds *credstore.Store, opts config.Options, timeouts *config.Timeouts) *Engine {
	return &Engine{
		gw:         gw,
		reg:        reg,
		creds:      creds,
		opts:       opts,
		timeouts:   timeouts,
		zonePolicy: NewMostActivePolicy(),
	}
}

// SetZonePolicy replaces the default zone-selection policy.
func (e *Engine) SetZonePolicy(p ZonePolicy) { e.zonePolicy = p }

// SetProber replaces the default SSH readiness prober.
func (e *Engine) SetProber(p probe.Prober) { e.prober = p }

// AcquireServer returns a usable server satisfying the constraints: an
// idle registered one when reuse is enabled, otherwise a newly provisioned
// one driven to running and reachable. A convergence or readiness timeout
// is a hard failure that leaves the new server registered; its disposal
// belongs to the cleanup policy, not to provisioning.
func (e *Engine) AcquireServer(ctx context.Context, c ServerConstraints) (*resource.ManagedServer, error) {
	e.applyServerDefaults(&c)

	zone := c.Zone
	if zone == "" {
		var err error
		zone, err = e.selectZone(ctx)
		if err != nil {
			return nil, err
		}
	}

	if e.opts.ReuseServers {
		if srv := e.findIdleServer(zone, c.InstanceClass); srv != nil {
			log.Printf("[Provision] Reusing server %s in %s", srv.ID(), zone)
			return srv, nil
		}
	}

	image, err := e.resolveImage(ctx, c)
	if err != nil {
		return nil, err
	}

	cred, err := e.ensureCredential(ctx)
	if err != nil {
		return nil, err
	}

	ingressID, err := e.gw.EnsureIngressPolicy(ctx, e.opts.IngressPolicyName(),
		"stagepool managed server access", []int32{22})
	if err != nil {
		return nil, fmt.Errorf("ensuring ingress policy: %w", err)
	}

	log.Printf("[Provision] Creating server in %s (class %s, image %s)", zone, c.InstanceClass, image.Name)

	info, err := e.gw.CreateServer(ctx, gateway.CreateServerOpts{
		Zone:            zone,
		ImageID:         image.ID,
		InstanceClass:   c.InstanceClass,
		KeyName:         cred.Name,
		IngressPolicyID: ingressID,
		Tags: tags.NewBuilder(e.opts.PoolName).
			WithUser(e.opts.User).
			WithRole(tags.RoleServer).
			Build(),
	})
	if err != nil {
		return nil, fmt.Errorf("creating server: %w", err)
	}

	srv := resource.NewManagedServer(info, e.gw)
	if err := e.reg.Register(srv); err != nil {
		return nil, err
	}

	states, err := poll.AwaitTerminal(ctx, []poll.Pollable{srv},
		[]string{resource.StateRunning, resource.StateTerminated},
		e.timeouts.ServerRunning, poll.WithInterval(e.timeouts.PollInterval))
	if err != nil {
		return nil, fmt.Errorf("server %s registered but did not reach running: %w", srv.ID(), err)
	}
	if states[srv.ID()] != resource.StateRunning {
		return nil, fmt.Errorf("server %s entered %s instead of running", srv.ID(), states[srv.ID()])
	}

	prober := e.prober
	if prober == nil {
		prober = probe.NewSSHProber(e.opts.SSHUser, cred.PrivateKey)
	}
	reached, err := probe.AwaitReachable(ctx, []probe.Target{srv}, prober,
		e.timeouts.Reachable, probe.WithInterval(e.timeouts.ProbeInterval))
	srv.SetReachable(reached[srv.ID()])
	if err != nil {
		return nil, fmt.Errorf("server %s running but not reachable: %w", srv.ID(), err)
	}

	log.Printf("[Provision] Server %s ready in %s", srv.ID(), zone)
	return srv, nil
}

// AcquireVolume returns a usable volume handle. Creation does not block on
// remote convergence; attach and detach transitions do.
func (e *Engine) AcquireVolume(ctx context.Context, c VolumeConstraints) (*resource.ManagedVolume, error) {
	if c.SizeGiB == 0 {
		c.SizeGiB = e.opts.VolumeSizeGiB
	}

	zone := c.Zone
	if zone == "" {
		var err error
		zone, err = e.volumeZone(ctx)
		if err != nil {
			return nil, err
		}
	}

	if e.opts.ReuseVolumes {
		if vol := e.findIdleVolume(zone, c.Name, c.SizeGiB); vol != nil {
			log.Printf("[Provision] Reusing volume %s in %s", vol.ID(), zone)
			return vol, nil
		}
	}

	name := c.Name
	if name == "" {
		e.volumeSeq++
		name = fmt.Sprintf("%s-vol-%d", e.opts.PoolName, e.volumeSeq)
	}

	log.Printf("[Provision] Creating volume %s in %s (%d GiB)", name, zone, c.SizeGiB)

	info, err := e.gw.CreateVolume(ctx, gateway.CreateVolumeOpts{
		Zone:    zone,
		SizeGiB: c.SizeGiB,
		Tags: tags.NewBuilder(e.opts.PoolName).
			WithUser(e.opts.User).
			WithRole(tags.RoleVolume).
			WithName(name).
			Build(),
	})
	if err != nil {
		return nil, fmt.Errorf("creating volume: %w", err)
	}

	vol := resource.NewManagedVolume(info, name, e.gw)
	if err := e.reg.Register(vol); err != nil {
		return nil, err
	}
	return vol, nil
}

// AttachVolume attaches a volume to a server and waits for the attachment
// to converge. Cross-zone attachment is rejected before any remote call.
func (e *Engine) AttachVolume(ctx context.Context, vol *resource.ManagedVolume, srv *resource.ManagedServer, device string) error {
	if vol.Zone() != srv.Zone() {
		return fmt.Errorf("volume %s in zone %s cannot attach to server %s in zone %s",
			vol.ID(), vol.Zone(), srv.ID(), srv.Zone())
	}

	if err := e.gw.AttachVolume(ctx, vol.ID(), srv.ID(), device); err != nil {
		return fmt.Errorf("attaching volume %s: %w", vol.ID(), err)
	}

	_, err := poll.AwaitTerminal(ctx, []poll.Pollable{vol.AttachmentView()},
		[]string{resource.AttachAttached},
		e.timeouts.Attach, poll.WithInterval(e.timeouts.PollInterval))
	if err != nil {
		return fmt.Errorf("volume %s attach did not converge: %w", vol.ID(), err)
	}
	return vol.SetAttachment(srv, device)
}

// DetachVolume detaches a volume and waits for the detachment to converge.
func (e *Engine) DetachVolume(ctx context.Context, vol *resource.ManagedVolume) error {
	if err := e.gw.DetachVolume(ctx, vol.ID()); err != nil {
		return fmt.Errorf("detaching volume %s: %w", vol.ID(), err)
	}

	_, err := poll.AwaitTerminal(ctx, []poll.Pollable{vol.AttachmentView()},
		[]string{resource.AttachDetached},
		e.timeouts.Attach, poll.WithInterval(e.timeouts.PollInterval))
	if err != nil {
		return fmt.Errorf("volume %s detach did not converge: %w", vol.ID(), err)
	}
	return vol.SetAttachment(nil, "")
}

func (e *Engine) applyServerDefaults(c *ServerConstraints) {
	if c.InstanceClass == "" {
		c.InstanceClass = e.opts.InstanceClass
	}
	if c.ImagePattern == "" {
		c.ImagePattern = e.opts.ImagePattern
	}
	if c.Architecture == "" {
		c.Architecture = e.opts.Architecture
	}
	if c.RootDeviceType == "" {
		c.RootDeviceType = e.opts.RootDeviceType
	}
	if c.Zone == "" {
		c.Zone = e.opts.Zone
	}
}

func (e *Engine) selectZone(ctx context.Context) (string, error) {
	zones, err := e.gw.AvailableZones(ctx)
	if err != nil {
		return "", fmt.Errorf("listing zones: %w", err)
	}
	zone, err := e.zonePolicy.Select(e.reg, zones)
	if err != nil {
		return "", fmt.Errorf("selecting zone: %w", err)
	}
	return zone, nil
}

// volumeZone derives a zone for a new volume from an already-reachable
// server, provisioning one if the registry has none.
func (e *Engine) volumeZone(ctx context.Context) (string, error) {
	for _, r := range e.reg.All() {
		if srv, ok := r.(*resource.ManagedServer); ok && srv.Reachable() {
			return srv.Zone(), nil
		}
	}
	srv, err := e.AcquireServer(ctx, ServerConstraints{})
	if err != nil {
		return "", fmt.Errorf("provisioning server to anchor volume zone: %w", err)
	}
	return srv.Zone(), nil
}

// findIdleServer returns a running registered server in the zone matching
// the instance class. Image and root-device constraints are not part of
// reuse matching: an idle server satisfies an acquisition regardless of
// the image it was built from.
func (e *Engine) findIdleServer(zone, instanceClass string) *resource.ManagedServer {
	for _, r := range e.reg.FindByZone(zone) {
		srv, ok := r.(*resource.ManagedServer)
		if !ok {
			continue
		}
		if srv.State() != resource.StateRunning {
			continue
		}
		if instanceClass != "" && srv.InstanceClass() != "" && srv.InstanceClass() != instanceClass {
			continue
		}
		return srv
	}
	return nil
}

// findIdleVolume returns an unattached registered volume in the zone. A
// volume whose last observed remote state is in-use is never idle, even
// when the handle carries no attachment reference — adopted volumes know
// their remote state but not which handle holds them.
func (e *Engine) findIdleVolume(zone, name string, sizeGiB int32) *resource.ManagedVolume {
	for _, r := range e.reg.FindByZone(zone) {
		vol, ok := r.(*resource.ManagedVolume)
		if !ok {
			continue
		}
		if vol.Attachment() != nil || vol.State() == resource.VolumeInUse {
			continue
		}
		if name != "" {
			if vol.Name() == name {
				return vol
			}
			continue
		}
		if vol.SizeGiB() == sizeGiB {
			return vol
		}
	}
	return nil
}

// resolveImage finds all images matching the constraints and picks the
// lexicographically greatest name. Image names are assumed to embed a
// sortable timestamp; this is a simplifying policy, not a guarantee.
func (e *Engine) resolveImage(ctx context.Context, c ServerConstraints) (gateway.ImageInfo, error) {
	images, err := e.gw.DescribeImages(ctx, gateway.ImageFilter{
		NamePattern:    c.ImagePattern,
		Architecture:   c.Architecture,
		RootDeviceType: c.RootDeviceType,
	})
	if err != nil {
		return gateway.ImageInfo{}, fmt.Errorf("resolving image: %w", err)
	}
	if len(images) == 0 {
		return gateway.ImageInfo{}, &NoMatchingImageError{
			Pattern:        c.ImagePattern,
			Architecture:   c.Architecture,
			RootDeviceType: c.RootDeviceType,
		}
	}
	sort.Slice(images, func(i, j int) bool { return images[i].Name < images[j].Name })
	return images[len(images)-1], nil
}

// ensureCredential loads or generates the pool's access credential and
// makes sure the remote side knows its public half.
func (e *Engine) ensureCredential(ctx context.Context) (*credstore.Credential, error) {
	name := e.opts.CredentialName()
	cred, created, err := e.creds.Ensure(name)
	if err != nil {
		return nil, fmt.Errorf("ensuring credential: %w", err)
	}
	if created {
		log.Printf("[Provision] Generated new credential %s", name)
	}

	exists, err := e.gw.KeyPairExists(ctx, name)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := e.gw.ImportKeyPair(ctx, name, cred.PublicKey); err != nil {
			return nil, fmt.Errorf("importing key pair %s: %w", name, err)
		}
	}
	return cred, nil
}
