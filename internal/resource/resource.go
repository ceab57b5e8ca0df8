// Package resource defines the orchestrator's handles for remote compute
// and block-storage resources. A handle caches the last observed remote
// state; CurrentStatus refreshes it through the gateway.
package resource

import (
	"context"
	"fmt"

	"github.com/stagepool/stagepool/internal/gateway"
)

// Server lifecycle states as reported by the remote API.
const (
	StatePending    = "pending"
	StateRunning    = "running"
	StateStopping   = "stopping"
	StateStopped    = "stopped"
	StateShutting   = "shutting-down"
	StateTerminated = "terminated"
)

// Volume states.
const (
	VolumeCreating  = "creating"
	VolumeAvailable = "available"
	VolumeInUse     = "in-use"
	VolumeDeleting  = "deleting"
	VolumeDeleted   = "deleted"
)

// Volume attachment states.
const (
	AttachAttaching = "attaching"
	AttachAttached  = "attached"
	AttachDetaching = "detaching"
	AttachDetached  = "detached"
)

// ManagedServer is a handle for a provisioned compute resource. The zone is
// immutable after creation; the reachable flag is derived by the readiness
// prober and never persisted.
type ManagedServer struct {
	id            string
	zone          string
	keyName       string
	instanceClass string
	api           gateway.ServerAPI

	state     string
	addr      string
	reachable bool
}

// NewManagedServer builds a handle from gateway info.
func NewManagedServer(info *gateway.ServerInfo, api gateway.ServerAPI) *ManagedServer {
	return &ManagedServer{
		id:            info.ID,
		zone:          info.Zone,
		keyName:       info.KeyName,
		instanceClass: info.InstanceClass,
		api:           api,
		state:         info.State,
		addr:          info.PublicAddr,
	}
}

func (s *ManagedServer) ID() string            { return s.id }
func (s *ManagedServer) Zone() string          { return s.zone }
func (s *ManagedServer) KeyName() string       { return s.keyName }
func (s *ManagedServer) InstanceClass() string { return s.instanceClass }

// Addr returns the last observed public address. Empty until the resource
// has one assigned.
func (s *ManagedServer) Addr() string { return s.addr }

// State returns the last observed lifecycle state without a remote call.
func (s *ManagedServer) State() string { return s.state }

// Reachable reports whether the readiness prober has confirmed
// application-level reachability.
func (s *ManagedServer) Reachable() bool { return s.reachable }

// SetReachable records the prober's verdict.
func (s *ManagedServer) SetReachable(ok bool) { s.reachable = ok }

// CurrentStatus queries the remote API and returns the lifecycle state,
// refreshing the cached state and address.
func (s *ManagedServer) CurrentStatus(ctx context.Context) (string, error) {
	info, err := s.api.DescribeServer(ctx, s.id)
	if err != nil {
		return "", err
	}
	s.state = info.State
	if info.PublicAddr != "" {
		s.addr = info.PublicAddr
	}
	return s.state, nil
}

// ManagedVolume is a handle for a provisioned block-storage resource. The
// attachment is a weak reference to a ManagedServer, never ownership. The
// mount path is undefined until a server mounts the volume.
type ManagedVolume struct {
	id      string
	zone    string
	name    string
	sizeGiB int32
	api     gateway.VolumeAPI

	state      string
	attachedTo *ManagedServer
	device     string
	mountPath  string
}

// NewManagedVolume builds a handle from gateway info.
func NewManagedVolume(info *gateway.VolumeInfo, name string, api gateway.VolumeAPI) *ManagedVolume {
	return &ManagedVolume{
		id:      info.ID,
		zone:    info.Zone,
		name:    name,
		sizeGiB: info.SizeGiB,
		api:     api,
		state:   info.State,
	}
}

func (v *ManagedVolume) ID() string     { return v.id }
func (v *ManagedVolume) Zone() string   { return v.zone }
func (v *ManagedVolume) Name() string   { return v.name }
func (v *ManagedVolume) SizeGiB() int32 { return v.sizeGiB }
func (v *ManagedVolume) State() string  { return v.state }

// Attachment returns the server this volume is attached to, or nil.
func (v *ManagedVolume) Attachment() *ManagedServer { return v.attachedTo }

// Device returns the device name of the current attachment.
func (v *ManagedVolume) Device() string { return v.device }

// MountPath returns where the volume is mounted, if known.
func (v *ManagedVolume) MountPath() string { return v.mountPath }

// SetMountPath records the mount location reported by the transfer layer.
func (v *ManagedVolume) SetMountPath(p string) { v.mountPath = p }

// SetAttachment records an attachment. The server must be in the volume's
// zone; cross-zone attachment is rejected.
func (v *ManagedVolume) SetAttachment(s *ManagedServer, device string) error {
	if s != nil && s.Zone() != v.zone {
		return fmt.Errorf("volume %s in zone %s cannot attach to server %s in zone %s",
			v.id, v.zone, s.ID(), s.Zone())
	}
	v.attachedTo = s
	v.device = device
	if s == nil {
		v.device = ""
		v.mountPath = ""
	}
	return nil
}

// AttachmentZone reports the zone of the attached server, if any. The
// registry uses this to enforce the zone invariant at registration.
func (v *ManagedVolume) AttachmentZone() (string, bool) {
	if v.attachedTo == nil {
		return "", false
	}
	return v.attachedTo.Zone(), true
}

// CurrentStatus queries the remote API and returns the volume state.
func (v *ManagedVolume) CurrentStatus(ctx context.Context) (string, error) {
	info, err := v.api.DescribeVolume(ctx, v.id)
	if err != nil {
		return "", err
	}
	v.state = info.State
	return v.state, nil
}

// AttachmentView exposes the volume's attachment transition as a pollable
// status source: it reports "attaching"/"attached"/"detaching", or
// "detached" when the remote API shows no attachment.
func (v *ManagedVolume) AttachmentView() *VolumeAttachmentView {
	return &VolumeAttachmentView{vol: v}
}

// VolumeAttachmentView adapts a volume's attachment state for the
// convergence poller.
type VolumeAttachmentView struct {
	vol *ManagedVolume
}

func (a *VolumeAttachmentView) ID() string { return a.vol.id }

func (a *VolumeAttachmentView) CurrentStatus(ctx context.Context) (string, error) {
	info, err := a.vol.api.DescribeVolume(ctx, a.vol.id)
	if err != nil {
		return "", err
	}
	a.vol.state = info.State
	if info.AttachState == "" {
		return AttachDetached, nil
	}
	return info.AttachState, nil
}
