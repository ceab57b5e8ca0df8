// Package gatewaytest provides a stateful in-memory gateway.Client for
// tests. Behavior of any method can be overridden through the
// corresponding Func field; otherwise calls mutate the fake's maps.
package gatewaytest

import (
	"context"
	"fmt"
	"sync"

	"github.com/stagepool/stagepool/internal/gateway"
)

// FakeClient simulates the remote cloud API.
type FakeClient struct {
	mu sync.Mutex

	Servers map[string]*gateway.ServerInfo
	Volumes map[string]*gateway.VolumeInfo
	Images  []gateway.ImageInfo
	Keys    map[string][]byte
	Groups  map[string]string
	Zones   []string

	// InitialServerState is the state new servers report. Defaults to
	// "running" so provisioning converges on the first poll pass; set to
	// "pending" with a StateSeq entry to script a slower boot.
	InitialServerState string

	// StateSeq scripts per-server state transitions: each DescribeServer
	// call consumes one entry until the sequence is empty.
	StateSeq map[string][]string

	// LastCreateServerOpts records the most recent CreateServer request.
	LastCreateServerOpts gateway.CreateServerOpts

	// Call counters.
	CreateServerCalls  int
	CreateVolumeCalls  int
	TerminateCallsByID map[string]int
	StartCalls         int
	StopCalls          int

	// Optional overrides.
	DescribeImagesFunc func(ctx context.Context, filter gateway.ImageFilter) ([]gateway.ImageInfo, error)
	CreateServerFunc   func(ctx context.Context, opts gateway.CreateServerOpts) (*gateway.ServerInfo, error)

	nextServer int
	nextVolume int
}

var _ gateway.Client = (*FakeClient)(nil)

// NewFakeClient returns a fake with one available zone per name given.
func NewFakeClient(zones ...string) *FakeClient {
	if len(zones) == 0 {
		zones = []string{"us-east-1a", "us-east-1b"}
	}
	return &FakeClient{
		Servers:            make(map[string]*gateway.ServerInfo),
		Volumes:            make(map[string]*gateway.VolumeInfo),
		Keys:               make(map[string][]byte),
		Groups:             make(map[string]string),
		Zones:              zones,
		InitialServerState: "running",
		StateSeq:           make(map[string][]string),
		TerminateCallsByID: make(map[string]int),
	}
}

// AddImage registers an image candidate.
func (f *FakeClient) AddImage(id, name, arch, rootDevice string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Images = append(f.Images, gateway.ImageInfo{
		ID: id, Name: name, Architecture: arch, RootDeviceType: rootDevice,
	})
}

func (f *FakeClient) CreateServer(ctx context.Context, opts gateway.CreateServerOpts) (*gateway.ServerInfo, error) {
	if f.CreateServerFunc != nil {
		f.mu.Lock()
		f.CreateServerCalls++
		f.LastCreateServerOpts = opts
		f.mu.Unlock()
		return f.CreateServerFunc(ctx, opts)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CreateServerCalls++
	f.LastCreateServerOpts = opts
	f.nextServer++
	id := fmt.Sprintf("i-%08d", f.nextServer)
	info := &gateway.ServerInfo{
		ID:            id,
		Zone:          opts.Zone,
		State:         f.InitialServerState,
		PublicAddr:    fmt.Sprintf("198.51.100.%d", f.nextServer),
		KeyName:       opts.KeyName,
		InstanceClass: opts.InstanceClass,
		Tags:          copyTags(opts.Tags),
	}
	f.Servers[id] = info
	return copyServer(info), nil
}

func (f *FakeClient) DescribeServer(_ context.Context, id string) (*gateway.ServerInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	info, ok := f.Servers[id]
	if !ok {
		return nil, &gateway.PermanentAPIError{Op: "DescribeServer", Code: "InvalidInstanceID.NotFound",
			Err: fmt.Errorf("instance %s not found", id)}
	}
	if seq := f.StateSeq[id]; len(seq) > 0 {
		info.State = seq[0]
		f.StateSeq[id] = seq[1:]
	}
	return copyServer(info), nil
}

func (f *FakeClient) DescribeServersByTag(_ context.Context, tagFilter map[string]string) ([]*gateway.ServerInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*gateway.ServerInfo
	for _, info := range f.Servers {
		if matchesTags(info.Tags, tagFilter) {
			out = append(out, copyServer(info))
		}
	}
	return out, nil
}

func (f *FakeClient) StartServers(_ context.Context, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.StartCalls++
	for _, id := range ids {
		if info, ok := f.Servers[id]; ok {
			info.State = "running"
		}
	}
	return nil
}

func (f *FakeClient) StopServers(_ context.Context, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.StopCalls++
	for _, id := range ids {
		if info, ok := f.Servers[id]; ok {
			info.State = "stopped"
		}
	}
	return nil
}

func (f *FakeClient) TerminateServers(_ context.Context, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		f.TerminateCallsByID[id]++
		if info, ok := f.Servers[id]; ok {
			info.State = "terminated"
		}
	}
	return nil
}

func (f *FakeClient) CreateVolume(_ context.Context, opts gateway.CreateVolumeOpts) (*gateway.VolumeInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CreateVolumeCalls++
	f.nextVolume++
	id := fmt.Sprintf("vol-%08d", f.nextVolume)
	info := &gateway.VolumeInfo{
		ID:      id,
		Zone:    opts.Zone,
		State:   "available",
		SizeGiB: opts.SizeGiB,
		Tags:    copyTags(opts.Tags),
	}
	f.Volumes[id] = info
	return copyVolume(info), nil
}

func (f *FakeClient) DescribeVolume(_ context.Context, id string) (*gateway.VolumeInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	info, ok := f.Volumes[id]
	if !ok {
		return nil, &gateway.PermanentAPIError{Op: "DescribeVolume", Code: "InvalidVolume.NotFound",
			Err: fmt.Errorf("volume %s not found", id)}
	}
	return copyVolume(info), nil
}

func (f *FakeClient) DescribeVolumesByTag(_ context.Context, tagFilter map[string]string) ([]*gateway.VolumeInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*gateway.VolumeInfo
	for _, info := range f.Volumes {
		if matchesTags(info.Tags, tagFilter) {
			out = append(out, copyVolume(info))
		}
	}
	return out, nil
}

func (f *FakeClient) AttachVolume(_ context.Context, volumeID, serverID, device string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	info, ok := f.Volumes[volumeID]
	if !ok {
		return &gateway.PermanentAPIError{Op: "AttachVolume", Code: "InvalidVolume.NotFound",
			Err: fmt.Errorf("volume %s not found", volumeID)}
	}
	info.AttachedTo = serverID
	info.Device = device
	info.AttachState = "attached"
	info.State = "in-use"
	return nil
}

func (f *FakeClient) DetachVolume(_ context.Context, volumeID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	info, ok := f.Volumes[volumeID]
	if !ok {
		return &gateway.PermanentAPIError{Op: "DetachVolume", Code: "InvalidVolume.NotFound",
			Err: fmt.Errorf("volume %s not found", volumeID)}
	}
	info.AttachedTo = ""
	info.Device = ""
	info.AttachState = ""
	info.State = "available"
	return nil
}

func (f *FakeClient) DeleteVolume(_ context.Context, volumeID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.Volumes, volumeID)
	return nil
}

func (f *FakeClient) DescribeImages(ctx context.Context, filter gateway.ImageFilter) ([]gateway.ImageInfo, error) {
	if f.DescribeImagesFunc != nil {
		return f.DescribeImagesFunc(ctx, filter)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []gateway.ImageInfo
	for _, img := range f.Images {
		if filter.Architecture != "" && img.Architecture != filter.Architecture {
			continue
		}
		if filter.RootDeviceType != "" && img.RootDeviceType != filter.RootDeviceType {
			continue
		}
		out = append(out, img)
	}
	return out, nil
}

func (f *FakeClient) ImportKeyPair(_ context.Context, name string, publicKey []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Keys[name] = publicKey
	return nil
}

func (f *FakeClient) KeyPairExists(_ context.Context, name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.Keys[name]
	return ok, nil
}

func (f *FakeClient) DeleteKeyPair(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.Keys, name)
	return nil
}

func (f *FakeClient) EnsureIngressPolicy(_ context.Context, name, _ string, _ []int32) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id, ok := f.Groups[name]; ok {
		return id, nil
	}
	id := fmt.Sprintf("sg-%08d", len(f.Groups)+1)
	f.Groups[name] = id
	return id, nil
}

func (f *FakeClient) DeleteIngressPolicy(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.Groups, name)
	return nil
}

func (f *FakeClient) AvailableZones(_ context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.Zones))
	copy(out, f.Zones)
	return out, nil
}

func matchesTags(have, want map[string]string) bool {
	for k, v := range want {
		if have[k] != v {
			return false
		}
	}
	return true
}

func copyTags(tags map[string]string) map[string]string {
	out := make(map[string]string, len(tags))
	for k, v := range tags {
		out[k] = v
	}
	return out
}

func copyServer(info *gateway.ServerInfo) *gateway.ServerInfo {
	c := *info
	c.Tags = copyTags(info.Tags)
	return &c
}

func copyVolume(info *gateway.VolumeInfo) *gateway.VolumeInfo {
	c := *info
	c.Tags = copyTags(info.Tags)
	return &c
}
