// Package gateway defines the interfaces the orchestrator uses to talk to
// the remote cloud API. The real implementation lives in
// internal/platform/ec2; tests use the stateful fake in gatewaytest.
package gateway

import "context"

// ServerInfo is the gateway's view of a remote compute resource.
type ServerInfo struct {
	ID            string
	Zone          string
	State         string
	PublicAddr    string
	KeyName       string
	InstanceClass string
	Tags          map[string]string
}

// VolumeInfo is the gateway's view of a remote block-storage resource.
type VolumeInfo struct {
	ID          string
	Zone        string
	State       string
	SizeGiB     int32
	AttachedTo  string
	Device      string
	AttachState string
	Tags        map[string]string
}

// ImageInfo describes a machine image candidate.
type ImageInfo struct {
	ID             string
	Name           string
	Architecture   string
	RootDeviceType string
}

// ImageFilter narrows an image search. All fields must match.
type ImageFilter struct {
	NamePattern    string
	Architecture   string
	RootDeviceType string
}

// CreateServerOpts holds all parameters for creating a server.
type CreateServerOpts struct {
	Zone            string
	ImageID         string
	InstanceClass   string
	KeyName         string
	IngressPolicyID string
	Tags            map[string]string
}

// CreateVolumeOpts holds all parameters for creating a volume.
type CreateVolumeOpts struct {
	Zone    string
	SizeGiB int32
	Tags    map[string]string
}

// ServerAPI covers compute resource operations.
type ServerAPI interface {
	CreateServer(ctx context.Context, opts CreateServerOpts) (*ServerInfo, error)
	DescribeServer(ctx context.Context, id string) (*ServerInfo, error)
	DescribeServersByTag(ctx context.Context, tags map[string]string) ([]*ServerInfo, error)
	StartServers(ctx context.Context, ids []string) error
	StopServers(ctx context.Context, ids []string) error
	TerminateServers(ctx context.Context, ids []string) error
}

// VolumeAPI covers block-storage operations.
type VolumeAPI interface {
	CreateVolume(ctx context.Context, opts CreateVolumeOpts) (*VolumeInfo, error)
	DescribeVolume(ctx context.Context, id string) (*VolumeInfo, error)
	DescribeVolumesByTag(ctx context.Context, tags map[string]string) ([]*VolumeInfo, error)
	AttachVolume(ctx context.Context, volumeID, serverID, device string) error
	DetachVolume(ctx context.Context, volumeID string) error
	DeleteVolume(ctx context.Context, volumeID string) error
}

// ImageAPI resolves machine images.
type ImageAPI interface {
	DescribeImages(ctx context.Context, filter ImageFilter) ([]ImageInfo, error)
}

// KeyPairAPI manages remote access credentials.
type KeyPairAPI interface {
	ImportKeyPair(ctx context.Context, name string, publicKey []byte) error
	KeyPairExists(ctx context.Context, name string) (bool, error)
	DeleteKeyPair(ctx context.Context, name string) error
}

// IngressAPI manages the network-ingress policy applied to created servers.
type IngressAPI interface {
	EnsureIngressPolicy(ctx context.Context, name, description string, ports []int32) (string, error)
	DeleteIngressPolicy(ctx context.Context, name string) error
}

// ZoneAPI lists available placement zones.
type ZoneAPI interface {
	AvailableZones(ctx context.Context) ([]string, error)
}

// Client combines all gateway interfaces.
type Client interface {
	ServerAPI
	VolumeAPI
	ImageAPI
	KeyPairAPI
	IngressAPI
	ZoneAPI
}
