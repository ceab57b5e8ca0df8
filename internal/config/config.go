// Package config defines the orchestrator's configuration: a static
// options struct enumerating every recognized setting with its default,
// plus environment-tunable timeouts.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ExitPolicy is the disposition applied to registered resources when the
// orchestrator's lifetime ends.
type ExitPolicy string

const (
	// ExitTerminate terminates every registered server on close.
	ExitTerminate ExitPolicy = "terminate"

	// ExitStop stops every registered server on close.
	ExitStop ExitPolicy = "stop"

	// ExitLeaveRunning leaves all resources untouched on close.
	ExitLeaveRunning ExitPolicy = "leave-running"
)

// Options enumerates every recognized orchestrator setting.
type Options struct {
	// PoolName names this resource pool. It becomes the ownership tag on
	// every created resource and the credential name prefix.
	PoolName string `yaml:"pool_name"`

	// Region is the remote API region to operate in.
	Region string `yaml:"region"`

	// Zone pins all placement to one zone. Empty means the zone policy
	// chooses per acquisition.
	Zone string `yaml:"zone"`

	// InstanceClass is the default server class for new servers.
	InstanceClass string `yaml:"instance_class"`

	// ImagePattern is the name pattern used to resolve a machine image.
	// Image names are assumed to embed a sortable timestamp; the
	// lexicographically greatest match wins.
	ImagePattern string `yaml:"image_pattern"`

	// Architecture filters image candidates.
	Architecture string `yaml:"architecture"`

	// RootDeviceType filters image candidates (and sets root storage).
	RootDeviceType string `yaml:"root_device_type"`

	// SSHUser is the login used for readiness probing.
	SSHUser string `yaml:"ssh_user"`

	// User is the managing identity recorded on created resources.
	User string `yaml:"user"`

	// ReuseServers lets an idle registered server satisfy an acquisition
	// instead of creating a new one.
	ReuseServers bool `yaml:"reuse_servers"`

	// ReuseVolumes lets an idle registered volume satisfy an acquisition.
	ReuseVolumes bool `yaml:"reuse_volumes"`

	// RetainCredentials keeps local and remote key material when
	// TerminateAll runs.
	RetainCredentials bool `yaml:"retain_credentials"`

	// ExitPolicy is executed exactly once when the orchestrator closes.
	ExitPolicy ExitPolicy `yaml:"exit_policy"`

	// CredentialDir is where generated private keys are stored.
	CredentialDir string `yaml:"credential_dir"`

	// VolumeSizeGiB is the default size for new volumes.
	VolumeSizeGiB int32 `yaml:"volume_size_gib"`
}

// DefaultOptions returns the options an orchestrator runs with when the
// caller sets nothing.
func DefaultOptions() Options {
	home, _ := os.UserHomeDir()
	return Options{
		PoolName:       "default",
		Region:         "us-east-1",
		InstanceClass:  "t3.micro",
		ImagePattern:   "ubuntu/images/hvm-ssd/ubuntu-jammy-22.04-amd64-server-*",
		Architecture:   "x86_64",
		RootDeviceType: "ebs",
		SSHUser:        "ubuntu",
		ReuseServers:   true,
		ReuseVolumes:   true,
		ExitPolicy:     ExitStop,
		CredentialDir:  filepath.Join(home, ".stagepool", "keys"),
		VolumeSizeGiB:  10,
	}
}

// Load reads YAML options from path, layered over the defaults.
func Load(path string) (Options, error) {
	opts := DefaultOptions()

	data, err := os.ReadFile(path)
	if err != nil {
		return opts, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return opts, fmt.Errorf("parsing config: %w", err)
	}
	if err := opts.Validate(); err != nil {
		return opts, err
	}
	return opts, nil
}

// Validate rejects option combinations the orchestrator cannot honor.
func (o *Options) Validate() error {
	if o.PoolName == "" {
		return fmt.Errorf("pool_name must not be empty")
	}
	switch o.ExitPolicy {
	case ExitTerminate, ExitStop, ExitLeaveRunning:
	default:
		return fmt.Errorf("exit_policy %q: must be one of terminate, stop, leave-running", o.ExitPolicy)
	}
	if o.VolumeSizeGiB <= 0 {
		return fmt.Errorf("volume_size_gib must be positive, got %d", o.VolumeSizeGiB)
	}
	if o.CredentialDir == "" {
		return fmt.Errorf("credential_dir must not be empty")
	}
	return nil
}

// CredentialName returns the name under which this pool's access
// credential is stored, locally and remotely.
func (o *Options) CredentialName() string {
	return "stagepool-" + o.PoolName
}

// IngressPolicyName returns the name of this pool's network-ingress policy.
func (o *Options) IngressPolicyName() string {
	return "stagepool-" + o.PoolName
}
