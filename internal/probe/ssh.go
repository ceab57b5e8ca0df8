package probe

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/crypto/ssh"
)

// SSHProber checks reachability by attempting a full SSH handshake against
// the target's public address. A completed handshake means the host is
// booted far enough to serve logins, which is the readiness condition the
// orchestrator cares about.
type SSHProber struct {
	User        string
	PrivateKey  []byte
	Port        int
	DialTimeout time.Duration
}

// NewSSHProber returns a prober authenticating as user with the given
// PEM-encoded private key.
func NewSSHProber(user string, privateKey []byte) *SSHProber {
	return &SSHProber{
		User:        user,
		PrivateKey:  privateKey,
		Port:        22,
		DialTimeout: 10 * time.Second,
	}
}

// Probe dials the target once. Targets without an address yet are treated
// as unreachable.
func (p *SSHProber) Probe(_ context.Context, t Target) bool {
	addr := t.Addr()
	if addr == "" {
		return false
	}

	signer, err := ssh.ParsePrivateKey(p.PrivateKey)
	if err != nil {
		return false
	}

	port := p.Port
	if port == 0 {
		port = 22
	}
	config := &ssh.ClientConfig{
		User:            p.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         p.DialTimeout,
	}

	client, err := ssh.Dial("tcp", fmt.Sprintf("%s:%d", addr, port), config)
	if err != nil {
		return false
	}
	client.Close()
	return true
}
