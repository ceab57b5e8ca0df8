// Package credstore persists generated access credentials to a protected
// local directory so they can be reused across orchestrator invocations.
// One PEM file per credential, named after the credential, owner-only
// permissions.
package credstore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/stagepool/stagepool/internal/keygen"
)

const (
	dirMode  = 0o700
	fileMode = 0o600
	keyBits  = 2048
)

// Credential is a named key pair held in the store.
type Credential struct {
	Name       string
	PrivateKey []byte
	PublicKey  []byte
}

// Store manages credentials under a single directory.
type Store struct {
	dir string
}

// NewStore returns a store rooted at dir. The directory is created on
// first write, not here.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Path returns where the named credential's private key lives.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, name+".pem")
}

// Ensure returns the named credential, generating and persisting a new key
// pair if none is stored. The second return value reports whether a new
// credential was created.
func (s *Store) Ensure(name string) (*Credential, bool, error) {
	cred, err := s.Load(name)
	if err == nil {
		return cred, false, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, false, err
	}

	pair, err := keygen.GenerateRSAKeyPair(keyBits)
	if err != nil {
		return nil, false, fmt.Errorf("generating credential %s: %w", name, err)
	}

	if err := os.MkdirAll(s.dir, dirMode); err != nil {
		return nil, false, fmt.Errorf("creating credential directory: %w", err)
	}
	if err := os.WriteFile(s.Path(name), pair.PrivateKey, fileMode); err != nil {
		return nil, false, fmt.Errorf("writing credential %s: %w", name, err)
	}

	return &Credential{Name: name, PrivateKey: pair.PrivateKey, PublicKey: pair.PublicKey}, true, nil
}

// Load reads a stored credential. Returns fs.ErrNotExist (wrapped) when
// the credential has never been stored.
func (s *Store) Load(name string) (*Credential, error) {
	data, err := os.ReadFile(s.Path(name))
	if err != nil {
		return nil, err
	}
	public, err := keygen.PublicKeyFromPrivate(data)
	if err != nil {
		return nil, fmt.Errorf("parsing stored credential %s: %w", name, err)
	}
	return &Credential{Name: name, PrivateKey: data, PublicKey: public}, nil
}

// Delete removes the named credential. Missing files are not an error.
func (s *Store) Delete(name string) error {
	err := os.Remove(s.Path(name))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
