package keygen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateRSAKeyPair(t *testing.T) {
	t.Parallel()
	pair, err := GenerateRSAKeyPair(2048)
	require.NoError(t, err)
	assert.Contains(t, string(pair.PrivateKey), "RSA PRIVATE KEY")
	assert.Contains(t, string(pair.PublicKey), "ssh-rsa")
}

func TestPublicKeyFromPrivateRoundTrip(t *testing.T) {
	t.Parallel()
	pair, err := GenerateRSAKeyPair(2048)
	require.NoError(t, err)

	public, err := PublicKeyFromPrivate(pair.PrivateKey)
	require.NoError(t, err)
	assert.Equal(t, pair.PublicKey, public)
}

func TestPublicKeyFromPrivateRejectsGarbage(t *testing.T) {
	t.Parallel()
	_, err := PublicKeyFromPrivate([]byte("not a key"))
	assert.Error(t, err)
}
