package cryptox_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/mentorlink/pkg/cryptox"
)

func TestKeyEncrypterRoundTrip(t *testing.T) {
	enc, err := cryptox.NewKeyEncrypter([]byte("test-master-key-for-encryption-12345"))
	require.NoError(t, err)

	pemData, err := cryptox.GenerateEd25519Key()
	require.NoError(t, err)

	first, err := enc.EncryptPrivateKey(pemData, "kid-1")
	require.NoError(t, err)
	second, err := enc.EncryptPrivateKey(pemData, "kid-1")
	require.NoError(t, err)
	require.NotEqual(t, first, second, "random nonce per encryption")
	require.NotContains(t, string(first), "PRIVATE KEY")

	for _, sealed := range [][]byte{first, second} {
		plain, err := enc.DecryptPrivateKey(sealed, "kid-1")
		require.NoError(t, err)
		require.Equal(t, pemData, plain)
	}
}

func TestKeyEncrypterRejects(t *testing.T) {
	enc, err := cryptox.NewKeyEncrypter([]byte("master-a"))
	require.NoError(t, err)
	other, err := cryptox.NewKeyEncrypter([]byte("master-b"))
	require.NoError(t, err)

	sealed, err := enc.EncryptPrivateKey([]byte("secret"), "kid-1")
	require.NoError(t, err)

	t.Run("wrong master key", func(t *testing.T) {
		_, err := other.DecryptPrivateKey(sealed, "kid-1")
		require.Error(t, err)
	})

	t.Run("wrong kid", func(t *testing.T) {
		_, err := enc.DecryptPrivateKey(sealed, "kid-2")
		require.Error(t, err)
	})

	t.Run("tampered", func(t *testing.T) {
		tampered := append([]byte(nil), sealed...)
		tampered[len(tampered)-1] ^= 0xff
		_, err := enc.DecryptPrivateKey(tampered, "kid-1")
		require.Error(t, err)
	})

	t.Run("too short", func(t *testing.T) {
		_, err := enc.DecryptPrivateKey([]byte{1, 2, 3}, "kid-1")
		require.ErrorIs(t, err, cryptox.ErrSealedTooShort)
	})

	t.Run("missing master key", func(t *testing.T) {
		_, err := cryptox.NewKeyEncrypter(nil)
		require.ErrorIs(t, err, cryptox.ErrMasterKeyRequired)
	})
}
