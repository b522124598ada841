package totp_test

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edustack/adminmfa/pkg/totp"
)

func TestEncryptDecryptSecret(t *testing.T) {
	t.Parallel()
	key, err := totp.GenerateEncryptionKey()
	require.NoError(t, err)

	secret, err := totp.GenerateSecretKey()
	require.NoError(t, err)

	cipherText, err := totp.EncryptSecret(secret, key)
	require.NoError(t, err)
	assert.NotEqual(t, secret, cipherText)

	plainText, err := totp.DecryptSecret(cipherText, key)
	require.NoError(t, err)
	assert.Equal(t, secret, plainText)
}

func TestEncryptSecret_Nondeterministic(t *testing.T) {
	t.Parallel()
	key, err := totp.GenerateEncryptionKey()
	require.NoError(t, err)

	first, err := totp.EncryptSecret(refSecret, key)
	require.NoError(t, err)
	second, err := totp.EncryptSecret(refSecret, key)
	require.NoError(t, err)

	// Fresh nonce per call; identical plaintexts must not leak equality.
	assert.NotEqual(t, first, second)
}

func TestEncryptSecret_InvalidKeyLength(t *testing.T) {
	t.Parallel()
	_, err := totp.EncryptSecret(refSecret, []byte("short"))
	require.ErrorIs(t, err, totp.ErrInvalidEncryptionKeyLength)
}

func TestDecryptSecret_Errors(t *testing.T) {
	t.Parallel()
	key, err := totp.GenerateEncryptionKey()
	require.NoError(t, err)

	t.Run("invalid key length", func(t *testing.T) {
		t.Parallel()
		_, err := totp.DecryptSecret("whatever", []byte("short"))
		require.ErrorIs(t, err, totp.ErrInvalidEncryptionKeyLength)
	})

	t.Run("not base64", func(t *testing.T) {
		t.Parallel()
		_, err := totp.DecryptSecret("%%%", key)
		require.ErrorIs(t, err, totp.ErrFailedToDecryptSecret)
	})

	t.Run("cipher too short", func(t *testing.T) {
		t.Parallel()
		_, err := totp.DecryptSecret(base64.StdEncoding.EncodeToString([]byte("tiny")), key)
		require.ErrorIs(t, err, totp.ErrInvalidCipherTooShort)
	})

	t.Run("wrong key", func(t *testing.T) {
		t.Parallel()
		otherKey, err := totp.GenerateEncryptionKey()
		require.NoError(t, err)

		cipherText, err := totp.EncryptSecret(refSecret, key)
		require.NoError(t, err)

		_, err = totp.DecryptSecret(cipherText, otherKey)
		require.ErrorIs(t, err, totp.ErrFailedToDecryptSecret)
	})

	t.Run("tampered cipher", func(t *testing.T) {
		t.Parallel()
		cipherText, err := totp.EncryptSecret(refSecret, key)
		require.NoError(t, err)

		raw, err := base64.StdEncoding.DecodeString(cipherText)
		require.NoError(t, err)
		raw[len(raw)-1] ^= 0x01

		_, err = totp.DecryptSecret(base64.StdEncoding.EncodeToString(raw), key)
		require.ErrorIs(t, err, totp.ErrFailedToDecryptSecret)
	})
}

func TestGetEncryptionKey(t *testing.T) {
	t.Parallel()

	t.Run("valid", func(t *testing.T) {
		t.Parallel()
		encoded, err := totp.GenerateEncodedEncryptionKey()
		require.NoError(t, err)

		key, err := totp.GetEncryptionKey(totp.Config{EncryptionKey: encoded})
		require.NoError(t, err)
		assert.Len(t, key, totp.AESKeySize)
	})

	t.Run("empty", func(t *testing.T) {
		t.Parallel()
		_, err := totp.GetEncryptionKey(totp.Config{})
		require.ErrorIs(t, err, totp.ErrEncryptionKeyNotSet)
	})

	t.Run("wrong length", func(t *testing.T) {
		t.Parallel()
		_, err := totp.GetEncryptionKey(totp.Config{
			EncryptionKey: base64.StdEncoding.EncodeToString([]byte("too-short")),
		})
		require.ErrorIs(t, err, totp.ErrInvalidEncryptionKeyLength)
	})
}
