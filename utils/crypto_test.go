package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCipherRoundTrip(t *testing.T) {
	c, err := NewCipher("0123456789abcdef0123456789abcdef")
	require.NoError(t, err)

	encrypted, err := c.Encrypt("smtp-secret")
	require.NoError(t, err)
	assert.NotEqual(t, "smtp-secret", encrypted)

	decrypted, err := c.Decrypt(encrypted)
	require.NoError(t, err)
	assert.Equal(t, "smtp-secret", decrypted)

	// Empty values pass through unchanged.
	encrypted, err = c.Encrypt("")
	require.NoError(t, err)
	assert.Equal(t, "", encrypted)
	decrypted, err = c.Decrypt("")
	require.NoError(t, err)
	assert.Equal(t, "", decrypted)
}

func TestNewCipherKeyLength(t *testing.T) {
	for _, key := range []string{"0123456789abcdef", "0123456789abcdef01234567", "0123456789abcdef0123456789abcdef"} {
		_, err := NewCipher(key)
		assert.NoError(t, err)
	}

	_, err := NewCipher("too-short")
	assert.Error(t, err)
}

func TestDecryptRejectsGarbage(t *testing.T) {
	c, err := NewCipher("0123456789abcdef")
	require.NoError(t, err)

	_, err = c.Decrypt("not base64 !!!")
	assert.Error(t, err)

	_, err = c.Decrypt("QQ==")
	assert.Error(t, err)
}
