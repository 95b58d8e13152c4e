package crypto

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealer(t *testing.T) {
	s, err := New(bytes.Repeat([]byte{7}, 32))
	require.NoError(t, err)

	ct, err := s.Seal("aptner-password", "user:1")
	require.NoError(t, err)
	ct2, err := s.Seal("aptner-password", "user:1")
	require.NoError(t, err)
	assert.NotEqual(t, ct, ct2, "nonce is random")

	pt, err := s.Open(ct, "user:1")
	require.NoError(t, err)
	assert.Equal(t, "aptner-password", pt)

	_, err = s.Open(ct, "user:2")
	assert.ErrorIs(t, err, ErrCiphertext)
	_, err = s.Open("!!", "user:1")
	assert.ErrorIs(t, err, ErrCiphertext)
	_, err = s.Open("AAAA", "user:1")
	assert.ErrorIs(t, err, ErrCiphertext)

	_, err = New([]byte("short"))
	assert.Error(t, err)
}
