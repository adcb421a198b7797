package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredentialCheck(t *testing.T) {
	c := NewCredential(3, 8)
	c.Update([]byte{1, 2, 3, 4, 0, 0, 0, 0})

	assert.False(t, c.IsValidated())
	assert.True(t, c.Check([]byte{1, 2, 3, 4, 0, 0, 0, 0}))
	assert.True(t, c.IsValidated())
	assert.Equal(t, 3, c.TriesRemaining())

	c.Invalidate()
	assert.False(t, c.IsValidated())
}

func TestCredentialRetryExhaustion(t *testing.T) {
	c := NewCredential(3, 8)
	c.Update([]byte{1, 2, 3, 4, 0, 0, 0, 0})
	wrong := []byte{9, 9, 9, 9, 0, 0, 0, 0}

	for i := 3; i > 0; i-- {
		require.Equal(t, i, c.TriesRemaining())
		assert.False(t, c.Check(wrong))
	}
	require.Equal(t, 0, c.TriesRemaining())

	// Blocked: even the correct value is refused, and no further
	// decrements happen.
	assert.False(t, c.Check([]byte{1, 2, 3, 4, 0, 0, 0, 0}))
	assert.Equal(t, 0, c.TriesRemaining())
	assert.False(t, c.IsValidated())

	c.ResetAndUnblock()
	assert.Equal(t, 3, c.TriesRemaining())
	assert.True(t, c.Check([]byte{1, 2, 3, 4, 0, 0, 0, 0}))
}

func TestCredentialMismatchResetsOnSuccess(t *testing.T) {
	c := NewCredential(3, 4)
	c.Update([]byte{5, 5, 5, 5})

	assert.False(t, c.Check([]byte{0, 0, 0, 0}))
	assert.Equal(t, 2, c.TriesRemaining())

	assert.True(t, c.Check([]byte{5, 5, 5, 5}))
	assert.Equal(t, 3, c.TriesRemaining())
}

func TestCredentialUnsetRefusesWithoutDecrement(t *testing.T) {
	c := NewCredential(3, 4)

	assert.False(t, c.IsSet())
	assert.False(t, c.Check([]byte{0, 0, 0, 0}))
	assert.Equal(t, 3, c.TriesRemaining())
}

func TestCredentialDestroy(t *testing.T) {
	c := NewCredential(3, 4)
	c.Update([]byte{1, 2, 3, 4})
	require.True(t, c.Check([]byte{1, 2, 3, 4}))

	c.Destroy()
	assert.False(t, c.IsSet())
	assert.False(t, c.IsValidated())
	assert.False(t, c.Check([]byte{1, 2, 3, 4}))
}
