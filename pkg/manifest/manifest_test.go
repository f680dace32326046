package manifest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewComputesStableHash(t *testing.T) {
	abi := strings.Repeat("a", 64)
	m1, err := New("1.0.0", abi)
	require.NoError(t, err)
	m2, err := New("1.0.0", abi)
	require.NoError(t, err)

	assert.Equal(t, m1.Hash(), m2.Hash())
	assert.Len(t, m1.Hash(), 64)
}

func TestHashChangesWithIdentity(t *testing.T) {
	base, err := New("1.0.0", strings.Repeat("a", 64))
	require.NoError(t, err)

	bumped, err := New("1.0.1", strings.Repeat("a", 64))
	require.NoError(t, err)
	assert.NotEqual(t, base.Hash(), bumped.Hash())

	rebuilt, err := New("1.0.0", strings.Repeat("b", 64))
	require.NoError(t, err)
	assert.NotEqual(t, base.Hash(), rebuilt.Hash())
}

func TestNewRejectsBadSchemaVersion(t *testing.T) {
	for _, v := range []string{"", "1.0", "v1.0.0", "one", "1.0.0.0"} {
		_, err := New(v, strings.Repeat("a", 64))
		require.ErrorIs(t, err, ErrBadSchemaVersion, v)
	}
}

func TestNewRejectsBadABIHash(t *testing.T) {
	for _, h := range []string{
		"",
		strings.Repeat("a", 63),
		strings.Repeat("a", 65),
		strings.Repeat("A", 64),
		strings.Repeat("g", 64),
	} {
		_, err := New("1.0.0", h)
		require.ErrorIs(t, err, ErrBadABIHash)
	}
}
