package ids

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewToken_IsUUIDv4(t *testing.T) {
	tok := NewToken()
	u, err := uuid.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(4), u.Version())
	assert.NotEqual(t, tok, NewToken())
}

func TestRegistry_RemintsDuplicates(t *testing.T) {
	n := 0
	r := NewRegistry(func() string {
		n++
		return fmt.Sprintf("m%d", n)
	})

	tok, re := r.Claim("a")
	assert.Equal(t, "a", tok)
	assert.False(t, re)

	tok, re = r.Claim("a")
	assert.True(t, re)
	assert.Equal(t, "m1", tok)

	tok, re = r.Claim("b")
	assert.False(t, re)
	assert.Equal(t, "b", tok)

	assert.Equal(t, 1, r.Reminted)
	assert.Equal(t, 3, r.Len())
}

func TestRegistry_SkipsMintedCollisions(t *testing.T) {
	seq := []string{"a", "a", "fresh"}
	r := NewRegistry(func() string {
		s := seq[0]
		seq = seq[1:]
		return s
	})
	r.Claim("a")

	tok, re := r.Claim("a")
	assert.True(t, re)
	assert.Equal(t, "fresh", tok)
}

func TestSlotKeyRoundTrip(t *testing.T) {
	i, ok := ParseSlotKey(SlotKey(42))
	require.True(t, ok)
	assert.Equal(t, 42, i)

	for _, bad := range []string{"", "-1", "x", "1.5"} {
		_, ok := ParseSlotKey(bad)
		assert.False(t, ok, bad)
	}
}
