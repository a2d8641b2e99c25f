package user

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeNTHashIsDeterministic(t *testing.T) {
	h1, err := ComputeNTHash("hunter2")
	require.NoError(t, err)
	h2, err := ComputeNTHash("hunter2")
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	h3, err := ComputeNTHash("different")
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3)
}

func TestCheckNTHashRejectsDisabled(t *testing.T) {
	hash, err := ComputeNTHash("secret")
	require.NoError(t, err)

	u := New("alice", hash, FlagDisabled)
	assert.False(t, u.CheckNTHash(hash), "disabled accounts never match")

	u2 := New("bob", hash, 0)
	assert.True(t, u2.CheckNTHash(hash))

	other, err := ComputeNTHash("wrong")
	require.NoError(t, err)
	assert.False(t, u2.CheckNTHash(other))
}

func TestRegistryLookupCaseInsensitive(t *testing.T) {
	r := NewRegistry()
	hash, _ := ComputeNTHash("x")
	r.Replace([]*User{New("Alice", hash, FlagAdmin)})

	found, ok := r.Lookup("ALICE")
	require.True(t, ok)
	assert.True(t, found.Is(FlagAdmin))

	_, ok = r.Lookup("bob")
	assert.False(t, ok)
}

func TestRegistryReplaceDropsOldEntries(t *testing.T) {
	r := NewRegistry()
	hash, _ := ComputeNTHash("x")
	r.Replace([]*User{New("alice", hash, 0)})
	assert.Equal(t, 1, r.Len())

	r.Replace([]*User{New("bob", hash, 0)})
	assert.Equal(t, 1, r.Len())
	_, ok := r.Lookup("alice")
	assert.False(t, ok)
}
