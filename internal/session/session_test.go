package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAssignsUniqueIDs(t *testing.T) {
	r := NewRegistry()
	s1 := r.Create("alice", false)
	s2 := r.Create("bob", true)
	assert.NotEqual(t, s1.ID, s2.ID)
	assert.False(t, s1.IsGuest())
	assert.True(t, s2.IsGuest())
}

func TestGetAndDelete(t *testing.T) {
	r := NewRegistry()
	s := r.Create("alice", false)

	found, ok := r.Get(s.ID)
	require.True(t, ok)
	assert.Equal(t, "alice", found.Username())

	r.Delete(s.ID)
	_, ok = r.Get(s.ID)
	assert.False(t, ok)
}

func TestTreeConnectLifecycle(t *testing.T) {
	r := NewRegistry()
	s := r.Create("alice", false)

	s.AddTreeConnect(1, "public")
	s.AddTreeConnect(2, "private")
	assert.Equal(t, 2, s.TreeConnectCount())

	name, ok := s.TreeConnectShare(1)
	require.True(t, ok)
	assert.Equal(t, "public", name)

	removed := s.RemoveTreeConnect(1)
	assert.Equal(t, "public", removed)
	assert.Equal(t, 1, s.TreeConnectCount())

	_, ok = s.TreeConnectShare(1)
	assert.False(t, ok)
}

func TestRegistryCount(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, 0, r.Count())
	r.Create("a", false)
	r.Create("b", false)
	assert.Equal(t, 2, r.Count())
}
