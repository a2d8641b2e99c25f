package share

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShareTypeMapping(t *testing.T) {
	cases := []struct {
		name  string
		flags Flag
		want  Type
	}{
		{"data", 0, TypeDiskTree},
		{"IPC$", 0, TypeIPC},
		{"ipc$", 0, TypeIPC},
		{"printers", FlagPipe, TypeIPC},
		{"hidden$", FlagHidden, TypeDiskTree | TypeHiddenBit},
	}
	for _, c := range cases {
		s := New(c.name, "/srv/"+c.name, "", c.flags)
		assert.Equal(t, c.want, s.Type(), "name=%s flags=%v", c.name, c.flags)
	}
}

func TestBrowseableRequiresBothFlags(t *testing.T) {
	s := New("data", "/srv/data", "", FlagBrowseable)
	assert.False(t, s.Browseable())

	s.SetFlag(FlagAvailable)
	assert.True(t, s.Browseable())
}

func TestMaxConnectionsEnforced(t *testing.T) {
	s := New("data", "/srv/data", "", FlagAvailable)
	s.SetMaxConnections(2)

	assert.True(t, s.OpenConnection())
	assert.True(t, s.OpenConnection())
	assert.False(t, s.OpenConnection())
	assert.Equal(t, 2, s.NumConnections())

	s.CloseConnection()
	assert.True(t, s.OpenConnection())
}

func TestHostAllowDeny(t *testing.T) {
	s := New("data", "/srv/data", "", FlagAvailable)
	assert.True(t, s.HostAllowed("10.0.0.1"), "empty allow list permits everything")

	s.AddHost(HostsAllow, "10.0.0.1")
	assert.True(t, s.HostAllowed("10.0.0.1"))
	assert.False(t, s.HostAllowed("10.0.0.2"))

	s.AddHost(HostsDeny, "10.0.0.1")
	assert.False(t, s.HostAllowed("10.0.0.1"), "deny overrides allow")
}

func TestRegistryLookupUniquenessAndRefcount(t *testing.T) {
	r := NewRegistry()
	s := New("Data", "/srv/data", "", FlagAvailable|FlagBrowseable)
	require.NoError(t, r.Add(s))

	err := r.Add(New("data", "/other", "", 0))
	assert.Error(t, err, "case-insensitive duplicate must be rejected")

	found, ok := r.Lookup("DATA")
	require.True(t, ok)
	assert.Same(t, s, found)
	assert.EqualValues(t, 2, s.RefCount())
	found.Release()
	assert.EqualValues(t, 1, s.RefCount())
}

func TestRegistryForEachRefcountConservation(t *testing.T) {
	r := NewRegistry()
	a := New("a", "/a", "", FlagAvailable|FlagBrowseable)
	b := New("b", "/b", "", FlagAvailable|FlagBrowseable)
	require.NoError(t, r.Add(a))
	require.NoError(t, r.Add(b))

	before := []int32{a.RefCount(), b.RefCount()}
	seen := 0
	r.ForEach(func(s *Share) bool {
		seen++
		return true
	})
	assert.Equal(t, 2, seen)
	assert.Equal(t, before, []int32{a.RefCount(), b.RefCount()})
}

func TestRegistryReplaceIsAtomic(t *testing.T) {
	r := NewRegistry()
	old := New("old", "/old", "", FlagAvailable|FlagBrowseable)
	require.NoError(t, r.Add(old))

	held, ok := r.Lookup("old")
	require.True(t, ok)

	r.Replace([]*Share{New("new", "/new", "", FlagAvailable|FlagBrowseable)})

	_, ok = r.Lookup("old")
	assert.False(t, ok, "old share is gone from the registry after reload")
	assert.Equal(t, "old", held.Name(), "but a reference acquired before reload is still valid")
	held.Release()

	_, ok = r.Lookup("new")
	assert.True(t, ok)
}
