package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sergey-senozhatsky/cifsd-tools2/internal/share"
)

const testSmbConf = `
[global]
workgroup = WORKGROUP
server string = CIFSD

[public]
path = /srv/public
comment = Public share
browseable = yes
guest ok = yes
read only = no

[secret]
path = /srv/secret
comment = Private
read only = yes
valid users = alice, bob
write list = alice
hosts allow = 10.0.0.1 10.0.0.2
create mask = 0644
directory mask = 0755

[IPC$]
comment = IPC Service
`

func writeTempConf(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "smb.conf")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestParseSmbConfBasicShares(t *testing.T) {
	path := writeTempConf(t, testSmbConf)

	shares, err := ParseSmbConf(path)
	require.NoError(t, err)
	require.Len(t, shares, 3)

	byName := make(map[string]*share.Share, len(shares))
	for _, s := range shares {
		byName[s.Name()] = s
	}

	public, ok := byName["public"]
	require.True(t, ok)
	assert.Equal(t, "/srv/public", public.Path())
	assert.True(t, public.HasFlag(share.FlagGuestOK))
	assert.False(t, public.HasFlag(share.FlagReadOnly))
	assert.True(t, public.Browseable())

	secret, ok := byName["secret"]
	require.True(t, ok)
	assert.True(t, secret.HasFlag(share.FlagReadOnly))
	assert.True(t, secret.HasUser(share.ValidUsers, "alice"))
	assert.True(t, secret.HasUser(share.ValidUsers, "bob"))
	assert.True(t, secret.HasUser(share.WriteListUsers, "alice"))
	assert.False(t, secret.HasUser(share.WriteListUsers, "bob"))
	assert.True(t, secret.HostAllowed("10.0.0.1"))
	assert.False(t, secret.HostAllowed("10.0.0.9"))
	assert.Equal(t, uint32(0o644), secret.CreateMask())
	assert.Equal(t, uint32(0o755), secret.DirectoryMask())

	ipc, ok := byName["IPC$"]
	require.True(t, ok)
	assert.True(t, ipc.HasFlag(share.FlagPipe))
	assert.True(t, ipc.HasFlag(share.FlagHidden))
	assert.Equal(t, share.TypeIPC, ipc.Type())
}

func TestParseSmbConfSkipsGlobalSection(t *testing.T) {
	path := writeTempConf(t, testSmbConf)
	shares, err := ParseSmbConf(path)
	require.NoError(t, err)
	for _, s := range shares {
		assert.NotEqual(t, "global", s.Name())
	}
}

func TestParseSmbConfNoSuchFile(t *testing.T) {
	_, err := ParseSmbConf(filepath.Join(t.TempDir(), "missing.conf"))
	assert.Error(t, err)
}
