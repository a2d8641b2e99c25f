package commands

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sergey-senozhatsky/cifsd-tools2/internal/share"
	"github.com/sergey-senozhatsky/cifsd-tools2/internal/user"
)

func resetStartFlags() {
	smbConfFlag = ""
	pwddbFlag = ""
	kernelSocket = ""
}

func TestLoadStartConfigUsesDefaultsWithNoFlags(t *testing.T) {
	resetStartFlags()
	t.Cleanup(resetStartFlags)

	cfg, err := loadStartConfig()
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.SmbConfPath)
	assert.NotEmpty(t, cfg.PwddbPath)
	assert.Empty(t, cfg.KernelSocketPath)
}

func TestLoadStartConfigOverlaysFlags(t *testing.T) {
	resetStartFlags()
	t.Cleanup(resetStartFlags)

	smbConfFlag = "/tmp/custom-smb.conf"
	pwddbFlag = "/tmp/custom-pwddb"
	kernelSocket = "/tmp/custom.sock"

	cfg, err := loadStartConfig()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/custom-smb.conf", cfg.SmbConfPath)
	assert.Equal(t, "/tmp/custom-pwddb", cfg.PwddbPath)
	assert.Equal(t, "/tmp/custom.sock", cfg.KernelSocketPath)
}

func TestDialChannelWithEmptyPathReturnsPipe(t *testing.T) {
	ch, err := dialChannel("")
	require.NoError(t, err)
	require.NotNil(t, ch)
	defer ch.Close()
}

func TestDialChannelRejectsMissingSocket(t *testing.T) {
	_, err := dialChannel(filepath.Join(t.TempDir(), "does-not-exist.sock"))
	assert.Error(t, err)
}

func TestReloadSharesPopulatesRegistry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "smb.conf")
	contents := "[public]\npath = /srv/public\nbrowseable = yes\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	reg := share.NewRegistry()
	require.NoError(t, reloadShares(reg, path))

	s, ok := reg.Lookup("public")
	require.True(t, ok)
	assert.Equal(t, "/srv/public", s.Path())
}

func TestReloadUsersPopulatesRegistry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pwddb")
	hash := "AAAAAAAAAAAAAAAAAAAAAA=="
	require.NoError(t, os.WriteFile(path, []byte("alice:"+hash+"\n"), 0o644))

	reg := user.NewRegistry()
	require.NoError(t, reloadUsers(reg, path))

	_, ok := reg.Lookup("alice")
	assert.True(t, ok)
}
