package wazzap

import (
	"os"
	"path/filepath"
	"testing"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileCredentialStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	store := NewFileCredentialStore(path, "")

	_, ok := store.Get(KeyToken)
	assert.False(t, ok, "missing file reads as empty")

	require.NoError(t, store.Set(KeyToken, "tok"))
	require.NoError(t, store.Set(KeySessionID, "sid"))

	v, ok := store.Get(KeyToken)
	require.True(t, ok)
	assert.Equal(t, "tok", v)

	fi, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), fi.Mode().Perm())

	require.NoError(t, store.Remove(KeyToken))
	_, ok = store.Get(KeyToken)
	assert.False(t, ok)
	require.NoError(t, store.Remove(KeyToken), "removing a missing key is fine")
}

func TestFileCredentialStorePreservesOtherTables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[default]\napi_url = \"http://chat.local\"\n"), 0o600))

	store := NewFileCredentialStore(path, "auth")
	require.NoError(t, store.Set(KeyUsername, "alice"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc struct {
		Default struct {
			APIURL string `toml:"api_url"`
		} `toml:"default"`
		Auth map[string]string `toml:"auth"`
	}
	require.NoError(t, toml.Unmarshal(data, &doc))
	assert.Equal(t, "http://chat.local", doc.Default.APIURL)
	assert.Equal(t, "alice", doc.Auth[KeyUsername])
}

func TestFileCredentialStoreBacksSession(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	s := NewSession(NewFileCredentialStore(path, "auth"))
	require.NoError(t, s.Login("alice", LoginResult{Token: "tok", SessionID: "sid", UserID: 12}))

	restored := NewSession(NewFileCredentialStore(path, "auth"))
	require.True(t, restored.Restore())
	assert.Equal(t, int64(12), restored.Info().UserID)

	require.NoError(t, restored.Logout())
	assert.False(t, NewSession(NewFileCredentialStore(path, "auth")).Restore())
}

func TestFileCredentialStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("not = [valid"), 0o600))

	store := NewFileCredentialStore(path, "auth")
	_, ok := store.Get(KeyToken)
	assert.False(t, ok)
	assert.Error(t, store.Set(KeyToken, "tok"))
}
