package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withTempHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	return home
}

func TestCredentialsRoundTrip(t *testing.T) {
	home := withTempHome(t)

	// Missing file yields zero credentials.
	creds, err := loadCredentials()
	require.NoError(t, err)
	assert.Empty(t, creds.ServerURLs)

	want := Credentials{
		ServerURLs: []string{"nats://registry:4222"},
		UserJWT:    "jwt-data",
		UserSeed:   "SUAAVERYSECRETSEED",
	}
	require.NoError(t, saveCredentials(want))

	info, err := os.Stat(filepath.Join(home, ".gantry", "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm(), "seed material must be owner-only")

	got, err := loadCredentials()
	require.NoError(t, err)
	assert.Equal(t, want, got)

	require.NoError(t, removeCredentials())
	got, err = loadCredentials()
	require.NoError(t, err)
	assert.Empty(t, got.ServerURLs)

	// Logging out twice is fine.
	require.NoError(t, removeCredentials())
}

func TestGetCommandRejectsUnknownKind(t *testing.T) {
	withTempHome(t)

	root := NewRootCommand()
	root.SetArgs([]string{"get", "--kind", "frobs"})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown kind")
}

func TestLoginRequiresServer(t *testing.T) {
	withTempHome(t)

	root := NewRootCommand()
	root.SetArgs([]string{"login"})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--server is required")
}

func TestLoginRejectsLoneJWTFlag(t *testing.T) {
	withTempHome(t)

	jwtFile := filepath.Join(t.TempDir(), "user.jwt")
	require.NoError(t, os.WriteFile(jwtFile, []byte("jwt"), 0o600))

	root := NewRootCommand()
	root.SetArgs([]string{"login", "--server", "nats://x:4222", "--jwt", jwtFile})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be given together")
}

func TestLogoutWritesConfirmation(t *testing.T) {
	withTempHome(t)

	var out bytes.Buffer
	root := NewRootCommand()
	root.SetArgs([]string{"logout"})
	root.SetOut(&out)

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "logged out")
}

func TestQueryTypeForKind(t *testing.T) {
	for kind, want := range map[string]string{
		"actors":    "actor",
		"operators": "operator",
		"accounts":  "account",
	} {
		got, err := queryTypeForKind(kind)
		require.NoError(t, err)
		assert.Equal(t, want, string(got))
	}
}
