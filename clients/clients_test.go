package clients_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jrsteele09/go-tokenator/clients"
	"github.com/stretchr/testify/require"
)

func TestClientScopes(t *testing.T) {
	c := &clients.Client{ID: "client-1", Scope: "openid  profile email"}

	require.Equal(t, []string{"openid", "profile", "email"}, c.Scopes())
	require.True(t, c.HasScope("profile"))
	require.False(t, c.HasScope("admin"))

	t.Run("denied scopes keep request order without duplicates", func(t *testing.T) {
		denied := c.DeniedScopes([]string{"write", "profile", "admin", "write"})
		require.Equal(t, []string{"write", "admin"}, denied)
	})

	t.Run("subset is not denied", func(t *testing.T) {
		require.Empty(t, c.DeniedScopes([]string{"profile"}))
	})
}

func TestAllowsGrantType(t *testing.T) {
	c := &clients.Client{ID: "client-1", GrantTypes: []string{"urn:ietf:params:oauth:grant-type:token-exchange"}}
	require.True(t, c.AllowsGrantType("urn:ietf:params:oauth:grant-type:token-exchange"))
	require.False(t, c.AllowsGrantType("client_credentials"))
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()

	t.Run("valid file", func(t *testing.T) {
		path := filepath.Join(dir, "clients.json")
		require.NoError(t, os.WriteFile(path, []byte(`[
			{"client_id": "client-1", "client_secret": "c2VjcmV0", "scope": "profile email",
			 "grant_types": ["urn:ietf:params:oauth:grant-type:token-exchange"],
			 "tls_client_certificate_bound_access_tokens": true}
		]`), 0o600))

		registered, err := clients.LoadFile(path)
		require.NoError(t, err)
		require.Len(t, registered, 1)
		require.Equal(t, "client-1", registered[0].ID)
		require.Equal(t, "profile email", registered[0].Scope)
		require.True(t, registered[0].TLSClientCertificateBoundAccessTokens)
	})

	t.Run("missing client id", func(t *testing.T) {
		path := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(path, []byte(`[{"scope": "profile"}]`), 0o600))
		_, err := clients.LoadFile(path)
		require.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := clients.LoadFile(filepath.Join(dir, "nope.json"))
		require.Error(t, err)
	})
}
