package redisrepo_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/jrsteele09/go-tokenator/clients"
	"github.com/jrsteele09/go-tokenator/clients/redisrepo"
	errs "github.com/jrsteele09/go-tokenator/internal/errors"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

const testPrefix = "tokenator:oidc:"

func TestRedisClientRepo(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rc.Close() })
	repo := redisrepo.NewRedisClientRepo(rc, testPrefix)

	t.Run("reads a provisioned hash", func(t *testing.T) {
		mr.HSet(testPrefix+"clients/client-1",
			"client_secret", "c2VjcmV0",
			"scope", "profile email",
			"grant_types", "urn:ietf:params:oauth:grant-type:token-exchange",
			"tls_client_certificate_bound_access_tokens", "true",
		)

		c, err := repo.Get(ctx, "client-1")
		require.NoError(t, err)
		require.Equal(t, &clients.Client{
			ID:                                    "client-1",
			Secret:                                "c2VjcmV0",
			Scope:                                 "profile email",
			GrantTypes:                            []string{"urn:ietf:params:oauth:grant-type:token-exchange"},
			TLSClientCertificateBoundAccessTokens: true,
		}, c)
	})

	t.Run("upsert then get", func(t *testing.T) {
		in := &clients.Client{ID: "client-2", Description: "batch job", Scope: "profile", GrantTypes: []string{"a", "b"}}
		require.NoError(t, repo.Upsert(ctx, in))

		out, err := repo.Get(ctx, "client-2")
		require.NoError(t, err)
		require.Equal(t, in, out)
	})

	t.Run("unknown client", func(t *testing.T) {
		_, err := repo.Get(ctx, "missing")
		require.True(t, errs.Is(err, errs.ErrNotFound))
	})
}
