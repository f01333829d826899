package exchange_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jrsteele09/go-tokenator/exchange"
	errs "github.com/jrsteele09/go-tokenator/internal/errors"
	"github.com/stretchr/testify/require"
)

func TestDiscover(t *testing.T) {
	ctx := context.Background()
	d := exchange.NewDiscoverer(nil)

	t.Run("found", func(t *testing.T) {
		idp := newFakeIssuer(t)
		metadata, err := d.Discover(ctx, idp.issuer)
		require.NoError(t, err)
		require.Equal(t, idp.srv.URL+"/jwks", metadata.JWKSURI)
	})

	for name, body := range map[string]string{
		"no jwks_uri": `{"issuer":"https://idp.example"}`,
		"not json":    `<html></html>`,
	} {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			}))
			defer srv.Close()

			_, err := d.Discover(ctx, srv.URL)
			require.True(t, errs.Is(err, errs.ErrSubjectTokenVerifyFailed), "%v", err)
		})
	}

	t.Run("forbidden", func(t *testing.T) {
		idp := newFakeIssuer(t)
		idp.discoveryStatus = http.StatusForbidden
		_, err := d.Discover(ctx, idp.issuer)
		require.True(t, errs.Is(err, errs.ErrSubjectTokenVerifyFailed))
	})

	t.Run("unavailable", func(t *testing.T) {
		idp := newFakeIssuer(t)
		idp.discoveryStatus = http.StatusServiceUnavailable
		_, err := d.Discover(ctx, idp.issuer)
		require.True(t, errs.Is(err, errs.ErrUpstreamUnavailable))
	})

	t.Run("cancelled", func(t *testing.T) {
		idp := newFakeIssuer(t)
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		_, err := d.Discover(cancelled, idp.issuer)
		require.True(t, errs.Is(err, errs.ErrUpstreamUnavailable))
	})
}

func TestRemoteVerifierIssuerMismatch(t *testing.T) {
	f := setupTestFixture(t)
	actual := f.idp.issuer
	f.idp.issuer = "https://someone-else.example.com/"
	claims := f.idp.claims(map[string]any{"iss": actual})

	_, err := f.verifier.Verify(context.Background(), f.idp.sign(t, claims))
	require.True(t, errs.Is(err, errs.ErrSubjectTokenVerifyFailed))
}

func TestRemoteVerifierKeySetCache(t *testing.T) {
	ctx := context.Background()
	v := exchange.NewRemoteVerifier(nil, exchange.WithKeySetCacheSize(2))

	issuers := []*fakeIssuer{newFakeIssuer(t), newFakeIssuer(t), newFakeIssuer(t)}
	for _, idp := range issuers {
		claims, err := v.Verify(ctx, idp.sign(t, idp.claims(nil)))
		require.NoError(t, err)
		require.Equal(t, idp.issuer, claims.Issuer)
		require.LessOrEqual(t, v.CachedKeySets(), 2)
	}
	require.Equal(t, 2, v.CachedKeySets())

	// The evicted issuer's key set is fetched again.
	_, err := v.Verify(ctx, issuers[0].sign(t, issuers[0].claims(nil)))
	require.NoError(t, err)
	require.Equal(t, 2, v.CachedKeySets())
}
