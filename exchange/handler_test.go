package exchange_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-tokenator/exchange"
	"github.com/jrsteele09/go-tokenator/internal/config"
	errs "github.com/jrsteele09/go-tokenator/internal/errors"
	"github.com/jrsteele09/go-tokenator/oauth2"
	"github.com/jrsteele09/go-tokenator/token"
	"github.com/jrsteele09/go-tokenator/token/jwt"
	"github.com/jrsteele09/go-tokenator/token/store"
	"github.com/stretchr/testify/require"
)

var errSigningUnavailable = errors.New("signing key unavailable")

type failingIDTokens struct{}

func (failingIDTokens) CreateIDToken(string, jwt.IdentityClaims, string) (string, error) {
	return "", errSigningUnavailable
}

func requireOAuthError(t *testing.T, err error, status int, code string) *errs.OAuthError {
	t.Helper()
	require.Error(t, err)
	oe := errs.ToOAuthError(err)
	require.Equal(t, status, oe.Status, oe.Error())
	require.Equal(t, code, oe.Code)
	return oe
}

func TestExchange(t *testing.T) {
	ctx := context.Background()

	t.Run("allowed scope", func(t *testing.T) {
		f := setupTestFixture(t)
		f.client.Scope = "profile email"

		resp, err := f.handler.Exchange(ctx, f.tokenContext(), f.form(t, url.Values{"scope": {"profile"}}))
		require.NoError(t, err)
		require.NotEmpty(t, resp.AccessToken)
		require.Equal(t, oauth2.BearerTokenType, resp.TokenType)
		require.Equal(t, oauth2.AccessTokenTypeURI, resp.IssuedTokenType)
		require.Equal(t, 300, resp.ExpiresIn)
		require.Equal(t, "profile", resp.Scope)
		require.Empty(t, resp.IDToken)

		payload, found, err := f.store.Find(ctx, store.AccessToken, resp.AccessToken)
		require.NoError(t, err)
		require.True(t, found)
		at, err := token.AccessTokenFromPayload(payload)
		require.NoError(t, err)
		require.Equal(t, "user-1", at.Subject)
		require.Equal(t, "client-1", at.ClientID)
		require.Equal(t, f.idp.issuer, at.ResourceServer.Identifier)
		require.Equal(t, []string{string(oauth2.TokenExchangeGrant)}, at.GrantTypes)
	})

	t.Run("denied scope", func(t *testing.T) {
		f := setupTestFixture(t)
		f.client.Scope = "profile email"

		_, err := f.handler.Exchange(ctx, f.tokenContext(), f.form(t, url.Values{"scope": {"profile admin"}}))
		oe := requireOAuthError(t, err, http.StatusForbidden, "requested_scopes_denied")
		require.Equal(t, []string{"admin"}, oe.Scopes)
		require.Contains(t, oe.Description, "admin")
		require.True(t, errs.Is(err, errs.ErrRequestedScopesDenied))
		require.Empty(t, f.mr.Keys())
	})

	t.Run("audience falls back to resource", func(t *testing.T) {
		f := setupTestFixture(t)

		resp, err := f.handler.Exchange(ctx, f.tokenContext(), f.form(t, url.Values{
			"resource": {"https://api.example.com", "https://other.example.com"},
		}))
		require.NoError(t, err)

		payload, _, err := f.store.Find(ctx, store.AccessToken, resp.AccessToken)
		require.NoError(t, err)
		at, err := token.AccessTokenFromPayload(payload)
		require.NoError(t, err)
		require.Equal(t, []string{"https://api.example.com", "https://other.example.com"}, at.Audience)
	})

	t.Run("grant type history is appended", func(t *testing.T) {
		f := setupTestFixture(t)
		subject := f.idp.sign(t, f.idp.claims(map[string]any{"gty": "client_credentials"}))

		resp, err := f.handler.Exchange(ctx, f.tokenContext(), f.form(t, url.Values{"subject_token": {subject}}))
		require.NoError(t, err)

		payload, _, err := f.store.Find(ctx, store.AccessToken, resp.AccessToken)
		require.NoError(t, err)
		require.Equal(t, "client_credentials "+string(oauth2.TokenExchangeGrant), payload.String("gty"))
	})

	t.Run("openid scope mints an id token", func(t *testing.T) {
		f := setupTestFixture(t)
		subject := f.idp.sign(t, f.idp.claims(map[string]any{
			"acr":       "urn:mace:incommon:iap:silver",
			"amr":       []string{"pwd"},
			"auth_time": time.Now().Add(-time.Minute).Unix(),
			"nonce":     "n-0S6",
			"sid":       "sid-1",
			"email":     "user@example.com",
		}))

		resp, err := f.handler.Exchange(ctx, f.tokenContext(), f.form(t, url.Values{
			"subject_token": {subject},
			"scope":         {"openid profile"},
		}))
		require.NoError(t, err)
		require.NotEmpty(t, resp.IDToken)

		claims := jwtlib.MapClaims{}
		_, err = jwtlib.ParseWithClaims(resp.IDToken, claims, f.signer.GetVerificationKey)
		require.NoError(t, err)

		sum := sha256.Sum256([]byte(resp.AccessToken))
		require.Equal(t, base64.RawURLEncoding.EncodeToString(sum[:16]), claims["at_hash"])
		require.Equal(t, "user-1", claims["sub"])
		require.Equal(t, "client-1", claims["aud"])
		require.Equal(t, "n-0S6", claims["nonce"])
		require.Equal(t, "sid-1", claims["sid"])
		require.Equal(t, "urn:mace:incommon:iap:silver", claims["acr"])
		require.NotContains(t, claims, "email")
	})

	t.Run("id token failure stores nothing", func(t *testing.T) {
		f := setupTestFixture(t)
		cfg := config.OAuth{AccessTokenTTLSeconds: 300, DPoPIatTolerance: time.Minute}
		handler := exchange.NewHandler(cfg, f.store, f.verifier, failingIDTokens{})

		_, err := handler.Exchange(ctx, f.tokenContext(), f.form(t, url.Values{"scope": {"openid"}}))
		require.ErrorIs(t, err, errSigningUnavailable)
		require.Empty(t, f.mr.Keys())
	})

	t.Run("actor token", func(t *testing.T) {
		f := setupTestFixture(t)
		actor := f.idp.sign(t, f.idp.claims(map[string]any{"sub": "service-a"}))

		resp, err := f.handler.Exchange(ctx, f.tokenContext(), f.form(t, url.Values{
			"actor_token":      {actor},
			"actor_token_type": {string(oauth2.JWTTokenTypeURI)},
		}))
		require.NoError(t, err)

		payload, _, err := f.store.Find(ctx, store.AccessToken, resp.AccessToken)
		require.NoError(t, err)
		act, ok := payload["act"].(map[string]any)
		require.True(t, ok)
		require.Equal(t, "service-a", act["sub"])
		require.Equal(t, f.idp.issuer, act["iss"])
	})
}

func TestExchangeSubjectTokenVerification(t *testing.T) {
	ctx := context.Background()

	t.Run("bad signature", func(t *testing.T) {
		f := setupTestFixture(t)
		other, err := rsa.GenerateKey(rand.Reader, 2048)
		require.NoError(t, err)
		forged := signWith(t, other, f.idp.kid, f.idp.claims(nil))

		_, err = f.handler.Exchange(ctx, f.tokenContext(), f.form(t, url.Values{"subject_token": {forged}}))
		oe := requireOAuthError(t, err, http.StatusUnauthorized, "invalid_subject_token")
		require.NotContains(t, oe.Description, `"`)
		require.Empty(t, f.mr.Keys())
	})

	t.Run("expired", func(t *testing.T) {
		f := setupTestFixture(t)
		expired := f.idp.sign(t, f.idp.claims(map[string]any{"exp": time.Now().Add(-time.Minute).Unix()}))

		_, err := f.handler.Exchange(ctx, f.tokenContext(), f.form(t, url.Values{"subject_token": {expired}}))
		requireOAuthError(t, err, http.StatusUnauthorized, "invalid_subject_token")
	})

	t.Run("not a jwt", func(t *testing.T) {
		f := setupTestFixture(t)

		_, err := f.handler.Exchange(ctx, f.tokenContext(), f.form(t, url.Values{"subject_token": {"opaque-token"}}))
		requireOAuthError(t, err, http.StatusUnauthorized, "invalid_subject_token")
	})

	t.Run("discovery not found", func(t *testing.T) {
		f := setupTestFixture(t)
		f.idp.discoveryStatus = http.StatusNotFound

		_, err := f.handler.Exchange(ctx, f.tokenContext(), f.form(t, nil))
		requireOAuthError(t, err, http.StatusUnauthorized, "invalid_subject_token")
	})

	t.Run("discovery server error", func(t *testing.T) {
		f := setupTestFixture(t)
		f.idp.discoveryStatus = http.StatusBadGateway

		_, err := f.handler.Exchange(ctx, f.tokenContext(), f.form(t, nil))
		oe := requireOAuthError(t, err, http.StatusServiceUnavailable, "temporarily_unavailable")
		require.True(t, oe.Retryable())
	})

	t.Run("issuer unreachable", func(t *testing.T) {
		f := setupTestFixture(t)
		down := httptest.NewServer(http.NotFoundHandler())
		down.Close()

		claims := f.idp.claims(map[string]any{"iss": down.URL})
		_, err := f.handler.Exchange(ctx, f.tokenContext(), f.form(t, url.Values{"subject_token": {f.idp.sign(t, claims)}}))
		requireOAuthError(t, err, http.StatusServiceUnavailable, "temporarily_unavailable")
		require.True(t, errs.Is(err, errs.ErrUpstreamUnavailable))
	})

	t.Run("invalid actor token", func(t *testing.T) {
		f := setupTestFixture(t)

		_, err := f.handler.Exchange(ctx, f.tokenContext(), f.form(t, url.Values{
			"actor_token":      {"not-a-token"},
			"actor_token_type": {string(oauth2.JWTTokenTypeURI)},
		}))
		requireOAuthError(t, err, http.StatusUnauthorized, "invalid_subject_token")
	})
}

func TestExchangeCertificateBinding(t *testing.T) {
	ctx := context.Background()

	t.Run("subject token confirmation matches", func(t *testing.T) {
		f := setupTestFixture(t)
		cert := selfSignedCertificate(t, "client-1")
		subject := f.idp.sign(t, f.idp.claims(map[string]any{"x5t#S256": exchange.CertificateThumbprint(cert)}))

		tc := f.tokenContext()
		tc.Certificate = cert
		resp, err := f.handler.Exchange(ctx, tc, f.form(t, url.Values{"subject_token": {subject}}))
		require.NoError(t, err)
		require.Equal(t, oauth2.BearerTokenType, resp.TokenType)

		payload, _, err := f.store.Find(ctx, store.AccessToken, resp.AccessToken)
		require.NoError(t, err)
		require.Equal(t, exchange.CertificateThumbprint(cert), payload.String(token.CertThumbprintClaim))
	})

	t.Run("subject token confirmation mismatch", func(t *testing.T) {
		f := setupTestFixture(t)
		subject := f.idp.sign(t, f.idp.claims(map[string]any{
			"x5t#S256": exchange.CertificateThumbprint(selfSignedCertificate(t, "client-1")),
		}))

		tc := f.tokenContext()
		tc.Certificate = selfSignedCertificate(t, "someone-else")
		_, err := f.handler.Exchange(ctx, tc, f.form(t, url.Values{"subject_token": {subject}}))
		oe := requireOAuthError(t, err, http.StatusBadRequest, "invalid_grant")
		require.Equal(t, "failed x5t#S256 verification", oe.Description)
	})

	t.Run("certificate bound client without certificate", func(t *testing.T) {
		f := setupTestFixture(t)
		f.client.TLSClientCertificateBoundAccessTokens = true

		_, err := f.handler.Exchange(ctx, f.tokenContext(), f.form(t, nil))
		oe := requireOAuthError(t, err, http.StatusBadRequest, "invalid_grant")
		require.Equal(t, "mutual TLS client certificate not provided", oe.Description)
	})

	t.Run("certificate bound client", func(t *testing.T) {
		f := setupTestFixture(t)
		f.client.TLSClientCertificateBoundAccessTokens = true
		cert := selfSignedCertificate(t, "client-1")

		tc := f.tokenContext()
		tc.Certificate = cert
		resp, err := f.handler.Exchange(ctx, tc, f.form(t, nil))
		require.NoError(t, err)

		payload, _, err := f.store.Find(ctx, store.AccessToken, resp.AccessToken)
		require.NoError(t, err)
		require.Equal(t, exchange.CertificateThumbprint(cert), payload.String(token.CertThumbprintClaim))
	})
}

func TestExchangeDPoP(t *testing.T) {
	ctx := context.Background()

	t.Run("bound token and replay", func(t *testing.T) {
		f := setupTestFixture(t)
		tc := f.tokenContext()
		tc.DPoPProof = f.dpopProof(t, http.MethodPost, tokenURL, time.Now())

		resp, err := f.handler.Exchange(ctx, tc, f.form(t, nil))
		require.NoError(t, err)
		require.Equal(t, oauth2.DPoPTokenType, resp.TokenType)

		payload, _, err := f.store.Find(ctx, store.AccessToken, resp.AccessToken)
		require.NoError(t, err)
		require.NotEmpty(t, payload.String(token.DPoPThumbprintClaim))

		_, err = f.handler.Exchange(ctx, tc, f.form(t, nil))
		oe := requireOAuthError(t, err, http.StatusBadRequest, "invalid_grant")
		require.Equal(t, "DPoP Token Replay detected", oe.Description)
	})

	t.Run("wrong method", func(t *testing.T) {
		f := setupTestFixture(t)
		tc := f.tokenContext()
		tc.DPoPProof = f.dpopProof(t, http.MethodGet, tokenURL, time.Now())

		_, err := f.handler.Exchange(ctx, tc, f.form(t, nil))
		requireOAuthError(t, err, http.StatusBadRequest, "invalid_dpop_proof")
	})

	t.Run("stale proof", func(t *testing.T) {
		f := setupTestFixture(t)
		tc := f.tokenContext()
		tc.DPoPProof = f.dpopProof(t, http.MethodPost, tokenURL, time.Now().Add(-time.Hour))

		_, err := f.handler.Exchange(ctx, tc, f.form(t, nil))
		requireOAuthError(t, err, http.StatusBadRequest, "invalid_dpop_proof")
	})

	t.Run("denied scope records no replay entry", func(t *testing.T) {
		f := setupTestFixture(t)
		tc := f.tokenContext()
		tc.DPoPProof = f.dpopProof(t, http.MethodPost, tokenURL, time.Now())

		_, err := f.handler.Exchange(ctx, tc, f.form(t, url.Values{"scope": {"admin"}}))
		requireOAuthError(t, err, http.StatusForbidden, "requested_scopes_denied")
		require.Empty(t, f.mr.Keys())

		_, err = f.handler.Exchange(ctx, tc, f.form(t, nil))
		require.NoError(t, err)
	})
}

func TestExchangeInvalidRequest(t *testing.T) {
	f := setupTestFixture(t)

	form := f.form(t, nil)
	form.Del("subject_token")
	_, err := f.handler.Exchange(context.Background(), f.tokenContext(), form)
	requireOAuthError(t, err, http.StatusBadRequest, "invalid_request")
}
