package exchange_test

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-jose/go-jose/v4"
	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/go-tokenator/clients"
	"github.com/jrsteele09/go-tokenator/exchange"
	"github.com/jrsteele09/go-tokenator/internal/config"
	"github.com/jrsteele09/go-tokenator/oauth2"
	"github.com/jrsteele09/go-tokenator/token/jwt"
	"github.com/jrsteele09/go-tokenator/token/keys"
	"github.com/jrsteele09/go-tokenator/token/store"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

const tokenURL = "https://tokens.example.com/tokens/oauth2/token"

// fakeIssuer is an OpenID Provider serving discovery and JWKS for the tokens it signs.
type fakeIssuer struct {
	srv             *httptest.Server
	issuer          string
	key             *rsa.PrivateKey
	kid             string
	discoveryStatus int
}

func newFakeIssuer(t *testing.T) *fakeIssuer {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	f := &fakeIssuer{key: key, kid: "idp-key-1", discoveryStatus: http.StatusOK}
	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		if f.discoveryStatus != http.StatusOK {
			w.WriteHeader(f.discoveryStatus)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"issuer":   f.issuer,
			"jwks_uri": f.srv.URL + "/jwks",
		})
	})
	mux.HandleFunc("/jwks", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(jose.JSONWebKeySet{Keys: []jose.JSONWebKey{{
			Key:       &f.key.PublicKey,
			KeyID:     f.kid,
			Algorithm: string(jose.RS256),
			Use:       "sig",
		}}})
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	f.issuer = f.srv.URL + "/"
	return f
}

func (f *fakeIssuer) claims(extra map[string]any) jwtlib.MapClaims {
	now := time.Now()
	claims := jwtlib.MapClaims{
		"iss": f.issuer,
		"sub": "user-1",
		"aud": "upstream-client",
		"iat": now.Unix(),
		"exp": now.Add(5 * time.Minute).Unix(),
	}
	for k, v := range extra {
		claims[k] = v
	}
	return claims
}

func (f *fakeIssuer) sign(t *testing.T, claims jwtlib.MapClaims) string {
	t.Helper()
	return signWith(t, f.key, f.kid, claims)
}

func signWith(t *testing.T, key *rsa.PrivateKey, kid string, claims jwtlib.MapClaims) string {
	t.Helper()
	tok := jwtlib.NewWithClaims(jwtlib.SigningMethodRS256, claims)
	tok.Header["kid"] = kid
	signed, err := tok.SignedString(key)
	require.NoError(t, err)
	return signed
}

type testFixture struct {
	idp      *fakeIssuer
	store    *store.Store
	mr       *miniredis.Miniredis
	handler  *exchange.Handler
	signer   keys.Signer
	client   *clients.Client
	dpopKey  *ecdsa.PrivateKey
	verifier *exchange.RemoteVerifier
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	s, err := store.New(rdb, "tokenator:oidc:")
	require.NoError(t, err)

	kp, err := keys.GenerateRSAKeyPair("", 2048)
	require.NoError(t, err)
	signer := keys.NewKeyPairSigner(kp)

	dpopKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	cfg := config.OAuth{AccessTokenTTLSeconds: 300, IDTokenTTLSeconds: 3600, DPoPIatTolerance: time.Minute}
	verifier := exchange.NewRemoteVerifier(nil)
	idTokens := jwt.NewCreator("https://tokens.example.com/tokens", cfg.GetIDTokenTTL(), signer)

	return &testFixture{
		idp:      newFakeIssuer(t),
		store:    s,
		mr:       mr,
		handler:  exchange.NewHandler(cfg, s, verifier, idTokens),
		signer:   signer,
		dpopKey:  dpopKey,
		verifier: verifier,
		client: &clients.Client{
			ID:         "client-1",
			Scope:      "openid profile email",
			GrantTypes: []string{string(oauth2.TokenExchangeGrant)},
		},
	}
}

func (f *testFixture) tokenContext() exchange.TokenContext {
	return exchange.TokenContext{Client: f.client, Method: http.MethodPost, URL: tokenURL}
}

func (f *testFixture) form(t *testing.T, extra url.Values) url.Values {
	form := url.Values{
		"grant_type":         {string(oauth2.TokenExchangeGrant)},
		"subject_token":      {f.idp.sign(t, f.idp.claims(nil))},
		"subject_token_type": {string(oauth2.JWTTokenTypeURI)},
	}
	for k, v := range extra {
		form[k] = v
	}
	return form
}

// dpopProof signs a DPoP proof with the fixture key.
func (f *testFixture) dpopProof(t *testing.T, method, htu string, iat time.Time) string {
	t.Helper()
	opts := (&jose.SignerOptions{EmbedJWK: true}).WithType("dpop+jwt")
	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.ES256, Key: f.dpopKey}, opts)
	require.NoError(t, err)

	payload, err := json.Marshal(map[string]any{
		"jti": uuid.New().String(),
		"htm": method,
		"htu": htu,
		"iat": iat.Unix(),
	})
	require.NoError(t, err)

	jws, err := signer.Sign(payload)
	require.NoError(t, err)
	compact, err := jws.CompactSerialize()
	require.NoError(t, err)
	return compact
}

func selfSignedCertificate(t *testing.T, cn string) *x509.Certificate {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(time.Now().UnixNano()),
		Subject:      pkix.Name{CommonName: cn},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return cert
}
