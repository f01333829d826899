package exchange

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	lru "github.com/hashicorp/golang-lru/v2"
	errs "github.com/jrsteele09/go-tokenator/internal/errors"
	"github.com/jrsteele09/go-tokenator/internal/utils"
	"github.com/jrsteele09/go-tokenator/token"
)

// DefaultSigningAlgs are the signature algorithms accepted on subject and actor tokens.
var DefaultSigningAlgs = []string{
	oidc.RS256, oidc.RS384, oidc.RS512,
	oidc.ES256, oidc.ES384, oidc.ES512,
	oidc.PS256, oidc.PS384, oidc.PS512,
	oidc.EdDSA,
}

// Claims are the verified claims of a subject or actor token.
type Claims struct {
	Issuer   string
	Subject  string
	ACR      string
	AMR      []string
	AuthTime int64
	Nonce    string
	SID      string
	// CertThumbprint is the x5t#S256 confirmation the token is bound to, if any.
	CertThumbprint string
	Raw            map[string]any
}

// TokenVerifier verifies externally issued tokens.
type TokenVerifier interface {
	Verify(ctx context.Context, rawToken string) (*Claims, error)
}

// DefaultKeySetCacheSize is how many issuer key sets a RemoteVerifier keeps.
const DefaultKeySetCacheSize = 64

// RemoteVerifier verifies a token against the key set its own issuer publishes. Key sets are
// cached per jwks_uri in a bounded LRU and refreshed by go-oidc when an unknown kid shows up.
type RemoteVerifier struct {
	discoverer   *Discoverer
	httpClient   *http.Client
	algs         []string
	now          func() time.Time
	keySetsLimit int
	keySets      *lru.Cache[string, *oidc.RemoteKeySet]
}

var _ TokenVerifier = (*RemoteVerifier)(nil)

type VerifierOption func(*RemoteVerifier)

func WithSigningAlgs(algs ...string) VerifierOption {
	return func(v *RemoteVerifier) {
		v.algs = algs
	}
}

// WithKeySetCacheSize bounds the number of cached key sets. The jwks_uri comes from a token that
// is not verified yet, so the cache must not grow with what callers send.
func WithKeySetCacheSize(size int) VerifierOption {
	return func(v *RemoteVerifier) {
		if size > 0 {
			v.keySetsLimit = size
		}
	}
}

// WithVerifierNowFunc sets the clock used to check exp and nbf.
func WithVerifierNowFunc(now func() time.Time) VerifierOption {
	return func(v *RemoteVerifier) {
		v.now = now
	}
}

func NewRemoteVerifier(httpClient *http.Client, opts ...VerifierOption) *RemoteVerifier {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	v := &RemoteVerifier{
		discoverer:   NewDiscoverer(httpClient),
		httpClient:   httpClient,
		algs:         DefaultSigningAlgs,
		now:          time.Now,
		keySetsLimit: DefaultKeySetCacheSize,
	}
	for _, opt := range opts {
		opt(v)
	}
	// lru.New only fails for a non-positive size.
	v.keySets, _ = lru.New[string, *oidc.RemoteKeySet](v.keySetsLimit)
	return v
}

// Verify reads the unverified iss claim only to locate the issuer's key set, then verifies the
// signature and the standard claims. Nothing from the token is trusted before that succeeds.
func (v *RemoteVerifier) Verify(ctx context.Context, rawToken string) (*Claims, error) {
	issuer, err := UnverifiedIssuer(rawToken)
	if err != nil {
		return nil, errs.SubjectTokenVerifyFailed(err)
	}

	metadata, err := v.discoverer.Discover(ctx, issuer)
	if err != nil {
		return nil, err
	}
	if metadata.Issuer != "" && strings.TrimSuffix(metadata.Issuer, "/") != strings.TrimSuffix(issuer, "/") {
		return nil, errs.SubjectTokenVerifyFailed(fmt.Errorf("issuer did not match the issuer returned by provider, expected %s got %s", issuer, metadata.Issuer))
	}

	verifier := oidc.NewVerifier(issuer, v.keySet(metadata.JWKSURI), &oidc.Config{
		SkipClientIDCheck:    true,
		SupportedSigningAlgs: v.algs,
		Now:                  v.now,
	})
	idToken, err := verifier.Verify(ctx, rawToken)
	if err != nil {
		return nil, errs.SubjectTokenVerifyFailed(err)
	}

	raw := map[string]any{}
	if err := idToken.Claims(&raw); err != nil {
		return nil, errs.SubjectTokenVerifyFailed(err)
	}
	return claimsFrom(idToken.Issuer, idToken.Subject, raw), nil
}

func (v *RemoteVerifier) keySet(jwksURI string) *oidc.RemoteKeySet {
	if ks, ok := v.keySets.Get(jwksURI); ok {
		return ks
	}
	// The key set outlives the request; it only borrows the HTTP client from this context.
	ks := oidc.NewRemoteKeySet(oidc.ClientContext(context.Background(), v.httpClient), jwksURI)
	if previous, found, _ := v.keySets.PeekOrAdd(jwksURI, ks); found {
		return previous
	}
	return ks
}

// UnverifiedIssuer decodes the iss claim of a compact JWT without checking its signature.
func UnverifiedIssuer(rawToken string) (string, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(rawToken, claims); err != nil {
		return "", fmt.Errorf("malformed token: %w", err)
	}
	issuer, err := claims.GetIssuer()
	if err != nil {
		return "", err
	}
	if issuer == "" {
		return "", fmt.Errorf("token has no iss claim")
	}
	return issuer, nil
}

func claimsFrom(issuer, subject string, raw map[string]any) *Claims {
	c := &Claims{
		Issuer:  issuer,
		Subject: subject,
		Raw:     raw,
	}
	c.ACR, _ = raw["acr"].(string)
	c.Nonce, _ = raw["nonce"].(string)
	c.SID, _ = raw["sid"].(string)
	c.AMR = utils.ToStringSlice(raw["amr"])
	if authTime, ok := raw["auth_time"].(float64); ok {
		c.AuthTime = int64(authTime)
	}
	c.CertThumbprint, _ = raw[token.CertThumbprintClaim].(string)
	if cnf, ok := raw["cnf"].(map[string]any); ok && c.CertThumbprint == "" {
		c.CertThumbprint, _ = cnf[token.CertThumbprintClaim].(string)
	}
	return c
}
