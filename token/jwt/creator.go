package jwt

import (
	"crypto"
	_ "crypto/sha256"
	_ "crypto/sha512"
	"encoding/base64"
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/go-tokenator/token/keys"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// IdentityClaims carries the end-user authentication context copied into an ID token.
type IdentityClaims struct {
	Subject  string
	ACR      string
	AMR      []string
	AuthTime int64
	Nonce    string
	SID      string
}

// Creator handles ID token creation
type Creator struct {
	issuer string
	ttl    time.Duration
	signer keys.Signer
}

// NewCreator creates a new ID token creator
func NewCreator(issuer string, ttl time.Duration, signer keys.Signer) *Creator {
	return &Creator{
		issuer: issuer,
		ttl:    ttl,
		signer: signer,
	}
}

// CreateIDToken creates an OpenID Connect ID token for clientID. When accessToken is set the
// at_hash claim binds the ID token to it.
func (c *Creator) CreateIDToken(clientID string, identity IdentityClaims, accessToken string) (string, error) {
	now := NowTimeFunc()
	claims := jwtlib.MapClaims{
		"iss": c.issuer,
		"sub": identity.Subject,
		"aud": clientID,
		"iat": now.Unix(),
		"exp": now.Add(c.ttl).Unix(),
		"jti": uuid.New().String(),
	}
	if identity.ACR != "" {
		claims["acr"] = identity.ACR
	}
	if len(identity.AMR) > 0 {
		claims["amr"] = identity.AMR
	}
	if identity.AuthTime > 0 {
		claims["auth_time"] = identity.AuthTime
	}
	if identity.Nonce != "" {
		claims["nonce"] = identity.Nonce
	}
	if identity.SID != "" {
		claims["sid"] = identity.SID
	}
	if accessToken != "" {
		atHash, err := AtHash(accessToken, c.signer.GetSigningMethod())
		if err != nil {
			return "", err
		}
		claims["at_hash"] = atHash
	}

	signed, err := c.signer.Sign(claims)
	if err != nil {
		return "", fmt.Errorf("failed to sign ID token: %w", err)
	}
	return signed, nil
}

// AtHash is the base64url encoded left half of the hash of accessToken, using the hash
// function of the ID token's signing algorithm.
func AtHash(accessToken string, method jwtlib.SigningMethod) (string, error) {
	var h crypto.Hash
	switch method.Alg() {
	case "RS256", "PS256", "ES256", "HS256":
		h = crypto.SHA256
	case "RS384", "PS384", "ES384", "HS384":
		h = crypto.SHA384
	case "RS512", "PS512", "ES512", "HS512", "EdDSA":
		h = crypto.SHA512
	default:
		return "", fmt.Errorf("no at_hash function for alg %s", method.Alg())
	}
	hasher := h.New()
	hasher.Write([]byte(accessToken))
	sum := hasher.Sum(nil)
	return base64.RawURLEncoding.EncodeToString(sum[:len(sum)/2]), nil
}
