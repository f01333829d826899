package exchange

import (
	"crypto"
	"encoding/base64"
	"encoding/json"
	"net/url"
	"strings"
	"time"

	"github.com/go-jose/go-jose/v4"
	errs "github.com/jrsteele09/go-tokenator/internal/errors"
)

const dpopType = "dpop+jwt"

// DPoPSigningAlgs are the proof signature algorithms accepted.
var DPoPSigningAlgs = []jose.SignatureAlgorithm{
	jose.RS256, jose.RS384, jose.RS512,
	jose.PS256, jose.PS384, jose.PS512,
	jose.ES256, jose.ES384, jose.ES512,
	jose.EdDSA,
}

// DPoPProof is a validated DPoP proof (RFC 9449 §4).
type DPoPProof struct {
	JTI      string
	IssuedAt time.Time
	// Thumbprint is the RFC 7638 SHA-256 thumbprint of the proof key, the jkt of the issued token.
	Thumbprint string
}

type dpopClaims struct {
	JTI string `json:"jti"`
	HTM string `json:"htm"`
	HTU string `json:"htu"`
	IAT *int64 `json:"iat"`
}

// DPoPValidator checks DPoP proofs. Replay detection is left to the caller so that nothing is
// recorded for a request that fails later checks.
type DPoPValidator struct {
	iatTolerance time.Duration
	now          func() time.Time
}

func NewDPoPValidator(iatTolerance time.Duration, now func() time.Time) *DPoPValidator {
	if now == nil {
		now = time.Now
	}
	return &DPoPValidator{iatTolerance: iatTolerance, now: now}
}

// Validate verifies proof against the embedded public key and checks it was made for method
// and targetURL within the iat tolerance.
func (v *DPoPValidator) Validate(proof, method, targetURL string) (*DPoPProof, error) {
	jws, err := jose.ParseSigned(proof, DPoPSigningAlgs)
	if err != nil {
		return nil, errs.InvalidDPoPProof("invalid DPoP proof", err)
	}
	if len(jws.Signatures) != 1 {
		return nil, errs.InvalidDPoPProof("DPoP proof must have exactly one signature", nil)
	}
	header := jws.Signatures[0].Header
	if typ, _ := header.ExtraHeaders[jose.HeaderType].(string); typ != dpopType {
		return nil, errs.InvalidDPoPProof("invalid DPoP proof typ header", nil)
	}
	jwk := header.JSONWebKey
	if jwk == nil || !jwk.Valid() || !jwk.IsPublic() {
		return nil, errs.InvalidDPoPProof("DPoP proof must embed a public jwk", nil)
	}

	payload, err := jws.Verify(jwk.Key)
	if err != nil {
		return nil, errs.InvalidDPoPProof("DPoP proof signature verification failed", err)
	}
	var claims dpopClaims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, errs.InvalidDPoPProof("invalid DPoP proof payload", err)
	}

	switch {
	case claims.JTI == "":
		return nil, errs.InvalidDPoPProof("DPoP proof is missing jti", nil)
	case claims.IAT == nil:
		return nil, errs.InvalidDPoPProof("DPoP proof is missing iat", nil)
	case claims.HTM != method:
		return nil, errs.InvalidDPoPProof("DPoP proof htm mismatch", nil)
	case !sameTarget(claims.HTU, targetURL):
		return nil, errs.InvalidDPoPProof("DPoP proof htu mismatch", nil)
	}

	iat := time.Unix(*claims.IAT, 0)
	now := v.now()
	if iat.Before(now.Add(-v.iatTolerance)) || iat.After(now.Add(v.iatTolerance)) {
		return nil, errs.InvalidDPoPProof("DPoP proof iat is not recent enough", nil)
	}

	thumbprint, err := jwk.Thumbprint(crypto.SHA256)
	if err != nil {
		return nil, errs.InvalidDPoPProof("could not compute DPoP key thumbprint", err)
	}
	return &DPoPProof{
		JTI:        claims.JTI,
		IssuedAt:   iat,
		Thumbprint: base64.RawURLEncoding.EncodeToString(thumbprint),
	}, nil
}

// ReplayWindowEnd is when a proof can no longer be accepted and its jti may be forgotten.
func (v *DPoPValidator) ReplayWindowEnd(p *DPoPProof) time.Time {
	return p.IssuedAt.Add(v.iatTolerance)
}

// sameTarget compares htu with the request URL ignoring query and fragment (RFC 9449 §4.3).
func sameTarget(htu, target string) bool {
	a, err := url.Parse(htu)
	if err != nil {
		return false
	}
	b, err := url.Parse(target)
	if err != nil {
		return false
	}
	return strings.EqualFold(a.Scheme, b.Scheme) &&
		strings.EqualFold(a.Host, b.Host) &&
		strings.TrimSuffix(a.Path, "/") == strings.TrimSuffix(b.Path, "/") &&
		a.Scheme != ""
}
