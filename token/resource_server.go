package token

import "time"

// Access token formats a resource server may accept.
const (
	FormatOpaque = "opaque"
	FormatJWT    = "jwt"
)

// ResourceServer describes the resource server an access token is issued for.
type ResourceServer struct {
	// Identifier is the resource indicator; for exchanged tokens it is the subject token issuer.
	Identifier        string        `json:"identifier"`
	Audience          []string      `json:"audience,omitempty"`
	Scope             string        `json:"scope,omitempty"`
	AccessTokenFormat string        `json:"accessTokenFormat"`
	AccessTokenTTL    time.Duration `json:"-"`
}

func (rs *ResourceServer) payload() map[string]any {
	p := map[string]any{
		"identifier":        rs.Identifier,
		"accessTokenFormat": rs.AccessTokenFormat,
	}
	if len(rs.Audience) > 0 {
		p["audience"] = rs.Audience
	}
	if rs.Scope != "" {
		p["scope"] = rs.Scope
	}
	return p
}
