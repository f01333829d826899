package clients

import (
	"slices"
	"strings"
)

type Client struct {
	ID          string `json:"client_id"`
	Description string `json:"description,omitempty"`
	// Secret is the stored derived key of the client secret (base64url), never the secret itself.
	Secret string `json:"client_secret,omitempty"`
	// Scope is the space-delimited set of scopes the client may request.
	Scope      string   `json:"scope"`
	GrantTypes []string `json:"grant_types"`
	// TLSClientCertificateBoundAccessTokens binds every token issued to the client to its mTLS certificate.
	TLSClientCertificateBoundAccessTokens bool `json:"tls_client_certificate_bound_access_tokens,omitempty"`
}

// Scopes returns the client's configured scopes.
func (c *Client) Scopes() []string {
	return strings.Fields(c.Scope)
}

// HasScope checks if the client has permission for a specific scope
func (c *Client) HasScope(scope string) bool {
	return slices.Contains(c.Scopes(), scope)
}

// DeniedScopes returns the requested scopes that are not configured for the client, in request order.
func (c *Client) DeniedScopes(requested []string) []string {
	allowed := c.Scopes()
	var denied []string
	for _, scope := range requested {
		if !slices.Contains(allowed, scope) && !slices.Contains(denied, scope) {
			denied = append(denied, scope)
		}
	}
	return denied
}

// AllowsGrantType reports whether the client is registered for grantType.
func (c *Client) AllowsGrantType(grantType string) bool {
	return slices.Contains(c.GrantTypes, grantType)
}
