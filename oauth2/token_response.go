package oauth2

// TokenResponse represents the response from an OAuth2 token request.
// This is the standard OAuth2 token endpoint response format as defined in RFC 6749,
// extended with issued_token_type for token exchange (RFC 8693 §2.2.1).
type TokenResponse struct {
	// AccessToken is the opaque identifier of the stored access token.
	// Usage: Include in Authorization header: "<token_type> <access_token>"
	AccessToken string `json:"access_token"`

	// IssuedTokenType identifies the kind of token in AccessToken.
	// Example: "urn:ietf:params:oauth:token-type:access_token"
	IssuedTokenType TokenTypeURI `json:"issued_token_type,omitempty"`

	// TokenType indicates how to use the access token.
	// Example: "Bearer", or "DPoP" when the token is bound to a DPoP key
	TokenType string `json:"token_type"`

	// ExpiresIn is the lifetime in seconds of the access token.
	// Example: 300 (for 5 minutes)
	ExpiresIn int `json:"expires_in"`

	// IDToken is the OpenID Connect ID token.
	// Only present: When "openid" scope was requested
	IDToken string `json:"id_token,omitempty"`

	// Scope indicates the access token's granted permissions.
	// Example: "openid profile"
	Scope string `json:"scope,omitempty"`
}
