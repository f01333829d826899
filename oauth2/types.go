package oauth2

// GrantType represents the OAuth 2.0 grant type used at the token endpoint.
// Determines what credentials are required to obtain tokens.
type GrantType string

const (
	// AuthorizationCodeGrant exchanges an authorization code for tokens.
	// Used in: Standard Authorization Code Flow (handled by the authorization server runtime)
	AuthorizationCodeGrant GrantType = "authorization_code"

	// ClientCredentialsGrant allows machine-to-machine authentication.
	// Used in: Backend service authentication (no user context)
	ClientCredentialsGrant GrantType = "client_credentials"

	// RefreshTokenGrant exchanges a refresh token for new tokens.
	RefreshTokenGrant GrantType = "refresh_token"

	// TokenExchangeGrant exchanges a token issued by a trusted identity provider for a
	// locally scoped access token (RFC 8693).
	// Token request includes: subject_token, subject_token_type, optional audience/resource/scope
	// Returns: access_token, issued_token_type, token_type, expires_in, scope, id_token (openid scope)
	// Example: A workload holding an IdP-issued JWT obtains a token for an internal API
	TokenExchangeGrant GrantType = "urn:ietf:params:oauth:grant-type:token-exchange"
)

// TokenTypeURI identifies the type of a token in a token exchange request or response (RFC 8693 §3).
type TokenTypeURI string

const (
	// AccessTokenTypeURI indicates an OAuth 2.0 access token.
	AccessTokenTypeURI TokenTypeURI = "urn:ietf:params:oauth:token-type:access_token"

	// RefreshTokenTypeURI indicates an OAuth 2.0 refresh token.
	RefreshTokenTypeURI TokenTypeURI = "urn:ietf:params:oauth:token-type:refresh_token"

	// IDTokenTypeURI indicates an OpenID Connect ID token.
	IDTokenTypeURI TokenTypeURI = "urn:ietf:params:oauth:token-type:id_token"

	// JWTTokenTypeURI indicates a JWT of any kind.
	JWTTokenTypeURI TokenTypeURI = "urn:ietf:params:oauth:token-type:jwt"
)

// Token types returned in the token_type response field.
const (
	// BearerTokenType is used for tokens that are not sender-constrained with DPoP.
	// mTLS bound tokens are still "Bearer" tokens (RFC 8705 §3).
	BearerTokenType = "Bearer"

	// DPoPTokenType is used for tokens bound to a DPoP key (RFC 9449 §5).
	DPoPTokenType = "DPoP"
)
