package server

// Route path constants, relative to the configured path prefix.
const (
	// OAuth2 / OIDC Routes
	RouteWellKnownOpenIDConfig = "/.well-known/openid-configuration"
	RouteWellKnownJWKS         = "/.well-known/jwks.json"
	RouteOAuth2Token           = "/oauth2/token"
	RouteOAuth2Revoke          = "/oauth2/revoke"

	// Operational Routes
	RouteHealth = "/healthz"
)
