package server

func (s *Server) initRoutes() {
	s.RegisterRouteHandler("GET "+s.path(RouteWellKnownOpenIDConfig), ChainMiddleware(s.WellKnownOpenIDConfig(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+s.path(RouteWellKnownJWKS), ChainMiddleware(s.JWKS(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+s.path(RouteOAuth2Token), ChainMiddleware(s.Token(), s.APIMiddleware(s.NoStoreMiddleware)...))
	s.RegisterRouteHandler("POST "+s.path(RouteOAuth2Revoke), ChainMiddleware(s.Revoke(), s.APIMiddleware(s.NoStoreMiddleware)...))
	s.RegisterRouteHandler("OPTIONS "+s.path("/"), ChainMiddleware(s.Preflight(), s.APIMiddleware()...))

	s.RegisterRouteHandler("GET "+RouteHealth, ChainMiddleware(s.Health(), s.RecoverMiddleware))
}
