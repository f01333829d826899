package server

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"

	"github.com/jrsteele09/go-tokenator/exchange"
	errs "github.com/jrsteele09/go-tokenator/internal/errors"
	"github.com/jrsteele09/go-tokenator/oauth2"
	"github.com/jrsteele09/go-tokenator/token"
	"github.com/jrsteele09/go-tokenator/token/store"
	"github.com/rs/zerolog/log"
)

const contentTypeJSON = "application/json; charset=utf-8"

// authMethods lists every client authentication method credentialsFromRequest accepts.
var authMethods = []string{
	AuthMethodClientSecretBasic,
	AuthMethodClientSecretPost,
	AuthMethodAPIKey,
}

// WellKnownOpenIDConfig serves the discovery document of the local issuer
func (s *Server) WellKnownOpenIDConfig() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		grantTypes := s.GrantTypes()
		sort.Strings(grantTypes)

		dpopAlgs := make([]string, len(exchange.DPoPSigningAlgs))
		for i, alg := range exchange.DPoPSigningAlgs {
			dpopAlgs[i] = string(alg)
		}

		resp := map[string]any{
			"issuer":              s.config.GetIssuer(),
			"token_endpoint":      s.endpoint(RouteOAuth2Token),
			"jwks_uri":            s.endpoint(RouteWellKnownJWKS),
			"revocation_endpoint": s.endpoint(RouteOAuth2Revoke),

			"grant_types_supported":   grantTypes,
			"subject_types_supported": []string{"public"},

			"id_token_signing_alg_values_supported": []string{s.deps.Signer.GetSigningMethod().Alg()},
			"dpop_signing_alg_values_supported":     dpopAlgs,

			"token_endpoint_auth_methods_supported":      authMethods,
			"revocation_endpoint_auth_methods_supported": authMethods,
			"tls_client_certificate_bound_access_tokens": true,
		}

		w.Header().Set("Content-Type", contentTypeJSON)
		w.Header().Set("Cache-Control", "public, max-age=3600") // Cache for 1 hour
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// JWKS returns the JSON Web Key Set used to validate ID tokens
func (s *Server) JWKS() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentTypeJSON)
		w.Header().Set("Cache-Control", "public, max-age=3600") // Cache for 1 hour
		_ = json.NewEncoder(w).Encode(s.deps.Signer.JWKS())
	}
}

// Token authenticates the client and dispatches to the handler of the requested grant type
func (s *Server) Token() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			writeJSONError(w, "invalid_request", "Failed to parse form data", http.StatusBadRequest)
			return
		}

		grantType := r.PostForm.Get("grant_type")
		if grantType == "" {
			s.writeOAuthError(w, r, errs.InvalidRequest("missing required parameter 'grant_type'"))
			return
		}
		handler, ok := s.grants[oauth2.GrantType(grantType)]
		if !ok {
			s.writeOAuthError(w, r, errs.UnsupportedGrantType(grantType))
			return
		}

		client, err := s.authenticateClient(r)
		if err != nil {
			s.writeOAuthError(w, r, err)
			return
		}
		if !client.AllowsGrantType(grantType) {
			s.writeOAuthError(w, r, errs.UnauthorizedClient("requested grant type is not allowed for this client"))
			return
		}

		cert, err := s.clientCertificate(r)
		if err != nil {
			s.writeOAuthError(w, r, err)
			return
		}
		proofs := r.Header.Values("DPoP")
		if len(proofs) > 1 {
			s.writeOAuthError(w, r, errs.InvalidDPoPProof("multiple DPoP headers", nil))
			return
		}

		tc := exchange.TokenContext{
			Client:      client,
			Certificate: cert,
			Method:      r.Method,
			URL:         s.endpoint(RouteOAuth2Token),
		}
		if len(proofs) == 1 {
			tc.DPoPProof = proofs[0]
		}

		resp, err := handler(r.Context(), tc, r.PostForm)
		if err != nil {
			s.writeOAuthError(w, r, err)
			return
		}

		w.Header().Set("Content-Type", contentTypeJSON)
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// Revoke destroys an access or refresh token issued to the authenticated client (RFC 7009).
// Unknown tokens and tokens of other clients are answered with 200 as well.
func (s *Server) Revoke() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			writeJSONError(w, "invalid_request", "Failed to parse form data", http.StatusBadRequest)
			return
		}

		client, err := s.authenticateClient(r)
		if err != nil {
			s.writeOAuthError(w, r, err)
			return
		}

		value := r.PostForm.Get("token")
		if value == "" {
			s.writeOAuthError(w, r, errs.InvalidRequest("missing required parameter 'token'"))
			return
		}

		kinds := []store.Kind{store.AccessToken, store.RefreshToken}
		if r.PostForm.Get("token_type_hint") == "refresh_token" {
			kinds = []store.Kind{store.RefreshToken, store.AccessToken}
		}

		for _, kind := range kinds {
			payload, found, err := s.deps.Store.Find(r.Context(), kind, value)
			if err != nil {
				s.writeOAuthError(w, r, err)
				return
			}
			if !found {
				continue
			}
			if payload.String(token.FieldClientID) != client.ID {
				log.Warn().Str("client_id", client.ID).Str("kind", string(kind)).Msg("revocation of a token issued to another client ignored")
				break
			}
			if err := s.deps.Store.Destroy(r.Context(), kind, value); err != nil {
				s.writeOAuthError(w, r, err)
				return
			}
			log.Info().Str("client_id", client.ID).Str("kind", string(kind)).Msg("token revoked")
			break
		}

		w.WriteHeader(http.StatusOK)
	}
}

// Preflight answers CORS preflight requests; the CORS middleware sets the headers.
func (s *Server) Preflight() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentTypeJSON)
		if err := s.Ready(r.Context()); err != nil {
			log.Err(err).Msg("health check failed")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "unavailable"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}

// writeOAuthError maps err onto an OAuth2 error response. Infrastructure failures are logged
// with their cause and answered without detail.
func (s *Server) writeOAuthError(w http.ResponseWriter, r *http.Request, err error) {
	oe := errs.ToOAuthError(err)
	if oe.Status >= http.StatusInternalServerError {
		log.Err(err).Str("path", r.URL.Path).Str("error", oe.Code).Msg("request failed")
	} else {
		log.Warn().Str("path", r.URL.Path).Str("error", oe.Code).Str("error_description", oe.Description).Msg("request rejected")
	}

	if oe.Status == http.StatusUnauthorized && oe.Code == "invalid_client" {
		if authz := r.Header.Get("Authorization"); strings.HasPrefix(strings.ToLower(authz), "basic") {
			w.Header().Set("WWW-Authenticate", `Basic realm="`+s.config.GetIssuer()+`"`)
		}
	}
	if oe.Retryable() {
		w.Header().Set("Retry-After", "5")
	}
	writeJSONError(w, oe.Code, oe.Description, oe.Status)
}

// writeJSONError writes an OAuth2 error response
func writeJSONError(w http.ResponseWriter, errorCode, description string, statusCode int) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":             errorCode,
		"error_description": description,
	})
}
