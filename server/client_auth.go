package server

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/jrsteele09/go-tokenator/apikey"
	"github.com/jrsteele09/go-tokenator/clients"
	errs "github.com/jrsteele09/go-tokenator/internal/errors"
	"github.com/rs/zerolog/log"
)

// Client authentication methods accepted at the token and revocation endpoints.
const (
	AuthMethodClientSecretBasic = "client_secret_basic"
	AuthMethodClientSecretPost  = "client_secret_post"
	AuthMethodAPIKey            = "api_key"
)

const apiKeyScheme = "ApiKey"

type clientCredentials struct {
	method   string
	clientID string
	secret   string
}

// credentialsFromRequest reads the client credentials from the Authorization header or the
// form body. Presenting more than one method is rejected.
func credentialsFromRequest(r *http.Request) (*clientCredentials, error) {
	var creds []*clientCredentials

	if authz := r.Header.Get("Authorization"); authz != "" {
		scheme, value, _ := strings.Cut(authz, " ")
		switch {
		case strings.EqualFold(scheme, "Basic"):
			id, secret, ok := r.BasicAuth()
			if !ok {
				return nil, errs.InvalidRequest("invalid authorization header value format")
			}
			// RFC 6749 §2.3.1 form-encodes both values before base64.
			if unescaped, err := url.QueryUnescape(id); err == nil {
				id = unescaped
			}
			if unescaped, err := url.QueryUnescape(secret); err == nil {
				secret = unescaped
			}
			creds = append(creds, &clientCredentials{method: AuthMethodClientSecretBasic, clientID: id, secret: secret})
		case strings.EqualFold(scheme, apiKeyScheme):
			id, secret, err := apikey.ParseAPIKey(strings.TrimSpace(value))
			if err != nil {
				return nil, errs.InvalidClient("invalid api key")
			}
			creds = append(creds, &clientCredentials{method: AuthMethodAPIKey, clientID: id, secret: secret})
		}
	}

	if secret := r.PostForm.Get("client_secret"); secret != "" {
		creds = append(creds, &clientCredentials{
			method:   AuthMethodClientSecretPost,
			clientID: r.PostForm.Get("client_id"),
			secret:   secret,
		})
	}

	switch len(creds) {
	case 0:
		return nil, errs.InvalidClient("no client authentication mechanism provided")
	case 1:
	default:
		return nil, errs.InvalidRequest("client authentication must only be provided using one mechanism")
	}

	c := creds[0]
	if c.clientID == "" {
		return nil, errs.InvalidClient("client_id is required")
	}
	if formID := r.PostForm.Get("client_id"); formID != "" && formID != c.clientID {
		return nil, errs.InvalidRequest("mismatch between client_id in the request body and the authorization header")
	}
	return c, nil
}

// authenticateClient resolves and verifies the calling client. The form must already be parsed.
func (s *Server) authenticateClient(r *http.Request) (*clients.Client, error) {
	creds, err := credentialsFromRequest(r)
	if err != nil {
		return nil, err
	}
	ctx := r.Context()

	client, err := s.deps.Clients.Get(ctx, creds.clientID)
	if errs.Is(err, errs.ErrNotFound) {
		// Spend the same derivation time as a known client.
		_, _ = s.deps.Secrets.Verify(ctx, "", creds.secret)
		log.Warn().Str("client_id", creds.clientID).Msg("unknown client")
		return nil, errs.InvalidClient("client authentication failed")
	}
	if err != nil {
		return nil, err
	}

	ok, err := s.deps.Secrets.Verify(ctx, client.Secret, creds.secret)
	if err != nil && !errs.Is(err, errs.ErrMalformedSecret) {
		return nil, err
	}
	if !ok {
		log.Warn().Str("client_id", client.ID).Str("method", creds.method).Msg("client authentication failed")
		return nil, errs.InvalidClient("client authentication failed")
	}
	return client, nil
}
