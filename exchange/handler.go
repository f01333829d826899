package exchange

import (
	"context"
	"crypto/x509"
	"net/url"
	"strings"
	"time"

	"github.com/jrsteele09/go-tokenator/clients"
	"github.com/jrsteele09/go-tokenator/internal/config"
	errs "github.com/jrsteele09/go-tokenator/internal/errors"
	"github.com/jrsteele09/go-tokenator/oauth2"
	"github.com/jrsteele09/go-tokenator/token"
	"github.com/jrsteele09/go-tokenator/token/jwt"
	"github.com/rs/zerolog/log"
)

// Store persists issued tokens and remembers DPoP proofs already used.
type Store interface {
	token.Saver
	Unique(ctx context.Context, namespace, jti string, expiresAt time.Time) (bool, error)
}

type IDTokenCreator interface {
	CreateIDToken(clientID string, identity jwt.IdentityClaims, accessToken string) (string, error)
}

// TokenContext is what the token endpoint knows about the caller beyond the form parameters.
type TokenContext struct {
	// Client is the authenticated client.
	Client      *clients.Client
	Certificate *x509.Certificate
	DPoPProof   string
	// Method and URL are the HTTP method and public URL of the token endpoint request.
	Method string
	URL    string
}

// Handler implements the token exchange grant.
type Handler struct {
	store          Store
	verifier       TokenVerifier
	dpop           *DPoPValidator
	idTokens       IDTokenCreator
	accessTokenTTL time.Duration
}

type Option func(*Handler)

// WithDPoPValidator replaces the DPoP validator built from the configured iat tolerance.
func WithDPoPValidator(v *DPoPValidator) Option {
	return func(h *Handler) {
		h.dpop = v
	}
}

func NewHandler(cfg config.OAuthConfig, store Store, verifier TokenVerifier, idTokens IDTokenCreator, opts ...Option) *Handler {
	h := &Handler{
		store:          store,
		verifier:       verifier,
		dpop:           NewDPoPValidator(cfg.GetDPoPIatTolerance(), time.Now),
		idTokens:       idTokens,
		accessTokenTTL: cfg.GetAccessTokenTTL(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Exchange runs the token exchange for an authenticated client. Every check and the identity
// token complete before anything is written; the only write ahead of the new token is the DPoP
// replay record.
func (h *Handler) Exchange(ctx context.Context, tc TokenContext, form url.Values) (*oauth2.TokenResponse, error) {
	req, err := ParseRequest(form)
	if err != nil {
		return nil, err
	}

	subject, err := h.verifier.Verify(ctx, req.SubjectToken)
	if err != nil {
		return nil, err
	}

	var actor map[string]any
	if req.ActorToken != "" {
		actorClaims, err := h.verifier.Verify(ctx, req.ActorToken)
		if err != nil {
			return nil, err
		}
		actor = map[string]any{"sub": actorClaims.Subject, "iss": actorClaims.Issuer}
	}

	certThumbprint, err := bindCertificate(tc.Client, subject, tc.Certificate)
	if err != nil {
		return nil, err
	}

	var proof *DPoPProof
	if tc.DPoPProof != "" {
		if proof, err = h.dpop.Validate(tc.DPoPProof, tc.Method, tc.URL); err != nil {
			return nil, err
		}
	}

	if req.Scope != "" {
		if denied := tc.Client.DeniedScopes(req.Scopes()); len(denied) > 0 {
			return nil, errs.RequestedScopesDenied(denied)
		}
	}

	if proof != nil {
		unique, err := h.store.Unique(ctx, tc.Client.ID, proof.JTI, h.dpop.ReplayWindowEnd(proof))
		if err != nil {
			return nil, err
		}
		if !unique {
			return nil, errs.InvalidGrant("DPoP Token Replay detected")
		}
	}

	at := h.mint(tc.Client, req, subject)
	at.CertThumbprint = certThumbprint
	if proof != nil {
		at.DPoPThumbprint = proof.Thumbprint
	}
	at.Actor = actor

	var idToken string
	if req.HasScope("openid") {
		idToken, err = h.idTokens.CreateIDToken(tc.Client.ID, jwt.IdentityClaims{
			Subject:  subject.Subject,
			ACR:      subject.ACR,
			AMR:      subject.AMR,
			AuthTime: subject.AuthTime,
			Nonce:    subject.Nonce,
			SID:      subject.SID,
		}, at.JTI)
		if err != nil {
			return nil, err
		}
	}

	accessToken, err := at.Save(ctx, h.store)
	if err != nil {
		return nil, err
	}

	resp := &oauth2.TokenResponse{
		AccessToken:     accessToken,
		IssuedTokenType: oauth2.AccessTokenTypeURI,
		TokenType:       at.TokenType(),
		ExpiresIn:       at.Expiration(),
		IDToken:         idToken,
		Scope:           at.Scope,
	}

	log.Info().
		Str("client_id", tc.Client.ID).
		Str("issuer", subject.Issuer).
		Str("token_type", resp.TokenType).
		Bool("id_token", resp.IDToken != "").
		Msg("token exchanged")
	return resp, nil
}

func (h *Handler) mint(client *clients.Client, req *Request, subject *Claims) *token.AccessToken {
	audience := req.TokenAudience()
	at := token.NewAccessToken(token.AccessTokenParams{
		Subject:  subject.Subject,
		Audience: audience,
		Scope:    req.Scope,
		Client:   client,
		ResourceServer: &token.ResourceServer{
			Identifier:        subject.Issuer,
			Audience:          audience,
			Scope:             req.Scope,
			AccessTokenFormat: token.FormatOpaque,
		},
		TTL: h.accessTokenTTL,
	})
	at.ACR = subject.ACR
	at.AMR = subject.AMR
	at.AuthTime = subject.AuthTime
	at.SID = subject.SID

	if gty, ok := subject.Raw["gty"].(string); ok {
		at.GrantTypes = strings.Fields(gty)
	}
	at.AddGrantType(string(oauth2.TokenExchangeGrant))
	return at
}
