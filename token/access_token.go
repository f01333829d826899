package token

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-tokenator/clients"
	"github.com/jrsteele09/go-tokenator/internal/utils"
	"github.com/jrsteele09/go-tokenator/oauth2"
	"github.com/jrsteele09/go-tokenator/token/store"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Thumbprint claim names binding a token to its holder.
const (
	CertThumbprintClaim = "x5t#S256"
	DPoPThumbprintClaim = "jkt"
)

// Payload fields naming the parties of a token.
const (
	FieldAccountID = "accountId"
	FieldClientID  = "clientId"
)

// Saver persists token records.
type Saver interface {
	Upsert(ctx context.Context, kind store.Kind, id string, payload store.Payload, ttl time.Duration) error
}

// AccessToken is an access token record. Its JTI is the opaque value handed to the client.
type AccessToken struct {
	JTI            string
	Subject        string
	Audience       []string
	Scope          string
	ClientID       string
	GrantID        string
	SessionUID     string
	ResourceServer *ResourceServer
	// GrantTypes is the ordered history of grants that produced the token.
	GrantTypes     []string
	CertThumbprint string
	DPoPThumbprint string
	ACR            string
	AMR            []string
	AuthTime       int64
	SID            string
	// Actor identifies the party acting on behalf of Subject.
	Actor     map[string]any
	IssuedAt  time.Time
	ExpiresIn time.Duration
}

type AccessTokenParams struct {
	Subject        string
	Audience       []string
	Scope          string
	Client         *clients.Client
	ResourceServer *ResourceServer
	// TTL is used when the resource server does not set its own lifetime.
	TTL time.Duration
}

func NewAccessToken(params AccessTokenParams) *AccessToken {
	ttl := params.TTL
	if params.ResourceServer != nil && params.ResourceServer.AccessTokenTTL > 0 {
		ttl = params.ResourceServer.AccessTokenTTL
	}
	at := &AccessToken{
		JTI:            uuid.New().String(),
		Subject:        params.Subject,
		Audience:       params.Audience,
		Scope:          params.Scope,
		ResourceServer: params.ResourceServer,
		IssuedAt:       NowTimeFunc(),
		ExpiresIn:      ttl,
	}
	if params.Client != nil {
		at.ClientID = params.Client.ID
	}
	return at
}

// Expiration is the token lifetime in seconds, as reported in expires_in.
func (t *AccessToken) Expiration() int {
	return int(t.ExpiresIn / time.Second)
}

func (t *AccessToken) ExpiresAt() time.Time {
	return t.IssuedAt.Add(t.ExpiresIn)
}

// TokenType is "DPoP" for DPoP bound tokens and "Bearer" otherwise.
func (t *AccessToken) TokenType() string {
	if t.DPoPThumbprint != "" {
		return oauth2.DPoPTokenType
	}
	return oauth2.BearerTokenType
}

// AddGrantType appends grantType to the history unless it is already the latest entry.
func (t *AccessToken) AddGrantType(grantType string) {
	if n := len(t.GrantTypes); n > 0 && t.GrantTypes[n-1] == grantType {
		return
	}
	t.GrantTypes = append(t.GrantTypes, grantType)
}

func (t *AccessToken) Payload() store.Payload {
	p := store.Payload{
		store.FieldJTI:      t.JTI,
		store.FieldKind:     string(store.AccessToken),
		store.FieldIssuedAt: t.IssuedAt.Unix(),
		FieldAccountID:      t.Subject,
		FieldClientID:       t.ClientID,
	}
	if t.ExpiresIn > 0 {
		p[store.FieldExpires] = t.ExpiresAt().Unix()
	}
	optional := map[string]string{
		"scope":             t.Scope,
		store.FieldGrantID:  t.GrantID,
		"sessionUid":        t.SessionUID,
		"gty":               strings.Join(t.GrantTypes, " "),
		"acr":               t.ACR,
		"sid":               t.SID,
		CertThumbprintClaim: t.CertThumbprint,
		DPoPThumbprintClaim: t.DPoPThumbprint,
	}
	for k, v := range optional {
		if v != "" {
			p[k] = v
		}
	}
	if len(t.Audience) > 0 {
		p["aud"] = t.Audience
	}
	if len(t.AMR) > 0 {
		p["amr"] = t.AMR
	}
	if t.AuthTime > 0 {
		p["authTime"] = t.AuthTime
	}
	if t.ResourceServer != nil {
		p["resourceServer"] = t.ResourceServer.payload()
	}
	if len(t.Actor) > 0 {
		p["act"] = t.Actor
	}
	return p
}

// Save persists the token for its remaining lifetime and returns the value handed to the client.
func (t *AccessToken) Save(ctx context.Context, s Saver) (string, error) {
	if err := s.Upsert(ctx, store.AccessToken, t.JTI, t.Payload(), t.ExpiresIn); err != nil {
		return "", fmt.Errorf("failed to save access token: %w", err)
	}
	return t.JTI, nil
}

// AccessTokenFromPayload rebuilds a token from a stored record.
func AccessTokenFromPayload(p store.Payload) (*AccessToken, error) {
	if kind := p.String(store.FieldKind); kind != string(store.AccessToken) {
		return nil, fmt.Errorf("record kind %q is not an access token", kind)
	}
	at := &AccessToken{
		JTI:            p.String(store.FieldJTI),
		Subject:        p.String(FieldAccountID),
		Scope:          p.String("scope"),
		ClientID:       p.String(FieldClientID),
		GrantID:        p.GrantID(),
		SessionUID:     p.String("sessionUid"),
		GrantTypes:     strings.Fields(p.String("gty")),
		CertThumbprint: p.String(CertThumbprintClaim),
		DPoPThumbprint: p.String(DPoPThumbprintClaim),
		ACR:            p.String("acr"),
		SID:            p.String("sid"),
	}
	if iat, ok := p.Int64(store.FieldIssuedAt); ok {
		at.IssuedAt = time.Unix(iat, 0)
	}
	if exp, ok := p.ExpiresAt(); ok {
		at.ExpiresIn = exp.Sub(at.IssuedAt)
	}
	if authTime, ok := p.Int64("authTime"); ok {
		at.AuthTime = authTime
	}
	at.Audience = utils.ToStringSlice(p["aud"])
	at.AMR = utils.ToStringSlice(p["amr"])
	if act, ok := p["act"].(map[string]any); ok {
		at.Actor = act
	}
	if rs, ok := p["resourceServer"].(map[string]any); ok {
		at.ResourceServer = &ResourceServer{
			Identifier:        stringValue(rs["identifier"]),
			Scope:             stringValue(rs["scope"]),
			AccessTokenFormat: stringValue(rs["accessTokenFormat"]),
			Audience:          utils.ToStringSlice(rs["audience"]),
		}
	}
	return at, nil
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}
