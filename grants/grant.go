package grants

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	errs "github.com/jrsteele09/go-tokenator/internal/errors"
	"github.com/jrsteele09/go-tokenator/internal/utils"
	"github.com/jrsteele09/go-tokenator/token/store"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Store is the persistence a grant needs.
type Store interface {
	Upsert(ctx context.Context, kind store.Kind, id string, payload store.Payload, ttl time.Duration) error
	Find(ctx context.Context, kind store.Kind, id string) (store.Payload, bool, error)
	Destroy(ctx context.Context, kind store.Kind, id string) error
	RevokeByGrantID(ctx context.Context, grantID string) error
}

// Grant records what an account consented to for a client. Tokens reference it through grantId.
type Grant struct {
	ID        string
	AccountID string
	ClientID  string
	// OIDCScope and OIDCClaims are kept as sets; they are rendered sorted.
	OIDCScope  map[string]struct{}
	OIDCClaims map[string]struct{}
	// Resources maps a resource indicator to its granted scopes.
	Resources map[string]map[string]struct{}
	IssuedAt  time.Time
	TTL       time.Duration
}

func New(accountID, clientID string, ttl time.Duration) *Grant {
	return &Grant{
		ID:         uuid.New().String(),
		AccountID:  accountID,
		ClientID:   clientID,
		OIDCScope:  map[string]struct{}{},
		OIDCClaims: map[string]struct{}{},
		Resources:  map[string]map[string]struct{}{},
		IssuedAt:   NowTimeFunc(),
		TTL:        ttl,
	}
}

// AddOIDCScope adds the space delimited scopes to the granted OpenID Connect scopes.
func (g *Grant) AddOIDCScope(scope string) {
	addAll(g.OIDCScope, strings.Fields(scope))
}

func (g *Grant) AddOIDCClaims(claims []string) {
	addAll(g.OIDCClaims, claims)
}

// AddResourceScope adds the space delimited scopes to those granted for indicator.
func (g *Grant) AddResourceScope(indicator, scope string) {
	set, ok := g.Resources[indicator]
	if !ok {
		set = map[string]struct{}{}
		g.Resources[indicator] = set
	}
	addAll(set, strings.Fields(scope))
}

func (g *Grant) HasOIDCScope(scope string) bool {
	_, ok := g.OIDCScope[scope]
	return ok
}

// ResourceScope returns the space delimited scopes granted for indicator.
func (g *Grant) ResourceScope(indicator string) string {
	return strings.Join(sorted(g.Resources[indicator]), " ")
}

func (g *Grant) Payload() store.Payload {
	resources := make(map[string]any, len(g.Resources))
	for indicator, set := range g.Resources {
		resources[indicator] = strings.Join(sorted(set), " ")
	}
	p := store.Payload{
		store.FieldJTI:      g.ID,
		store.FieldKind:     string(store.Grant),
		store.FieldIssuedAt: g.IssuedAt.Unix(),
		"accountId":         g.AccountID,
		"clientId":          g.ClientID,
		"openid": map[string]any{
			"scope":  strings.Join(sorted(g.OIDCScope), " "),
			"claims": sorted(g.OIDCClaims),
		},
		"resources": resources,
	}
	if g.TTL > 0 {
		p[store.FieldExpires] = g.IssuedAt.Add(g.TTL).Unix()
	}
	return p
}

// Save persists the grant and returns its id.
func (g *Grant) Save(ctx context.Context, s Store) (string, error) {
	if err := s.Upsert(ctx, store.Grant, g.ID, g.Payload(), g.TTL); err != nil {
		return "", fmt.Errorf("failed to save grant %s: %w", g.ID, err)
	}
	return g.ID, nil
}

// Find loads a grant. A missing grant is reported as errs.ErrNotFound.
func Find(ctx context.Context, s Store, id string) (*Grant, error) {
	payload, found, err := s.Find(ctx, store.Grant, id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errs.Wrapf(errs.ErrNotFound, "grant %s", id)
	}
	return fromPayload(payload), nil
}

// Revoke deletes every token issued under the grant and then the grant itself.
func Revoke(ctx context.Context, s Store, id string) error {
	if err := s.RevokeByGrantID(ctx, id); err != nil {
		return err
	}
	return s.Destroy(ctx, store.Grant, id)
}

func fromPayload(p store.Payload) *Grant {
	g := &Grant{
		ID:         p.String(store.FieldJTI),
		AccountID:  p.String("accountId"),
		ClientID:   p.String("clientId"),
		OIDCScope:  map[string]struct{}{},
		OIDCClaims: map[string]struct{}{},
		Resources:  map[string]map[string]struct{}{},
	}
	if iat, ok := p.Int64(store.FieldIssuedAt); ok {
		g.IssuedAt = time.Unix(iat, 0)
	}
	if exp, ok := p.ExpiresAt(); ok {
		g.TTL = exp.Sub(g.IssuedAt)
	}
	if openid, ok := p["openid"].(map[string]any); ok {
		if scope, ok := openid["scope"].(string); ok {
			g.AddOIDCScope(scope)
		}
		g.AddOIDCClaims(utils.ToStringSlice(openid["claims"]))
	}
	if resources, ok := p["resources"].(map[string]any); ok {
		for indicator, scope := range resources {
			s, _ := scope.(string)
			g.AddResourceScope(indicator, s)
		}
	}
	return g
}

func addAll(set map[string]struct{}, values []string) {
	for _, v := range values {
		if v != "" {
			set[v] = struct{}{}
		}
	}
}

func sorted(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
