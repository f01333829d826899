package server

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jrsteele09/go-tokenator/apikey"
	"github.com/jrsteele09/go-tokenator/clients"
	"github.com/jrsteele09/go-tokenator/exchange"
	"github.com/jrsteele09/go-tokenator/internal/config"
	"github.com/jrsteele09/go-tokenator/oauth2"
	"github.com/jrsteele09/go-tokenator/token/keys"
	"github.com/jrsteele09/go-tokenator/token/store"
	"github.com/rs/zerolog/log"
)

// GrantHandler issues tokens for one grant type on behalf of an authenticated client.
type GrantHandler func(ctx context.Context, tc exchange.TokenContext, form url.Values) (*oauth2.TokenResponse, error)

// TokenStore is the part of the token store the HTTP surface uses directly.
type TokenStore interface {
	Find(ctx context.Context, kind store.Kind, id string) (store.Payload, bool, error)
	Destroy(ctx context.Context, kind store.Kind, id string) error
	Ping(ctx context.Context) error
}

// Deps are the collaborators the server is built from.
type Deps struct {
	Store    TokenStore
	Clients  clients.Repo
	Secrets  *apikey.Verifier
	Signer   keys.Signer
	Exchange *exchange.Handler
}

type Server struct {
	env    string
	mux    *http.ServeMux
	routes []string
	config config.Config
	deps   Deps
	grants map[oauth2.GrantType]GrantHandler
}

func New(cfg config.Config, deps Deps) (*Server, error) {
	switch {
	case deps.Store == nil:
		return nil, fmt.Errorf("[Server New] token store is required")
	case deps.Clients == nil:
		return nil, fmt.Errorf("[Server New] client repo is required")
	case deps.Secrets == nil:
		return nil, fmt.Errorf("[Server New] secret verifier is required")
	case deps.Signer == nil:
		return nil, fmt.Errorf("[Server New] signer is required")
	}

	s := &Server{
		env:    cfg.GetEnv(),
		mux:    http.NewServeMux(),
		config: cfg,
		deps:   deps,
		grants: map[oauth2.GrantType]GrantHandler{},
	}
	if deps.Exchange != nil {
		s.RegisterGrantType(oauth2.TokenExchangeGrant, deps.Exchange.Exchange)
	}

	s.initRoutes()
	s.logRoutes()
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// RegisterGrantType makes the token endpoint dispatch grantType to handler.
func (s *Server) RegisterGrantType(grantType oauth2.GrantType, handler GrantHandler) {
	s.grants[grantType] = handler
}

// GrantTypes lists the registered grant types.
func (s *Server) GrantTypes() []string {
	grantTypes := make([]string, 0, len(s.grants))
	for gt := range s.grants {
		grantTypes = append(grantTypes, string(gt))
	}
	return grantTypes
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

// endpoint is the public URL of a route.
func (s *Server) endpoint(route string) string {
	return s.config.GetIssuer() + route
}

// path is the mux path of a route.
func (s *Server) path(route string) string {
	return s.config.GetPathPrefix() + route
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)
		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	color, ok := methodColors[method]
	if !ok {
		color = Gray
	}
	log.Debug().Msgf("[%s %-7s%s] %s", color, method, ResetColor, path)
}

// Ready reports whether the token store answers within a short deadline.
func (s *Server) Ready(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.deps.Store.Ping(ctx)
}
