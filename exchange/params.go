package exchange

import (
	"net/url"
	"slices"
	"strings"

	errs "github.com/jrsteele09/go-tokenator/internal/errors"
	"github.com/jrsteele09/go-tokenator/oauth2"
)

// Token exchange request parameters (RFC 8693 §2.1).
const (
	ParamAudience           = "audience"
	ParamResource           = "resource"
	ParamScope              = "scope"
	ParamRequestedTokenType = "requested_token_type"
	ParamSubjectToken       = "subject_token"
	ParamSubjectTokenType   = "subject_token_type"
	ParamActorToken         = "actor_token"
	ParamActorTokenType     = "actor_token_type"
)

var parameters = []string{
	ParamAudience, ParamResource, ParamScope, ParamRequestedTokenType,
	ParamSubjectToken, ParamSubjectTokenType, ParamActorToken, ParamActorTokenType,
}

var allowedDuplicateParameters = []string{ParamAudience, ParamResource}

var subjectTokenTypes = []oauth2.TokenTypeURI{
	oauth2.JWTTokenTypeURI,
	oauth2.IDTokenTypeURI,
	oauth2.AccessTokenTypeURI,
}

// Request is a parsed token exchange request.
type Request struct {
	Audience           []string
	Resource           []string
	Scope              string
	RequestedTokenType oauth2.TokenTypeURI
	SubjectToken       string
	SubjectTokenType   oauth2.TokenTypeURI
	ActorToken         string
	ActorTokenType     oauth2.TokenTypeURI
}

// ParseRequest reads the token exchange parameters from form. Parameters outside the token
// exchange set are ignored.
func ParseRequest(form url.Values) (*Request, error) {
	for _, name := range parameters {
		if len(form[name]) > 1 && !slices.Contains(allowedDuplicateParameters, name) {
			return nil, errs.InvalidRequest("'%s' parameter must not be provided twice", name)
		}
	}

	r := &Request{
		Audience:           nonEmpty(form[ParamAudience]),
		Resource:           nonEmpty(form[ParamResource]),
		Scope:              strings.Join(strings.Fields(form.Get(ParamScope)), " "),
		RequestedTokenType: oauth2.TokenTypeURI(form.Get(ParamRequestedTokenType)),
		SubjectToken:       form.Get(ParamSubjectToken),
		SubjectTokenType:   oauth2.TokenTypeURI(form.Get(ParamSubjectTokenType)),
		ActorToken:         form.Get(ParamActorToken),
		ActorTokenType:     oauth2.TokenTypeURI(form.Get(ParamActorTokenType)),
	}

	switch {
	case r.SubjectToken == "":
		return nil, errs.InvalidRequest("missing required parameter '%s'", ParamSubjectToken)
	case r.SubjectTokenType == "":
		return nil, errs.InvalidRequest("missing required parameter '%s'", ParamSubjectTokenType)
	case !slices.Contains(subjectTokenTypes, r.SubjectTokenType):
		return nil, errs.InvalidRequest("unsupported %s '%s'", ParamSubjectTokenType, r.SubjectTokenType)
	case r.RequestedTokenType != "" && r.RequestedTokenType != oauth2.AccessTokenTypeURI:
		return nil, errs.InvalidRequest("unsupported %s '%s'", ParamRequestedTokenType, r.RequestedTokenType)
	case r.ActorToken != "" && r.ActorTokenType == "":
		return nil, errs.InvalidRequest("missing required parameter '%s'", ParamActorTokenType)
	case r.ActorToken == "" && r.ActorTokenType != "":
		return nil, errs.InvalidRequest("'%s' provided without '%s'", ParamActorTokenType, ParamActorToken)
	case r.ActorTokenType != "" && !slices.Contains(subjectTokenTypes, r.ActorTokenType):
		return nil, errs.InvalidRequest("unsupported %s '%s'", ParamActorTokenType, r.ActorTokenType)
	}
	return r, nil
}

// Scopes returns the requested scopes in request order.
func (r *Request) Scopes() []string {
	return strings.Fields(r.Scope)
}

// HasScope reports whether scope was explicitly requested.
func (r *Request) HasScope(scope string) bool {
	return slices.Contains(r.Scopes(), scope)
}

// TokenAudience is the audience of the issued token: audience when given, else resource.
func (r *Request) TokenAudience() []string {
	if len(r.Audience) > 0 {
		return r.Audience
	}
	return r.Resource
}

func nonEmpty(values []string) []string {
	var out []string
	for _, v := range values {
		if v != "" && !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}
