package errors

import (
	"fmt"
	"net/http"
	"strings"
)

// OAuthError is an error that maps onto an RFC 6749 error response.
type OAuthError struct {
	Status      int
	Code        string
	Description string

	// Scopes holds the offending scopes of a RequestedScopesDenied error.
	Scopes []string

	kind  error
	cause error
}

func (e *OAuthError) Error() string {
	if e.Description == "" {
		return e.Code
	}
	return e.Code + ": " + e.Description
}

func (e *OAuthError) Unwrap() []error {
	errs := []error{e.kind}
	if e.cause != nil {
		errs = append(errs, e.cause)
	}
	return errs
}

// Retryable reports whether the caller may repeat the request unchanged.
func (e *OAuthError) Retryable() bool {
	return e.Status == http.StatusServiceUnavailable
}

func newOAuthError(kind error, status int, code, description string, cause error) *OAuthError {
	return &OAuthError{
		Status:      status,
		Code:        code,
		Description: description,
		kind:        kind,
		cause:       cause,
	}
}

func InvalidRequest(format string, args ...any) *OAuthError {
	return newOAuthError(ErrInvalidRequest, http.StatusBadRequest, "invalid_request", fmt.Sprintf(format, args...), nil)
}

func InvalidClient(description string) *OAuthError {
	return newOAuthError(ErrInvalidClient, http.StatusUnauthorized, "invalid_client", description, nil)
}

// UnauthorizedClient reports an authenticated client using a grant type it is not registered for.
func UnauthorizedClient(description string) *OAuthError {
	return newOAuthError(ErrUnauthorizedClient, http.StatusBadRequest, "unauthorized_client", description, nil)
}

func InvalidGrant(description string) *OAuthError {
	return newOAuthError(ErrInvalidGrant, http.StatusBadRequest, "invalid_grant", description, nil)
}

func InvalidDPoPProof(description string, cause error) *OAuthError {
	return newOAuthError(ErrInvalidDPoPProof, http.StatusBadRequest, "invalid_dpop_proof", description, cause)
}

func UnsupportedGrantType(grantType string) *OAuthError {
	return newOAuthError(ErrUnsupportedGrantType, http.StatusBadRequest, "unsupported_grant_type",
		fmt.Sprintf("unsupported grant_type requested (%s)", grantType), nil)
}

// SubjectTokenVerifyFailed reports a subject token that could not be verified.
// Quote characters are removed from the reason before it is exposed.
func SubjectTokenVerifyFailed(cause error) *OAuthError {
	description := "could not verify subject token"
	if cause != nil {
		description = strings.ReplaceAll(cause.Error(), `"`, "")
	}
	return newOAuthError(ErrSubjectTokenVerifyFailed, http.StatusUnauthorized, "invalid_subject_token", description, cause)
}

func RequestedScopesDenied(scopes []string) *OAuthError {
	noun := "scope"
	if len(scopes) != 1 {
		noun = "scopes"
	}
	e := newOAuthError(ErrRequestedScopesDenied, http.StatusForbidden, "requested_scopes_denied",
		fmt.Sprintf("scopes not allowed %s: %s", noun, strings.Join(scopes, " ")), nil)
	e.Scopes = scopes
	return e
}

func UpstreamUnavailable(cause error) *OAuthError {
	return newOAuthError(ErrUpstreamUnavailable, http.StatusServiceUnavailable, "temporarily_unavailable",
		"the subject token issuer could not be reached", cause)
}

// ToOAuthError converts any error into the response that may be shown to a caller.
// Infrastructure failures are collapsed into a generic server_error.
func ToOAuthError(err error) *OAuthError {
	var oe *OAuthError
	if As(err, &oe) {
		return oe
	}
	switch {
	case Is(err, ErrMalformedSecret), Is(err, ErrInvalidClient):
		return InvalidClient("client authentication failed")
	case Is(err, ErrUpstreamUnavailable):
		return UpstreamUnavailable(err)
	default:
		return newOAuthError(ErrInternal, http.StatusInternalServerError, "server_error", "internal server error", err)
	}
}
