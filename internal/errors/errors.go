package errors

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the token engine
var (
	// Infrastructure errors
	ErrStorageUnavailable  = errors.New("storage unavailable")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrCorruptRecord       = errors.New("corrupt record")

	// Client authentication errors
	ErrInvalidClient      = errors.New("invalid client")
	ErrUnauthorizedClient = errors.New("unauthorized client")
	ErrMalformedSecret    = errors.New("malformed secret")

	// Exchange errors
	ErrInvalidRequest           = errors.New("invalid request")
	ErrInvalidGrant             = errors.New("invalid grant")
	ErrInvalidDPoPProof         = errors.New("invalid dpop proof")
	ErrUnsupportedGrantType     = errors.New("unsupported grant type")
	ErrSubjectTokenVerifyFailed = errors.New("subject token verification failed")
	ErrRequestedScopesDenied    = errors.New("requested scopes denied")

	// General errors
	ErrNotFound = errors.New("not found")
	ErrInternal = errors.New("internal error")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// New creates a plain error value
func New(text string) error {
	return errors.New(text)
}
