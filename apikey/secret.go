package apikey

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"

	errs "github.com/jrsteele09/go-tokenator/internal/errors"
)

// AlgorithmArgon2id is the only derivation algorithm accepted in client secrets.
const AlgorithmArgon2id = "argon2id"

const (
	saltLength     = 16
	passwordLength = 32
)

// Secret is a decoded client secret of the form algorithm.base64url(salt).base64url(password).
type Secret struct {
	Algorithm string
	Salt      []byte
	Password  []byte
}

// NewSecret generates a random argon2id client secret.
func NewSecret() (*Secret, error) {
	s := &Secret{
		Algorithm: AlgorithmArgon2id,
		Salt:      make([]byte, saltLength),
		Password:  make([]byte, passwordLength),
	}
	if _, err := rand.Read(s.Salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	if _, err := rand.Read(s.Password); err != nil {
		return nil, fmt.Errorf("failed to generate password: %w", err)
	}
	return s, nil
}

// DecodeSecret splits a composite secret and decodes its salt and password.
func DecodeSecret(composite string) (*Secret, error) {
	parts := strings.Split(composite, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: expected 3 parts, got %d", errs.ErrMalformedSecret, len(parts))
	}
	if parts[0] == "" {
		return nil, fmt.Errorf("%w: missing algorithm", errs.ErrMalformedSecret)
	}
	salt, err := decodeBase64(parts[1])
	if err != nil || len(salt) == 0 {
		return nil, fmt.Errorf("%w: invalid salt encoding", errs.ErrMalformedSecret)
	}
	password, err := decodeBase64(parts[2])
	if err != nil || len(password) == 0 {
		return nil, fmt.Errorf("%w: invalid password encoding", errs.ErrMalformedSecret)
	}
	return &Secret{Algorithm: parts[0], Salt: salt, Password: password}, nil
}

// String encodes the secret in its composite form.
func (s *Secret) String() string {
	return strings.Join([]string{
		s.Algorithm,
		base64.RawURLEncoding.EncodeToString(s.Salt),
		base64.RawURLEncoding.EncodeToString(s.Password),
	}, ".")
}

// ParseAPIKey splits an API key, base64(clientId:secret), into its client id and secret.
func ParseAPIKey(apiKey string) (clientID, secret string, err error) {
	raw, err := decodeBase64(strings.TrimSpace(apiKey))
	if err != nil {
		return "", "", fmt.Errorf("%w: api key is not base64", errs.ErrMalformedSecret)
	}
	clientID, secret, ok := strings.Cut(string(raw), ":")
	if !ok || clientID == "" || secret == "" {
		return "", "", fmt.Errorf("%w: api key must be clientId:secret", errs.ErrMalformedSecret)
	}
	return clientID, secret, nil
}

// EncodeAPIKey builds the API key a client presents.
func EncodeAPIKey(clientID string, secret *Secret) string {
	return base64.StdEncoding.EncodeToString([]byte(clientID + ":" + secret.String()))
}

// decodeBase64 accepts both the standard and URL alphabets, padded or not.
func decodeBase64(s string) ([]byte, error) {
	var lastErr error
	for _, enc := range []*base64.Encoding{
		base64.RawURLEncoding,
		base64.URLEncoding,
		base64.RawStdEncoding,
		base64.StdEncoding,
	} {
		b, err := enc.DecodeString(s)
		if err == nil {
			return b, nil
		}
		lastErr = err
	}
	return nil, lastErr
}
