package exchange

import (
	"crypto/sha256"
	"crypto/subtle"
	"crypto/x509"
	"encoding/base64"

	"github.com/jrsteele09/go-tokenator/clients"
	errs "github.com/jrsteele09/go-tokenator/internal/errors"
)

// CertificateThumbprint is the x5t#S256 value of cert: base64url(sha256(DER)).
func CertificateThumbprint(cert *x509.Certificate) string {
	sum := sha256.Sum256(cert.Raw)
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// bindCertificate enforces mutual TLS binding. A certificate is required when the client is
// certificate bound or the subject token carries an x5t#S256 confirmation, and must then match
// that confirmation. The returned thumbprint is empty when no binding applies.
func bindCertificate(client *clients.Client, subject *Claims, cert *x509.Certificate) (string, error) {
	if !client.TLSClientCertificateBoundAccessTokens && subject.CertThumbprint == "" {
		return "", nil
	}
	if cert == nil {
		return "", errs.InvalidGrant("mutual TLS client certificate not provided")
	}
	thumbprint := CertificateThumbprint(cert)
	if subject.CertThumbprint != "" && subtle.ConstantTimeCompare([]byte(subject.CertThumbprint), []byte(thumbprint)) != 1 {
		return "", errs.InvalidGrant("failed x5t#S256 verification")
	}
	return thumbprint, nil
}
