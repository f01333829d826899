package exchange_test

import (
	"crypto/sha256"
	"encoding/base64"
	"testing"

	"github.com/jrsteele09/go-tokenator/exchange"
	"github.com/stretchr/testify/require"
)

func TestCertificateThumbprint(t *testing.T) {
	cert := selfSignedCertificate(t, "client-1")
	sum := sha256.Sum256(cert.Raw)
	require.Equal(t, base64.RawURLEncoding.EncodeToString(sum[:]), exchange.CertificateThumbprint(cert))
	require.NotEqual(t, exchange.CertificateThumbprint(cert), exchange.CertificateThumbprint(selfSignedCertificate(t, "client-2")))
}
