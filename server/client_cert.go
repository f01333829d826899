package server

import (
	"crypto/x509"
	"encoding/pem"
	"net/http"
	"net/url"

	errs "github.com/jrsteele09/go-tokenator/internal/errors"
)

// clientCertificate returns the mutual TLS client certificate of the request, taken from the
// TLS handshake or, behind a TLS-terminating proxy, from the configured header carrying the
// URL-encoded PEM certificate. A request without a certificate yields nil.
func (s *Server) clientCertificate(r *http.Request) (*x509.Certificate, error) {
	if r.TLS != nil && len(r.TLS.PeerCertificates) > 0 {
		return r.TLS.PeerCertificates[0], nil
	}

	header := s.config.GetClientCertHeader()
	if header == "" {
		return nil, nil
	}
	value := r.Header.Get(header)
	if value == "" {
		return nil, nil
	}

	decoded, err := url.QueryUnescape(value)
	if err != nil {
		return nil, errs.InvalidRequest("malformed client certificate header")
	}
	block, _ := pem.Decode([]byte(decoded))
	if block == nil || block.Type != "CERTIFICATE" {
		return nil, errs.InvalidRequest("malformed client certificate header")
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, errs.InvalidRequest("malformed client certificate header")
	}
	return cert, nil
}
