package config

import "time"

type OAuthConfig interface {
	GetAccessTokenTTL() time.Duration
	GetIDTokenTTL() time.Duration
	GetDPoPIatTolerance() time.Duration
	GetClientCertHeader() string
}

type OAuth struct {
	AccessTokenTTLSeconds int           `env:"ACCESS_TOKEN_TTL" envDefault:"300"`
	IDTokenTTLSeconds     int           `env:"ID_TOKEN_TTL" envDefault:"3600"`
	DPoPIatTolerance      time.Duration `env:"DPOP_IAT_TOLERANCE" envDefault:"60s"`
	ClientCertHeader      string        `env:"CLIENT_CERT_HEADER"`
}

var _ OAuthConfig = OAuth{}

func (o OAuth) GetAccessTokenTTL() time.Duration {
	return time.Duration(o.AccessTokenTTLSeconds) * time.Second
}

func (o OAuth) GetIDTokenTTL() time.Duration {
	return time.Duration(o.IDTokenTTLSeconds) * time.Second
}

func (o OAuth) GetDPoPIatTolerance() time.Duration {
	return o.DPoPIatTolerance
}

// GetClientCertHeader names the header a TLS-terminating proxy uses to forward the
// client certificate. Empty means only certificates from the TLS handshake are used.
func (o OAuth) GetClientCertHeader() string {
	return o.ClientCertHeader
}
