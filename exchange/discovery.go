package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	errs "github.com/jrsteele09/go-tokenator/internal/errors"
)

const (
	wellKnownPath        = "/.well-known/openid-configuration"
	maxDiscoveryBodySize = 1 << 20
)

// ProviderMetadata is the part of an OpenID Provider configuration document the exchange needs.
type ProviderMetadata struct {
	Issuer  string `json:"issuer"`
	JWKSURI string `json:"jwks_uri"`
}

// Discoverer fetches OpenID Provider configuration documents.
type Discoverer struct {
	client *http.Client
}

func NewDiscoverer(client *http.Client) *Discoverer {
	if client == nil {
		client = http.DefaultClient
	}
	return &Discoverer{client: client}
}

// Discover fetches {issuer}/.well-known/openid-configuration. A document that does not exist or
// has no jwks_uri fails subject token verification; transport failures and 5xx answers are
// reported as errs.ErrUpstreamUnavailable so the caller can retry.
func (d *Discoverer) Discover(ctx context.Context, issuer string) (*ProviderMetadata, error) {
	wellKnown := strings.TrimSuffix(issuer, "/") + wellKnownPath

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, wellKnown, nil)
	if err != nil {
		return nil, errs.SubjectTokenVerifyFailed(fmt.Errorf("invalid issuer %s: %w", issuer, err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, errs.UpstreamUnavailable(fmt.Errorf("failed to get %s: %w", wellKnown, err))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, errs.UpstreamUnavailable(fmt.Errorf("failed to get %s: %s", wellKnown, resp.Status))
	case resp.StatusCode != http.StatusOK:
		return nil, errs.SubjectTokenVerifyFailed(fmt.Errorf("failed to get %s: %s", wellKnown, resp.Status))
	}

	var metadata ProviderMetadata
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxDiscoveryBodySize)).Decode(&metadata); err != nil {
		return nil, errs.SubjectTokenVerifyFailed(fmt.Errorf("invalid openid configuration at %s: %w", wellKnown, err))
	}
	if metadata.JWKSURI == "" {
		return nil, errs.SubjectTokenVerifyFailed(fmt.Errorf("openid configuration at %s has no jwks_uri", wellKnown))
	}
	return &metadata, nil
}
