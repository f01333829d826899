package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jrsteele09/go-tokenator/oauth2"
	xoauth2 "golang.org/x/oauth2"
)

const maxResponseBodySize = 1 << 20

// ClientConfig configures a client of a token exchange endpoint.
type ClientConfig struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Audience     []string
	Scopes       []string

	// SubjectToken returns the token to exchange. It is called for every exchange.
	SubjectToken     func() (string, error)
	SubjectTokenType oauth2.TokenTypeURI

	HTTPClient *http.Client
}

func (c *ClientConfig) Validate() error {
	if c.TokenURL == "" {
		return fmt.Errorf("TokenURL is required")
	}
	if c.ClientID == "" {
		return fmt.Errorf("ClientID is required")
	}
	if c.SubjectToken == nil {
		return fmt.Errorf("SubjectToken is required")
	}
	if _, err := url.Parse(c.TokenURL); err != nil {
		return fmt.Errorf("TokenURL is not a valid URL: %w", err)
	}
	return nil
}

// TokenSource returns a token source that exchanges the subject token whenever the cached
// token has expired.
func (c *ClientConfig) TokenSource(ctx context.Context) xoauth2.TokenSource {
	return xoauth2.ReuseTokenSource(nil, &tokenSource{ctx: ctx, conf: c})
}

type tokenSource struct {
	ctx  context.Context
	conf *ClientConfig
}

func (ts *tokenSource) Token() (*xoauth2.Token, error) {
	conf := ts.conf
	if err := conf.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	subjectToken, err := conf.SubjectToken()
	if err != nil {
		return nil, fmt.Errorf("failed to get subject token: %w", err)
	}

	subjectTokenType := conf.SubjectTokenType
	if subjectTokenType == "" {
		subjectTokenType = oauth2.JWTTokenTypeURI
	}
	data := url.Values{
		"grant_type":            {string(oauth2.TokenExchangeGrant)},
		ParamSubjectToken:       {subjectToken},
		ParamSubjectTokenType:   {string(subjectTokenType)},
		ParamRequestedTokenType: {string(oauth2.AccessTokenTypeURI)},
	}
	for _, aud := range conf.Audience {
		data.Add(ParamAudience, aud)
	}
	if len(conf.Scopes) > 0 {
		data.Set(ParamScope, strings.Join(conf.Scopes, " "))
	}

	req, err := http.NewRequestWithContext(ts.ctx, http.MethodPost, conf.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token exchange request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(url.QueryEscape(conf.ClientID), url.QueryEscape(conf.ClientSecret))

	httpClient := conf.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token exchange request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read token exchange response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var oauthErr struct {
			Error            string `json:"error"`
			ErrorDescription string `json:"error_description"`
		}
		if json.Unmarshal(body, &oauthErr) == nil && oauthErr.Error != "" {
			return nil, &xoauth2.RetrieveError{Response: resp, Body: body, ErrorCode: oauthErr.Error, ErrorDescription: oauthErr.ErrorDescription}
		}
		return nil, fmt.Errorf("token exchange failed with status %d", resp.StatusCode)
	}

	var tokenResp oauth2.TokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return nil, fmt.Errorf("failed to parse token exchange response: %w", err)
	}
	if tokenResp.AccessToken == "" || tokenResp.TokenType == "" {
		return nil, fmt.Errorf("token exchange: server returned an incomplete token response")
	}

	tok := &xoauth2.Token{
		AccessToken: tokenResp.AccessToken,
		TokenType:   tokenResp.TokenType,
	}
	if tokenResp.ExpiresIn > 0 {
		tok.Expiry = time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second)
	}
	extra := map[string]any{"issued_token_type": tokenResp.IssuedTokenType, "scope": tokenResp.Scope}
	if tokenResp.IDToken != "" {
		extra["id_token"] = tokenResp.IDToken
	}
	return tok.WithExtra(extra), nil
}
