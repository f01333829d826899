package exchange_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jrsteele09/go-tokenator/exchange"
	"github.com/jrsteele09/go-tokenator/oauth2"
	"github.com/stretchr/testify/require"
	xoauth2 "golang.org/x/oauth2"
)

func TestClientTokenSource(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		require.NoError(t, r.ParseForm())
		id, secret, ok := r.BasicAuth()
		if !ok || id != "client-1" || secret != "s3cret" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid_client"})
			return
		}
		if r.PostForm.Get("subject_token") != "subject" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid_subject_token", "error_description": "bad"})
			return
		}
		require.Equal(t, string(oauth2.TokenExchangeGrant), r.PostForm.Get("grant_type"))
		require.Equal(t, []string{"a", "b"}, r.PostForm["audience"])
		require.Equal(t, "profile", r.PostForm.Get("scope"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(oauth2.TokenResponse{
			AccessToken:     "exchanged",
			IssuedTokenType: oauth2.AccessTokenTypeURI,
			TokenType:       oauth2.BearerTokenType,
			ExpiresIn:       300,
			Scope:           "profile",
		})
	}))
	defer srv.Close()

	conf := &exchange.ClientConfig{
		TokenURL:     srv.URL,
		ClientID:     "client-1",
		ClientSecret: "s3cret",
		Audience:     []string{"a", "b"},
		Scopes:       []string{"profile"},
		SubjectToken: func() (string, error) { return "subject", nil },
	}

	t.Run("exchanges and caches", func(t *testing.T) {
		ts := conf.TokenSource(context.Background())
		tok, err := ts.Token()
		require.NoError(t, err)
		require.Equal(t, "exchanged", tok.AccessToken)
		require.Equal(t, "Bearer", tok.TokenType)
		require.True(t, tok.Valid())
		require.Equal(t, string(oauth2.AccessTokenTypeURI), tok.Extra("issued_token_type"))

		_, err = ts.Token()
		require.NoError(t, err)
		require.Equal(t, 1, calls)
	})

	t.Run("oauth error", func(t *testing.T) {
		bad := *conf
		bad.SubjectToken = func() (string, error) { return "other", nil }
		_, err := bad.TokenSource(context.Background()).Token()

		var re *xoauth2.RetrieveError
		require.ErrorAs(t, err, &re)
		require.Equal(t, "invalid_subject_token", re.ErrorCode)
	})

	t.Run("invalid config", func(t *testing.T) {
		_, err := (&exchange.ClientConfig{}).TokenSource(context.Background()).Token()
		require.Error(t, err)
	})
}
