package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	"sharkninja-client/internal/config"
)

// oidcStrategy signs in through the SharkNinja Auth0 tenant using the
// resource owner password grant. It serves as the fallback when the IDP
// cannot complete a sign-in.
type oidcStrategy struct {
	conf       *oauth2.Config
	httpClient *http.Client
	nowFunc    func() time.Time
}

func newOIDCStrategy(cfg *config.Config, httpClient *http.Client) *oidcStrategy {
	return &oidcStrategy{
		conf: &oauth2.Config{
			ClientID: cfg.OIDCClientID,
			Endpoint: oauth2.Endpoint{TokenURL: cfg.OIDCTokenURL},
			Scopes:   []string{"openid", "profile", "email", "offline_access"},
		},
		httpClient: httpClient,
		nowFunc:    time.Now,
	}
}

func (s *oidcStrategy) Name() string { return "oidc" }

func (s *oidcStrategy) SignIn(ctx context.Context, email, password string) (Credential, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
	tok, err := s.conf.PasswordCredentialsToken(ctx, email, password)
	if err != nil {
		return Credential{}, s.wrapError(err)
	}
	return s.credentialFrom(tok)
}

func (s *oidcStrategy) Refresh(ctx context.Context, cred Credential) (Credential, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
	src := s.conf.TokenSource(ctx, &oauth2.Token{RefreshToken: cred.RefreshToken})
	tok, err := src.Token()
	if err != nil {
		return Credential{}, s.wrapError(err)
	}

	next, err := s.credentialFrom(tok)
	if err != nil {
		return Credential{}, err
	}
	// Auth0 does not always rotate refresh tokens. Keep the old one when
	// the response omits it.
	if next.RefreshToken == "" {
		next.RefreshToken = cred.RefreshToken
	}
	return next, nil
}

// credentialFrom builds a Credential from an OAuth2 token. The ID token is
// preferred as the bearer token; the device API expects identity claims in
// the token it receives.
func (s *oidcStrategy) credentialFrom(tok *oauth2.Token) (Credential, error) {
	bearer := tok.AccessToken
	if idToken, ok := tok.Extra("id_token").(string); ok && idToken != "" {
		bearer = idToken
	}
	if bearer == "" {
		return Credential{}, newAuthError(s.Name(), 0, ErrMalformedResponse)
	}

	expiresAt := tok.Expiry
	if expiresAt.IsZero() {
		expiresAt = s.nowFunc().Add(defaultTokenLifetime)
	}
	// When the bearer token carries its own exp claim that expires sooner
	// than the response advertised, trust the claim.
	if exp, ok := tokenExpiry(bearer); ok && exp.Before(expiresAt) {
		expiresAt = exp
	}

	return Credential{
		AccessToken:   bearer,
		RefreshToken:  tok.RefreshToken,
		ExpiresAt:     expiresAt,
		Authenticated: true,
	}, nil
}

// tokenExpiry extracts the exp claim from a JWT without verifying the
// signature. The token arrived from the issuer over TLS and is only used
// for expiry scheduling.
func tokenExpiry(raw string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// wrapError maps OAuth2 retrieval failures onto the auth error taxonomy.
func (s *oidcStrategy) wrapError(err error) error {
	var rerr *oauth2.RetrieveError
	if !errors.As(err, &rerr) {
		return newAuthError(s.Name(), 0, fmt.Errorf("request failed: %w", err))
	}

	status := rerr.Response.StatusCode
	switch {
	case status == http.StatusNotFound:
		return newAuthError(s.Name(), status, ErrEndpointNotFound)
	case status == http.StatusUnauthorized || status == http.StatusForbidden || rerr.ErrorCode == "invalid_grant":
		return newAuthError(s.Name(), status, ErrInvalidCredentials)
	default:
		return newAuthError(s.Name(), status, ErrUnexpectedResponse)
	}
}
