// Package oidcauth signs users in against a hosted OpenID Connect provider
// using the resource owner password grant.
package oidcauth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"hypertension/internal/domain"
)

// Config holds the provider registration.
type Config struct {
	Issuer       string
	ClientID     string
	ClientSecret string
}

// Authenticator implements domain.Authenticator. Accounts are provisioned at
// the provider, so SignUp only proves the identity exists.
type Authenticator struct {
	oauth    oauth2.Config
	verifier *oidc.IDTokenVerifier
}

var _ domain.Authenticator = (*Authenticator)(nil)

// New discovers the provider and builds an Authenticator.
func New(ctx context.Context, cfg Config) (*Authenticator, error) {
	provider, err := oidc.NewProvider(ctx, cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc discovery: %w", err)
	}
	return NewWithVerifier(provider, cfg, provider.Verifier(&oidc.Config{ClientID: cfg.ClientID})), nil
}

// NewWithVerifier builds an Authenticator with a caller-supplied verifier.
func NewWithVerifier(provider *oidc.Provider, cfg Config, v *oidc.IDTokenVerifier) *Authenticator {
	return &Authenticator{
		oauth: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     provider.Endpoint(),
			Scopes:       []string{oidc.ScopeOpenID, "email"},
		},
		verifier: v,
	}
}

// SignUp authenticates an identity already registered at the provider.
func (a *Authenticator) SignUp(ctx context.Context, email, password string) (domain.Principal, error) {
	return a.SignIn(ctx, email, password)
}

// SignIn exchanges the credentials for an ID token and verifies it.
func (a *Authenticator) SignIn(ctx context.Context, email, password string) (domain.Principal, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	token, err := a.oauth.PasswordCredentialsToken(ctx, email, password)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil && re.Response.StatusCode < 500 {
			return domain.Principal{}, domain.ErrInvalidCredentials
		}
		return domain.Principal{}, domain.NewStoreError("sign in", domain.StoreNetwork, err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		return domain.Principal{}, errors.New("no id_token in token response")
	}
	idToken, err := a.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return domain.Principal{}, fmt.Errorf("verify id_token: %w", err)
	}

	var claims struct {
		Email string `json:"email"`
		Sub   string `json:"sub"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return domain.Principal{}, fmt.Errorf("parse claims: %w", err)
	}
	if claims.Email == "" {
		claims.Email = email
	}
	return domain.Principal{UID: claims.Sub, Email: strings.ToLower(claims.Email)}, nil
}

// SignOut is a no-op; the provider's tokens are never stored.
func (a *Authenticator) SignOut(ctx context.Context, p domain.Principal) error {
	return nil
}
