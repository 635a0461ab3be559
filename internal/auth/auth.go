/*******************************************************************************
* Copyright 2023 Stefan Majewsky <majewsky@gmx.net>
* SPDX-License-Identifier: GPL-3.0-only
* Refer to the file "LICENSE" for details.
*******************************************************************************/

// Package auth implements the bearer-token authentication subsystem: JWT
// issuance and verification bound to one configured view's auth projection,
// the anti-spam registration gate, and mail auto-login token issuance.
package auth

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/majewsky/ldap-api-server/internal/apierr"
	"github.com/majewsky/ldap-api-server/internal/directory"
	"github.com/majewsky/ldap-api-server/internal/fields"
	"github.com/majewsky/ldap-api-server/internal/view"
)

// Config configures the Authenticator.
type Config struct {
	SecretKey            string
	HeaderPrefix         string
	Expiration           time.Duration
	AutoLoginExpiration  time.Duration
	ViewKey              string
	AntiSpam             []QuestionConfig
}

// Authenticator binds one configured view as the identity source for
// bearer tokens, and hands out/checks those tokens.
type Authenticator struct {
	view         *view.View
	secretKey    []byte
	headerPrefix string
	expiration   time.Duration
	autoLoginTTL time.Duration
	AntiSpam     *AntiSpam
}

// claims is the JWT payload: the primary key (used to re-fetch a fresh auth
// entry on every request) plus a snapshot of that entry at issuance time,
// used only to detect a changed "timestamp" attribute, if the auth
// projection declares one.
type claims struct {
	jwt.RegisteredClaims
	PrimaryKey string        `json:"primaryKey"`
	User       fields.Result `json:"user"`
}

func NewAuthenticator(registry interface {
	View(key string) (*view.View, bool)
}, cfg Config) (*Authenticator, error) {
	v, ok := registry.View(cfg.ViewKey)
	if !ok {
		return nil, apierr.Config("auth: unknown view %q", cfg.ViewKey)
	}
	if !v.HasAuth() {
		return nil, apierr.Config("auth: view %q has no auth projection", cfg.ViewKey)
	}
	antiSpam, err := NewAntiSpam(cfg.AntiSpam)
	if err != nil {
		return nil, err
	}
	return &Authenticator{
		view:         v,
		secretKey:    []byte(cfg.SecretKey),
		headerPrefix: cfg.HeaderPrefix,
		expiration:   cfg.Expiration,
		autoLoginTTL: cfg.AutoLoginExpiration,
		AntiSpam:     antiSpam,
	}, nil
}

// HeaderPrefix returns the configured bearer scheme, e.g. "Bearer".
func (a *Authenticator) HeaderPrefix() string { return a.headerPrefix }

// View returns the view this authenticator is bound to, for routing the
// register/request-password endpoints.
func (a *Authenticator) View() *view.View { return a.view }

func (a *Authenticator) issueToken(pk string, entry fields.Result, ttl time.Duration) (string, error) {
	now := time.Now()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		PrimaryKey: pk,
		User:       entry,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return token.SignedString(a.secretKey)
}

// Relogin issues a fresh standard-expiration token for an already-verified
// primary key.
func (a *Authenticator) Relogin(ctx context.Context, pk string) (string, error) {
	entry, err := a.view.GetAuthEntry(ctx, pk)
	if err != nil {
		return "", err
	}
	return a.issueToken(pk, entry, a.expiration)
}

// Login verifies primaryKey/password against the directory and, on
// success, issues a standard-expiration token.
func (a *Authenticator) Login(ctx context.Context, gw directory.Gateway, primaryKey, password string) (string, error) {
	if primaryKey == "" || password == "" {
		return "", apierr.Unauthorized("invalid credentials")
	}
	dn, err := a.view.DN(primaryKey)
	if err != nil {
		return "", apierr.Unauthorized("invalid credentials")
	}
	if err := gw.Bind(ctx, dn, password); err != nil {
		return "", err
	}
	return a.Relogin(ctx, primaryKey)
}

// AutoLogin issues a shorter-lived token for the mail auto-login flow,
// without checking a password.
func (a *Authenticator) AutoLogin(ctx context.Context, primaryKey string) (string, error) {
	entry, err := a.view.GetAuthEntry(ctx, primaryKey)
	if err != nil {
		return "", err
	}
	return a.issueToken(primaryKey, entry, a.autoLoginTTL)
}

// VerifyToken parses and validates a bearer token, re-fetching a fresh auth
// entry so that permission changes and the `timestamp`-based invalidation
// attribute take effect immediately rather than only at token expiry.
func (a *Authenticator) VerifyToken(ctx context.Context, tokenString string) (view.Principal, error) {
	var c claims
	parsed, err := jwt.ParseWithClaims(tokenString, &c, func(t *jwt.Token) (any, error) {
		return a.secretKey, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !parsed.Valid {
		return view.Principal{}, apierr.Unauthorized("invalid or expired token")
	}

	fresh, err := a.view.GetAuthEntry(ctx, c.PrimaryKey)
	if err != nil {
		return view.Principal{}, err
	}
	if oldTS, ok := c.User["timestamp"]; ok {
		if newTS, ok := fresh["timestamp"]; !ok || newTS != oldTS {
			return view.Principal{}, apierr.Unauthorized("token has been invalidated")
		}
	}

	permissions := make(map[string]bool, len(fresh))
	for key, value := range fresh {
		if b, ok := value.(bool); ok {
			permissions[key] = b
		}
	}
	return view.Principal{PrimaryKey: c.PrimaryKey, Permissions: permissions}, nil
}
