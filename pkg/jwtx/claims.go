// Package jwtx reads the registered claims of bearer tokens. The bridge only
// forwards tokens, it never holds signing keys, so signatures are not
// verified here; the upstream API does that.
package jwtx

import (
	"errors"
	"regexp"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMalformed   = errors.New("jwtx: token is not a JWT")
	ErrExpired     = errors.New("jwtx: token expired")
	ErrNotYetValid = errors.New("jwtx: token not yet valid")
)

var schemePrefix = regexp.MustCompile(`^[a-zA-Z]+\s+`)

type Claims struct {
	jwt.RegisteredClaims
}

// Inspect decodes the claims of token without verifying the signature. A
// leading scheme such as "Bearer " is ignored.
func Inspect(token string) (*Claims, error) {
	token = schemePrefix.ReplaceAllString(token, "")

	var c Claims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &c); err != nil {
		return nil, errors.Join(ErrMalformed, err)
	}
	return &c, nil
}

// Expiry returns the exp claim of token, if it is a JWT that has one.
func Expiry(token string) (time.Time, bool) {
	c, err := Inspect(token)
	if err != nil || c.ExpiresAt == nil {
		return time.Time{}, false
	}
	return c.ExpiresAt.Time, true
}

// CookieMaxAge is the remaining lifetime of token at now, or fallback when
// the token has no usable exp claim.
func CookieMaxAge(token string, now time.Time, fallback time.Duration) time.Duration {
	exp, ok := Expiry(token)
	if !ok {
		return fallback
	}
	if d := exp.Sub(now); d > 0 {
		return d
	}
	return fallback
}

// Usable reports whether token may still be sent at now. Opaque tokens are
// always usable; only a JWT can be known to be stale.
func Usable(token string, now time.Time, leeway time.Duration) error {
	c, err := Inspect(token)
	if err != nil {
		return nil
	}
	return c.ValidateExpiryWithLeeway(now, leeway)
}

// ValidateExpiryWithLeeway checks exp and nbf against now, allowing leeway
// for clock skew.
func (c *Claims) ValidateExpiryWithLeeway(now time.Time, leeway time.Duration) error {
	if c.ExpiresAt != nil && now.After(c.ExpiresAt.Add(leeway)) {
		return ErrExpired
	}
	if c.NotBefore != nil && now.Before(c.NotBefore.Add(-leeway)) {
		return ErrNotYetValid
	}
	return nil
}
