package jwtx_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/gqlbridge/pkg/jwtx"
)

func sign(t *testing.T, claims jwt.Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return s
}

func TestInspect(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	token := sign(t, jwt.RegisteredClaims{Subject: "user-1", ExpiresAt: jwt.NewNumericDate(exp)})

	t.Run("raw token", func(t *testing.T) {
		c, err := jwtx.Inspect(token)
		require.NoError(t, err)
		require.Equal(t, "user-1", c.Subject)
		require.True(t, c.ExpiresAt.Time.Equal(exp))
	})

	t.Run("with scheme", func(t *testing.T) {
		c, err := jwtx.Inspect("Bearer " + token)
		require.NoError(t, err)
		require.Equal(t, "user-1", c.Subject)
	})

	t.Run("opaque token", func(t *testing.T) {
		_, err := jwtx.Inspect("not-a-jwt")
		require.ErrorIs(t, err, jwtx.ErrMalformed)
	})
}

func TestCookieMaxAge(t *testing.T) {
	now := time.Now()
	fallback := 7 * 24 * time.Hour

	withExp := sign(t, jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(now.Add(2 * time.Hour))})
	expired := sign(t, jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(now.Add(-time.Hour))})
	noExp := sign(t, jwt.RegisteredClaims{Subject: "x"})

	got := jwtx.CookieMaxAge(withExp, now, fallback)
	require.InDelta(t, (2 * time.Hour).Seconds(), got.Seconds(), 2)

	require.Equal(t, fallback, jwtx.CookieMaxAge(expired, now, fallback))
	require.Equal(t, fallback, jwtx.CookieMaxAge(noExp, now, fallback))
	require.Equal(t, fallback, jwtx.CookieMaxAge("opaque", now, fallback))
}

func TestValidateExpiryWithLeeway(t *testing.T) {
	now := time.Now()

	c := &jwtx.Claims{RegisteredClaims: jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(now.Add(-time.Second)),
	}}
	require.ErrorIs(t, c.ValidateExpiryWithLeeway(now, 0), jwtx.ErrExpired)
	require.NoError(t, c.ValidateExpiryWithLeeway(now, time.Minute))

	c = &jwtx.Claims{RegisteredClaims: jwt.RegisteredClaims{
		NotBefore: jwt.NewNumericDate(now.Add(time.Hour)),
	}}
	require.ErrorIs(t, c.ValidateExpiryWithLeeway(now, time.Minute), jwtx.ErrNotYetValid)
}

func TestUsable(t *testing.T) {
	now := time.Now()

	fresh := sign(t, jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour))})
	expired := sign(t, jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(now.Add(-time.Hour))})
	early := sign(t, jwt.RegisteredClaims{NotBefore: jwt.NewNumericDate(now.Add(time.Hour))})

	require.NoError(t, jwtx.Usable(fresh, now, 0))
	require.NoError(t, jwtx.Usable("Bearer "+fresh, now, 0))
	require.NoError(t, jwtx.Usable("opaque", now, 0))
	require.ErrorIs(t, jwtx.Usable(expired, now, time.Minute), jwtx.ErrExpired)
	require.ErrorIs(t, jwtx.Usable(early, now, time.Minute), jwtx.ErrNotYetValid)
}
