package bridge_test

import (
	"context"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/gqlbridge/pkg/bridge"
	"github.com/aussiebroadwan/gqlbridge/pkg/localstore"
)

func signedToken(t *testing.T, ttl time.Duration) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return tok
}

func responseCookie(t *testing.T, rec *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	var found *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			found = c
		}
	}
	require.NotNil(t, found, "no Set-Cookie for %s", name)
	return found
}

func seedCache(t *testing.T, c *bridge.Client) {
	t.Helper()
	require.NoError(t, c.WriteQuery(meQuery, "", nil, map[string]any{
		"me": map[string]any{"__typename": "User", "id": "1", "name": "Ada"},
	}))
}

func TestLogin_ServerCookie(t *testing.T) {
	reg, rec := serverRegistry(t, single(t, bridge.ClientConfig{HTTPEndpoint: "http://a"}), nil)
	ctx := context.Background()
	seedCache(t, reg.Default())

	token := signedToken(t, time.Hour)
	require.NoError(t, reg.Login(ctx, token, bridge.AuthOptions{}))

	c := responseCookie(t, rec, "apollo-default.token")
	require.Equal(t, token, c.Value)
	require.Equal(t, "/", c.Path)
	require.Equal(t, http.SameSiteLaxMode, c.SameSite)
	require.InDelta(t, time.Hour.Seconds(), c.MaxAge, 5, "max age follows the token expiry")

	got, err := reg.Token(ctx, "default")
	require.NoError(t, err)
	require.Equal(t, token, got, "later reads in the same request see the new token")
	require.Zero(t, reg.Default().Cache().Len())
}

func TestLogin_OpaqueTokenUsesDefaultMaxAge(t *testing.T) {
	reg, rec := serverRegistry(t, single(t, bridge.ClientConfig{HTTPEndpoint: "http://a"}), nil)

	require.NoError(t, reg.Login(context.Background(), "Basic dXNlcjpwYXNz", bridge.AuthOptions{SkipResetStore: true}))

	c := responseCookie(t, rec, "apollo-default.token")
	require.Equal(t, int(bridge.DefaultCookieMaxAge.Seconds()), c.MaxAge)

	cred, err := reg.Default().Auth().Resolve(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Basic dXNlcjpwYXNz", cred)
}

func TestLogout_ServerCookie(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: "apollo-default.token", Value: "abc"})
	reg, rec := serverRegistry(t, single(t, bridge.ClientConfig{HTTPEndpoint: "http://a"}), r)
	ctx := context.Background()
	seedCache(t, reg.Default())

	require.NoError(t, reg.Logout(ctx, bridge.AuthOptions{SkipResetStore: true}))

	c := responseCookie(t, rec, "apollo-default.token")
	require.Negative(t, c.MaxAge)

	got, err := reg.Token(ctx, "")
	require.NoError(t, err)
	require.Empty(t, got)
	require.Positive(t, reg.Default().Cache().Len(), "SkipResetStore keeps the cache")
}

func TestLogin_ResetStoreRunsCallbacks(t *testing.T) {
	reg, _ := serverRegistry(t, single(t, bridge.ClientConfig{HTTPEndpoint: "http://a"}), nil)

	calls := 0
	reg.Default().OnResetStore(func(context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, reg.Login(context.Background(), "abc", bridge.AuthOptions{}))
	require.Equal(t, 1, calls)
}

func TestLogin_LocalStorage(t *testing.T) {
	resolved := single(t, bridge.ClientConfig{HTTPEndpoint: "http://a", TokenStorage: bridge.TokenStorageLocal})
	ctx := context.Background()

	ssr, _ := serverRegistry(t, resolved, nil)
	require.ErrorIs(t, ssr.Login(ctx, "abc", bridge.AuthOptions{}), bridge.ErrNoLocalStorage)

	store := localstore.NewMemory()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	env, err := bridge.NewBrowserEnvironment("http://app.local", jar, store)
	require.NoError(t, err)
	reg, err := bridge.New(ctx, resolved, env)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.Close() })

	require.NoError(t, reg.Login(ctx, "abc", bridge.AuthOptions{}))
	v, err := store.Get(ctx, "apollo-default.token")
	require.NoError(t, err)
	require.Equal(t, "abc", v)

	cred, err := reg.Default().Auth().Resolve(ctx)
	require.NoError(t, err)
	require.Equal(t, "Bearer abc", cred)

	require.NoError(t, reg.Logout(ctx, bridge.AuthOptions{}))
	_, err = store.Get(ctx, "apollo-default.token")
	require.ErrorIs(t, err, localstore.ErrNotFound)
}

func TestLogin_BrowserCookie(t *testing.T) {
	reg := browserRegistry(t, single(t, bridge.ClientConfig{HTTPEndpoint: "http://a"}))
	ctx := context.Background()

	require.NoError(t, reg.Login(ctx, "Bearer a b", bridge.AuthOptions{}))
	got, err := reg.Token(ctx, "")
	require.NoError(t, err)
	require.Equal(t, "Bearer a b", got)

	require.NoError(t, reg.Logout(ctx, bridge.AuthOptions{}))
	got, err = reg.Token(ctx, "")
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestLogin_UnknownClient(t *testing.T) {
	reg, _ := serverRegistry(t, single(t, bridge.ClientConfig{HTTPEndpoint: "http://a"}), nil)
	require.ErrorIs(t, reg.Login(context.Background(), "abc", bridge.AuthOptions{Client: "nope"}), bridge.ErrUnknownClient)
}
