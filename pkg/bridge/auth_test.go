package bridge_test

import (
	"context"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/gqlbridge/pkg/bridge"
	"github.com/aussiebroadwan/gqlbridge/pkg/localstore"
)

func TestFormatCredential(t *testing.T) {
	tests := []struct {
		name     string
		token    string
		scheme   string
		disabled bool
		want     string
	}{
		{name: "adds scheme", token: "abc", scheme: "Bearer", want: "Bearer abc"},
		{name: "keeps existing scheme", token: "Basic dXNlcjpwYXNz", scheme: "Bearer", want: "Basic dXNlcjpwYXNz"},
		{name: "keeps same scheme", token: "Bearer abc", scheme: "Bearer", want: "Bearer abc"},
		{name: "disabled", token: "abc", scheme: "Bearer", disabled: true, want: "abc"},
		{name: "no scheme", token: "abc", want: "abc"},
		{name: "custom scheme", token: "abc", scheme: "Token", want: "Token abc"},
		{name: "empty token", token: "", scheme: "Bearer", want: ""},
		{name: "digits are not a scheme", token: "123 abc", scheme: "Bearer", want: "Bearer 123 abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, bridge.FormatCredential(tt.token, tt.scheme, tt.disabled))
		})
	}
}

func TestAuthResolver_Cookie(t *testing.T) {
	cfg, _ := single(t, bridge.ClientConfig{HTTPEndpoint: "http://upstream"}).Client("default")

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: "apollo-default.token", Value: "abc"})

	a := bridge.NewAuthResolver("default", cfg.Config, bridge.NewServerEnvironment(nil, r), nil)
	cred, err := a.Resolve(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Bearer abc", cred)
}

func TestAuthResolver_EscapedCookieKeepsScheme(t *testing.T) {
	cfg, _ := single(t, bridge.ClientConfig{HTTPEndpoint: "http://upstream"}).Client("default")

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: "apollo-default.token", Value: "Basic%20abc"})

	a := bridge.NewAuthResolver("default", cfg.Config, bridge.NewServerEnvironment(nil, r), nil)
	cred, err := a.Resolve(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Basic abc", cred)
}

func TestAuthResolver_HookWins(t *testing.T) {
	cfg, _ := single(t, bridge.ClientConfig{HTTPEndpoint: "http://upstream"}).Client("default")

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: "apollo-default.token", Value: "from-cookie"})
	env := bridge.NewServerEnvironment(nil, r)

	hooks := bridge.NewHooks()
	require.NoError(t, hooks.OnAuth(func(_ context.Context, p *bridge.AuthParams) {
		if p.Client == "default" {
			p.Token = "from-hook"
		}
	}))

	tok, err := bridge.NewAuthResolver("default", cfg.Config, env, hooks).Token(context.Background())
	require.NoError(t, err)
	require.Equal(t, "from-hook", tok)

	// A hook that does not know the client falls back to storage.
	tok, err = bridge.NewAuthResolver("other", cfg.Config, env, hooks).Token(context.Background())
	require.NoError(t, err)
	require.Equal(t, "from-cookie", tok)
}

func TestAuthResolver_SharedHooksRunConcurrently(t *testing.T) {
	cfg, _ := single(t, bridge.ClientConfig{HTTPEndpoint: "http://upstream"}).Client("default")

	const (
		workers = 4
		delay   = 100 * time.Millisecond
	)
	hooks := bridge.NewHooks()
	require.NoError(t, hooks.OnAuth(func(_ context.Context, p *bridge.AuthParams) {
		time.Sleep(delay)
		p.Token = "slow"
	}))

	var wg sync.WaitGroup
	creds := make([]string, workers)
	start := time.Now()
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			env := bridge.NewServerEnvironment(nil, httptest.NewRequest(http.MethodGet, "/", nil))
			creds[i], _ = bridge.NewAuthResolver("default", cfg.Config, env, hooks).Resolve(context.Background())
		}()
	}
	wg.Wait()

	require.Less(t, time.Since(start), workers*delay-delay/2)
	for _, c := range creds {
		require.Equal(t, "Bearer slow", c)
	}
}

func TestAuthResolver_DropsStaleStoredJWT(t *testing.T) {
	cfg, _ := single(t, bridge.ClientConfig{HTTPEndpoint: "http://upstream"}).Client("default")

	tests := []struct {
		name  string
		token string
		want  string
	}{
		{name: "expired", token: signedToken(t, -time.Hour), want: ""},
		{name: "within leeway", token: signedToken(t, -time.Second), want: "Bearer "},
		{name: "fresh", token: signedToken(t, time.Hour), want: "Bearer "},
		{name: "opaque", token: "abc", want: "Bearer "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.AddCookie(&http.Cookie{Name: "apollo-default.token", Value: tt.token})

			cred, err := bridge.NewAuthResolver("default", cfg.Config, bridge.NewServerEnvironment(nil, r), nil).Resolve(context.Background())
			require.NoError(t, err)
			if tt.want == "" {
				require.Empty(t, cred)
				return
			}
			require.Equal(t, tt.want+tt.token, cred)
		})
	}

	// A hook token is forwarded as given.
	hooks := bridge.NewHooks()
	expired := signedToken(t, -time.Hour)
	require.NoError(t, hooks.OnAuth(func(_ context.Context, p *bridge.AuthParams) { p.Token = expired }))
	env := bridge.NewServerEnvironment(nil, httptest.NewRequest(http.MethodGet, "/", nil))
	tok, err := bridge.NewAuthResolver("default", cfg.Config, env, hooks).Token(context.Background())
	require.NoError(t, err)
	require.Equal(t, expired, tok)
}

func TestAuthResolver_NoToken(t *testing.T) {
	cfg, _ := single(t, bridge.ClientConfig{HTTPEndpoint: "http://upstream"}).Client("default")

	a := bridge.NewAuthResolver("default", cfg.Config, bridge.NewServerEnvironment(nil, httptest.NewRequest(http.MethodGet, "/", nil)), nil)
	cred, err := a.Resolve(context.Background())
	require.NoError(t, err)
	require.Empty(t, cred)
}

func TestAuthResolver_LocalStorage(t *testing.T) {
	cfg, _ := single(t, bridge.ClientConfig{
		HTTPEndpoint: "http://upstream",
		TokenStorage: bridge.TokenStorageLocal,
		AuthType:     "JWT",
	}).Client("default")
	ctx := context.Background()

	store := localstore.NewMemory()
	require.NoError(t, store.Set(ctx, "apollo-default.token", "abc"))

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	env, err := bridge.NewBrowserEnvironment("http://app.local", jar, store)
	require.NoError(t, err)

	cred, err := bridge.NewAuthResolver("default", cfg.Config, env, nil).Resolve(ctx)
	require.NoError(t, err)
	require.Equal(t, "JWT abc", cred)

	// The server phase has no local storage, so there is no token.
	cred, err = bridge.NewAuthResolver("default", cfg.Config, bridge.NewServerEnvironment(nil, nil), nil).Resolve(ctx)
	require.NoError(t, err)
	require.Empty(t, cred)
}

func TestAuthResolver_DisabledAuthType(t *testing.T) {
	cfg, _ := single(t, bridge.ClientConfig{HTTPEndpoint: "http://upstream", DisableAuthType: true}).Client("default")

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: "apollo-default.token", Value: "abc"})

	cred, err := bridge.NewAuthResolver("default", cfg.Config, bridge.NewServerEnvironment(nil, r), nil).Resolve(context.Background())
	require.NoError(t, err)
	require.Equal(t, "abc", cred)
}
