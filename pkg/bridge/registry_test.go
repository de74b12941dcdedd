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
)

func TestRegistry_DefaultAlias(t *testing.T) {
	resolved := resolve(t, bridge.NewConfig(
		bridge.ClientEntry{Name: "github", Source: bridge.Endpoint("http://a")},
		bridge.ClientEntry{Name: "shop", Source: bridge.Endpoint("http://b")},
	))
	reg, _ := serverRegistry(t, resolved, nil)

	require.Equal(t, []string{"github", "shop"}, reg.Names())
	require.Equal(t, "github", reg.DefaultName())
	require.Equal(t, "github", reg.Default().Name())

	for _, name := range []string{"", "default", "github"} {
		c, err := reg.Client(name)
		require.NoError(t, err)
		require.Same(t, reg.Default(), c, "name %q", name)
	}

	shop, err := reg.Client("shop")
	require.NoError(t, err)
	require.Equal(t, "http://b", shop.Config().HTTPEndpoint)

	_, err = reg.Client("missing")
	require.ErrorIs(t, err, bridge.ErrUnknownClient)
}

func TestRegistry_ExplicitDefault(t *testing.T) {
	resolved := resolve(t, bridge.NewConfig(
		bridge.ClientEntry{Name: "github", Source: bridge.Endpoint("http://a")},
		bridge.ClientEntry{Name: "default", Source: bridge.Endpoint("http://b")},
	))
	reg, _ := serverRegistry(t, resolved, nil)

	c, err := reg.Client("")
	require.NoError(t, err)
	require.Equal(t, "default", c.Name())
	require.Equal(t, "http://b", c.Config().HTTPEndpoint)
}

func TestRegistry_ClientsAreIsolated(t *testing.T) {
	resolved := resolve(t, bridge.NewConfig(
		bridge.ClientEntry{Name: "a", Source: bridge.Endpoint("http://a")},
		bridge.ClientEntry{Name: "b", Source: bridge.Endpoint("http://b")},
	))
	reg, _ := serverRegistry(t, resolved, nil)

	a, _ := reg.Client("a")
	b, _ := reg.Client("b")
	require.NotSame(t, a.Cache(), b.Cache())

	require.NoError(t, a.WriteQuery(meQuery, "Me", nil, map[string]any{
		"me": map[string]any{"__typename": "User", "id": "1", "name": "Ada"},
	}))
	require.Positive(t, a.Cache().Len())
	require.Zero(t, b.Cache().Len())
}

func TestRegistry_SharedHooksDoNotSerialiseRequests(t *testing.T) {
	up := newUpstream(t, meReply)
	resolved := single(t, bridge.ClientConfig{HTTPEndpoint: up.URL()})

	const (
		workers = 4
		delay   = 100 * time.Millisecond
	)
	hooks := bridge.NewHooks()
	require.NoError(t, hooks.OnAppendHeaders(func(_ context.Context, p *bridge.HeadersParams) {
		time.Sleep(delay)
		p.Headers.Set("X-Slow", "1")
	}))

	regs := make([]*bridge.Registry, workers)
	for i := range regs {
		regs[i], _ = serverRegistry(t, resolved, nil, bridge.WithHooks(hooks))
	}

	var wg sync.WaitGroup
	errs := make([]error, workers)
	start := time.Now()
	for i, reg := range regs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = reg.Default().Query(context.Background(), bridge.QueryOptions{Query: meQuery})
		}()
	}
	wg.Wait()

	require.Less(t, time.Since(start), workers*delay-delay/2)
	for _, err := range errs {
		require.NoError(t, err)
	}
	for _, req := range up.requests() {
		require.Equal(t, "1", req.Header.Get("X-Slow"))
	}
}

func TestRegistry_Phase(t *testing.T) {
	resolved := single(t, bridge.ClientConfig{HTTPEndpoint: "http://a", WSEndpoint: "ws://a"})

	reg, _ := serverRegistry(t, resolved, nil)
	require.Equal(t, bridge.PhaseServer, reg.Phase())
	require.Nil(t, reg.Default().Socket(), "server phase never opens sockets")

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	env, err := bridge.NewBrowserEnvironment("http://app.local", jar, nil)
	require.NoError(t, err)

	browser, err := bridge.New(context.Background(), resolved, env)
	require.NoError(t, err)
	t.Cleanup(func() { _ = browser.Close() })
	require.Equal(t, bridge.PhaseBrowser, browser.Phase())
	require.NotNil(t, browser.Default().Socket())
	require.Equal(t, "ws://a", browser.Default().Socket().URL())
}

func TestRegistry_NoClients(t *testing.T) {
	_, err := bridge.New(context.Background(), nil, bridge.NewServerEnvironment(nil, nil))
	require.ErrorIs(t, err, bridge.ErrNoClients)
}

func TestContext(t *testing.T) {
	_, ok := bridge.FromContext(context.Background())
	require.False(t, ok)

	reg, _ := serverRegistry(t, single(t, bridge.ClientConfig{HTTPEndpoint: "http://a"}), httptest.NewRequest(http.MethodGet, "/", nil))
	got, ok := bridge.FromContext(bridge.WithRegistry(context.Background(), reg))
	require.True(t, ok)
	require.Same(t, reg, got)
}
