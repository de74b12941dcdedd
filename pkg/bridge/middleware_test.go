package bridge_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/gqlbridge/pkg/bridge"
)

func TestMiddleware(t *testing.T) {
	up := newUpstream(t, meReply)
	resolved := single(t, bridge.ClientConfig{HTTPEndpoint: up.URL()})

	var seen *bridge.Registry
	h := bridge.Middleware(resolved)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reg, ok := bridge.FromContext(r.Context())
		require.True(t, ok)
		seen = reg

		res, err := reg.Default().Query(r.Context(), bridge.QueryOptions{Query: meQuery})
		require.NoError(t, err)
		_, _ = w.Write([]byte(res.Data["me"].(map[string]any)["name"].(string)))
	}))

	req := httptest.NewRequest(http.MethodGet, "/page", nil)
	req.AddCookie(&http.Cookie{Name: "apollo-default.token", Value: "abc"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Ada", rec.Body.String())
	require.Equal(t, "Bearer abc", up.last(t).Header.Get("Authorization"))

	// Every request gets its own registry.
	first := seen
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/page", nil))
	require.NotSame(t, first, seen)
	require.Empty(t, up.last(t).Header.Get("Authorization"))
}

func TestMiddleware_NoClients(t *testing.T) {
	h := bridge.Middleware(nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), "server_error")
}
