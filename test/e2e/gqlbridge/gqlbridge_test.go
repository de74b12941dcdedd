package gqlbridge_test

import (
	"bytes"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/gqlbridge/internal/gqlbridge/app"
	"github.com/aussiebroadwan/gqlbridge/pkg/bridgesdk"
	"github.com/aussiebroadwan/gqlbridge/pkg/slogx"
)

func TestHealthEndpoints(t *testing.T) {
	gql := newGraphQLServer(t)
	baseURL, cleanup := setupContainer(t, gql, false)
	defer cleanup()

	client := bridgesdk.NewSDKClient(baseURL)

	health, err := client.GetLiveness(t.Context())
	assertHealthy(t, health, err)

	health, err = client.GetReadiness(t.Context())
	assertHealthy(t, health, err)
	require.Equal(t, "ok", health.Checks.Clients)
}

func TestPageEmbedsCache(t *testing.T) {
	gql := newGraphQLServer(t)
	baseURL, cleanup := setupContainer(t, gql, false)
	defer cleanup()

	client := bridgesdk.NewSDKClient(baseURL)

	page, err := client.FetchPage(t.Context(), "/users/1")
	require.NoError(t, err)
	require.Contains(t, string(page.HTML), "Ada")
	assertUserSnapshot(t, page.Payload.Data)

	// Anonymous requests carry no credential.
	require.Empty(t, gql.lastAuth())
}

func TestLoginForwardsToken(t *testing.T) {
	gql := newGraphQLServer(t)
	baseURL, cleanup := setupContainer(t, gql, false)
	defer cleanup()

	client := bridgesdk.NewSDKClient(baseURL)
	require.NoError(t, client.Login(t.Context(), "default", "e2e-token"))

	_, err := client.FetchPage(t.Context(), "/users/1")
	require.NoError(t, err)
	require.Equal(t, "Bearer e2e-token", gql.lastAuth())

	require.NoError(t, client.Logout(t.Context(), "default"))
	_, err = client.FetchPage(t.Context(), "/users/1")
	require.NoError(t, err)
	require.Empty(t, gql.lastAuth())
}

func TestLoginUnknownClient(t *testing.T) {
	gql := newGraphQLServer(t)
	baseURL, cleanup := setupContainer(t, gql, false)
	defer cleanup()

	client := bridgesdk.NewSDKClient(baseURL)
	err := client.Login(t.Context(), "github", "e2e-token")

	var apiErr *bridgesdk.APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	require.Equal(t, "unknown_client", apiErr.Code)
}

func TestDevtoolsSnapshot(t *testing.T) {
	gql := newGraphQLServer(t)
	baseURL, cleanup := setupContainer(t, gql, false)
	defer cleanup()

	client := bridgesdk.NewSDKClient(baseURL)
	snapshot, err := client.GetCacheSnapshot(t.Context(), "/users/1")
	require.NoError(t, err)
	assertUserSnapshot(t, snapshot.Data)
}

func TestHydrateFromContainer(t *testing.T) {
	gql := newGraphQLServer(t)
	baseURL, cleanup := setupContainer(t, gql, false)
	defer cleanup()

	cfg := app.Config{
		ConfigFile: writeLocalSite(t, gql),
		LocalStore: t.TempDir() + "/local.db",
	}

	var out bytes.Buffer
	err := app.Hydrate(t.Context(), cfg, baseURL+"/users/1", &out, slogx.Discard())
	require.NoError(t, err)
	require.Contains(t, out.String(), "Ada")
}

func TestAuthRateLimit(t *testing.T) {
	gql := newGraphQLServer(t)
	baseURL, cleanup := setupContainer(t, gql, true)
	defer cleanup()

	client := bridgesdk.NewSDKClient(baseURL)

	var limited *bridgesdk.APIError
	for i := 0; i < 20; i++ {
		err := client.Login(t.Context(), "default", "e2e-token")
		if errors.As(err, &limited) && limited.StatusCode == http.StatusTooManyRequests {
			break
		}
		require.NoError(t, err)
		limited = nil
	}
	require.NotNil(t, limited, "login should be rate limited within 20 attempts")
	require.Equal(t, "rate_limit_exceeded", limited.Code)
}
