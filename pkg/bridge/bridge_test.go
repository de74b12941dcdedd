package bridge_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/gqlbridge/pkg/bridge"
)

const meQuery = `query Me { me { __typename id name } }`

const meReply = `{"data":{"me":{"__typename":"User","id":"1","name":"Ada"}}}`

type upstreamRequest struct {
	Method string
	Header http.Header
	Body   map[string]any
}

// upstream is a GraphQL server that records every request and answers with
// a fixed body.
type upstream struct {
	srv *httptest.Server

	mu     sync.Mutex
	reqs   []upstreamRequest
	status int
	reply  string
}

func newUpstream(t *testing.T, reply string) *upstream {
	t.Helper()

	u := &upstream{status: http.StatusOK, reply: reply}
	u.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := upstreamRequest{Method: r.Method, Header: r.Header.Clone()}
		if raw, _ := io.ReadAll(r.Body); len(raw) > 0 {
			_ = json.Unmarshal(raw, &req.Body)
		}

		u.mu.Lock()
		u.reqs = append(u.reqs, req)
		status, reply := u.status, u.reply
		u.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, reply)
	}))
	t.Cleanup(u.srv.Close)

	return u
}

func (u *upstream) URL() string { return u.srv.URL }

func (u *upstream) requests() []upstreamRequest {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]upstreamRequest(nil), u.reqs...)
}

func (u *upstream) last(t *testing.T) upstreamRequest {
	t.Helper()
	reqs := u.requests()
	require.NotEmpty(t, reqs, "upstream saw no requests")
	return reqs[len(reqs)-1]
}

func resolve(t *testing.T, cfg bridge.Config) *bridge.Resolved {
	t.Helper()
	r, err := cfg.Resolve(context.Background())
	require.NoError(t, err)
	return r
}

// single resolves a config with one client named "default".
func single(t *testing.T, cc bridge.ClientConfig) *bridge.Resolved {
	t.Helper()
	return resolve(t, bridge.NewConfig(bridge.ClientEntry{Name: "default", Source: bridge.Static(cc)}))
}

func serverRegistry(t *testing.T, resolved *bridge.Resolved, r *http.Request, opts ...bridge.Option) (*bridge.Registry, *httptest.ResponseRecorder) {
	t.Helper()
	if r == nil {
		r = httptest.NewRequest(http.MethodGet, "/", nil)
	}
	rec := httptest.NewRecorder()

	reg, err := bridge.New(context.Background(), resolved, bridge.NewServerEnvironment(rec, r), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.Close() })
	return reg, rec
}
