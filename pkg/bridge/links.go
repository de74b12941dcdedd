package bridge

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/gqlbridge/pkg/link"
	"github.com/aussiebroadwan/gqlbridge/pkg/wsclient"
)

// ClientNameHeader carries the client name when client awareness is on.
const ClientNameHeader = "apollographql-client-name"

const defaultHTTPTimeout = 30 * time.Second

// chain is everything buildChain produces for one client.
type chain struct {
	link link.Link
	http *link.HTTPLink
	pq   *link.PersistedQueryLink
	ws   *wsclient.Client
}

type chainParams struct {
	name     string
	cfg      ClientConfig
	resolved *Resolved
	env      Environment
	hooks    *Hooks
	auth     *AuthResolver
	logger   *slog.Logger
}

// buildChain assembles the link chain of one client:
//
//	error -> context -> [persisted] -> http
//
// and, in the browser phase with a socket endpoint,
//
//	error -> split(subscription ? ws : context -> [persisted] -> http)
func buildChain(p chainParams) (*chain, error) {
	out := &chain{}

	errorLink := link.NewErrorLink(func(ctx context.Context, resp *link.ErrorResponse) {
		p.logger.DebugContext(ctx, "link error",
			"gql_client", p.name,
			"operation", resp.Operation.OperationName,
			"network_error", resp.NetworkError,
			"graphql_errors", len(resp.GraphQLErrors),
		)
		p.hooks.reportError(ctx, &ErrorParams{Client: p.name, Error: resp})
	})

	contextLink := link.NewContextLink(func(ctx context.Context, op *link.Operation) error {
		return setContext(ctx, p, op)
	})

	uri := p.cfg.HTTPEndpoint
	if p.env.Phase() == PhaseBrowser && p.cfg.BrowserHTTPEndpoint != "" {
		uri = p.cfg.BrowserHTTPEndpoint
	}

	out.http = link.NewHTTPLink(link.HTTPLinkOptions{
		URI:               uri,
		Headers:           p.cfg.HTTPLinkOptions.Headers,
		Credentials:       p.cfg.HTTPLinkOptions.Credentials,
		UseGETForQueries:  p.cfg.HTTPLinkOptions.UseGETForQueries,
		IncludeExtensions: p.cfg.HTTPLinkOptions.IncludeExtensions,
		HTTPClient:        httpClient(p.env, p.cfg.HTTPLinkOptions),
		Timeout:           p.cfg.HTTPLinkOptions.Timeout,
	})

	links := []link.Link{contextLink}
	if p.cfg.UsePersistedQuery {
		out.pq = link.NewPersistedQueryLink(link.PersistedQueryOptions{
			UseGETForHashedQueries: p.cfg.UseGETForHashedQueries != nil && *p.cfg.UseGETForHashedQueries,
		})
		links = append(links, out.pq)
	}
	links = append(links, out.http)
	httpChain := link.From(links...)

	if p.env.Phase() != PhaseBrowser || p.cfg.WSEndpoint == "" {
		out.link = link.From(errorLink, httpChain)
		return out, nil
	}

	ws, err := wsclient.New(wsclient.Options{
		URL: p.cfg.WSEndpoint,
		ConnectionParams: func(ctx context.Context) (map[string]any, error) {
			cred, err := p.auth.Resolve(ctx)
			if err != nil || cred == "" {
				return nil, err
			}
			return map[string]any{"headers": map[string]any{p.cfg.AuthHeader: cred}}, nil
		},
		RetryAttempts: p.cfg.WSLinkOptions.RetryAttempts,
		RetryWait:     p.cfg.WSLinkOptions.RetryInterval,
		AckTimeout:    p.cfg.WSLinkOptions.AckTimeout,
		KeepAlive:     p.cfg.WSLinkOptions.KeepAlive,
		Logger:        p.logger.With("gql_client", p.name),
	})
	if err != nil {
		return nil, err
	}
	out.ws = ws
	wsLink := link.NewWSLink(ws)

	if p.cfg.WebsocketsOnly {
		out.link = link.From(errorLink, wsLink)
		return out, nil
	}
	out.link = link.From(errorLink, link.Split(link.IsSubscription, wsLink, httpChain))
	return out, nil
}

// setContext writes the request headers of op: append-headers hook output,
// then forwarded cookies, then the credential, so the credential wins.
func setContext(ctx context.Context, p chainParams, op *link.Operation) error {
	cred, err := p.auth.Resolve(ctx)
	if err != nil {
		return err
	}

	if op.Headers == nil {
		op.Headers = http.Header{}
	}
	p.hooks.appendHeaders(ctx, &HeadersParams{Client: p.name, Operation: op, Headers: op.Headers})

	if p.resolved.ProxyCookies && p.env.Phase() == PhaseServer {
		if c := p.env.ForwardedCookies(); c != "" {
			op.Headers.Set("Cookie", c)
		}
	}
	if cred != "" {
		op.Headers.Set(p.cfg.AuthHeader, cred)
	}
	if p.resolved.ClientAwareness {
		op.Headers.Set(ClientNameHeader, p.name)
	}
	return nil
}

func httpClient(env Environment, opts HTTPLinkOptions) *http.Client {
	base := env.HTTPClient()
	if base == nil {
		return nil
	}
	c := *base
	if opts.Timeout > 0 {
		c.Timeout = opts.Timeout
	}
	if c.Timeout == 0 {
		c.Timeout = defaultHTTPTimeout
	}
	return &c
}
