// Package bridge wires GraphQL clients into a server-rendered request
// lifecycle.
//
// A Config lists named clients. It is resolved once at startup:
//
//	cfg, err := bridge.LoadConfigFile("clients.yaml")
//	resolved, err := cfg.Resolve(ctx)
//
// On the server, Middleware builds a Registry for every request from a
// ServerEnvironment, which reads the token cookie from the request and
// forwards the request's cookies upstream. Handlers fetch data through the
// registry's clients and finally call Rendered to put each client's cache
// into the payload sent to the browser:
//
//	reg, _ := bridge.FromContext(r.Context())
//	res, err := reg.Default().Query(ctx, bridge.QueryOptions{Query: q})
//	payload := bridge.NewPayload()
//	reg.Rendered(payload)
//
// In the browser phase a Registry built from a BrowserEnvironment with
// WithPayload restores those caches before first use, and routes
// subscriptions over a graphql-transport-ws socket when the client has a
// wsEndpoint.
//
// Tokens come from Hooks.OnAuth first, then from the cookie or local storage
// named by the client's tokenName. Login and Logout write that storage,
// restart the client's socket and reset its cache.
package bridge
