package http

import (
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/gqlbridge/pkg/bridge"
	"github.com/aussiebroadwan/gqlbridge/pkg/httpx"
	"github.com/aussiebroadwan/gqlbridge/pkg/slogx"

	_ "github.com/aussiebroadwan/gqlbridge/api/gqlbridge" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	resolved     *bridge.Resolved
	pages        *Pages
	templates    *template.Template
	hooks        *bridge.Hooks
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
}

func NewRouter(
	resolved *bridge.Resolved,
	pages *Pages,
	hooks *bridge.Hooks,
	buildVersion string,
	logger *slog.Logger,
) (*Router, error) {
	tmpl, err := parseTemplates(pages.List())
	if err != nil {
		return nil, err
	}
	if hooks == nil {
		hooks = bridge.NewHooks()
	}

	r := &Router{
		Mux:          http.NewServeMux(),
		resolved:     resolved,
		pages:        pages,
		templates:    tmpl,
		hooks:        hooks,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		logger:       logger,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		httpx.Recover(),
	}

	return r, nil
}

func (r *Router) ApplyRoutes() {
	r.registerPages()
	r.registerAuth()
	r.registerDevtools()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			GQLBridge SSR Server API
//	@version		0.1.0
//	@description	Server-side rendering of GraphQL-backed pages with per-request clients.
//	@description
//	@description	Every page embeds the normalized cache of each client under _apollo:<client> so the browser can hydrate without refetching.
//
//	@contact.name	AussieBroadWAN Team
//	@contact.url	https://github.com/aussiebroadwan/gqlbridge
//
//	@license.name	MIT
//	@license.url	https://opensource.org/licenses/MIT
//
//	@host			localhost:8080
//	@BasePath		/
//
//	@schemes		http https
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

// clients builds the per-request registry. It runs after rate limiting so
// rejected requests never construct clients.
func (r *Router) clients() httpx.Middleware {
	return bridge.Middleware(r.resolved, bridge.WithHooks(r.hooks), bridge.WithLogger(r.logger))
}

func (r *Router) registerPages() {
	// Limit by IP and default client token so logged-in users behind one NAT
	// get their own bucket.
	tokenCookie := ""
	if c, ok := r.resolved.Client(r.resolved.DefaultName); ok {
		tokenCookie = c.Config.TokenName
	}

	for _, p := range r.pages.List() {
		r.Mux.Handle(fmt.Sprintf("GET %s", p.Path),
			httpx.Chain(PageHandler(p, r.templates),
				httpx.RateLimitByIPAndCookie(httpx.PageLimit, tokenCookie),
				r.clients(),
			),
		)
	}
}

func (r *Router) registerAuth() {
	// Token writes are cheap to abuse, keep them strict
	r.Mux.Handle("POST /auth/login",
		httpx.Chain(http.HandlerFunc(LoginHandler),
			httpx.RateLimitByIP(httpx.AuthLimit),
			r.clients(),
		),
	)
	r.Mux.Handle("POST /auth/logout",
		httpx.Chain(http.HandlerFunc(LogoutHandler),
			httpx.RateLimitByIP(httpx.AuthLimit),
			r.clients(),
		),
	)
}

func (r *Router) registerDevtools() {
	r.Mux.Handle("GET /_devtools/cache",
		httpx.Chain(DevtoolsHandler(r.pages),
			httpx.RateLimitByIP(httpx.DevtoolsLimit),
			r.clients(),
		),
	)
}

func (r *Router) registerSystem() {
	// Health check endpoints - monitoring systems may poll frequently
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.PageLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.resolved, r.templates),
			httpx.RateLimitByIP(httpx.PageLimit),
		),
	)
}
