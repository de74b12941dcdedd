package bridge

import (
	"net/http"

	"github.com/aussiebroadwan/gqlbridge/pkg/httpx"
	"github.com/aussiebroadwan/gqlbridge/pkg/slogx"
)

// Middleware builds a fresh server-phase registry for every request and
// stores it in the request context. The registry is closed when the
// handler returns.
func Middleware(resolved *Resolved, opts ...Option) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			reg, err := New(ctx, resolved, NewServerEnvironment(w, r), opts...)
			if err != nil {
				slogx.FromContext(ctx).ErrorContext(ctx, "failed to build graphql clients", "err", err)
				httpx.WriteError(w, http.StatusInternalServerError, "server_error", "graphql clients unavailable")
				return
			}
			defer func() { _ = reg.Close() }()

			next.ServeHTTP(w, r.WithContext(WithRegistry(ctx, reg)))
		})
	}
}
