package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/gqlbridge/pkg/bridge"
	"github.com/aussiebroadwan/gqlbridge/pkg/httpx"
)

// DevtoolsHandler godoc
//
//	@Summary		Cache snapshot of a page
//	@Description	Runs the queries of the page at path and returns the payload the page would embed
//	@Description	Only clients with connectToDevTools are included
//	@Tags			Devtools
//	@Produce		json
//	@Param			path	query		string				true	"page path, e.g. /repos/golang/go"
//	@Success		200		{object}	bridge.Payload		"payload keyed by _apollo:<client>"
//	@Failure		400		{object}	httpx.ErrorResponse	"missing path"
//	@Failure		404		{object}	httpx.ErrorResponse	"unknown page or devtools disabled"
//	@Router			/_devtools/cache [get]
func DevtoolsHandler(pages *Pages) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		reg, ok := bridge.FromContext(ctx)
		if !ok {
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "graphql clients unavailable")
			return
		}

		path := r.URL.Query().Get("path")
		if path == "" {
			httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "path is required")
			return
		}

		enabled := map[string]bool{}
		for _, name := range reg.Names() {
			c, _ := reg.Client(name)
			if c.Config().ConnectToDevTools {
				enabled[bridge.PayloadKey(name)] = true
			}
		}
		if len(enabled) == 0 {
			httpx.WriteError(w, http.StatusNotFound, "not_found", "devtools are disabled")
			return
		}

		page, pr, err := pages.MatchPath(ctx, path)
		if errors.Is(err, ErrPageNotFound) {
			httpx.WriteError(w, http.StatusNotFound, "not_found", "no page at path")
			return
		}
		if err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}

		if _, err := page.query(ctx, reg, pr); err != nil {
			writeQueryError(w, r, err)
			return
		}

		p := bridge.NewPayload()
		reg.Rendered(p)
		for k := range p.Data {
			if !enabled[k] {
				delete(p.Data, k)
			}
		}
		httpx.WriteJSON(w, http.StatusOK, p)
	}
}
