package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"

	"github.com/aussiebroadwan/gqlbridge/pkg/bridge"
	"github.com/aussiebroadwan/gqlbridge/pkg/httpx"
	"github.com/aussiebroadwan/gqlbridge/pkg/link"
	"github.com/aussiebroadwan/gqlbridge/pkg/slogx"
)

type bodyData struct {
	Title  string
	Client string
	Data   map[string]any
	JSON   string
	Errors link.GraphQLErrors
}

type layoutData struct {
	Title   string
	Body    template.HTML
	Payload template.JS
}

// PageHandler renders a page: it runs the page query through the request's
// registry, executes the body template and embeds the cache payload.
//
//	@Summary		Server-rendered page
//	@Description	Runs the page's GraphQL query and returns HTML with the cache payload in a script element
//	@Tags			Pages
//	@Produce		html
//	@Success		200	{string}	string					"rendered page"
//	@Failure		502	{object}	httpx.ErrorResponse		"upstream failure"
//	@Router			/{page} [get]
func PageHandler(page Page, tmpl *template.Template) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logger := slogx.FromContext(ctx)

		reg, ok := bridge.FromContext(ctx)
		if !ok {
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "graphql clients unavailable")
			return
		}

		res, err := page.query(ctx, reg, r)
		if err != nil {
			writeQueryError(w, r, err)
			return
		}

		pretty, _ := json.MarshalIndent(res.Data, "", "  ")
		var body bytes.Buffer
		if err := tmpl.ExecuteTemplate(&body, page.templateName(), bodyData{
			Title:  page.Title,
			Client: page.Client,
			Data:   res.Data,
			JSON:   string(pretty),
			Errors: res.Errors,
		}); err != nil {
			logger.Error("failed to render page", "path", page.Path, "err", err)
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "failed to render page")
			return
		}

		payload := bridge.NewPayload()
		reg.Rendered(payload)
		raw, err := json.Marshal(payload)
		if err != nil {
			logger.Error("failed to encode payload", "err", err)
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "failed to encode payload")
			return
		}

		var out bytes.Buffer
		if err := tmpl.ExecuteTemplate(&out, layoutTemplate, layoutData{
			Title:   page.Title,
			Body:    template.HTML(body.String()),
			Payload: template.JS(raw),
		}); err != nil {
			logger.Error("failed to render layout", "err", err)
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "failed to render page")
			return
		}

		httpx.NoCache(w)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = out.WriteTo(w)
	}
}

// writeQueryError maps a failed page query to a response.
func writeQueryError(w http.ResponseWriter, r *http.Request, err error) {
	logger := slogx.FromContext(r.Context())

	var serverErr *link.ServerError
	switch {
	case errors.Is(err, bridge.ErrUnknownClient):
		logger.Error("page refers to an unknown client", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "page is misconfigured")
	case errors.As(err, &serverErr):
		logger.Warn("upstream returned an error", "status", serverErr.StatusCode)
		httpx.WriteError(w, http.StatusBadGateway, "upstream_error", "graphql server responded with an error")
	case errors.Is(err, r.Context().Err()):
		logger.Info("request cancelled", "err", err)
		httpx.WriteError(w, http.StatusServiceUnavailable, "cancelled", "request cancelled")
	default:
		logger.Warn("graphql request failed", "err", err)
		httpx.WriteError(w, http.StatusBadGateway, "upstream_error", "graphql request failed")
	}
}
