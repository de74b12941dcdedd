package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/aussiebroadwan/gqlbridge/pkg/bridge"
	"github.com/aussiebroadwan/gqlbridge/pkg/bridgesdk"
	"github.com/aussiebroadwan/gqlbridge/pkg/httpx"
	"github.com/aussiebroadwan/gqlbridge/pkg/slogx"
)

// LoginHandler godoc
//
//	@Summary		Store a client token
//	@Description	Writes the token cookie of a client the same way a page would
//	@Tags			Auth
//	@Accept			json
//	@Param			request	body	bridgesdk.LoginRequest	true	"client and token"
//	@Success		204
//	@Failure		400	{object}	httpx.ErrorResponse	"invalid request or client without cookie storage"
//	@Failure		404	{object}	httpx.ErrorResponse	"unknown client"
//	@Router			/auth/login [post]
func LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req bridgesdk.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}
	if req.Token == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "token is required")
		return
	}
	updateAuth(w, r, func(reg *bridge.Registry) error {
		return reg.Login(r.Context(), req.Token, bridge.AuthOptions{Client: req.Client})
	})
}

// LogoutHandler godoc
//
//	@Summary		Clear a client token
//	@Tags			Auth
//	@Accept			json
//	@Param			request	body	bridgesdk.LogoutRequest	false	"client, default client when empty"
//	@Success		204
//	@Failure		404	{object}	httpx.ErrorResponse	"unknown client"
//	@Router			/auth/logout [post]
func LogoutHandler(w http.ResponseWriter, r *http.Request) {
	var req bridgesdk.LogoutRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
			return
		}
	}
	updateAuth(w, r, func(reg *bridge.Registry) error {
		return reg.Logout(r.Context(), bridge.AuthOptions{Client: req.Client})
	})
}

func updateAuth(w http.ResponseWriter, r *http.Request, fn func(*bridge.Registry) error) {
	reg, ok := bridge.FromContext(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "graphql clients unavailable")
		return
	}

	err := fn(reg)
	switch {
	case err == nil:
		httpx.NoCache(w)
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, bridge.ErrUnknownClient):
		httpx.WriteError(w, http.StatusNotFound, "unknown_client", err.Error())
	case errors.Is(err, bridge.ErrNoLocalStorage):
		httpx.WriteError(w, http.StatusBadRequest, "unsupported_storage", "client keeps its token in local storage")
	default:
		slogx.FromContext(r.Context()).Error("failed to update token", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "failed to update token")
	}
}
