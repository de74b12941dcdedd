package http

import (
	"html/template"
	"net/http"
	"net/url"
	"time"

	"github.com/aussiebroadwan/gqlbridge/pkg/bridge"
	"github.com/aussiebroadwan/gqlbridge/pkg/bridgesdk"
	"github.com/aussiebroadwan/gqlbridge/pkg/httpx"
)

// ReadyzHandler godoc
//
//	@Summary		Readiness Check Endpoint
//	@Description	Readiness probe checking that clients are configured with absolute endpoints and templates are loaded
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	bridgesdk.HealthResponse	"status, uptime, version, checks"
//	@Failure		503	{object}	bridgesdk.HealthResponse	"service not ready"
//	@Router			/readyz [get]
func ReadyzHandler(startTime time.Time, version string, resolved *bridge.Resolved, tmpl *template.Template) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := &bridgesdk.HealthChecks{Clients: "ok", Templates: "ok"}
		status, code := "ok", http.StatusOK

		if err := checkClients(resolved); err != "" {
			checks.Clients = "error: " + err
			status, code = "degraded", http.StatusServiceUnavailable
		}
		if tmpl == nil || tmpl.Lookup(layoutTemplate) == nil {
			checks.Templates = "error: layout template missing"
			status, code = "degraded", http.StatusServiceUnavailable
		}

		httpx.WriteJSON(w, code, bridgesdk.HealthResponse{
			Status:  status,
			Uptime:  time.Since(startTime).String(),
			Version: version,
			Checks:  checks,
		})
	}
}

func checkClients(resolved *bridge.Resolved) string {
	if resolved == nil || len(resolved.Clients) == 0 {
		return "no clients configured"
	}
	for _, c := range resolved.Clients {
		u, err := url.Parse(c.Config.HTTPEndpoint)
		if err != nil || !u.IsAbs() {
			return "client " + c.Name + " has no absolute httpEndpoint"
		}
	}
	return ""
}
