package bridgesdk

import "github.com/aussiebroadwan/gqlbridge/pkg/bridge"

// PayloadElementID is the id of the script element that carries the payload.
const PayloadElementID = "__GQLBRIDGE_PAYLOAD__"

// HealthResponse is returned by /livez and /readyz.
type HealthResponse struct {
	// Status is "ok" or "degraded".
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime,omitempty"`
	Version string        `json:"version,omitempty"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks lists the readiness checks, "ok" or an error string each.
type HealthChecks struct {
	Clients   string `json:"clients"`
	Templates string `json:"templates"`
}

// LoginRequest is the body of POST /auth/login. An empty Client means the
// default client.
type LoginRequest struct {
	Client string `json:"client,omitempty"`
	Token  string `json:"token"`
}

// LogoutRequest is the body of POST /auth/logout.
type LogoutRequest struct {
	Client string `json:"client,omitempty"`
}

// Page is a rendered page and the payload it carries.
type Page struct {
	URL     string
	HTML    []byte
	Payload *bridge.Payload
}
