package bridgesdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/aussiebroadwan/gqlbridge/pkg/httpx"
)

var ErrNoPayload = errors.New("bridgesdk: page has no payload element")

// APIError is a non-success response from the server.
type APIError struct {
	StatusCode  int
	Code        string
	Description string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("bridgesdk: server responded with status %d", e.StatusCode)
	}
	return fmt.Sprintf("bridgesdk: %s: %s (status %d)", e.Code, e.Description, e.StatusCode)
}

func parseErrorResponse(resp *http.Response, body []byte) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	var er httpx.ErrorResponse
	if json.Unmarshal(body, &er) == nil {
		apiErr.Code = er.Error
		apiErr.Description = er.Description
	}
	return apiErr
}
