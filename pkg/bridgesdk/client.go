package bridgesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/aussiebroadwan/gqlbridge/pkg/bridge"
)

// SDKClient talks to one demo server. Cookies set by the server, such as
// the token cookie written by Login, are kept in the client's jar.
type SDKClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewSDKClient returns a client with its own cookie jar.
func NewSDKClient(baseURL string) *SDKClient {
	jar, _ := cookiejar.New(nil)
	return &SDKClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Jar:     jar,
			Timeout: 10 * time.Second,
		},
	}
}

// Jar returns the cookie jar shared by every request of the client.
func (c *SDKClient) Jar() http.CookieJar { return c.HTTPClient.Jar }

func (c *SDKClient) url(path string) string {
	return c.BaseURL + path
}

func (c *SDKClient) doRequest(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		r = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(path), r)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	return resp, nil
}

// readBody reads the response and turns unexpected statuses into an
// *APIError.
func readBody(resp *http.Response, expectedStatus int) ([]byte, error) {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != expectedStatus {
		return nil, parseErrorResponse(resp, body)
	}
	return body, nil
}

func decodeJSON(resp *http.Response, target any, expectedStatus int) error {
	body, err := readBody(resp, expectedStatus)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *SDKClient) GetLiveness(ctx context.Context) (*HealthResponse, error) {
	return c.health(ctx, "/livez")
}

// GetReadiness returns the readiness report. A degraded server answers 503,
// which is returned as an *APIError.
func (c *SDKClient) GetReadiness(ctx context.Context) (*HealthResponse, error) {
	return c.health(ctx, "/readyz")
}

func (c *SDKClient) health(ctx context.Context, path string) (*HealthResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	var h HealthResponse
	if err := decodeJSON(resp, &h, http.StatusOK); err != nil {
		return nil, err
	}
	return &h, nil
}

// FetchPage renders a page and extracts its payload.
func (c *SDKClient) FetchPage(ctx context.Context, path string) (*Page, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	body, err := readBody(resp, http.StatusOK)
	if err != nil {
		return nil, err
	}

	p, err := ExtractPayload(body)
	if err != nil {
		return nil, err
	}
	return &Page{URL: c.url(path), HTML: body, Payload: p}, nil
}

// GetCacheSnapshot returns the devtools payload for a page path.
func (c *SDKClient) GetCacheSnapshot(ctx context.Context, pagePath string) (*bridge.Payload, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/_devtools/cache?path="+url.QueryEscape(pagePath), nil)
	if err != nil {
		return nil, err
	}
	var p bridge.Payload
	if err := decodeJSON(resp, &p, http.StatusOK); err != nil {
		return nil, err
	}
	return &p, nil
}

// Login stores token for a client; the server answers with the token
// cookie, which lands in the jar.
func (c *SDKClient) Login(ctx context.Context, client, token string) error {
	resp, err := c.doRequest(ctx, http.MethodPost, "/auth/login", LoginRequest{Client: client, Token: token})
	if err != nil {
		return err
	}
	_, err = readBody(resp, http.StatusNoContent)
	return err
}

func (c *SDKClient) Logout(ctx context.Context, client string) error {
	resp, err := c.doRequest(ctx, http.MethodPost, "/auth/logout", LogoutRequest{Client: client})
	if err != nil {
		return err
	}
	_, err = readBody(resp, http.StatusNoContent)
	return err
}
