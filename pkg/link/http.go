package link

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Credentials modes mirror the fetch API. CredentialsOmit strips any Cookie
// header from outgoing requests and skips the client's cookie jar.
const (
	CredentialsOmit       = "omit"
	CredentialsSameOrigin = "same-origin"
	CredentialsInclude    = "include"
)

// HTTPLinkOptions configures the terminating HTTP transport.
type HTTPLinkOptions struct {
	URI string

	// Headers are sent with every request, before per-operation headers.
	Headers map[string]string

	// Credentials is one of the Credentials* modes. Empty means same-origin.
	Credentials string

	// UseGETForQueries sends query operations as GET requests.
	UseGETForQueries bool

	// IncludeExtensions always sends the extensions member.
	IncludeExtensions bool

	// HTTPClient defaults to a client with Timeout.
	HTTPClient *http.Client
	Timeout    time.Duration
}

// HTTPLink sends operations to a GraphQL endpoint over HTTP.
type HTTPLink struct {
	opts   HTTPLinkOptions
	client *http.Client
	bare   *http.Client
}

// NewHTTPLink creates the terminating HTTP link.
func NewHTTPLink(opts HTTPLinkOptions) *HTTPLink {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}

	// Requests in omit mode must not pick up cookies from a jar.
	bare := client
	if client.Jar != nil {
		c := *client
		c.Jar = nil
		bare = &c
	}

	return &HTTPLink{opts: opts, client: client, bare: bare}
}

// URI returns the endpoint this link posts to.
func (l *HTTPLink) URI() string { return l.opts.URI }

func (l *HTTPLink) Request(ctx context.Context, op *Operation, _ NextLink) (Stream, error) {
	if l.opts.IncludeExtensions {
		op.Fetch.IncludeExtensions = true
	}

	req, err := l.newRequest(ctx, op)
	if err != nil {
		return nil, err
	}

	client := l.client
	if l.opts.Credentials == CredentialsOmit {
		client = l.bare
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var res Result
	parseErr := json.Unmarshal(body, &res)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		serverErr := &ServerError{StatusCode: resp.StatusCode, Body: body}
		if parseErr == nil {
			serverErr.Result = &res
		}
		return nil, serverErr
	}
	if parseErr != nil {
		return nil, fmt.Errorf("failed to decode response: %w", parseErr)
	}

	return Single(&res), nil
}

func (l *HTTPLink) method(op *Operation) string {
	if op.Fetch.Method != "" {
		return strings.ToUpper(op.Fetch.Method)
	}
	if l.opts.UseGETForQueries && op.Type() == Query {
		return http.MethodGet
	}
	return http.MethodPost
}

func (l *HTTPLink) newRequest(ctx context.Context, op *Operation) (*http.Request, error) {
	body := op.Body()
	method := l.method(op)

	// Mutations never go over GET.
	if method == http.MethodGet && op.Type() == Mutation {
		method = http.MethodPost
	}

	var req *http.Request
	if method == http.MethodGet {
		target, err := getURL(l.opts.URI, body)
		if err != nil {
			return nil, err
		}
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
	} else {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, l.opts.URI, bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
	}

	req.Header.Set("Accept", "application/graphql-response+json, application/json")
	for k, v := range l.opts.Headers {
		req.Header.Set(k, v)
	}
	for k, vs := range op.Headers {
		req.Header.Del(k)
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if l.opts.Credentials == CredentialsOmit {
		req.Header.Del("Cookie")
	}

	return req, nil
}

// getURL encodes body into the query string of uri.
func getURL(uri string, body RequestBody) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("failed to parse endpoint: %w", err)
	}

	q := u.Query()
	if body.Query != "" {
		q.Set("query", body.Query)
	}
	if body.OperationName != "" {
		q.Set("operationName", body.OperationName)
	}
	if len(body.Variables) > 0 {
		vars, err := json.Marshal(body.Variables)
		if err != nil {
			return "", fmt.Errorf("failed to encode variables: %w", err)
		}
		q.Set("variables", string(vars))
	}
	if len(body.Extensions) > 0 {
		ext, err := json.Marshal(body.Extensions)
		if err != nil {
			return "", fmt.Errorf("failed to encode extensions: %w", err)
		}
		q.Set("extensions", string(ext))
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}
