package bridge

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/aussiebroadwan/gqlbridge/pkg/localstore"
)

// Phase tells clients which side of the render they run on.
type Phase int

const (
	PhaseServer Phase = iota
	PhaseBrowser
)

func (p Phase) String() string {
	if p == PhaseBrowser {
		return "browser"
	}
	return "server"
}

// Environment is what a phase can offer for token lookup and storage.
type Environment interface {
	Phase() Phase

	// Cookie returns the value of a cookie visible to the page.
	Cookie(name string) (string, bool)

	// SetCookie stores or, with a negative MaxAge, deletes a cookie.
	SetCookie(c *http.Cookie)

	// ForwardedCookies is the raw Cookie header to pass upstream. Only the
	// server phase has one.
	ForwardedCookies() string

	// LocalStorage is nil when the phase has no persistent storage.
	LocalStorage() localstore.Store

	// HTTPClient returns the client used by the HTTP link.
	HTTPClient() *http.Client
}

// ServerEnvironment reads cookies from the incoming request and writes
// Set-Cookie headers to the response.
type ServerEnvironment struct {
	r      *http.Request
	w      http.ResponseWriter
	client *http.Client

	mu      sync.Mutex
	pending map[string]*http.Cookie
}

var _ Environment = (*ServerEnvironment)(nil)

// NewServerEnvironment wraps one request. w may be nil when nothing is
// written back.
func NewServerEnvironment(w http.ResponseWriter, r *http.Request) *ServerEnvironment {
	return &ServerEnvironment{r: r, w: w, client: &http.Client{}, pending: map[string]*http.Cookie{}}
}

func (e *ServerEnvironment) Phase() Phase { return PhaseServer }

// Cookie prefers cookies set earlier in the same request.
func (e *ServerEnvironment) Cookie(name string) (string, bool) {
	e.mu.Lock()
	c, ok := e.pending[name]
	e.mu.Unlock()
	if ok {
		if c.MaxAge < 0 {
			return "", false
		}
		return unescapeCookie(c.Value), true
	}

	if e.r == nil {
		return "", false
	}
	rc, err := e.r.Cookie(name)
	if err != nil {
		return "", false
	}
	return unescapeCookie(rc.Value), true
}

func (e *ServerEnvironment) SetCookie(c *http.Cookie) {
	e.mu.Lock()
	e.pending[c.Name] = c
	e.mu.Unlock()

	if e.w != nil {
		http.SetCookie(e.w, c)
	}
}

func (e *ServerEnvironment) ForwardedCookies() string {
	if e.r == nil {
		return ""
	}
	return e.r.Header.Get("Cookie")
}

func (e *ServerEnvironment) LocalStorage() localstore.Store { return nil }

func (e *ServerEnvironment) HTTPClient() *http.Client { return e.client }

// WithHTTPClient replaces the upstream HTTP client.
func (e *ServerEnvironment) WithHTTPClient(c *http.Client) *ServerEnvironment {
	e.client = c
	return e
}

// BrowserEnvironment plays the browser: a cookie jar scoped to the page
// origin and a local storage.
type BrowserEnvironment struct {
	origin *url.URL
	jar    http.CookieJar
	store  localstore.Store
	client *http.Client
}

var _ Environment = (*BrowserEnvironment)(nil)

// NewBrowserEnvironment builds a browser phase for the page at origin. store
// may be nil when local storage is not needed.
func NewBrowserEnvironment(origin string, jar http.CookieJar, store localstore.Store) (*BrowserEnvironment, error) {
	if jar == nil {
		return nil, errors.New("bridge: browser environment needs a cookie jar")
	}
	u, err := url.Parse(origin)
	if err != nil {
		return nil, fmt.Errorf("failed to parse origin: %w", err)
	}
	return &BrowserEnvironment{
		origin: u,
		jar:    jar,
		store:  store,
		client: &http.Client{Jar: jar},
	}, nil
}

func (e *BrowserEnvironment) Phase() Phase { return PhaseBrowser }

func (e *BrowserEnvironment) Cookie(name string) (string, bool) {
	for _, c := range e.jar.Cookies(e.origin) {
		if c.Name == name {
			return unescapeCookie(c.Value), true
		}
	}
	return "", false
}

func (e *BrowserEnvironment) SetCookie(c *http.Cookie) {
	e.jar.SetCookies(e.origin, []*http.Cookie{c})
}

func (e *BrowserEnvironment) ForwardedCookies() string { return "" }

func (e *BrowserEnvironment) LocalStorage() localstore.Store { return e.store }

func (e *BrowserEnvironment) HTTPClient() *http.Client { return e.client }

// Jar exposes the cookie jar, e.g. to fetch the page itself.
func (e *BrowserEnvironment) Jar() http.CookieJar { return e.jar }

func unescapeCookie(v string) string {
	if u, err := url.PathUnescape(v); err == nil {
		return u
	}
	return v
}

// escapeCookie keeps token characters that are not allowed in cookie values
// (spaces in "Bearer x", quotes) intact across a round trip.
func escapeCookie(v string) string {
	return url.PathEscape(v)
}

// localGet reads a key and treats a missing key as empty.
func localGet(ctx context.Context, s localstore.Store, key string) (string, error) {
	v, _, err := localstore.Lookup(ctx, s, key)
	return v, err
}
