package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/gqlbridge/pkg/bridge"
)

var ErrPageNotFound = errors.New("no page matches the path")

// Page is one server-rendered route.
type Page struct {
	// Path is a ServeMux pattern without the method, e.g. /repos/{owner}.
	Path   string `yaml:"path"`
	Title  string `yaml:"title"`
	Client string `yaml:"client"`
	Query  string `yaml:"query"`

	// Variables are sent with the query. A string value "$name" is replaced
	// by the path wildcard or query parameter called name.
	Variables   map[string]any     `yaml:"variables"`
	FetchPolicy bridge.FetchPolicy `yaml:"fetchPolicy"`

	// Template overrides the default body template.
	Template string `yaml:"template"`
}

func (p Page) templateName() string {
	if p.Template == "" {
		return defaultBodyTemplate
	}
	return "page:" + p.Path
}

// variables resolves the page's variables against r.
func (p Page) variables(r *http.Request) map[string]any {
	out := make(map[string]any, len(p.Variables))
	for k, v := range p.Variables {
		s, ok := v.(string)
		if !ok || !strings.HasPrefix(s, "$") {
			out[k] = v
			continue
		}
		name := s[1:]
		switch {
		case r.PathValue(name) != "":
			out[k] = r.PathValue(name)
		case r.URL.Query().Has(name):
			out[k] = r.URL.Query().Get(name)
		}
	}
	return out
}

// Options are the query options of the page for request r.
func (p Page) Options(r *http.Request) bridge.QueryOptions {
	return bridge.QueryOptions{
		Query:       p.Query,
		Variables:   p.variables(r),
		FetchPolicy: p.FetchPolicy,
	}
}

// query runs the page's query with the "all" error policy so partial
// results still render.
func (p Page) query(ctx context.Context, reg *bridge.Registry, r *http.Request) (*bridge.Result, error) {
	c, err := reg.Client(p.Client)
	if err != nil {
		return nil, err
	}
	opts := p.Options(r)
	opts.ErrorPolicy = bridge.ErrorPolicyAll
	return c.Query(ctx, opts)
}

type matchKey struct{}

type match struct {
	page *Page
	req  *http.Request
}

// Pages resolves a URL path to its page the same way the router does.
type Pages struct {
	list []Page
	mux  *http.ServeMux
}

// NewPages validates pages. Conflicting patterns are reported as errors.
func NewPages(pages []Page) (ps *Pages, err error) {
	ps = &Pages{list: pages, mux: http.NewServeMux()}

	defer func() {
		if rec := recover(); rec != nil {
			ps, err = nil, fmt.Errorf("invalid page pattern: %v", rec)
		}
	}()

	for i := range pages {
		p := &ps.list[i]
		if p.Path == "" || p.Query == "" {
			return nil, fmt.Errorf("page %d: path and query are required", i)
		}
		ps.mux.HandleFunc("GET "+p.Path, func(_ http.ResponseWriter, r *http.Request) {
			if m, ok := r.Context().Value(matchKey{}).(*match); ok {
				m.page, m.req = p, r
			}
		})
	}
	return ps, nil
}

func (ps *Pages) List() []Page { return ps.list }

// Match returns the page serving r and a copy of r carrying its path
// values.
func (ps *Pages) Match(r *http.Request) (*Page, *http.Request, error) {
	m := &match{}
	ps.mux.ServeHTTP(nopWriter{}, r.WithContext(context.WithValue(r.Context(), matchKey{}, m)))
	if m.page == nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrPageNotFound, r.URL.Path)
	}
	return m.page, m.req, nil
}

// MatchPath is Match for a bare path with an optional query string.
func (ps *Pages) MatchPath(ctx context.Context, path string) (*Page, *http.Request, error) {
	r, err := http.NewRequestWithContext(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse path: %w", err)
	}
	return ps.Match(r)
}

type nopWriter struct{}

func (nopWriter) Header() http.Header { return http.Header{} }
func (nopWriter) Write(b []byte) (int, error) { return len(b), nil }
func (nopWriter) WriteHeader(int) {}
