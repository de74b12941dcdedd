package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"

	httpapi "github.com/aussiebroadwan/gqlbridge/internal/gqlbridge/http"
	"github.com/aussiebroadwan/gqlbridge/pkg/bridge"
	"github.com/aussiebroadwan/gqlbridge/pkg/bridgesdk"
	"github.com/aussiebroadwan/gqlbridge/pkg/localstore"
	"github.com/aussiebroadwan/gqlbridge/pkg/localstore/sqlite"
)

// HydrateResult is what the hydrate check prints.
type HydrateResult struct {
	URL    string         `json:"url"`
	Client string         `json:"client"`
	Data   map[string]any `json:"data"`
}

// Hydrate plays the browser half of a render: it fetches pageURL, restores
// a browser-phase registry from the embedded payload and answers the page's
// query from the cache alone. A page whose data did not survive the trip
// fails with bridge.ErrCacheMiss.
func Hydrate(ctx context.Context, cfg Config, pageURL string, out io.Writer, logger *slog.Logger) error {
	u, err := url.Parse(pageURL)
	if err != nil || !u.IsAbs() {
		return fmt.Errorf("page url must be absolute: %q", pageURL)
	}
	origin := (&url.URL{Scheme: u.Scheme, Host: u.Host}).String()

	site, err := LoadSite(cfg.ConfigFile)
	if err != nil {
		return err
	}
	resolved, err := site.Clients.Resolve(ctx)
	if err != nil {
		return fmt.Errorf("failed to resolve clients: %w", err)
	}
	pages, err := httpapi.NewPages(site.Pages)
	if err != nil {
		return err
	}

	sdk := bridgesdk.NewSDKClient(origin)
	fetched, err := sdk.FetchPage(ctx, u.RequestURI())
	if err != nil {
		return fmt.Errorf("failed to fetch page: %w", err)
	}
	logger.Debug("page fetched", "url", fetched.URL, "entries", len(fetched.Payload.Data))

	store, closeStore, err := openLocalStore(cfg.LocalStore)
	if err != nil {
		return err
	}
	defer closeStore()

	env, err := bridge.NewBrowserEnvironment(origin, sdk.Jar(), store)
	if err != nil {
		return err
	}
	reg, err := bridge.New(ctx, resolved, env, bridge.WithPayload(fetched.Payload), bridge.WithLogger(logger))
	if err != nil {
		return err
	}
	defer func() { _ = reg.Close() }()

	page, r, err := pages.MatchPath(ctx, u.RequestURI())
	if err != nil {
		return err
	}
	c, err := reg.Client(page.Client)
	if err != nil {
		return err
	}

	opts := page.Options(r)
	opts.FetchPolicy = bridge.CacheOnly
	res, err := c.Query(ctx, opts)
	if errors.Is(err, bridge.ErrCacheMiss) {
		return fmt.Errorf("page %s was not hydrated: %w", page.Path, err)
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(HydrateResult{URL: fetched.URL, Client: c.Name(), Data: res.Data})
}

// openLocalStore uses the SQLite file at path, or memory when path is
// empty.
func openLocalStore(path string) (localstore.Store, func(), error) {
	if path == "" {
		return localstore.NewMemory(), func() {}, nil
	}
	s, err := sqlite.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open local store: %w", err)
	}
	return s, func() { _ = s.Close() }, nil
}
