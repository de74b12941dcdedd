package bridge

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aussiebroadwan/gqlbridge/pkg/jwtx"
)

var ErrNoLocalStorage = errors.New("bridge: local storage is not available in this phase")

// AuthOptions tune Login and Logout.
type AuthOptions struct {
	// Client defaults to the default alias.
	Client string

	// SkipResetStore keeps the cache after the token changes.
	SkipResetStore bool
}

// Token returns the raw token the named client would send.
func (r *Registry) Token(ctx context.Context, client string) (string, error) {
	c, err := r.Client(client)
	if err != nil {
		return "", err
	}
	return c.auth.Token(ctx)
}

// Login stores token for a client, restarts its socket so the next
// connection authenticates with it and, unless skipped, resets its cache.
func (r *Registry) Login(ctx context.Context, token string, opts AuthOptions) error {
	return r.updateAuth(ctx, token, opts)
}

// Logout clears the stored token of a client.
func (r *Registry) Logout(ctx context.Context, opts AuthOptions) error {
	return r.updateAuth(ctx, "", opts)
}

func (r *Registry) updateAuth(ctx context.Context, token string, opts AuthOptions) error {
	c, err := r.Client(opts.Client)
	if err != nil {
		return err
	}

	switch c.cfg.TokenStorage {
	case TokenStorageLocal:
		store := r.env.LocalStorage()
		if store == nil {
			return ErrNoLocalStorage
		}
		if token == "" {
			err = store.Remove(ctx, c.cfg.TokenName)
		} else {
			err = store.Set(ctx, c.cfg.TokenName, token)
		}
		if err != nil {
			return fmt.Errorf("failed to update local storage: %w", err)
		}
	default:
		r.env.SetCookie(r.tokenCookie(c.cfg.TokenName, token))
	}

	if ws := c.chain.ws; ws != nil {
		if err := ws.Restart(); err != nil {
			r.logger.WarnContext(ctx, "failed to restart socket", "gql_client", c.name, "err", err)
		}
	}

	if opts.SkipResetStore {
		return nil
	}
	return c.ResetStore(ctx)
}

// tokenCookie builds the cookie that stores token, or deletes it when token
// is empty.
func (r *Registry) tokenCookie(name, token string) *http.Cookie {
	attrs := r.resolved.CookieAttributes
	c := &http.Cookie{
		Name:     name,
		Value:    escapeCookie(token),
		Path:     attrs.Path,
		Domain:   attrs.Domain,
		Secure:   attrs.Secure,
		HttpOnly: attrs.HTTPOnly,
		SameSite: attrs.SameSite,
	}
	if token == "" {
		c.MaxAge = -1
		c.Expires = time.Unix(0, 0)
		return c
	}

	maxAge := jwtx.CookieMaxAge(token, time.Now(), attrs.MaxAge)
	c.MaxAge = int(maxAge / time.Second)
	c.Expires = time.Now().Add(maxAge)
	return c
}
