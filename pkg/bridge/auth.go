package bridge

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/aussiebroadwan/gqlbridge/pkg/jwtx"
)

// tokenLeeway is the clock skew allowed when checking a stored JWT.
const tokenLeeway = 30 * time.Second

// schemePrefix matches tokens that already carry a scheme, e.g. "Basic x".
var schemePrefix = regexp.MustCompile(`^[a-zA-Z]+\s`)

// FormatCredential turns a token into the value of the auth header. Tokens
// that already start with a scheme word, and all tokens when disabled is
// set, are returned unchanged.
func FormatCredential(token, scheme string, disabled bool) string {
	if token == "" {
		return ""
	}
	if disabled || scheme == "" || schemePrefix.MatchString(token) {
		return token
	}
	return scheme + " " + token
}

// AuthResolver finds the token of one client for the current phase.
type AuthResolver struct {
	client string
	cfg    ClientConfig
	env    Environment
	hooks  *Hooks
	now    func() time.Time
}

func NewAuthResolver(client string, cfg ClientConfig, env Environment, hooks *Hooks) *AuthResolver {
	return newAuthResolver(client, cfg, env, hooks.bind())
}

func newAuthResolver(client string, cfg ClientConfig, env Environment, hooks *Hooks) *AuthResolver {
	return &AuthResolver{client: client, cfg: cfg, env: env, hooks: hooks, now: time.Now}
}

// Token returns the raw token: from the auth hook first, then from the
// configured storage. No token is not an error. A stored JWT that has
// expired, or is not valid yet, counts as no token.
func (a *AuthResolver) Token(ctx context.Context) (string, error) {
	p := &AuthParams{Client: a.client}
	a.hooks.auth(ctx, p)
	if p.Token != "" {
		return p.Token, nil
	}

	token, err := a.stored(ctx)
	if err != nil || token == "" {
		return "", err
	}
	if jwtx.Usable(token, a.now(), tokenLeeway) != nil {
		return "", nil
	}
	return token, nil
}

func (a *AuthResolver) stored(ctx context.Context) (string, error) {
	switch a.cfg.TokenStorage {
	case TokenStorageCookie:
		if v, ok := a.env.Cookie(a.cfg.TokenName); ok {
			return v, nil
		}
	case TokenStorageLocal:
		store := a.env.LocalStorage()
		if a.env.Phase() != PhaseBrowser || store == nil {
			return "", nil
		}
		v, err := localGet(ctx, store, a.cfg.TokenName)
		if err != nil {
			return "", fmt.Errorf("failed to read token from local storage: %w", err)
		}
		return v, nil
	}
	return "", nil
}

// Resolve returns the formatted credential, or "" when there is no token.
func (a *AuthResolver) Resolve(ctx context.Context) (string, error) {
	token, err := a.Token(ctx)
	if err != nil {
		return "", err
	}
	return FormatCredential(token, a.cfg.AuthType, a.cfg.DisableAuthType), nil
}
