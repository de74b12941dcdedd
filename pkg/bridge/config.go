package bridge

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aussiebroadwan/gqlbridge/pkg/cache"
)

var (
	ErrNoClients           = errors.New("bridge: no clients configured")
	ErrMissingEndpoint     = errors.New("bridge: client has no httpEndpoint")
	ErrDuplicateClient     = errors.New("bridge: duplicate client name")
	ErrInvalidClientName   = errors.New("bridge: client name must not be empty")
	ErrInvalidTokenStorage = errors.New("bridge: tokenStorage must be cookie or localStorage")
)

// Defaults applied by Config.Resolve.
const (
	DefaultAuthType     = "Bearer"
	DefaultAuthHeader   = "Authorization"
	DefaultClientName   = "default"
	DefaultCookieMaxAge = 7 * 24 * time.Hour
)

type TokenStorage string

const (
	TokenStorageCookie TokenStorage = "cookie"
	TokenStorageLocal  TokenStorage = "localStorage"
)

type FetchPolicy string

const (
	CacheFirst      FetchPolicy = "cache-first"
	NetworkOnly     FetchPolicy = "network-only"
	CacheOnly       FetchPolicy = "cache-only"
	NoCache         FetchPolicy = "no-cache"
	CacheAndNetwork FetchPolicy = "cache-and-network"
)

type ErrorPolicy string

const (
	ErrorPolicyNone   ErrorPolicy = "none"
	ErrorPolicyIgnore ErrorPolicy = "ignore"
	ErrorPolicyAll    ErrorPolicy = "all"
)

type OperationOptions struct {
	FetchPolicy FetchPolicy `yaml:"fetchPolicy,omitempty"`
	ErrorPolicy ErrorPolicy `yaml:"errorPolicy,omitempty"`
}

// DefaultOptions are applied to operations that do not set their own
// policies.
type DefaultOptions struct {
	Query     OperationOptions `yaml:"query,omitempty"`
	Mutate    OperationOptions `yaml:"mutate,omitempty"`
	Subscribe OperationOptions `yaml:"subscribe,omitempty"`
}

type HTTPLinkOptions struct {
	// Credentials is omit, same-origin or include.
	Credentials       string            `yaml:"credentials,omitempty"`
	UseGETForQueries  bool              `yaml:"useGETForQueries,omitempty"`
	Headers           map[string]string `yaml:"headers,omitempty"`
	IncludeExtensions bool              `yaml:"includeExtensions,omitempty"`
	Timeout           time.Duration     `yaml:"timeout,omitempty"`
}

type WSLinkOptions struct {
	RetryAttempts int           `yaml:"retryAttempts,omitempty"`
	RetryInterval time.Duration `yaml:"retryInterval,omitempty"`
	KeepAlive     time.Duration `yaml:"keepAlive,omitempty"`
	AckTimeout    time.Duration `yaml:"ackTimeout,omitempty"`
}

// ClientConfig describes one named client. After Resolve every default is
// filled in and the value is treated as immutable.
type ClientConfig struct {
	HTTPEndpoint string `yaml:"httpEndpoint,omitempty"`

	// BrowserHTTPEndpoint overrides HTTPEndpoint in the browser phase.
	BrowserHTTPEndpoint string `yaml:"browserHttpEndpoint,omitempty"`

	// WSEndpoint enables the socket link for subscriptions in the browser
	// phase.
	WSEndpoint string `yaml:"wsEndpoint,omitempty"`

	HTTPLinkOptions HTTPLinkOptions `yaml:"httpLinkOptions,omitempty"`
	WSLinkOptions   WSLinkOptions   `yaml:"wsLinkOptions,omitempty"`

	// WebsocketsOnly sends every operation over the socket when one is
	// available.
	WebsocketsOnly bool `yaml:"websocketsOnly,omitempty"`

	CacheOptions cache.Options `yaml:"inMemoryCacheOptions,omitempty"`

	AuthHeader string `yaml:"authHeader,omitempty"`
	AuthType   string `yaml:"authType,omitempty"`

	// DisableAuthType sends tokens without a scheme prefix. In YAML it is
	// set by `authType: null`.
	DisableAuthType bool `yaml:"-"`

	TokenStorage TokenStorage `yaml:"tokenStorage,omitempty"`
	TokenName    string       `yaml:"tokenName,omitempty"`

	UsePersistedQuery bool `yaml:"usePersistedQuery,omitempty"`

	// UseGETForHashedQueries defaults to HTTPLinkOptions.UseGETForQueries.
	UseGETForHashedQueries *bool `yaml:"useGETForHashedQueries,omitempty"`

	ConnectToDevTools bool           `yaml:"connectToDevTools,omitempty"`
	DefaultOptions    DefaultOptions `yaml:"defaultOptions,omitempty"`
}

// ConfigFactory builds a client configuration at startup.
type ConfigFactory func(ctx context.Context) (ClientConfig, error)

type sourceKind int

const (
	sourceStatic sourceKind = iota
	sourceEndpoint
	sourceFactory
)

// ClientSource is one of a static configuration, a bare endpoint URL or a
// factory.
type ClientSource struct {
	kind     sourceKind
	static   ClientConfig
	endpoint string
	factory  ConfigFactory
}

func Static(c ClientConfig) ClientSource { return ClientSource{kind: sourceStatic, static: c} }

// Endpoint is shorthand for a static config with only HTTPEndpoint set.
func Endpoint(url string) ClientSource { return ClientSource{kind: sourceEndpoint, endpoint: url} }

func Factory(f ConfigFactory) ClientSource { return ClientSource{kind: sourceFactory, factory: f} }

func (s ClientSource) resolve(ctx context.Context) (ClientConfig, error) {
	switch s.kind {
	case sourceEndpoint:
		return ClientConfig{HTTPEndpoint: s.endpoint}, nil
	case sourceFactory:
		if s.factory == nil {
			return ClientConfig{}, errors.New("nil factory")
		}
		return s.factory(ctx)
	default:
		return s.static, nil
	}
}

type ClientEntry struct {
	Name   string
	Source ClientSource
}

// CookieAttributes are used when the helpers write token cookies.
type CookieAttributes struct {
	MaxAge   time.Duration `yaml:"maxAge,omitempty"`
	Path     string        `yaml:"path,omitempty"`
	Domain   string        `yaml:"domain,omitempty"`
	Secure   bool          `yaml:"secure,omitempty"`
	HTTPOnly bool          `yaml:"httpOnly,omitempty"`
	SameSite http.SameSite `yaml:"-"`
}

// Config is the module level configuration. Clients keep their declaration
// order; the first one is the default alias unless one is named "default".
type Config struct {
	Clients []ClientEntry

	// ProxyCookies forwards the incoming request's Cookie header upstream
	// in the server phase.
	ProxyCookies bool

	// ClientAwareness sends the client name in apollographql-client-name.
	ClientAwareness bool

	CookieAttributes CookieAttributes
}

// NewConfig returns a Config with ProxyCookies enabled.
func NewConfig(clients ...ClientEntry) Config {
	return Config{Clients: clients, ProxyCookies: true}
}

// ResolvedClient is a named client configuration with defaults applied.
type ResolvedClient struct {
	Name   string
	Config ClientConfig
}

// Resolved is the normalized configuration shared by every request.
type Resolved struct {
	Clients          []ResolvedClient
	DefaultName      string
	ProxyCookies     bool
	ClientAwareness  bool
	CookieAttributes CookieAttributes
}

// Client looks up a resolved client by name.
func (r *Resolved) Client(name string) (ResolvedClient, bool) {
	for _, c := range r.Clients {
		if c.Name == name {
			return c, true
		}
	}
	return ResolvedClient{}, false
}

// Resolve runs every factory once and applies defaults. It fails fast on
// misconfiguration.
func (c Config) Resolve(ctx context.Context) (*Resolved, error) {
	if len(c.Clients) == 0 {
		return nil, ErrNoClients
	}

	out := &Resolved{
		ProxyCookies:     c.ProxyCookies,
		ClientAwareness:  c.ClientAwareness,
		CookieAttributes: c.CookieAttributes.withDefaults(),
	}

	seen := map[string]bool{}
	for _, e := range c.Clients {
		if e.Name == "" {
			return nil, ErrInvalidClientName
		}
		if seen[e.Name] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateClient, e.Name)
		}
		seen[e.Name] = true

		cfg, err := e.Source.resolve(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve client %s: %w", e.Name, err)
		}
		cfg, err = normalize(e.Name, cfg)
		if err != nil {
			return nil, err
		}
		out.Clients = append(out.Clients, ResolvedClient{Name: e.Name, Config: cfg})
	}

	out.DefaultName = out.Clients[0].Name
	if seen[DefaultClientName] {
		out.DefaultName = DefaultClientName
	}
	return out, nil
}

func normalize(name string, cfg ClientConfig) (ClientConfig, error) {
	if cfg.HTTPEndpoint == "" {
		return cfg, fmt.Errorf("%w: %s", ErrMissingEndpoint, name)
	}
	if cfg.AuthType == "" && !cfg.DisableAuthType {
		cfg.AuthType = DefaultAuthType
	}
	if cfg.DisableAuthType {
		cfg.AuthType = ""
	}
	if cfg.AuthHeader == "" {
		cfg.AuthHeader = DefaultAuthHeader
	}

	switch cfg.TokenStorage {
	case "":
		cfg.TokenStorage = TokenStorageCookie
	case TokenStorageCookie, TokenStorageLocal:
	default:
		return cfg, fmt.Errorf("%w: client %s has %q", ErrInvalidTokenStorage, name, cfg.TokenStorage)
	}
	if cfg.TokenName == "" {
		cfg.TokenName = "apollo-" + name + ".token"
	}

	if cfg.UseGETForHashedQueries == nil {
		v := cfg.HTTPLinkOptions.UseGETForQueries
		cfg.UseGETForHashedQueries = &v
	}
	return cfg, nil
}

func (a CookieAttributes) withDefaults() CookieAttributes {
	if a.MaxAge == 0 {
		a.MaxAge = DefaultCookieMaxAge
	}
	if a.Path == "" {
		a.Path = "/"
	}
	if a.SameSite == 0 {
		a.SameSite = http.SameSiteLaxMode
	}
	return a
}
