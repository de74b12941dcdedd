package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/gqlbridge/pkg/cache"
	"github.com/aussiebroadwan/gqlbridge/pkg/slogx"
)

// DefaultForceFetchDelay is how long browser clients serve hydrated data
// before network-only policies take effect again.
const DefaultForceFetchDelay = 100 * time.Millisecond

var ErrUnknownClient = errors.New("bridge: unknown client")

type registryOptions struct {
	hooks           *Hooks
	logger          *slog.Logger
	payload         *Payload
	forceFetchDelay time.Duration
	now             func() time.Time
}

type Option func(*registryOptions)

// WithHooks hands a set of hooks to the registry's clients. The registry
// takes a private copy of the handlers subscribed so far.
func WithHooks(h *Hooks) Option { return func(o *registryOptions) { o.hooks = h } }

func WithLogger(l *slog.Logger) Option { return func(o *registryOptions) { o.logger = l } }

// WithPayload hydrates browser clients from p as part of New.
func WithPayload(p *Payload) Option { return func(o *registryOptions) { o.payload = p } }

func WithForceFetchDelay(d time.Duration) Option {
	return func(o *registryOptions) { o.forceFetchDelay = d }
}

func withClock(now func() time.Time) Option { return func(o *registryOptions) { o.now = now } }

// Registry holds the clients of one request (server) or one page (browser).
// It must not be shared between requests.
type Registry struct {
	resolved    *Resolved
	env         Environment
	hooks       *Hooks
	logger      *slog.Logger
	clients     map[string]*Client
	order       []string
	defaultName string
}

// New builds one client per resolved configuration.
func New(ctx context.Context, resolved *Resolved, env Environment, opts ...Option) (*Registry, error) {
	if resolved == nil || len(resolved.Clients) == 0 {
		return nil, ErrNoClients
	}

	o := registryOptions{forceFetchDelay: DefaultForceFetchDelay, now: time.Now}
	for _, fn := range opts {
		fn(&o)
	}
	if o.hooks == nil {
		o.hooks = NewHooks()
	} else {
		o.hooks = o.hooks.bind()
	}
	if o.logger == nil {
		o.logger = slogx.FromContext(ctx)
	}

	r := &Registry{
		resolved:    resolved,
		env:         env,
		hooks:       o.hooks,
		logger:      o.logger,
		clients:     make(map[string]*Client, len(resolved.Clients)),
		defaultName: resolved.DefaultName,
	}

	for _, rc := range resolved.Clients {
		c, err := r.newClient(rc, o)
		if err != nil {
			_ = r.Close()
			return nil, fmt.Errorf("failed to build client %s: %w", rc.Name, err)
		}
		r.clients[rc.Name] = c
		r.order = append(r.order, rc.Name)
	}

	if env.Phase() == PhaseBrowser && o.payload != nil {
		r.Hydrate(o.payload)
	}
	return r, nil
}

func (r *Registry) newClient(rc ResolvedClient, o registryOptions) (*Client, error) {
	auth := newAuthResolver(rc.Name, rc.Config, r.env, r.hooks)
	auth.now = o.now

	ch, err := buildChain(chainParams{
		name:     rc.Name,
		cfg:      rc.Config,
		resolved: r.resolved,
		env:      r.env,
		hooks:    r.hooks,
		auth:     auth,
		logger:   r.logger,
	})
	if err != nil {
		return nil, err
	}

	c := &Client{
		name:   rc.Name,
		cfg:    rc.Config,
		phase:  r.env.Phase(),
		cache:  cache.New(rc.Config.CacheOptions),
		chain:  ch,
		auth:   auth,
		logger: r.logger,
		now:    o.now,
	}
	if c.phase == PhaseServer {
		c.ssrMode = true
	} else if o.forceFetchDelay > 0 {
		c.disableNetworkUntil = o.now().Add(o.forceFetchDelay)
	}
	return c, nil
}

// Client returns the named client. "default" always resolves to the default
// alias.
func (r *Registry) Client(name string) (*Client, error) {
	if name == "" || name == DefaultClientName {
		name = r.defaultName
	}
	c, ok := r.clients[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownClient, name)
	}
	return c, nil
}

// Default returns the client named "default", or the first declared one.
func (r *Registry) Default() *Client { return r.clients[r.defaultName] }

// DefaultName is the real name behind the default alias.
func (r *Registry) DefaultName() string { return r.defaultName }

// Names lists the clients in declaration order.
func (r *Registry) Names() []string { return append([]string(nil), r.order...) }

func (r *Registry) Phase() Phase { return r.env.Phase() }

func (r *Registry) Hooks() *Hooks { return r.hooks }

func (r *Registry) Environment() Environment { return r.env }

// Close shuts down every socket client.
func (r *Registry) Close() error {
	var errs []error
	for _, c := range r.clients {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
