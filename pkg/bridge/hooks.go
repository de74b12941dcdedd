package bridge

import (
	"context"
	"net/http"
	"sync"

	evbus "github.com/asaskevich/EventBus"

	"github.com/aussiebroadwan/gqlbridge/pkg/link"
)

const (
	topicAuth          = "gqlbridge:auth"
	topicAppendHeaders = "gqlbridge:appendHeaders"
	topicError         = "gqlbridge:error"
)

// AuthParams is passed to auth handlers. A handler that knows the token for
// Client sets Token; an empty Token falls back to the configured storage.
type AuthParams struct {
	Client string
	Token  string
}

// HeadersParams is passed to append-headers handlers, which may add to
// Headers before the request leaves.
type HeadersParams struct {
	Client    string
	Operation *link.Operation
	Headers   http.Header
}

// ErrorParams carries a transport or GraphQL error reported by a client's
// link chain.
type ErrorParams struct {
	Client string
	Error  *link.ErrorResponse
}

// Hooks are the extension points of the bridge. Handlers run synchronously,
// in subscription order, on the goroutine that issued the operation.
//
// The bus serialises publishing, so a Hooks value handed to New or
// NewAuthResolver is copied onto a private bus first. Handlers subscribed to
// the shared value afterwards only reach registries built later.
type Hooks struct {
	bus evbus.Bus

	mu   sync.Mutex
	subs []subscription
}

type subscription struct {
	topic string
	fn    any
}

func NewHooks() *Hooks {
	return &Hooks{bus: evbus.New()}
}

func (h *Hooks) OnAuth(fn func(ctx context.Context, p *AuthParams)) error {
	return h.subscribe(topicAuth, fn)
}

func (h *Hooks) OnAppendHeaders(fn func(ctx context.Context, p *HeadersParams)) error {
	return h.subscribe(topicAppendHeaders, fn)
}

func (h *Hooks) OnError(fn func(ctx context.Context, p *ErrorParams)) error {
	return h.subscribe(topicError, fn)
}

func (h *Hooks) subscribe(topic string, fn any) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.bus.Subscribe(topic, fn); err != nil {
		return err
	}
	h.subs = append(h.subs, subscription{topic: topic, fn: fn})
	return nil
}

// bind returns a copy of h with the same handlers on its own bus.
func (h *Hooks) bind() *Hooks {
	if h == nil {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	c := &Hooks{bus: evbus.New(), subs: append([]subscription(nil), h.subs...)}
	for _, s := range c.subs {
		// Every handler was accepted by h's bus already.
		_ = c.bus.Subscribe(s.topic, s.fn)
	}
	return c
}

func (h *Hooks) auth(ctx context.Context, p *AuthParams) {
	if h == nil || !h.bus.HasCallback(topicAuth) {
		return
	}
	h.bus.Publish(topicAuth, ctx, p)
}

func (h *Hooks) appendHeaders(ctx context.Context, p *HeadersParams) {
	if h == nil || !h.bus.HasCallback(topicAppendHeaders) {
		return
	}
	h.bus.Publish(topicAppendHeaders, ctx, p)
}

func (h *Hooks) reportError(ctx context.Context, p *ErrorParams) {
	if h == nil || !h.bus.HasCallback(topicError) {
		return
	}
	h.bus.Publish(topicError, ctx, p)
}
