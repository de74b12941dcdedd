// Package wsclient is a GraphQL over WebSocket client speaking the
// graphql-transport-ws subprotocol.
//
// The client connects lazily on the first subscription, sends the
// connection parameters returned by Options.ConnectionParams in the
// connection_init message, and multiplexes any number of subscriptions over
// one socket. When the socket drops while subscriptions are active it
// reconnects, paced by a rate limiter, and re-sends every active
// subscription. Restart closes the socket on purpose so the next connection
// picks up fresh connection parameters (for example after a login).
package wsclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/aussiebroadwan/gqlbridge/pkg/idx"
)

// Subprotocol is the WebSocket subprotocol negotiated with the server.
const Subprotocol = "graphql-transport-ws"

// Close codes defined by the protocol that must not trigger a reconnect.
const (
	CloseCodeBadRequest   = 4400
	CloseCodeUnauthorized = 4401
	CloseCodeForbidden    = 4403
	CloseCodeRestart      = 4205
)

// Message types.
const (
	msgConnectionInit = "connection_init"
	msgConnectionAck  = "connection_ack"
	msgPing           = "ping"
	msgPong           = "pong"
	msgSubscribe      = "subscribe"
	msgNext           = "next"
	msgError          = "error"
	msgComplete       = "complete"
)

var (
	ErrClosed      = errors.New("wsclient: client closed")
	ErrAckTimeout  = errors.New("wsclient: connection_ack not received")
	ErrUnexpected  = errors.New("wsclient: unexpected message before connection_ack")
	ErrNoURL       = errors.New("wsclient: url is required")
	ErrRetriesDone = errors.New("wsclient: reconnect attempts exhausted")
)

// Message is the protocol envelope.
type Message struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ProtocolError is delivered when the server answers a subscription with an
// error message. Payload is the raw list of GraphQL errors.
type ProtocolError struct {
	Payload json.RawMessage
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("wsclient: subscription error: %s", e.Payload)
}

type Options struct {
	URL    string
	Header http.Header

	// ConnectionParams is called before every connect. A nil map sends a
	// connection_init without payload.
	ConnectionParams func(ctx context.Context) (map[string]any, error)

	// Dialer defaults to websocket.DefaultDialer.
	Dialer *websocket.Dialer

	// RetryAttempts bounds reconnects after an unexpected drop. Default 5.
	RetryAttempts int

	// RetryWait is the minimum gap between reconnect attempts. Default 1s.
	RetryWait time.Duration

	// AckTimeout bounds the wait for connection_ack. Default 10s.
	AckTimeout time.Duration

	// KeepAlive sends a ping at this interval. Zero disables pings.
	KeepAlive time.Duration

	Logger *slog.Logger
}

// Client is safe for concurrent use.
type Client struct {
	opts    Options
	dialer  websocket.Dialer
	limiter *rate.Limiter
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	dialMu sync.Mutex

	mu     sync.Mutex
	cur    *conn
	subs   map[string]*Subscription
	closed bool
}

// New creates a client. No connection is made until Subscribe.
func New(opts Options) (*Client, error) {
	if opts.URL == "" {
		return nil, ErrNoURL
	}
	if opts.RetryAttempts <= 0 {
		opts.RetryAttempts = 5
	}
	if opts.RetryWait <= 0 {
		opts.RetryWait = time.Second
	}
	if opts.AckTimeout <= 0 {
		opts.AckTimeout = 10 * time.Second
	}

	dialer := *websocket.DefaultDialer
	if opts.Dialer != nil {
		dialer = *opts.Dialer
	}
	dialer.Subprotocols = []string{Subprotocol}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		opts:    opts,
		dialer:  dialer,
		limiter: rate.NewLimiter(rate.Every(opts.RetryWait), 1),
		logger:  logger.With("ws_url", opts.URL),
		ctx:     ctx,
		cancel:  cancel,
		subs:    map[string]*Subscription{},
	}, nil
}

// URL returns the socket endpoint.
func (c *Client) URL() string { return c.opts.URL }

// Subscribe starts an operation. payload is marshalled as the subscribe
// message payload.
func (c *Client) Subscribe(ctx context.Context, payload any) (*Subscription, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode subscribe payload: %w", err)
	}

	sub := &Subscription{
		id:      idx.New().String(),
		client:  c,
		payload: raw,
		events:  make(chan json.RawMessage, 16),
		done:    make(chan struct{}),
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	c.subs[sub.id] = sub
	c.mu.Unlock()

	cn, err := c.connect(ctx)
	if err != nil {
		c.remove(sub.id)
		return nil, err
	}

	// A reconnect may already have sent this subscription on cn.
	c.mu.Lock()
	if sub.conn == cn {
		c.mu.Unlock()
		return sub, nil
	}
	sub.conn = cn
	c.mu.Unlock()

	if err := cn.send(Message{ID: sub.id, Type: msgSubscribe, Payload: raw}); err != nil {
		c.remove(sub.id)
		return nil, fmt.Errorf("failed to send subscribe: %w", err)
	}
	return sub, nil
}

// Restart drops the current socket. Active subscriptions are re-sent on a
// fresh connection; idle clients reconnect on the next Subscribe.
func (c *Client) Restart() error {
	c.mu.Lock()
	cn := c.cur
	c.mu.Unlock()

	if cn == nil {
		return nil
	}

	c.logger.Debug("restarting socket")
	cn.restarting.Store(true)
	cn.closeWith(CloseCodeRestart, "Client Restart")
	return nil
}

// Close terminates every subscription and the socket.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	cn := c.cur
	c.cur = nil
	subs := c.subs
	c.subs = map[string]*Subscription{}
	c.mu.Unlock()

	c.cancel()
	for _, s := range subs {
		s.finish(ErrClosed)
	}
	if cn != nil {
		cn.closeWith(websocket.CloseNormalClosure, "")
	}
	return nil
}

// Active returns the number of running subscriptions.
func (c *Client) Active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

func (c *Client) connect(ctx context.Context) (*conn, error) {
	c.dialMu.Lock()
	defer c.dialMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	if c.cur != nil {
		cn := c.cur
		c.mu.Unlock()
		return cn, nil
	}
	c.mu.Unlock()

	cn, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		cn.closeWith(websocket.CloseNormalClosure, "")
		return nil, ErrClosed
	}
	c.cur = cn
	c.mu.Unlock()

	go c.readLoop(cn)
	if c.opts.KeepAlive > 0 {
		go c.pingLoop(cn)
	}
	return cn, nil
}

func (c *Client) dial(ctx context.Context) (*conn, error) {
	var params map[string]any
	if c.opts.ConnectionParams != nil {
		p, err := c.opts.ConnectionParams(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to build connection params: %w", err)
		}
		params = p
	}

	ws, _, err := c.dialer.DialContext(ctx, c.opts.URL, c.opts.Header)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", c.opts.URL, err)
	}
	cn := &conn{ws: ws, done: make(chan struct{})}

	init := Message{Type: msgConnectionInit}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			_ = ws.Close()
			return nil, fmt.Errorf("failed to encode connection params: %w", err)
		}
		init.Payload = raw
	}
	if err := cn.send(init); err != nil {
		_ = ws.Close()
		return nil, fmt.Errorf("failed to send connection_init: %w", err)
	}

	if err := ws.SetReadDeadline(time.Now().Add(c.opts.AckTimeout)); err != nil {
		_ = ws.Close()
		return nil, err
	}
	for {
		var m Message
		if err := ws.ReadJSON(&m); err != nil {
			_ = ws.Close()
			var netErr interface{ Timeout() bool }
			if errors.As(err, &netErr) && netErr.Timeout() {
				return nil, ErrAckTimeout
			}
			return nil, fmt.Errorf("failed to read connection_ack: %w", err)
		}
		if m.Type == msgConnectionAck {
			break
		}
		if m.Type == msgPing {
			_ = cn.send(Message{Type: msgPong})
			continue
		}
		_ = ws.Close()
		return nil, fmt.Errorf("%w: %s", ErrUnexpected, m.Type)
	}
	if err := ws.SetReadDeadline(time.Time{}); err != nil {
		_ = ws.Close()
		return nil, err
	}

	c.logger.Debug("socket connected")
	return cn, nil
}

func (c *Client) readLoop(cn *conn) {
	defer close(cn.done)

	for {
		var m Message
		if err := cn.ws.ReadJSON(&m); err != nil {
			c.connLost(cn, err)
			return
		}

		switch m.Type {
		case msgNext, msgError, msgComplete:
			id, err := idx.Parse(m.ID)
			if err != nil {
				c.logger.Warn("dropping message with invalid subscription id", "type", m.Type, "id", m.ID)
				continue
			}
			c.dispatch(id.String(), m)
		case msgPing:
			_ = cn.send(Message{Type: msgPong})
		case msgPong:
		default:
			c.logger.Warn("unknown socket message", "type", m.Type)
		}
	}
}

func (c *Client) dispatch(id string, m Message) {
	switch m.Type {
	case msgNext:
		if sub := c.lookup(id); sub != nil {
			sub.push(m.Payload)
		}
	case msgError:
		if sub := c.remove(id); sub != nil {
			sub.finish(&ProtocolError{Payload: m.Payload})
		}
	case msgComplete:
		if sub := c.remove(id); sub != nil {
			sub.finish(io.EOF)
		}
	}
}

func (c *Client) pingLoop(cn *conn) {
	t := time.NewTicker(c.opts.KeepAlive)
	defer t.Stop()

	for {
		select {
		case <-cn.done:
			return
		case <-t.C:
			if err := cn.send(Message{Type: msgPing}); err != nil {
				return
			}
		}
	}
}

// connLost runs when the read loop of cn stops.
func (c *Client) connLost(cn *conn, cause error) {
	_ = cn.ws.Close()

	c.mu.Lock()
	if c.cur == cn {
		c.cur = nil
	}
	closed := c.closed
	active := len(c.subs) > 0
	c.mu.Unlock()

	if closed || !active {
		return
	}

	if isFatalClose(cause) {
		c.failAll(fmt.Errorf("wsclient: server closed the socket: %w", cause))
		return
	}

	if cn.restarting.Load() || websocket.IsCloseError(cause, CloseCodeRestart) {
		c.logger.Debug("socket restarted, reconnecting")
	} else {
		c.logger.Warn("socket lost, reconnecting", "err", cause)
	}
	go c.reconnect()
}

func (c *Client) reconnect() {
	var last error
	for attempt := 1; attempt <= c.opts.RetryAttempts; attempt++ {
		if err := c.limiter.Wait(c.ctx); err != nil {
			return
		}

		cn, err := c.connect(c.ctx)
		if errors.Is(err, ErrClosed) {
			return
		}
		if err != nil {
			last = err
			c.logger.Warn("reconnect failed", "attempt", attempt, "err", err)
			continue
		}

		c.resubscribe(cn)
		return
	}
	c.failAll(fmt.Errorf("%w: %v", ErrRetriesDone, last))
}

func (c *Client) resubscribe(cn *conn) {
	c.mu.Lock()
	var pending []*Subscription
	for _, s := range c.subs {
		if s.conn != cn {
			s.conn = cn
			pending = append(pending, s)
		}
	}
	c.mu.Unlock()

	for _, s := range pending {
		if err := cn.send(Message{ID: s.id, Type: msgSubscribe, Payload: s.payload}); err != nil {
			c.logger.Warn("resubscribe failed", "id", s.id, "err", err)
		}
	}
}

func (c *Client) failAll(err error) {
	c.mu.Lock()
	subs := c.subs
	c.subs = map[string]*Subscription{}
	c.mu.Unlock()

	for _, s := range subs {
		s.finish(err)
	}
}

func (c *Client) lookup(id string) *Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subs[id]
}

func (c *Client) remove(id string) *Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.subs[id]
	delete(c.subs, id)
	return s
}

func isFatalClose(err error) bool {
	return websocket.IsCloseError(err, CloseCodeBadRequest, CloseCodeUnauthorized, CloseCodeForbidden)
}

// conn serialises writes to one socket.
type conn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex
	done    chan struct{}

	// restarting is set when Restart closed the socket.
	restarting atomic.Bool
}

func (cn *conn) send(m Message) error {
	cn.writeMu.Lock()
	defer cn.writeMu.Unlock()
	return cn.ws.WriteJSON(m)
}

func (cn *conn) closeWith(code int, reason string) {
	cn.writeMu.Lock()
	_ = cn.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason), time.Now().Add(time.Second))
	cn.writeMu.Unlock()
	_ = cn.ws.Close()
}
