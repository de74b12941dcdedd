package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/vektah/gqlparser/v2/ast"

	"github.com/aussiebroadwan/gqlbridge/pkg/cache"
	"github.com/aussiebroadwan/gqlbridge/pkg/link"
	"github.com/aussiebroadwan/gqlbridge/pkg/wsclient"
)

var (
	ErrCacheMiss      = errors.New("bridge: cache-only query is not in the cache")
	ErrWrongOperation = errors.New("bridge: document has the wrong operation type")
)

// QueryOptions describe one operation. Empty policies fall back to the
// client's DefaultOptions.
type QueryOptions struct {
	Query         string
	OperationName string
	Variables     map[string]any
	FetchPolicy   FetchPolicy
	ErrorPolicy   ErrorPolicy
	Headers       http.Header
}

// Result is the outcome of an operation. Errors is only set with the "all"
// error policy; under "none" they are returned as the error instead.
type Result struct {
	Data      map[string]any
	Errors    link.GraphQLErrors
	FromCache bool
}

// Decode copies Data into v through JSON.
func (r *Result) Decode(v any) error {
	b, err := json.Marshal(r.Data)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// Client is one named GraphQL client with its own cache and link chain.
type Client struct {
	name   string
	cfg    ClientConfig
	phase  Phase
	cache  *cache.InMemory
	chain  *chain
	auth   *AuthResolver
	logger *slog.Logger
	now    func() time.Time

	// ssrMode never lets network-only work bypass the cache.
	ssrMode             bool
	disableNetworkUntil time.Time

	mu      sync.Mutex
	onReset []func(ctx context.Context) error
}

func (c *Client) Name() string           { return c.name }
func (c *Client) Config() ClientConfig   { return c.cfg }
func (c *Client) Cache() *cache.InMemory { return c.cache }
func (c *Client) Link() link.Link        { return c.chain.link }

// Socket returns the socket client, or nil when the client has none.
func (c *Client) Socket() *wsclient.Client { return c.chain.ws }

// Auth returns the resolver used by the client's context link.
func (c *Client) Auth() *AuthResolver { return c.auth }

// Query runs a query operation honouring the fetch policy.
func (c *Client) Query(ctx context.Context, q QueryOptions) (*Result, error) {
	op, doc, err := c.operation(q, link.Query)
	if err != nil {
		return nil, err
	}

	policy := pickFetch(q.FetchPolicy, c.cfg.DefaultOptions.Query.FetchPolicy, CacheFirst)
	if c.networkDisabled() && (policy == NetworkOnly || policy == CacheAndNetwork) {
		policy = CacheFirst
	}
	errPolicy := pickError(q.ErrorPolicy, c.cfg.DefaultOptions.Query.ErrorPolicy)

	if policy == CacheFirst || policy == CacheOnly {
		data, err := c.cache.Read(doc, op.OperationName, op.Variables)
		switch {
		case err == nil:
			return &Result{Data: data, FromCache: true}, nil
		case !errors.Is(err, cache.ErrMissing):
			return nil, err
		case policy == CacheOnly:
			return nil, fmt.Errorf("%w: %v", ErrCacheMiss, err)
		}
	}

	return c.fetch(ctx, op, doc, policy, errPolicy)
}

// Mutate runs a mutation. Only network-only and no-cache apply; anything
// else is treated as network-only.
func (c *Client) Mutate(ctx context.Context, q QueryOptions) (*Result, error) {
	op, doc, err := c.operation(q, link.Mutation)
	if err != nil {
		return nil, err
	}

	policy := pickFetch(q.FetchPolicy, c.cfg.DefaultOptions.Mutate.FetchPolicy, NetworkOnly)
	if policy != NoCache {
		policy = NetworkOnly
	}
	return c.fetch(ctx, op, doc, policy, pickError(q.ErrorPolicy, c.cfg.DefaultOptions.Mutate.ErrorPolicy))
}

// Subscribe starts a subscription. In the browser phase with a socket
// endpoint it runs over the socket.
func (c *Client) Subscribe(ctx context.Context, q QueryOptions) (*Subscription, error) {
	op, doc, err := c.operation(q, link.Subscription)
	if err != nil {
		return nil, err
	}

	s, err := link.Execute(ctx, c.chain.link, op)
	if err != nil {
		return nil, err
	}
	return &Subscription{
		c:         c,
		stream:    s,
		op:        op,
		doc:       doc,
		policy:    pickFetch(q.FetchPolicy, c.cfg.DefaultOptions.Subscribe.FetchPolicy, CacheFirst),
		errPolicy: pickError(q.ErrorPolicy, c.cfg.DefaultOptions.Subscribe.ErrorPolicy),
	}, nil
}

// ReadQuery answers a query from the cache only.
func (c *Client) ReadQuery(query, operationName string, vars map[string]any) (map[string]any, error) {
	op := link.NewOperation(query, operationName, vars)
	doc, err := op.Document()
	if err != nil {
		return nil, err
	}
	return c.cache.Read(doc, operationName, op.Variables)
}

// WriteQuery stores data as the result of a query.
func (c *Client) WriteQuery(query, operationName string, vars map[string]any, data map[string]any) error {
	op := link.NewOperation(query, operationName, vars)
	doc, err := op.Document()
	if err != nil {
		return err
	}
	return c.cache.Write(doc, operationName, op.Variables, data)
}

// OnResetStore registers fn to run after every ResetStore.
func (c *Client) OnResetStore(fn func(ctx context.Context) error) {
	c.mu.Lock()
	c.onReset = append(c.onReset, fn)
	c.mu.Unlock()
}

// ResetStore empties the cache and runs the OnResetStore callbacks.
func (c *Client) ResetStore(ctx context.Context) error {
	c.cache.Reset()

	c.mu.Lock()
	fns := append([]func(context.Context) error(nil), c.onReset...)
	c.mu.Unlock()

	var errs []error
	for _, fn := range fns {
		if err := fn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ClearStore empties the cache without running callbacks.
func (c *Client) ClearStore(context.Context) error {
	c.cache.Reset()
	return nil
}

// Close releases the socket client, if any.
func (c *Client) Close() error {
	if c.chain.ws != nil {
		return c.chain.ws.Close()
	}
	return nil
}

func (c *Client) networkDisabled() bool {
	return c.ssrMode || c.now().Before(c.disableNetworkUntil)
}

func (c *Client) operation(q QueryOptions, want link.OperationType) (*link.Operation, *ast.QueryDocument, error) {
	op := link.NewOperation(q.Query, q.OperationName, q.Variables)
	doc, err := op.Document()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse operation: %w", err)
	}
	def, err := op.MainDefinition()
	if err != nil {
		return nil, nil, err
	}
	if op.OperationName == "" {
		op.OperationName = def.Name
	}
	if got := op.Type(); got != want {
		return nil, nil, fmt.Errorf("%w: want %s, got %s", ErrWrongOperation, want, got)
	}
	for k, vs := range q.Headers {
		for _, v := range vs {
			op.Headers.Add(k, v)
		}
	}
	return op, doc, nil
}

func (c *Client) fetch(ctx context.Context, op *link.Operation, doc *ast.QueryDocument, policy FetchPolicy, errPolicy ErrorPolicy) (*Result, error) {
	s, err := link.Execute(ctx, c.chain.link, op)
	if err != nil {
		return nil, err
	}
	res, err := link.First(ctx, s)
	if err != nil {
		return nil, err
	}
	return c.handle(op, doc, res, policy, errPolicy)
}

// handle applies the error policy and writes data to the cache.
func (c *Client) handle(op *link.Operation, doc *ast.QueryDocument, res *link.Result, policy FetchPolicy, errPolicy ErrorPolicy) (*Result, error) {
	var data map[string]any
	if err := res.DecodeData(&data); err != nil {
		return nil, fmt.Errorf("failed to decode result data: %w", err)
	}

	out := &Result{Data: data}
	if len(res.Errors) > 0 {
		switch errPolicy {
		case ErrorPolicyIgnore:
		case ErrorPolicyAll:
			out.Errors = res.Errors
		default:
			return nil, res.Errors
		}
	}

	if policy != NoCache && data != nil {
		if err := c.cache.Write(doc, op.OperationName, op.Variables, data); err != nil {
			c.logger.Warn("failed to write result to cache", "gql_client", c.name, "err", err)
		}
	}
	return out, nil
}

// Subscription yields one Result per event.
type Subscription struct {
	c         *Client
	stream    link.Stream
	op        *link.Operation
	doc       *ast.QueryDocument
	policy    FetchPolicy
	errPolicy ErrorPolicy
}

// Next returns io.EOF once the server completes the subscription.
func (s *Subscription) Next(ctx context.Context) (*Result, error) {
	res, err := s.stream.Next(ctx)
	if err != nil {
		return nil, err
	}
	return s.c.handle(s.op, s.doc, res, s.policy, s.errPolicy)
}

func (s *Subscription) Close() error { return s.stream.Close() }

func pickFetch(vals ...FetchPolicy) FetchPolicy {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return CacheFirst
}

func pickError(vals ...ErrorPolicy) ErrorPolicy {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ErrorPolicyNone
}
