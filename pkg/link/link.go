// Package link implements the request pipeline of a GraphQL client: an
// ordered chain of links, each of which may transform an operation before
// forwarding it, ending in a terminating transport link.
//
// A chain is built with From and Split and executed with Execute:
//
//	chain := link.From(
//		link.NewErrorLink(report),
//		link.NewContextLink(setAuth),
//		link.NewPersistedQueryLink(link.PersistedQueryOptions{}),
//		link.NewHTTPLink(link.HTTPLinkOptions{URI: endpoint}),
//	)
//	stream, err := link.Execute(ctx, chain, op)
//
// Query and mutation transports produce a stream with a single result;
// subscription transports produce one result per event.
package link

import (
	"context"
	"errors"
	"io"
	"sync"
)

// NextLink forwards an operation to the rest of the chain.
type NextLink func(ctx context.Context, op *Operation) (Stream, error)

// Link is one stage of the pipeline. Terminating links ignore forward.
type Link interface {
	Request(ctx context.Context, op *Operation, forward NextLink) (Stream, error)
}

// Func adapts a function to the Link interface.
type Func func(ctx context.Context, op *Operation, forward NextLink) (Stream, error)

func (f Func) Request(ctx context.Context, op *Operation, forward NextLink) (Stream, error) {
	return f(ctx, op, forward)
}

// Stream yields the results of one operation. Next returns io.EOF once the
// operation is complete.
type Stream interface {
	Next(ctx context.Context) (*Result, error)
	Close() error
}

// From composes links left to right; the first link sees the operation
// first.
func From(links ...Link) Link {
	switch len(links) {
	case 0:
		return Func(func(ctx context.Context, op *Operation, forward NextLink) (Stream, error) {
			return forward(ctx, op)
		})
	case 1:
		return links[0]
	}
	return Concat(links[0], From(links[1:]...))
}

// Concat runs first and hands its forward calls to second.
func Concat(first, second Link) Link {
	return Func(func(ctx context.Context, op *Operation, forward NextLink) (Stream, error) {
		return first.Request(ctx, op, func(ctx context.Context, op *Operation) (Stream, error) {
			return second.Request(ctx, op, forward)
		})
	})
}

// Split routes operations for which test returns true to left, everything
// else to right.
func Split(test func(*Operation) bool, left, right Link) Link {
	return Func(func(ctx context.Context, op *Operation, forward NextLink) (Stream, error) {
		if test(op) {
			return left.Request(ctx, op, forward)
		}
		return right.Request(ctx, op, forward)
	})
}

// Execute runs op through l. Reaching the end of the chain without a
// terminating link is an error.
func Execute(ctx context.Context, l Link, op *Operation) (Stream, error) {
	return l.Request(ctx, op, func(context.Context, *Operation) (Stream, error) {
		return nil, ErrNoTerminatingLink
	})
}

// First reads a single result from s and closes it.
func First(ctx context.Context, s Stream) (*Result, error) {
	defer s.Close()

	res, err := s.Next(ctx)
	if errors.Is(err, io.EOF) {
		return nil, io.ErrUnexpectedEOF
	}
	return res, err
}

// Single wraps one result as a stream.
func Single(res *Result) Stream {
	return &singleStream{res: res}
}

type singleStream struct {
	mu   sync.Mutex
	res  *Result
	done bool
}

func (s *singleStream) Next(ctx context.Context) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done {
		return nil, io.EOF
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.done = true
	return s.res, nil
}

func (s *singleStream) Close() error {
	s.mu.Lock()
	s.done = true
	s.mu.Unlock()
	return nil
}

// MapStream applies fn to every result and error produced by s.
func MapStream(s Stream, fn func(*Result, error) (*Result, error)) Stream {
	return &mappedStream{Stream: s, fn: fn}
}

type mappedStream struct {
	Stream
	fn func(*Result, error) (*Result, error)
}

func (m *mappedStream) Next(ctx context.Context) (*Result, error) {
	res, err := m.Stream.Next(ctx)
	if errors.Is(err, io.EOF) {
		return nil, err
	}
	return m.fn(res, err)
}
