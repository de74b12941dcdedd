package wsclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
)

// Subscription is one running operation on a Client.
type Subscription struct {
	id      string
	client  *Client
	payload json.RawMessage

	// conn is the socket the subscribe message was last sent on. Guarded by
	// client.mu.
	conn *conn

	events chan json.RawMessage
	done   chan struct{}
	once   sync.Once
	err    error
}

// ID is the protocol id of the subscription.
func (s *Subscription) ID() string { return s.id }

// Next blocks until the next payload arrives. It returns io.EOF after the
// server completes the operation, a *ProtocolError when the server rejects
// it, and ErrClosed once the client is closed.
func (s *Subscription) Next(ctx context.Context) (json.RawMessage, error) {
	// Buffered payloads are delivered before the terminal error.
	select {
	case p := <-s.events:
		return p, nil
	default:
	}

	select {
	case p := <-s.events:
		return p, nil
	case <-s.done:
		select {
		case p := <-s.events:
			return p, nil
		default:
		}
		return nil, s.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops the subscription and tells the server when still connected.
func (s *Subscription) Close() error {
	c := s.client
	if c.remove(s.id) == nil {
		s.finish(io.EOF)
		return nil
	}

	c.mu.Lock()
	cn := c.cur
	c.mu.Unlock()

	s.finish(io.EOF)
	if cn == nil {
		return nil
	}
	if err := cn.send(Message{ID: s.id, Type: msgComplete}); err != nil && !errors.Is(err, io.EOF) {
		c.logger.Debug("failed to send complete", "id", s.id, "err", err)
	}
	return nil
}

func (s *Subscription) push(p json.RawMessage) {
	select {
	case s.events <- p:
	case <-s.done:
	}
}

func (s *Subscription) finish(err error) {
	s.once.Do(func() {
		s.err = err
		close(s.done)
	})
}
