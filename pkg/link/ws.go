package link

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/aussiebroadwan/gqlbridge/pkg/wsclient"
)

// Subscriber is the part of the socket client the link needs.
type Subscriber interface {
	Subscribe(ctx context.Context, payload any) (*wsclient.Subscription, error)
}

// WSLink is a terminating link that runs operations over a socket client.
type WSLink struct {
	client Subscriber
}

func NewWSLink(client Subscriber) *WSLink {
	return &WSLink{client: client}
}

func (l *WSLink) Request(ctx context.Context, op *Operation, _ NextLink) (Stream, error) {
	body := op.Body()
	if body.Query == "" {
		// Socket servers do not support persisted queries.
		body.Query = op.Query
	}

	sub, err := l.client.Subscribe(ctx, body)
	if err != nil {
		return nil, err
	}
	return &wsStream{sub: sub}, nil
}

type wsStream struct {
	sub  *wsclient.Subscription
	done bool
}

func (s *wsStream) Next(ctx context.Context) (*Result, error) {
	if s.done {
		return nil, io.EOF
	}
	raw, err := s.sub.Next(ctx)
	if err != nil {
		var perr *wsclient.ProtocolError
		if errors.As(err, &perr) {
			var errs GraphQLErrors
			if jsonErr := json.Unmarshal(perr.Payload, &errs); jsonErr == nil && len(errs) > 0 {
				s.done = true
				return &Result{Errors: errs}, nil
			}
		}
		return nil, err
	}

	var res Result
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("failed to decode socket result: %w", err)
	}
	return &res, nil
}

func (s *wsStream) Close() error {
	return s.sub.Close()
}
