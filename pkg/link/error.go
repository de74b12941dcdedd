package link

import (
	"context"
	"errors"
)

// ErrorHandler receives transport and protocol errors. It must not block.
type ErrorHandler func(ctx context.Context, resp *ErrorResponse)

// ErrorLink reports failures to a handler and passes them on unchanged.
type ErrorLink struct {
	handle ErrorHandler
}

func NewErrorLink(handle ErrorHandler) *ErrorLink {
	return &ErrorLink{handle: handle}
}

func (l *ErrorLink) Request(ctx context.Context, op *Operation, forward NextLink) (Stream, error) {
	s, err := forward(ctx, op)
	if err != nil {
		l.report(ctx, op, nil, err)
		return nil, err
	}

	return MapStream(s, func(res *Result, err error) (*Result, error) {
		if err != nil && !errors.Is(err, context.Canceled) {
			l.report(ctx, op, nil, err)
		} else if res != nil && len(res.Errors) > 0 {
			l.report(ctx, op, res, nil)
		}
		return res, err
	}), nil
}

func (l *ErrorLink) report(ctx context.Context, op *Operation, res *Result, err error) {
	resp := &ErrorResponse{Operation: op, NetworkError: err, Response: res}
	if res != nil {
		resp.GraphQLErrors = res.Errors
	}

	var serverErr *ServerError
	if errors.As(err, &serverErr) && serverErr.Result != nil {
		resp.Response = serverErr.Result
		resp.GraphQLErrors = serverErr.Result.Errors
	}

	l.handle(ctx, resp)
}
