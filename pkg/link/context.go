package link

import "context"

// ContextSetter runs before an operation is forwarded. It typically resolves
// credentials and writes headers onto op.
type ContextSetter func(ctx context.Context, op *Operation) error

// ContextLink runs a ContextSetter and then forwards. The setter always
// completes before the terminating link dispatches the request.
type ContextLink struct {
	set ContextSetter
}

func NewContextLink(set ContextSetter) *ContextLink {
	return &ContextLink{set: set}
}

func (l *ContextLink) Request(ctx context.Context, op *Operation, forward NextLink) (Stream, error) {
	if err := l.set(ctx, op); err != nil {
		return nil, err
	}
	return forward(ctx, op)
}
