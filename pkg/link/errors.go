package link

import (
	"fmt"
	"strings"
)

// GraphQLError is one entry of the "errors" member of a result.
type GraphQLError struct {
	Message    string         `json:"message"`
	Path       []any          `json:"path,omitempty"`
	Locations  []Location     `json:"locations,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

type Location struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

func (e GraphQLError) Error() string {
	if len(e.Path) == 0 {
		return e.Message
	}
	parts := make([]string, len(e.Path))
	for i, p := range e.Path {
		parts[i] = fmt.Sprint(p)
	}
	return fmt.Sprintf("%s (path: %s)", e.Message, strings.Join(parts, "."))
}

// Code returns extensions.code when the server set one.
func (e GraphQLError) Code() string {
	code, _ := e.Extensions["code"].(string)
	return code
}

// GraphQLErrors is returned to callers when a result carries errors and the
// error policy does not swallow them.
type GraphQLErrors []GraphQLError

func (errs GraphQLErrors) Error() string {
	switch len(errs) {
	case 0:
		return "graphql: no errors"
	case 1:
		return "graphql: " + errs[0].Error()
	}
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return fmt.Sprintf("graphql: %d errors: %s", len(errs), strings.Join(msgs, "; "))
}

// ServerError is a non-2xx HTTP response. Result is set when the body was a
// parseable GraphQL result.
type ServerError struct {
	StatusCode int
	Body       []byte
	Result     *Result
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("link: server responded with status %d", e.StatusCode)
}

// ErrorResponse is handed to error reporters. Exactly one of NetworkError or
// GraphQLErrors is usually set.
type ErrorResponse struct {
	Operation     *Operation
	NetworkError  error
	GraphQLErrors GraphQLErrors
	Response      *Result
}
