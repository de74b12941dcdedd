package link

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
)

// OperationType is the kind of the main definition in a document.
type OperationType string

const (
	Query        OperationType = "query"
	Mutation     OperationType = "mutation"
	Subscription OperationType = "subscription"
)

var (
	ErrEmptyQuery        = errors.New("link: empty query document")
	ErrNoOperation       = errors.New("link: document has no operation definition")
	ErrNoTerminatingLink = errors.New("link: chain has no terminating link")
)

// Operation is one GraphQL request travelling through a link chain. Links
// may mutate Headers, Extensions and Fetch before forwarding.
type Operation struct {
	Query         string
	OperationName string
	Variables     map[string]any
	Extensions    map[string]any

	// Headers are sent with the request by the terminating link.
	Headers http.Header

	// Fetch carries per-request transport overrides.
	Fetch FetchOptions

	parseOnce sync.Once
	doc       *ast.QueryDocument
	parseErr  error
}

// FetchOptions are the fetch knobs a link can flip for a single request.
type FetchOptions struct {
	// Method forces GET or POST. Empty lets the HTTP link decide.
	Method string

	// OmitQuery drops the query text from the request body, used by
	// persisted queries.
	OmitQuery bool

	// IncludeExtensions sends the extensions map to the server.
	IncludeExtensions bool
}

// NewOperation returns an operation with initialised maps.
func NewOperation(query, operationName string, variables map[string]any) *Operation {
	if variables == nil {
		variables = map[string]any{}
	}
	return &Operation{
		Query:         query,
		OperationName: operationName,
		Variables:     variables,
		Extensions:    map[string]any{},
		Headers:       http.Header{},
	}
}

// Document parses the query once and returns the AST.
func (op *Operation) Document() (*ast.QueryDocument, error) {
	op.parseOnce.Do(func() {
		if op.Query == "" {
			op.parseErr = ErrEmptyQuery
			return
		}
		doc, err := parser.ParseQuery(&ast.Source{Input: op.Query})
		if err != nil {
			op.parseErr = err
			return
		}
		op.doc = doc
	})
	return op.doc, op.parseErr
}

// MainDefinition returns the operation definition selected by
// OperationName, or the first one when no name is given.
func (op *Operation) MainDefinition() (*ast.OperationDefinition, error) {
	doc, err := op.Document()
	if err != nil {
		return nil, err
	}
	if len(doc.Operations) == 0 {
		return nil, ErrNoOperation
	}
	if op.OperationName != "" {
		if def := doc.Operations.ForName(op.OperationName); def != nil {
			return def, nil
		}
	}
	return doc.Operations[0], nil
}

// Type classifies the operation. Unparseable documents count as queries so
// they still reach the HTTP transport and fail there with a server error.
func (op *Operation) Type() OperationType {
	def, err := op.MainDefinition()
	if err != nil {
		return Query
	}
	switch def.Operation {
	case ast.Subscription:
		return Subscription
	case ast.Mutation:
		return Mutation
	default:
		return Query
	}
}

// IsSubscription is the split test used to route operations to the socket.
func IsSubscription(op *Operation) bool {
	return op.Type() == Subscription
}

// Result is one execution result as returned by a GraphQL server.
type Result struct {
	Data       json.RawMessage `json:"data,omitempty"`
	Errors     GraphQLErrors   `json:"errors,omitempty"`
	Extensions map[string]any  `json:"extensions,omitempty"`
}

// DecodeData unmarshals the data member into v.
func (r *Result) DecodeData(v any) error {
	if len(r.Data) == 0 || string(r.Data) == "null" {
		return nil
	}
	return json.Unmarshal(r.Data, v)
}

// RequestBody is the JSON body of a POST request. The socket transport
// sends the same shape as its subscribe payload.
type RequestBody struct {
	OperationName string         `json:"operationName,omitempty"`
	Query         string         `json:"query,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
	Extensions    map[string]any `json:"extensions,omitempty"`
}

// Body builds the request body for op, honouring OmitQuery and
// IncludeExtensions.
func (op *Operation) Body() RequestBody {
	b := RequestBody{
		OperationName: op.OperationName,
		Variables:     op.Variables,
	}
	if !op.Fetch.OmitQuery {
		b.Query = op.Query
	}
	if op.Fetch.IncludeExtensions && len(op.Extensions) > 0 {
		b.Extensions = op.Extensions
	}
	return b
}
