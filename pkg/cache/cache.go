// Package cache is a normalized, in-memory GraphQL result cache.
//
// Results are split into records: every object that can be identified
// (by __typename plus id, _id or configured key fields) is stored once under
// its entity id and referenced elsewhere as {"__ref": id}. Root fields live
// in the ROOT_QUERY, ROOT_MUTATION and ROOT_SUBSCRIPTION records, keyed by
// field name plus canonical JSON arguments, e.g. user({"id":"1"}).
//
// Extract produces a plain JSON-compatible snapshot that Restore accepts, so
// a cache filled while rendering on the server can be handed to a client.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/vektah/gqlparser/v2/ast"
)

// Root record ids.
const (
	RootQuery        = "ROOT_QUERY"
	RootMutation     = "ROOT_MUTATION"
	RootSubscription = "ROOT_SUBSCRIPTION"
)

// refKey marks a reference to another record.
const refKey = "__ref"

var (
	ErrMissing     = errors.New("cache: missing field")
	ErrNoOperation = errors.New("cache: document has no matching operation")
)

// Snapshot is the serialised form of the cache: entity id to record.
type Snapshot map[string]map[string]any

// TypePolicy customises how objects of one type are identified.
type TypePolicy struct {
	// KeyFields replaces id/_id as the identity of the type.
	KeyFields []string `json:"keyFields,omitempty" yaml:"keyFields,omitempty"`
}

type Options struct {
	TypePolicies map[string]TypePolicy `json:"typePolicies,omitempty" yaml:"typePolicies,omitempty"`

	// PossibleTypes maps interfaces and unions to their member types so
	// fragments on abstract types match concrete objects.
	PossibleTypes map[string][]string `json:"possibleTypes,omitempty" yaml:"possibleTypes,omitempty"`
}

// InMemory is safe for concurrent use.
type InMemory struct {
	opts Options

	mu   sync.RWMutex
	data Snapshot
}

func New(opts Options) *InMemory {
	return &InMemory{opts: opts, data: Snapshot{}}
}

// Identify returns the entity id of obj, or false when obj cannot be
// normalized.
func (c *InMemory) Identify(obj map[string]any) (string, bool) {
	typename, _ := obj["__typename"].(string)
	if typename == "" {
		return "", false
	}

	if p, ok := c.opts.TypePolicies[typename]; ok && len(p.KeyFields) > 0 {
		var b strings.Builder
		b.WriteByte('{')
		for i, k := range p.KeyFields {
			v, ok := obj[k]
			if !ok {
				return "", false
			}
			if i > 0 {
				b.WriteByte(',')
			}
			kb, _ := json.Marshal(k)
			vb, err := json.Marshal(v)
			if err != nil {
				return "", false
			}
			b.Write(kb)
			b.WriteByte(':')
			b.Write(vb)
		}
		b.WriteByte('}')
		return typename + ":" + b.String(), true
	}

	for _, k := range []string{"id", "_id"} {
		v, ok := obj[k]
		if !ok || v == nil {
			continue
		}
		if s, ok := v.(string); ok {
			return typename + ":" + s, true
		}
		vb, err := json.Marshal(v)
		if err != nil {
			return "", false
		}
		return typename + ":" + string(vb), true
	}
	return "", false
}

// Extract returns a deep copy of every record.
func (c *InMemory) Extract() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cloneSnapshot(c.data)
}

// Restore replaces the cache contents with s.
func (c *InMemory) Restore(s Snapshot) {
	data := cloneSnapshot(s)
	if data == nil {
		data = Snapshot{}
	}

	c.mu.Lock()
	c.data = data
	c.mu.Unlock()
}

// Reset drops every record.
func (c *InMemory) Reset() {
	c.mu.Lock()
	c.data = Snapshot{}
	c.mu.Unlock()
}

// Evict removes one record. References to it become dangling and read as
// missing.
func (c *InMemory) Evict(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.data[id]; !ok {
		return false
	}
	delete(c.data, id)
	return true
}

// Len returns the number of records.
func (c *InMemory) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

// GC removes records that are not reachable from a root record and returns
// their ids.
func (c *InMemory) GC() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	reachable := map[string]bool{}
	var visit func(v any)
	visit = func(v any) {
		switch t := v.(type) {
		case map[string]any:
			if ref, ok := t[refKey].(string); ok {
				if reachable[ref] {
					return
				}
				reachable[ref] = true
				if rec, ok := c.data[ref]; ok {
					visit(map[string]any(rec))
				}
				return
			}
			for _, x := range t {
				visit(x)
			}
		case []any:
			for _, x := range t {
				visit(x)
			}
		}
	}
	for _, root := range []string{RootQuery, RootMutation, RootSubscription} {
		if rec, ok := c.data[root]; ok {
			reachable[root] = true
			visit(map[string]any(rec))
		}
	}

	var removed []string
	for id := range c.data {
		if !reachable[id] {
			delete(c.data, id)
			removed = append(removed, id)
		}
	}
	return removed
}

func rootID(op ast.Operation) string {
	switch op {
	case ast.Mutation:
		return RootMutation
	case ast.Subscription:
		return RootSubscription
	default:
		return RootQuery
	}
}

func selectOperation(doc *ast.QueryDocument, name string) (*ast.OperationDefinition, error) {
	if doc == nil || len(doc.Operations) == 0 {
		return nil, ErrNoOperation
	}
	if name == "" {
		return doc.Operations[0], nil
	}
	if op := doc.Operations.ForName(name); op != nil {
		return op, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNoOperation, name)
}

func cloneSnapshot(s Snapshot) Snapshot {
	if s == nil {
		return nil
	}
	out := make(Snapshot, len(s))
	for id, rec := range s {
		out[id] = cloneValue(map[string]any(rec)).(map[string]any)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, x := range t {
			out[k] = cloneValue(x)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, x := range t {
			out[i] = cloneValue(x)
		}
		return out
	default:
		return v
	}
}
