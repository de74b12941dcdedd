package cache

import (
	"fmt"
	"strings"

	"github.com/vektah/gqlparser/v2/ast"
)

// Read answers the named operation of doc from the cache. It fails with
// ErrMissing when any selected field is absent.
func (c *InMemory) Read(doc *ast.QueryDocument, operationName string, vars map[string]any) (map[string]any, error) {
	op, err := selectOperation(doc, operationName)
	if err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	id := rootID(op.Operation)
	root, ok := c.data[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissing, id)
	}

	r := &reader{c: c, fs: fieldSet{doc: doc, vars: vars, types: c.opts.PossibleTypes}}
	return r.object(root, op.SelectionSet, nil)
}

// ReadFragment reads one entity through a fragment.
func (c *InMemory) ReadFragment(doc *ast.QueryDocument, fragmentName, id string, vars map[string]any) (map[string]any, error) {
	if doc == nil {
		return nil, fmt.Errorf("cache: nil document")
	}
	frag := doc.Fragments.ForName(fragmentName)
	if frag == nil {
		return nil, fmt.Errorf("cache: unknown fragment %q", fragmentName)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	rec, ok := c.data[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissing, id)
	}
	r := &reader{c: c, fs: fieldSet{doc: doc, vars: vars, types: c.opts.PossibleTypes}}
	return r.object(rec, frag.SelectionSet, []string{id})
}

type reader struct {
	c  *InMemory
	fs fieldSet
}

func (r *reader) object(rec map[string]any, sel ast.SelectionSet, path []string) (map[string]any, error) {
	typename, _ := rec["__typename"].(string)
	out := map[string]any{}

	for _, f := range r.fs.collect(sel, typename) {
		key := responseKey(f)
		if f.Name == "__typename" {
			if typename != "" {
				out[key] = typename
			}
			continue
		}

		v, ok := rec[r.fs.storeKey(f)]
		if !ok {
			return nil, missing(append(path, key))
		}
		val, err := r.value(f.SelectionSet, v, append(path, key))
		if err != nil {
			return nil, err
		}
		out[key] = val
	}
	return out, nil
}

func (r *reader) value(sel ast.SelectionSet, v any, path []string) (any, error) {
	if len(sel) == 0 {
		return cloneValue(v), nil
	}

	switch t := v.(type) {
	case []any:
		out := make([]any, len(t))
		for i, x := range t {
			val, err := r.value(sel, x, append(path, fmt.Sprint(i)))
			if err != nil {
				return nil, err
			}
			out[i] = val
		}
		return out, nil
	case map[string]any:
		if ref, ok := t[refKey].(string); ok {
			rec, ok := r.c.data[ref]
			if !ok {
				return nil, missing(path)
			}
			return r.object(rec, sel, path)
		}
		return r.object(t, sel, path)
	default:
		return v, nil
	}
}

func missing(path []string) error {
	return fmt.Errorf("%w: %s", ErrMissing, strings.Join(path, "."))
}
