package cache

import (
	"fmt"

	"github.com/vektah/gqlparser/v2/ast"
)

// Write normalizes the data of a result for the named operation of doc
// into the cache.
func (c *InMemory) Write(doc *ast.QueryDocument, operationName string, vars map[string]any, data map[string]any) error {
	op, err := selectOperation(doc, operationName)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	w := &writer{c: c, fs: fieldSet{doc: doc, vars: vars, types: c.opts.PossibleTypes}}
	w.record(rootID(op.Operation), op.SelectionSet, data)
	return nil
}

type writer struct {
	c  *InMemory
	fs fieldSet
}

// record merges obj into the record stored under id.
func (w *writer) record(id string, sel ast.SelectionSet, obj map[string]any) {
	rec, ok := w.c.data[id]
	if !ok {
		rec = map[string]any{}
		w.c.data[id] = rec
	}
	w.merge(rec, sel, obj)
}

func (w *writer) merge(rec map[string]any, sel ast.SelectionSet, obj map[string]any) {
	typename, _ := obj["__typename"].(string)
	if typename != "" {
		rec["__typename"] = typename
	}

	for _, f := range w.fs.collect(sel, typename) {
		v, ok := obj[responseKey(f)]
		if !ok {
			continue
		}
		key := w.fs.storeKey(f)
		rec[key] = w.value(f.SelectionSet, v, rec[key])
	}
}

// value normalizes one field value. prev is the value currently stored,
// used to merge embedded objects.
func (w *writer) value(sel ast.SelectionSet, v any, prev any) any {
	if len(sel) == 0 {
		return cloneValue(v)
	}

	switch t := v.(type) {
	case []any:
		prevList, _ := prev.([]any)
		out := make([]any, len(t))
		for i, x := range t {
			var p any
			if i < len(prevList) {
				p = prevList[i]
			}
			out[i] = w.value(sel, x, p)
		}
		return out
	case map[string]any:
		if id, ok := w.c.Identify(t); ok {
			w.record(id, sel, t)
			return map[string]any{refKey: id}
		}
		embedded, ok := prev.(map[string]any)
		if !ok || embedded[refKey] != nil {
			embedded = map[string]any{}
		} else {
			embedded = cloneValue(embedded).(map[string]any)
		}
		w.merge(embedded, sel, t)
		return embedded
	case nil:
		return nil
	default:
		// Scalar where an object was selected; store as is.
		return v
	}
}

// WriteFragment is a convenience for writing one entity outside of an
// operation. The object must be identifiable.
func (c *InMemory) WriteFragment(doc *ast.QueryDocument, fragmentName string, vars map[string]any, obj map[string]any) (string, error) {
	if doc == nil {
		return "", fmt.Errorf("cache: nil document")
	}
	frag := doc.Fragments.ForName(fragmentName)
	if frag == nil {
		return "", fmt.Errorf("cache: unknown fragment %q", fragmentName)
	}
	id, ok := c.Identify(obj)
	if !ok {
		return "", fmt.Errorf("cache: object of type %v has no identity", obj["__typename"])
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	w := &writer{c: c, fs: fieldSet{doc: doc, vars: vars, types: c.opts.PossibleTypes}}
	w.record(id, frag.SelectionSet, obj)
	return id, nil
}
