package cache

import (
	"encoding/json"
	"slices"
	"strconv"

	"github.com/vektah/gqlparser/v2/ast"
)

// fieldSet flattens a selection set for an object of the given type,
// expanding fragments and merging fields that share a response key.
type fieldSet struct {
	doc   *ast.QueryDocument
	vars  map[string]any
	types map[string][]string
}

func (fs fieldSet) collect(sel ast.SelectionSet, typename string) []*ast.Field {
	var order []string
	byKey := map[string]*ast.Field{}
	fs.walk(sel, typename, &order, byKey)

	out := make([]*ast.Field, len(order))
	for i, k := range order {
		out[i] = byKey[k]
	}
	return out
}

func (fs fieldSet) walk(sel ast.SelectionSet, typename string, order *[]string, byKey map[string]*ast.Field) {
	for _, s := range sel {
		switch s := s.(type) {
		case *ast.Field:
			if !fs.included(s.Directives) {
				continue
			}
			key := responseKey(s)
			prev, ok := byKey[key]
			if !ok {
				byKey[key] = s
				*order = append(*order, key)
				continue
			}
			merged := *prev
			merged.SelectionSet = append(slices.Clone(prev.SelectionSet), s.SelectionSet...)
			byKey[key] = &merged
		case *ast.FragmentSpread:
			if !fs.included(s.Directives) || fs.doc == nil {
				continue
			}
			frag := fs.doc.Fragments.ForName(s.Name)
			if frag == nil || !fs.matches(frag.TypeCondition, typename) {
				continue
			}
			fs.walk(frag.SelectionSet, typename, order, byKey)
		case *ast.InlineFragment:
			if !fs.included(s.Directives) || !fs.matches(s.TypeCondition, typename) {
				continue
			}
			fs.walk(s.SelectionSet, typename, order, byKey)
		}
	}
}

// matches reports whether a fragment on cond applies to typename. Objects
// without a known type match every fragment.
func (fs fieldSet) matches(cond, typename string) bool {
	if cond == "" || typename == "" || cond == typename {
		return true
	}
	return slices.Contains(fs.types[cond], typename)
}

func (fs fieldSet) included(dirs ast.DirectiveList) bool {
	for _, d := range dirs {
		if d.Name != "skip" && d.Name != "include" {
			continue
		}
		arg := d.Arguments.ForName("if")
		if arg == nil {
			continue
		}
		v, _ := valueOf(arg.Value, fs.vars)
		b, _ := v.(bool)
		if d.Name == "skip" && b {
			return false
		}
		if d.Name == "include" && !b {
			return false
		}
	}
	return true
}

// storeKey is the record key of a field: the name, plus canonical JSON of
// the arguments when there are any.
func (fs fieldSet) storeKey(f *ast.Field) string {
	if len(f.Arguments) == 0 {
		return f.Name
	}

	args := make(map[string]any, len(f.Arguments))
	for _, a := range f.Arguments {
		if v, ok := valueOf(a.Value, fs.vars); ok {
			args[a.Name] = v
		}
	}
	if len(args) == 0 {
		return f.Name
	}

	// encoding/json sorts map keys at every level.
	b, err := json.Marshal(args)
	if err != nil {
		return f.Name
	}
	return f.Name + "(" + string(b) + ")"
}

func responseKey(f *ast.Field) string {
	if f.Alias != "" {
		return f.Alias
	}
	return f.Name
}

// valueOf converts an argument literal. ok is false for variables that were
// not provided.
func valueOf(v *ast.Value, vars map[string]any) (any, bool) {
	if v == nil {
		return nil, false
	}

	switch v.Kind {
	case ast.Variable:
		x, ok := vars[v.Raw]
		return x, ok
	case ast.IntValue:
		if n, err := strconv.ParseInt(v.Raw, 10, 64); err == nil {
			return n, true
		}
		return v.Raw, true
	case ast.FloatValue:
		if f, err := strconv.ParseFloat(v.Raw, 64); err == nil {
			return f, true
		}
		return v.Raw, true
	case ast.BooleanValue:
		return v.Raw == "true", true
	case ast.NullValue:
		return nil, true
	case ast.ListValue:
		out := make([]any, 0, len(v.Children))
		for _, c := range v.Children {
			if x, ok := valueOf(c.Value, vars); ok {
				out = append(out, x)
			}
		}
		return out, true
	case ast.ObjectValue:
		out := make(map[string]any, len(v.Children))
		for _, c := range v.Children {
			if x, ok := valueOf(c.Value, vars); ok {
				out[c.Name] = x
			}
		}
		return out, true
	default:
		// strings, block strings and enums
		return v.Raw, true
	}
}
