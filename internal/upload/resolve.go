package upload

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Attributes are the five values recorded for one leaf form field.
type Attributes struct {
	Name    string
	Type    string
	Size    int64
	TmpName string
	Error   ErrorCode
}

// record pairs a resolved field name with its gathered attributes.
type record struct {
	fieldName string
	attrs     Attributes
}

// ResolveNames returns every leaf field name in d, depth first and in
// insertion order. Nested fields are named base[key][key]...
func ResolveNames(d *Descriptor) []string {
	var names []string
	for _, key := range d.Keys() {
		e, _ := d.Entry(key)
		sub, ok := e.Name.(*Tree)
		if !ok {
			names = append(names, key)
			continue
		}
		names = appendNames(names, sub, key)
	}
	return names
}

func appendNames(names []string, t *Tree, base string) []string {
	for _, key := range t.keys {
		name := fieldPath(base, key)
		if child, ok := t.values[key].(*Tree); ok {
			names = appendNames(names, child, name)
		} else {
			names = append(names, name)
		}
	}
	return names
}

// Gather re-walks the five attribute trees of d along the path encoded in
// fieldName and returns the leaf values found there.
func Gather(d *Descriptor, fieldName string) (Attributes, error) {
	base, keys := splitFieldName(fieldName)

	e, ok := d.Entry(base)
	if !ok {
		return Attributes{}, &StructuralMismatchError{FieldName: fieldName, Attribute: AttrName, Key: base}
	}

	vals := e.values()
	for i := range vals {
		for _, key := range keys {
			t, ok := vals[i].(*Tree)
			if !ok {
				return Attributes{}, &StructuralMismatchError{FieldName: fieldName, Attribute: attributeKeys[i]}
			}
			v, ok := t.Get(key)
			if !ok {
				return Attributes{}, &StructuralMismatchError{FieldName: fieldName, Attribute: attributeKeys[i], Key: key}
			}
			vals[i] = v
		}
	}
	return leafAttributes(fieldName, vals)
}

// flatten walks all five attribute trees of every entry together, producing
// one record per leaf. Resolution and gathering happen in the same pass.
func flatten(d *Descriptor) ([]record, error) {
	var out []record
	for _, key := range d.Keys() {
		e, _ := d.Entry(key)
		var err error
		out, err = walk(out, key, e.values())
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func walk(out []record, fieldName string, vals [5]any) ([]record, error) {
	names, ok := vals[0].(*Tree)
	if !ok {
		attrs, err := leafAttributes(fieldName, vals)
		if err != nil {
			return nil, err
		}
		return append(out, record{fieldName: fieldName, attrs: attrs}), nil
	}

	var trees [5]*Tree
	trees[0] = names
	for i := 1; i < len(vals); i++ {
		t, ok := vals[i].(*Tree)
		if !ok {
			return nil, &StructuralMismatchError{FieldName: fieldName, Attribute: attributeKeys[i]}
		}
		trees[i] = t
	}

	for _, key := range names.keys {
		var child [5]any
		for i, t := range trees {
			v, ok := t.Get(key)
			if !ok {
				return nil, &StructuralMismatchError{FieldName: fieldName, Attribute: attributeKeys[i], Key: key}
			}
			child[i] = v
		}
		var err error
		out, err = walk(out, fieldPath(fieldName, key), child)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func leafAttributes(fieldName string, vals [5]any) (Attributes, error) {
	for i, v := range vals {
		if _, ok := v.(*Tree); ok {
			return Attributes{}, &StructuralMismatchError{FieldName: fieldName, Attribute: attributeKeys[i]}
		}
	}

	size, _ := scalarInt(vals[2])
	code, ok := scalarInt(vals[4])
	if !ok {
		// Not a number at all: never a recognized code.
		code = -1
	}
	return Attributes{
		Name:    scalarString(vals[0]),
		Type:    scalarString(vals[1]),
		Size:    size,
		TmpName: scalarString(vals[3]),
		Error:   ErrorCode(code),
	}, nil
}

func fieldPath(base, key string) string {
	return base + "[" + key + "]"
}

// splitFieldName splits base[k1][k2] into base and its bracketed keys.
func splitFieldName(name string) (string, []string) {
	i := strings.IndexByte(name, '[')
	if i < 0 {
		return name, nil
	}

	base, rest := name[:i], name[i:]
	var keys []string
	for strings.HasPrefix(rest, "[") {
		j := strings.IndexByte(rest, ']')
		if j < 0 {
			keys = append(keys, rest[1:])
			break
		}
		keys = append(keys, rest[1:j])
		rest = rest[j+1:]
	}
	return base, keys
}

func scalarString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case fmt.Stringer:
		return s.String()
	default:
		return fmt.Sprint(v)
	}
}

func scalarInt(v any) (int64, bool) {
	switch n := v.(type) {
	case nil:
		return 0, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), n <= math.MaxInt64
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), n <= math.MaxInt64
	case float64:
		return int64(n), n == math.Trunc(n)
	case ErrorCode:
		return int64(n), true
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, true
		}
		i, err := strconv.ParseInt(s, 10, 64)
		return i, err == nil
	default:
		return 0, false
	}
}
