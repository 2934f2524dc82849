package upload

import (
	"bytes"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Attribute keys of the host upload bookkeeping structure.
const (
	AttrName    = "name"
	AttrType    = "type"
	AttrSize    = "size"
	AttrTmpName = "tmp_name"
	AttrError   = "error"
)

// attributeKeys is the fixed order in which the five parallel trees are walked.
var attributeKeys = [5]string{AttrName, AttrType, AttrSize, AttrTmpName, AttrError}

// Tree is one nesting level of an attribute value. Keys keep insertion order,
// which is the order fields are reported in.
type Tree struct {
	keys   []string
	values map[string]any
}

// NewTree creates an empty Tree.
func NewTree() *Tree {
	return &Tree{values: make(map[string]any)}
}

// Set stores v under key. A key that already exists keeps its position.
func (t *Tree) Set(key string, v any) *Tree {
	if _, ok := t.values[key]; !ok {
		t.keys = append(t.keys, key)
	}
	t.values[key] = v
	return t
}

// Get returns the value stored under key.
func (t *Tree) Get(key string) (any, bool) {
	if t == nil {
		return nil, false
	}
	v, ok := t.values[key]
	return v, ok
}

// Keys returns the keys in insertion order.
func (t *Tree) Keys() []string {
	if t == nil {
		return nil
	}
	return append([]string(nil), t.keys...)
}

// Len returns the number of keys.
func (t *Tree) Len() int {
	if t == nil {
		return 0
	}
	return len(t.keys)
}

func (t *Tree) setPath(keys []string, v any) {
	if len(keys) == 1 {
		t.Set(keys[0], v)
		return
	}
	child, ok := t.values[keys[0]].(*Tree)
	if !ok {
		child = NewTree()
		t.Set(keys[0], child)
	}
	child.setPath(keys[1:], v)
}

// Entry holds the five parallel attributes of one top-level form field. Each
// value is either a scalar or a *Tree with the same shape as the others.
type Entry struct {
	Name    any
	Type    any
	Size    any
	TmpName any
	Error   any
}

func (e Entry) values() [5]any {
	return [5]any{e.Name, e.Type, e.Size, e.TmpName, e.Error}
}

func entryOf(v [5]any) Entry {
	return Entry{Name: v[0], Type: v[1], Size: v[2], TmpName: v[3], Error: v[4]}
}

// Descriptor is the raw upload bookkeeping structure: an ordered mapping from
// top-level field key to its Entry.
type Descriptor struct {
	keys    []string
	entries map[string]Entry
}

// NewDescriptor creates an empty Descriptor.
func NewDescriptor() *Descriptor {
	return &Descriptor{entries: make(map[string]Entry)}
}

// Add stores e under key. A key that already exists keeps its position.
func (d *Descriptor) Add(key string, e Entry) *Descriptor {
	if _, ok := d.entries[key]; !ok {
		d.keys = append(d.keys, key)
	}
	d.entries[key] = e
	return d
}

// Entry returns the entry stored under key.
func (d *Descriptor) Entry(key string) (Entry, bool) {
	if d == nil {
		return Entry{}, false
	}
	e, ok := d.entries[key]
	return e, ok
}

// Keys returns the top-level keys in insertion order.
func (d *Descriptor) Keys() []string {
	if d == nil {
		return nil
	}
	return append([]string(nil), d.keys...)
}

// Len returns the number of top-level keys.
func (d *Descriptor) Len() int {
	if d == nil {
		return 0
	}
	return len(d.keys)
}

// put records one received file at a bracket path, creating the nested
// attribute trees as the host does for array-style field names.
func (d *Descriptor) put(path []string, a Attributes) {
	leaves := [5]any{a.Name, a.Type, a.Size, a.TmpName, int(a.Error)}
	if len(path) == 1 {
		d.Add(path[0], entryOf(leaves))
		return
	}

	existing, _ := d.Entry(path[0])
	vals := existing.values()
	for i := range vals {
		t, ok := vals[i].(*Tree)
		if !ok {
			t = NewTree()
		}
		t.setPath(path[1:], leaves[i])
		vals[i] = t
	}
	d.Add(path[0], entryOf(vals))
}

// DecodeDescriptor reads a JSON or YAML document shaped like the host upload
// structure. Key order of every mapping is preserved.
func DecodeDescriptor(r io.Reader) (*Descriptor, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading descriptor: %w", err)
	}

	d := NewDescriptor()
	if len(bytes.TrimSpace(data)) == 0 {
		return d, nil
	}
	if err := yaml.Unmarshal(data, d); err != nil {
		return nil, fmt.Errorf("decoding descriptor: %w", err)
	}
	if d.entries == nil {
		// A null document zeroes the value.
		d.entries = make(map[string]Entry)
	}
	return d, nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Descriptor) UnmarshalYAML(node *yaml.Node) error {
	if d.entries == nil {
		d.entries = make(map[string]Entry)
	}
	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: descriptor must be a mapping", node.Line)
	}

	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		body := node.Content[i+1]
		if body.Kind != yaml.MappingNode {
			return fmt.Errorf("line %d: field %q must be a mapping of upload attributes", body.Line, key)
		}

		var vals [5]any
		for j := 0; j+1 < len(body.Content); j += 2 {
			idx := attributeIndex(body.Content[j].Value)
			if idx < 0 {
				continue
			}
			v, err := decodeValue(body.Content[j+1])
			if err != nil {
				return fmt.Errorf("field %q attribute %q: %w", key, body.Content[j].Value, err)
			}
			vals[idx] = v
		}
		d.Add(key, entryOf(vals))
	}
	return nil
}

func attributeIndex(name string) int {
	for i, k := range attributeKeys {
		if k == name {
			return i
		}
	}
	return -1
}

func decodeValue(node *yaml.Node) (any, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			return nil, nil
		}
		return node.Value, nil
	case yaml.MappingNode:
		t := NewTree()
		for i := 0; i+1 < len(node.Content); i += 2 {
			v, err := decodeValue(node.Content[i+1])
			if err != nil {
				return nil, err
			}
			t.Set(node.Content[i].Value, v)
		}
		return t, nil
	case yaml.SequenceNode:
		// Lists behave like integer-keyed mappings.
		t := NewTree()
		for i, child := range node.Content {
			v, err := decodeValue(child)
			if err != nil {
				return nil, err
			}
			t.Set(fmt.Sprint(i), v)
		}
		return t, nil
	case yaml.AliasNode:
		return decodeValue(node.Alias)
	default:
		return nil, fmt.Errorf("line %d: unsupported value", node.Line)
	}
}
