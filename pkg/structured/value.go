// Package structured provides the canonical in-memory representation of
// decoded API responses: a closed recursive variant over null, bool, number,
// string, ordered list, and ordered map. Every consumer switches on Kind
// instead of reflecting over interface{} values.
package structured

import (
	"fmt"
	"sort"
)

// Kind identifies which variant a Value holds.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindList
	KindMap
)

// String returns the lowercase kind name.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Value is one node of a structured tree. The zero value is null.
//
// Maps preserve insertion order and hold unique keys; Set on an existing key
// replaces the value in place without reordering.
type Value struct {
	kind   Kind
	b      bool
	num    float64
	str    string
	list   []Value
	keys   []string
	fields map[string]Value
}

// Entry is a single key/value pair used to build map values.
type Entry struct {
	Key   string
	Value Value
}

// Null returns the null value.
func Null() Value {
	return Value{kind: KindNull}
}

// Bool returns a boolean value.
func Bool(b bool) Value {
	return Value{kind: KindBool, b: b}
}

// Number returns a numeric value. All numbers are float64, matching JSON.
func Number(n float64) Value {
	return Value{kind: KindNumber, num: n}
}

// Int returns a numeric value from an integer.
func Int(n int) Value {
	return Number(float64(n))
}

// String returns a string value.
func String(s string) Value {
	return Value{kind: KindString, str: s}
}

// List returns a list value holding the given items.
func List(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{kind: KindList, list: items}
}

// Map returns a map value holding the given entries in order. A repeated key
// replaces the earlier entry, keeping the original position.
func Map(entries ...Entry) Value {
	v := Value{kind: KindMap, keys: []string{}, fields: map[string]Value{}}
	for _, e := range entries {
		v.Set(e.Key, e.Value)
	}
	return v
}

// Kind returns the variant held by the value.
func (v Value) Kind() Kind {
	return v.kind
}

// IsNull reports whether the value is null.
func (v Value) IsNull() bool {
	return v.kind == KindNull
}

// BoolVal returns the boolean payload, or false if the value is not a bool.
func (v Value) BoolVal() bool {
	return v.b
}

// NumberVal returns the numeric payload, or 0 if the value is not a number.
func (v Value) NumberVal() float64 {
	return v.num
}

// StringVal returns the string payload, or "" if the value is not a string.
func (v Value) StringVal() string {
	return v.str
}

// Len returns the number of items in a list or entries in a map, 0 otherwise.
func (v Value) Len() int {
	switch v.kind {
	case KindList:
		return len(v.list)
	case KindMap:
		return len(v.keys)
	default:
		return 0
	}
}

// Items returns the elements of a list value. The returned slice must not be
// mutated. Returns nil for non-lists.
func (v Value) Items() []Value {
	if v.kind != KindList {
		return nil
	}
	return v.list
}

// Keys returns the map keys in insertion order. Returns nil for non-maps.
func (v Value) Keys() []string {
	if v.kind != KindMap {
		return nil
	}
	return v.keys
}

// Get returns the value for key and whether it exists. Returns false for
// non-maps.
func (v Value) Get(key string) (Value, bool) {
	if v.kind != KindMap {
		return Null(), false
	}
	val, ok := v.fields[key]
	return val, ok
}

// Set inserts or replaces a key in a map value. It panics if the value is not
// a map, the same way indexing a non-map panics: callers hold the kind
// invariant.
func (v *Value) Set(key string, val Value) {
	if v.kind != KindMap {
		panic(fmt.Sprintf("structured: Set on %s value", v.kind))
	}
	if v.fields == nil {
		v.fields = map[string]Value{}
	}
	if _, exists := v.fields[key]; !exists {
		v.keys = append(v.keys, key)
	}
	v.fields[key] = val
}

// Append adds an item to a list value. It panics if the value is not a list.
func (v *Value) Append(item Value) {
	if v.kind != KindList {
		panic(fmt.Sprintf("structured: Append on %s value", v.kind))
	}
	v.list = append(v.list, item)
}

// Equal reports deep equality. Map comparison is key-order-insensitive: two
// maps with the same key set and equal values compare equal regardless of
// insertion order.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == o.b
	case KindNumber:
		return v.num == o.num
	case KindString:
		return v.str == o.str
	case KindList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(v.keys) != len(o.keys) {
			return false
		}
		for k, val := range v.fields {
			other, ok := o.fields[k]
			if !ok || !val.Equal(other) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// FromGo converts a plain Go value (the shapes produced by encoding/json and
// accepted by mapstructure) into a Value. Map keys are sorted to keep the
// result deterministic, since Go map iteration order is random.
func FromGo(in interface{}) (Value, error) {
	switch t := in.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case float64:
		return Number(t), nil
	case float32:
		return Number(float64(t)), nil
	case int:
		return Number(float64(t)), nil
	case int32:
		return Number(float64(t)), nil
	case int64:
		return Number(float64(t)), nil
	case uint:
		return Number(float64(t)), nil
	case string:
		return String(t), nil
	case Value:
		return t, nil
	case []interface{}:
		items := make([]Value, 0, len(t))
		for _, item := range t {
			v, err := FromGo(item)
			if err != nil {
				return Null(), err
			}
			items = append(items, v)
		}
		return List(items...), nil
	case map[string]interface{}:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		m := Map()
		for _, k := range keys {
			v, err := FromGo(t[k])
			if err != nil {
				return Null(), err
			}
			m.Set(k, v)
		}
		return m, nil
	default:
		return Null(), fmt.Errorf("structured: unsupported Go type %T", in)
	}
}

// AsGo converts the value back to plain Go types: nil, bool, float64, string,
// []interface{}, and map[string]interface{}. Map key order is lost.
func (v Value) AsGo() interface{} {
	switch v.kind {
	case KindNull:
		return nil
	case KindBool:
		return v.b
	case KindNumber:
		return v.num
	case KindString:
		return v.str
	case KindList:
		out := make([]interface{}, len(v.list))
		for i, item := range v.list {
			out[i] = item.AsGo()
		}
		return out
	case KindMap:
		out := make(map[string]interface{}, len(v.keys))
		for _, k := range v.keys {
			out[k] = v.fields[k].AsGo()
		}
		return out
	default:
		return nil
	}
}
