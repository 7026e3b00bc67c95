// Package jsonvalue provides an immutable JSON value type for third-party
// API payloads whose shape is not known ahead of time.
//
// Objects keep their keys in document order so that field listings and
// series extraction follow the upstream response. A Value is never mutated
// after construction, so it can be shared between goroutines and handed out
// by copy without exposing internal state.
package jsonvalue

import (
	"math"
	"strconv"
	"strings"
)

// Kind identifies the variant held by a Value.
type Kind uint8

const (
	Null Kind = iota
	Bool
	Number
	String
	Array
	Object
)

// String returns the JavaScript-style type name of the kind.
func (k Kind) String() string {
	switch k {
	case Bool:
		return "boolean"
	case Number:
		return "number"
	case String:
		return "string"
	case Array:
		return "array"
	case Object:
		return "object"
	default:
		return "null"
	}
}

// Value is a tagged JSON value. The zero Value is JSON null.
type Value struct {
	kind  Kind
	b     bool
	n     float64
	s     string
	items []Value
	obj   *object
}

type object struct {
	keys   []string
	fields map[string]Value
}

// Field is a key/value pair used to build objects.
type Field struct {
	Key   string
	Value Value
}

// NewNull returns JSON null.
func NewNull() Value { return Value{} }

// NewBool wraps a boolean.
func NewBool(b bool) Value { return Value{kind: Bool, b: b} }

// NewNumber wraps a number. Non-finite numbers are kept as-is and encode as null.
func NewNumber(n float64) Value { return Value{kind: Number, n: n} }

// NewString wraps a string.
func NewString(s string) Value { return Value{kind: String, s: s} }

// NewArray builds an array from items.
func NewArray(items ...Value) Value {
	cp := make([]Value, len(items))
	copy(cp, items)
	return Value{kind: Array, items: cp}
}

// NewObject builds an object. A repeated key keeps its first position and
// takes the last value, like JSON.parse.
func NewObject(fields ...Field) Value {
	o := &object{fields: make(map[string]Value, len(fields))}
	for _, f := range fields {
		if _, exists := o.fields[f.Key]; !exists {
			o.keys = append(o.keys, f.Key)
		}
		o.fields[f.Key] = f.Value
	}
	return Value{kind: Object, obj: o}
}

// Kind returns the variant tag.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is JSON null.
func (v Value) IsNull() bool { return v.kind == Null }

// IsObject reports whether v is a JSON object.
func (v Value) IsObject() bool { return v.kind == Object }

// IsArray reports whether v is a JSON array.
func (v Value) IsArray() bool { return v.kind == Array }

// Bool returns the boolean and whether v is a boolean.
func (v Value) Bool() (bool, bool) { return v.b, v.kind == Bool }

// Number returns the number and whether v is a number.
func (v Value) Number() (float64, bool) { return v.n, v.kind == Number }

// Str returns the string and whether v is a string.
func (v Value) Str() (string, bool) { return v.s, v.kind == String }

// Len returns the number of array items or object fields, 0 otherwise.
func (v Value) Len() int {
	switch v.kind {
	case Array:
		return len(v.items)
	case Object:
		return len(v.obj.keys)
	}
	return 0
}

// Items returns a copy of the array items, nil if v is not an array.
func (v Value) Items() []Value {
	if v.kind != Array {
		return nil
	}
	cp := make([]Value, len(v.items))
	copy(cp, v.items)
	return cp
}

// Index returns the i-th array item.
func (v Value) Index(i int) (Value, bool) {
	if v.kind != Array || i < 0 || i >= len(v.items) {
		return Value{}, false
	}
	return v.items[i], true
}

// Keys returns the object keys in document order, nil if v is not an object.
func (v Value) Keys() []string {
	if v.kind != Object {
		return nil
	}
	cp := make([]string, len(v.obj.keys))
	copy(cp, v.obj.keys)
	return cp
}

// Fields returns the object fields in document order.
func (v Value) Fields() []Field {
	if v.kind != Object {
		return nil
	}
	out := make([]Field, 0, len(v.obj.keys))
	for _, k := range v.obj.keys {
		out = append(out, Field{Key: k, Value: v.obj.fields[k]})
	}
	return out
}

// Has reports whether the object has key.
func (v Value) Has(key string) bool {
	_, ok := v.Field(key)
	return ok
}

// Field returns the value stored under key.
func (v Value) Field(key string) (Value, bool) {
	if v.kind != Object {
		return Value{}, false
	}
	f, ok := v.obj.fields[key]
	return f, ok
}

// Get resolves a dot-separated path. Array items are addressed by their
// decimal index. Lookup stops with false at the first segment that is missing
// or whose parent is not a container.
func (v Value) Get(path string) (Value, bool) {
	if path == "" {
		return v, true
	}
	cur := v
	for _, part := range strings.Split(path, ".") {
		switch cur.kind {
		case Object:
			next, ok := cur.obj.fields[part]
			if !ok {
				return Value{}, false
			}
			cur = next
		case Array:
			i, err := strconv.Atoi(part)
			if err != nil {
				return Value{}, false
			}
			next, ok := cur.Index(i)
			if !ok {
				return Value{}, false
			}
			cur = next
		default:
			return Value{}, false
		}
	}
	return cur, true
}

// Truthy follows JavaScript truthiness: null, false, 0, NaN and "" are falsy.
func (v Value) Truthy() bool {
	switch v.kind {
	case Null:
		return false
	case Bool:
		return v.b
	case Number:
		return v.n != 0 && !math.IsNaN(v.n)
	case String:
		return v.s != ""
	}
	return true
}

// String renders scalars the way JavaScript String() does and containers as JSON.
func (v Value) String() string {
	switch v.kind {
	case Null:
		return "null"
	case Bool:
		return strconv.FormatBool(v.b)
	case Number:
		return formatNumber(v.n)
	case String:
		return v.s
	}
	b, err := v.MarshalJSON()
	if err != nil {
		return ""
	}
	return string(b)
}

// Interface converts v back to plain Go values (map[string]any loses key order).
func (v Value) Interface() any {
	switch v.kind {
	case Bool:
		return v.b
	case Number:
		return v.n
	case String:
		return v.s
	case Array:
		out := make([]any, len(v.items))
		for i, it := range v.items {
			out[i] = it.Interface()
		}
		return out
	case Object:
		out := make(map[string]any, len(v.obj.keys))
		for _, k := range v.obj.keys {
			out[k] = v.obj.fields[k].Interface()
		}
		return out
	}
	return nil
}

func formatNumber(n float64) string {
	switch {
	case math.IsNaN(n):
		return "NaN"
	case math.IsInf(n, 1):
		return "Infinity"
	case math.IsInf(n, -1):
		return "-Infinity"
	case n == 0:
		return "0"
	}
	return strconv.FormatFloat(n, 'f', -1, 64)
}
