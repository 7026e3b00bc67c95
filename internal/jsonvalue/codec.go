package jsonvalue

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"reflect"
	"sort"
	"strconv"
)

// MaxDepth is the deepest array/object nesting Parse accepts. It matches
// the nesting limit of encoding/json.
const MaxDepth = 10000

// ErrTooDeep is returned by Parse for documents nested beyond MaxDepth.
var ErrTooDeep = errors.New("exceeded max nesting depth")

// errLimitReached stops a bounded encode once enough output exists.
var errLimitReached = errors.New("output limit reached")

// Parse decodes a single JSON document, keeping object key order.
func Parse(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	v, err := decodeValue(dec, 0)
	if err != nil {
		return Value{}, fmt.Errorf("failed to parse JSON: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return Value{}, fmt.Errorf("failed to parse JSON: unexpected data after top-level value")
	}
	return v, nil
}

// Decode reads a single JSON document from r.
func Decode(r io.Reader) (Value, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Value{}, fmt.Errorf("failed to read JSON: %w", err)
	}
	return Parse(data)
}

func decodeValue(dec *json.Decoder, depth int) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, err
	}

	switch t := tok.(type) {
	case nil:
		return Value{}, nil
	case bool:
		return NewBool(t), nil
	case string:
		return NewString(t), nil
	case json.Number:
		n, err := strconv.ParseFloat(string(t), 64)
		if err != nil && !errors.Is(err, strconv.ErrRange) {
			return Value{}, err
		}
		return NewNumber(n), nil
	case json.Delim:
		if depth >= MaxDepth {
			return Value{}, ErrTooDeep
		}
		switch t {
		case '[':
			items := []Value{}
			for dec.More() {
				item, err := decodeValue(dec, depth+1)
				if err != nil {
					return Value{}, err
				}
				items = append(items, item)
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			return Value{kind: Array, items: items}, nil
		case '{':
			var fields []Field
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return Value{}, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return Value{}, fmt.Errorf("object key is %T, not string", keyTok)
				}
				val, err := decodeValue(dec, depth+1)
				if err != nil {
					return Value{}, err
				}
				fields = append(fields, Field{Key: key, Value: val})
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			return NewObject(fields...), nil
		}
	}
	return Value{}, fmt.Errorf("unexpected token %v", tok)
}

// MarshalJSON implements json.Marshaler. Non-finite numbers encode as null.
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.encode(&buf, 0); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Preview returns at most maxRunes runes of v's JSON encoding. Encoding
// stops once enough output exists, so the cost does not grow with v.
func (v Value) Preview(maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}
	var s string
	switch v.kind {
	case Object, Array:
		var buf bytes.Buffer
		// A rune is at most 4 bytes.
		if err := v.encode(&buf, 4*maxRunes); err != nil && !errors.Is(err, errLimitReached) {
			return ""
		}
		s = buf.String()
	default:
		s = v.String()
	}

	n := 0
	for i := range s {
		if n == maxRunes {
			return s[:i]
		}
		n++
	}
	return s
}

// encode writes v to buf. A positive limit ends encoding with errLimitReached
// once buf holds at least limit bytes.
func (v Value) encode(buf *bytes.Buffer, limit int) error {
	if limit > 0 && buf.Len() >= limit {
		return errLimitReached
	}
	switch v.kind {
	case Null:
		buf.WriteString("null")
	case Bool:
		buf.WriteString(strconv.FormatBool(v.b))
	case Number:
		if math.IsNaN(v.n) || math.IsInf(v.n, 0) {
			buf.WriteString("null")
			return nil
		}
		buf.WriteString(formatNumber(v.n))
	case String:
		b, err := json.Marshal(clip(v.s, limit))
		if err != nil {
			return err
		}
		buf.Write(b)
	case Array:
		buf.WriteByte('[')
		for i, it := range v.items {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := it.encode(buf, limit); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case Object:
		buf.WriteByte('{')
		for i, k := range v.obj.keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(clip(k, limit))
			if err != nil {
				return err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			if err := v.obj.fields[k].encode(buf, limit); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	}
	return nil
}

// clip shortens s to limit bytes when a limit is set. Escaping only grows
// the output, so the clipped tail never reaches a bounded encode's result.
func clip(s string, limit int) string {
	if limit > 0 && len(s) > limit {
		return s[:limit]
	}
	return s
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(data)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// FromAny converts decoded Go data (encoding/json, msgpack) into a Value.
// Map keys are sorted since Go maps carry no order. Unsupported types, and
// containers nested beyond MaxDepth, become null.
func FromAny(x any) Value {
	return fromAny(x, 0)
}

func fromAny(x any, depth int) Value {
	switch t := x.(type) {
	case nil:
		return Value{}
	case Value:
		return t
	case bool:
		return NewBool(t)
	case string:
		return NewString(t)
	case []byte:
		return NewString(string(t))
	case json.Number:
		n, _ := strconv.ParseFloat(string(t), 64)
		return NewNumber(n)
	case []any:
		if depth >= MaxDepth {
			return Value{}
		}
		items := make([]Value, len(t))
		for i, it := range t {
			items[i] = fromAny(it, depth+1)
		}
		return Value{kind: Array, items: items}
	case map[string]any:
		if depth >= MaxDepth {
			return Value{}
		}
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fields := make([]Field, len(keys))
		for i, k := range keys {
			fields[i] = Field{Key: k, Value: fromAny(t[k], depth+1)}
		}
		return NewObject(fields...)
	case map[any]any:
		strKeyed := make(map[string]any, len(t))
		for k, val := range t {
			strKeyed[fmt.Sprint(k)] = val
		}
		return fromAny(strKeyed, depth)
	}

	rv := reflect.ValueOf(x)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return NewNumber(float64(rv.Int()))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return NewNumber(float64(rv.Uint()))
	case reflect.Float32, reflect.Float64:
		return NewNumber(rv.Float())
	case reflect.String:
		return NewString(rv.String())
	}
	return Value{}
}
