// Package jsonvalue represents untyped JSON as a tagged union so that walking nested
// documents is an exhaustive switch over Kind instead of ad hoc type assertions.
// Objects keep the key order they were decoded or built with.
package jsonvalue

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strconv"

	"github.com/tidwall/gjson"
)

// Kind tags the variant held by a Value.
type Kind int

const (
	// Undefined is the zero Kind: no value was captured at all.
	Undefined Kind = iota
	Null
	Bool
	Number
	String
	Array
	Object
)

func (k Kind) String() string {
	switch k {
	case Undefined:
		return "undefined"
	case Null:
		return "null"
	case Bool:
		return "bool"
	case Number:
		return "number"
	case String:
		return "string"
	case Array:
		return "array"
	case Object:
		return "object"
	default:
		return "unknown"
	}
}

// Value is one JSON value. The zero Value is Undefined.
type Value struct {
	kind Kind
	b    bool
	n    float64
	s    string
	arr  []Value
	obj  *Map
}

// Map is an insertion-ordered JSON object.
type Map struct {
	keys   []string
	fields map[string]Value
}

// NewMap returns an empty object.
func NewMap() *Map {
	return &Map{fields: make(map[string]Value)}
}

// Len returns the number of keys.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Keys returns a copy of the keys in order.
func (m *Map) Keys() []string {
	if m == nil {
		return nil
	}
	return append([]string(nil), m.keys...)
}

// Get returns the value stored under key.
func (m *Map) Get(key string) (Value, bool) {
	if m == nil {
		return Value{}, false
	}
	v, ok := m.fields[key]
	return v, ok
}

// Set stores v under key. An existing key keeps its position.
func (m *Map) Set(key string, v Value) {
	if _, ok := m.fields[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.fields[key] = v
}

// Delete removes key and reports whether it was present.
func (m *Map) Delete(key string) bool {
	if _, ok := m.fields[key]; !ok {
		return false
	}
	delete(m.fields, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i:i], m.keys[i+1:]...)
			break
		}
	}
	return true
}

// Range calls fn for every entry in order until fn returns false.
func (m *Map) Range(fn func(key string, v Value) bool) {
	if m == nil {
		return
	}
	for _, k := range m.keys {
		if !fn(k, m.fields[k]) {
			return
		}
	}
}

// Constructors.

func UndefinedValue() Value { return Value{} }
func NullValue() Value { return Value{kind: Null} }
func BoolValue(b bool) Value { return Value{kind: Bool, b: b} }
func NumberValue(n float64) Value { return Value{kind: Number, n: n} }
func StringValue(s string) Value { return Value{kind: String, s: s} }
func ArrayValue(items ...Value) Value { return Value{kind: Array, arr: items} }

// ObjectValue wraps m. A nil map yields an empty object.
func ObjectValue(m *Map) Value {
	if m == nil {
		m = NewMap()
	}
	return Value{kind: Object, obj: m}
}

// EmptyObject returns a fresh empty object value.
func EmptyObject() Value {
	return ObjectValue(NewMap())
}

func (v Value) Kind() Kind { return v.kind }
func (v Value) IsObject() bool { return v.kind == Object }
func (v Value) IsNull() bool { return v.kind == Null }
func (v Value) IsDefined() bool { return v.kind != Undefined }
func (v Value) Bool() bool { return v.b }
func (v Value) Number() float64 { return v.n }
func (v Value) Str() string { return v.s }
func (v Value) Items() []Value { return v.arr }

// Exists is true iff the value is neither null nor undefined.
func (v Value) Exists() bool {
	return v.kind != Undefined && v.kind != Null
}

// Map returns the object payload, or nil when v is not an object.
func (v Value) Map() *Map {
	if v.kind != Object {
		return nil
	}
	return v.obj
}

// Get looks up key when v is an object.
func (v Value) Get(key string) (Value, bool) {
	if v.kind != Object {
		return Value{}, false
	}
	return v.obj.Get(key)
}

// Clone returns a deep copy so the result can be mutated independently.
func (v Value) Clone() Value {
	switch v.kind {
	case Array:
		items := make([]Value, len(v.arr))
		for i, item := range v.arr {
			items[i] = item.Clone()
		}
		return ArrayValue(items...)
	case Object:
		m := NewMap()
		v.obj.Range(func(k string, child Value) bool {
			m.Set(k, child.Clone())
			return true
		})
		return ObjectValue(m)
	default:
		return v
	}
}

// Interface converts v into plain Go values: map[string]interface{}, []interface{},
// float64, string, bool or nil. Undefined converts to nil as well.
func (v Value) Interface() interface{} {
	switch v.kind {
	case Bool:
		return v.b
	case Number:
		return v.n
	case String:
		return v.s
	case Array:
		out := make([]interface{}, len(v.arr))
		for i, item := range v.arr {
			out[i] = item.Interface()
		}
		return out
	case Object:
		out := make(map[string]interface{}, v.obj.Len())
		v.obj.Range(func(k string, child Value) bool {
			out[k] = child.Interface()
			return true
		})
		return out
	default:
		return nil
	}
}

// MarshalJSON writes objects in key order. Undefined encodes as null.
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v Value) encode(buf *bytes.Buffer) error {
	switch v.kind {
	case Undefined, Null:
		buf.WriteString("null")
	case Bool:
		buf.WriteString(strconv.FormatBool(v.b))
	case Number, String:
		var scalar interface{} = v.n
		if v.kind == String {
			scalar = v.s
		}
		raw, err := json.Marshal(scalar)
		if err != nil {
			return err
		}
		buf.Write(raw)
	case Array:
		buf.WriteByte('[')
		for i, item := range v.arr {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := item.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case Object:
		buf.WriteByte('{')
		var err error
		first := true
		v.obj.Range(func(k string, child Value) bool {
			if !first {
				buf.WriteByte(',')
			}
			first = false
			key, _ := json.Marshal(k)
			buf.Write(key)
			buf.WriteByte(':')
			err = child.encode(buf)
			return err == nil
		})
		if err != nil {
			return err
		}
		buf.WriteByte('}')
	}
	return nil
}

// UnmarshalJSON decodes data preserving object key order.
func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(data)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// Parse decodes a JSON document. Empty input yields Undefined.
func Parse(data []byte) (Value, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Value{}, nil
	}
	if !gjson.ValidBytes(data) {
		return Value{}, fmt.Errorf("invalid JSON payload (%d bytes)", len(data))
	}
	return fromResult(gjson.ParseBytes(data)), nil
}

func fromResult(r gjson.Result) Value {
	switch r.Type {
	case gjson.Null:
		return NullValue()
	case gjson.False:
		return BoolValue(false)
	case gjson.True:
		return BoolValue(true)
	case gjson.Number:
		return NumberValue(r.Num)
	case gjson.String:
		return StringValue(r.Str)
	case gjson.JSON:
		if r.IsArray() {
			items := []Value{}
			r.ForEach(func(_, item gjson.Result) bool {
				items = append(items, fromResult(item))
				return true
			})
			return ArrayValue(items...)
		}
		m := NewMap()
		r.ForEach(func(key, item gjson.Result) bool {
			m.Set(key.Str, fromResult(item))
			return true
		})
		return ObjectValue(m)
	}
	return Value{}
}

// FromInterface converts a Go value into a Value. Maps with string keys become
// objects with sorted keys; structs and other types go through encoding/json.
func FromInterface(in interface{}) (Value, error) {
	switch t := in.(type) {
	case nil:
		return NullValue(), nil
	case Value:
		return t.Clone(), nil
	case *Value:
		if t == nil {
			return NullValue(), nil
		}
		return t.Clone(), nil
	case bool:
		return BoolValue(t), nil
	case string:
		return StringValue(t), nil
	case float64:
		return NumberValue(t), nil
	case float32:
		return NumberValue(float64(t)), nil
	case int:
		return NumberValue(float64(t)), nil
	case int8:
		return NumberValue(float64(t)), nil
	case int16:
		return NumberValue(float64(t)), nil
	case int32:
		return NumberValue(float64(t)), nil
	case int64:
		return NumberValue(float64(t)), nil
	case uint:
		return NumberValue(float64(t)), nil
	case uint8:
		return NumberValue(float64(t)), nil
	case uint16:
		return NumberValue(float64(t)), nil
	case uint32:
		return NumberValue(float64(t)), nil
	case uint64:
		return NumberValue(float64(t)), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Value{}, err
		}
		return NumberValue(f), nil
	case []interface{}:
		items := make([]Value, 0, len(t))
		for _, item := range t {
			cv, err := FromInterface(item)
			if err != nil {
				return Value{}, err
			}
			items = append(items, cv)
		}
		return ArrayValue(items...), nil
	case map[string]interface{}:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		m := NewMap()
		for _, k := range keys {
			cv, err := FromInterface(t[k])
			if err != nil {
				return Value{}, err
			}
			m.Set(k, cv)
		}
		return ObjectValue(m), nil
	}

	raw, err := json.Marshal(in)
	if err != nil {
		return Value{}, fmt.Errorf("value of type %T is not JSON-serializable: %w", in, err)
	}
	return Parse(raw)
}

// MustFromInterface is FromInterface for literals known to be valid.
func MustFromInterface(in interface{}) Value {
	v, err := FromInterface(in)
	if err != nil {
		panic(err)
	}
	return v
}

// Equal reports deep equality. Object key order is ignored.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case Undefined, Null:
		return true
	case Bool:
		return a.b == b.b
	case Number:
		return a.n == b.n
	case String:
		return a.s == b.s
	case Array:
		if len(a.arr) != len(b.arr) {
			return false
		}
		for i := range a.arr {
			if !Equal(a.arr[i], b.arr[i]) {
				return false
			}
		}
		return true
	case Object:
		if a.obj.Len() != b.obj.Len() {
			return false
		}
		equal := true
		a.obj.Range(func(k string, av Value) bool {
			bv, ok := b.obj.Get(k)
			equal = ok && Equal(av, bv)
			return equal
		})
		return equal
	}
	return reflect.DeepEqual(a, b)
}
