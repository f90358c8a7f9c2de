package vm

import (
	"bytes"
	"math"

	"github.com/bytedance/sonic"
)

// UndefinedType is the Go representation of the engine's undefined value.
type UndefinedType struct{}

// Undefined is what Dump returns for undefined, functions and symbols.
var Undefined UndefinedType

func (UndefinedType) String() string { return "undefined" }

func (UndefinedType) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// OrderedMap is a dumped object. Keys keep the engine's own-property order.
type OrderedMap struct {
	keys   []string
	values map[string]any
}

func NewOrderedMap() *OrderedMap {
	return &OrderedMap{values: make(map[string]any)}
}

// Set adds or replaces key. New keys are appended to the order.
func (m *OrderedMap) Set(key string, value any) {
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

func (m *OrderedMap) Get(key string) (any, bool) {
	v, ok := m.values[key]
	return v, ok
}

func (m *OrderedMap) Keys() []string {
	return append([]string(nil), m.keys...)
}

func (m *OrderedMap) Len() int {
	return len(m.keys)
}

// Map converts m to a plain map, recursively. Key order is lost.
func (m *OrderedMap) Map() map[string]any {
	out := make(map[string]any, len(m.keys))
	for _, k := range m.keys {
		out[k] = Plain(m.values[k])
	}
	return out
}

func (m *OrderedMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := sonic.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := sonic.Marshal(m.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (m *OrderedMap) stringField(key string) string {
	s, _ := m.values[key].(string)
	return s
}

// Plain replaces every *OrderedMap inside v with a map[string]any.
func Plain(v any) any {
	switch x := v.(type) {
	case *OrderedMap:
		return x.Map()
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = Plain(e)
		}
		return out
	default:
		return v
	}
}

// JSONSafe returns a copy of a dumped value that encoding/json accepts:
// non-finite numbers and Undefined become nil, as JSON.stringify prints them.
func JSONSafe(v any) any {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil
		}
		return x
	case UndefinedType:
		return nil
	case *OrderedMap:
		out := NewOrderedMap()
		for _, k := range x.keys {
			out.Set(k, JSONSafe(x.values[k]))
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = JSONSafe(e)
		}
		return out
	default:
		return v
	}
}
