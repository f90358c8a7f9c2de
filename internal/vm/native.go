package vm

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/dop251/goja"
)

// FromNative builds an engine value from a Go value. It accepts what Dump
// produces (nil, Undefined, bool, numbers, string, slices, *OrderedMap) plus
// string-keyed maps, pointers to those, and *Handle from this context. Map
// keys are inserted in sorted order.
func (c *Context) FromNative(v any) (*Handle, error) {
	c.checkAlive("FromNative")
	gv, err := c.toValue(v, 0)
	if err != nil {
		return nil, err
	}
	return c.newHandle(gv), nil
}

func (c *Context) toValue(v any, depth int) (goja.Value, error) {
	if depth > c.config.MaxDumpDepth {
		return nil, ErrDumpTooDeep
	}

	switch x := v.(type) {
	case nil:
		return goja.Null(), nil
	case UndefinedType:
		return goja.Undefined(), nil
	case *Handle:
		return c.value("FromNative", x), nil
	case bool:
		return c.rt.ToValue(x), nil
	case string:
		return c.rt.ToValue(x), nil
	case *OrderedMap:
		obj := c.rt.NewObject()
		for _, k := range x.keys {
			ev, err := c.toValue(x.values[k], depth+1)
			if err != nil {
				return nil, err
			}
			if err := obj.Set(k, ev); err != nil {
				return nil, err
			}
		}
		return obj, nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return c.rt.ToValue(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return c.rt.ToValue(float64(rv.Uint())), nil
	case reflect.Float32, reflect.Float64:
		return c.rt.ToValue(rv.Float()), nil
	case reflect.String:
		return c.rt.ToValue(rv.String()), nil
	case reflect.Bool:
		return c.rt.ToValue(rv.Bool()), nil
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return goja.Null(), nil
		}
		items := make([]interface{}, rv.Len())
		for i := range items {
			ev, err := c.toValue(rv.Index(i).Interface(), depth+1)
			if err != nil {
				return nil, err
			}
			items[i] = ev
		}
		return c.rt.NewArray(items...), nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, rv.Type())
		}
		if rv.IsNil() {
			return goja.Null(), nil
		}
		keys := make([]string, 0, rv.Len())
		for _, k := range rv.MapKeys() {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)

		obj := c.rt.NewObject()
		for _, k := range keys {
			ev, err := c.toValue(rv.MapIndex(reflect.ValueOf(k).Convert(rv.Type().Key())).Interface(), depth+1)
			if err != nil {
				return nil, err
			}
			if err := obj.Set(k, ev); err != nil {
				return nil, err
			}
		}
		return obj, nil
	case reflect.Pointer:
		if rv.IsNil() {
			return goja.Null(), nil
		}
		return c.toValue(rv.Elem().Interface(), depth+1)
	}
	return nil, fmt.Errorf("%w: %T", ErrUnsupportedType, v)
}
