package vm

import (
	"errors"
	"math/big"
	"reflect"
	"strconv"

	"github.com/dop251/goja"
)

var bigIntType = reflect.TypeOf((*big.Int)(nil))

// Dump converts the value held by h into a Go value:
//
//	undefined           Undefined
//	null                nil
//	boolean             bool
//	number              float64
//	string              string
//	array               []any
//	object              *OrderedMap
//
// Objects follow JSON conventions: toJSON is honored, members that are
// undefined, functions or symbols are skipped (nil inside arrays), and only
// own enumerable string keys are read. Error objects additionally keep their
// name, message and stack. A function or symbol at the top level dumps as
// Undefined.
//
// Boxed primitives dump as the value they wrap. BigInts dump as decimal
// strings.
//
// Cycles fail with ErrCyclicValue, nesting beyond Config.MaxDumpDepth with
// ErrDumpTooDeep, and visiting more than Config.MaxDumpElements array
// elements and object members with ErrDumpTooLarge. An exception thrown by a
// getter or toJSON is returned as *ScriptError. Dump does not bound the time
// getters run; use DumpContext for values produced by untrusted scripts.
func (c *Context) Dump(h *Handle) (any, error) {
	return c.dumpValue(c.value("Dump", h))
}

type dumper struct {
	c      *Context
	path   map[*goja.Object]struct{}
	limit  int
	budget int64 // elements and members left to visit
}

func (c *Context) dumpValue(v goja.Value) (out any, err error) {
	d := &dumper{
		c:      c,
		path:   make(map[*goja.Object]struct{}),
		limit:  c.config.MaxDumpDepth,
		budget: int64(c.config.MaxDumpElements),
	}

	defer func() {
		if r := recover(); r != nil {
			switch x := r.(type) {
			case *ScriptError:
				out, err = nil, x
			case *goja.InterruptedError:
				out, err = nil, interruptedError()
			default:
				panic(r)
			}
		}
	}()

	// Try unwinds the engine stack when a getter throws or is interrupted.
	// The thrown value is described rather than dumped so it cannot throw
	// again.
	if ex := c.rt.Try(func() {
		out, err = d.value(v, 0)
	}); ex != nil {
		return nil, newScriptError(c.describe(ex.Value()))
	}
	return out, err
}

func (d *dumper) value(v goja.Value, depth int) (any, error) {
	if v == nil || goja.IsUndefined(v) {
		return Undefined, nil
	}
	if goja.IsNull(v) {
		return nil, nil
	}

	switch d.c.typeOf(v) {
	case "boolean":
		return v.ToBoolean(), nil
	case "number":
		return v.ToFloat(), nil
	case "string":
		return v.String(), nil
	case "bigint":
		return v.String(), nil
	case "object":
		if obj, ok := v.(*goja.Object); ok {
			return d.object(obj, depth)
		}
		return nil, nil
	default:
		return Undefined, nil
	}
}

// skip reports members JSON leaves out.
func (d *dumper) skip(v goja.Value) bool {
	if v == nil || goja.IsUndefined(v) {
		return true
	}
	switch d.c.typeOf(v) {
	case "function", "symbol":
		return true
	}
	return false
}

func (d *dumper) object(obj *goja.Object, depth int) (any, error) {
	if depth >= d.limit {
		return nil, ErrDumpTooDeep
	}
	if _, seen := d.path[obj]; seen {
		return nil, ErrCyclicValue
	}

	if toJSON, ok := goja.AssertFunction(obj.Get("toJSON")); ok {
		res, err := toJSON(obj, d.c.rt.ToValue(""))
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			return nil, interruptedError()
		}
		if err != nil {
			return nil, d.c.scriptError(d.c.exceptionValue(err))
		}
		return d.value(res, depth+1)
	}

	switch obj.ClassName() {
	case "Number":
		return obj.ToFloat(), nil
	case "String":
		return obj.String(), nil
	case "Boolean":
		if b, ok := obj.Export().(bool); ok {
			return b, nil
		}
	}
	if obj.ExportType() == bigIntType {
		return obj.Export().(*big.Int).String(), nil
	}

	d.path[obj] = struct{}{}
	defer delete(d.path, obj)

	if obj.ClassName() == "Array" {
		return d.array(obj, depth)
	}

	keys := obj.Keys()
	if err := d.spend(int64(len(keys))); err != nil {
		return nil, err
	}

	m := NewOrderedMap()
	for _, k := range keys {
		pv := obj.Get(k)
		if d.skip(pv) {
			continue
		}
		dv, err := d.value(pv, depth+1)
		if err != nil {
			return nil, err
		}
		m.Set(k, dv)
	}

	if obj.ClassName() == "Error" {
		for _, k := range []string{"name", "message", "stack"} {
			if _, ok := m.Get(k); ok {
				continue
			}
			pv := obj.Get(k)
			if d.skip(pv) {
				continue
			}
			dv, err := d.value(pv, depth+1)
			if err != nil {
				return nil, err
			}
			m.Set(k, dv)
		}
	}
	return m, nil
}

func (d *dumper) array(obj *goja.Object, depth int) (any, error) {
	n := obj.Get("length").ToInteger()
	if err := d.spend(n); err != nil {
		return nil, err
	}
	out := make([]any, 0, min(n, 1024))
	for i := int64(0); i < n; i++ {
		ev := obj.Get(strconv.FormatInt(i, 10))
		if d.skip(ev) {
			out = append(out, nil)
			continue
		}
		dv, err := d.value(ev, depth+1)
		if err != nil {
			return nil, err
		}
		out = append(out, dv)
	}
	return out, nil
}

func (d *dumper) spend(n int64) error {
	if n > d.budget {
		return ErrDumpTooLarge
	}
	d.budget -= n
	return nil
}
