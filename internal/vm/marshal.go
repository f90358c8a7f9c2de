package vm

import (
	"github.com/dop251/goja"
)

// PropertyDescriptor describes a property for DefineProp. A descriptor with
// Get or Set is an accessor; otherwise it is a data property holding Value
// (undefined when nil).
type PropertyDescriptor struct {
	Value        *Handle
	Get          *Handle
	Set          *Handle
	Configurable bool
	Enumerable   bool
	Writable     bool
}

func (c *Context) NewNumber(n float64) *Handle {
	c.checkAlive("NewNumber")
	return c.newHandle(c.rt.ToValue(n))
}

// NewString creates a string from UTF-8 text.
func (c *Context) NewString(s string) *Handle {
	c.checkAlive("NewString")
	return c.newHandle(c.rt.ToValue(s))
}

func (c *Context) NewBool(b bool) *Handle {
	c.checkAlive("NewBool")
	return c.newHandle(c.rt.ToValue(b))
}

// NewObject creates an empty object inheriting from Object.prototype.
func (c *Context) NewObject() *Handle {
	c.checkAlive("NewObject")
	return c.newHandle(c.rt.NewObject())
}

// NewObjectWithProto creates an empty object whose prototype is proto. A null
// proto yields an object without a prototype.
func (c *Context) NewObjectWithProto(proto *Handle) *Handle {
	pv := c.value("NewObjectWithProto", proto)
	obj := c.rt.NewObject()

	var parent *goja.Object
	if !goja.IsNull(pv) {
		p, ok := pv.(*goja.Object)
		if !ok {
			misuse("NewObjectWithProto", ErrTypeMismatch)
		}
		parent = p
	}
	if err := obj.SetPrototype(parent); err != nil {
		panic(c.scriptError(c.exceptionValue(err)))
	}
	return c.newHandle(obj)
}

// NewArray creates an array holding the given values in order.
func (c *Context) NewArray(items ...*Handle) *Handle {
	c.checkAlive("NewArray")
	vals := make([]interface{}, len(items))
	for i, h := range items {
		vals[i] = c.value("NewArray", h)
	}
	return c.newHandle(c.rt.NewArray(vals...))
}

// NewError creates an error object. Intrinsic names (Error, TypeError,
// RangeError, SyntaxError, ReferenceError) use their own constructor.
func (c *Context) NewError(name, message string) *Handle {
	c.checkAlive("NewError")
	if name == "" {
		name = "Error"
	}
	return c.newHandle(c.newError(name, message))
}

// GetNumber reads a number handle. Other types panic with ErrTypeMismatch.
func (c *Context) GetNumber(h *Handle) float64 {
	v := c.value("GetNumber", h)
	if c.typeOf(v) != "number" {
		misuse("GetNumber", ErrTypeMismatch)
	}
	return v.ToFloat()
}

// GetString reads a string handle as UTF-8. Other types panic with ErrTypeMismatch.
func (c *Context) GetString(h *Handle) string {
	v := c.value("GetString", h)
	if c.typeOf(v) != "string" {
		misuse("GetString", ErrTypeMismatch)
	}
	return v.String()
}

func (c *Context) GetBool(h *Handle) bool {
	v := c.value("GetBool", h)
	if c.typeOf(v) != "boolean" {
		misuse("GetBool", ErrTypeMismatch)
	}
	return v.ToBoolean()
}

// Typeof returns the engine's typeof classification of h.
func (c *Context) Typeof(h *Handle) string {
	return c.typeOf(c.value("Typeof", h))
}

// GetProp reads obj[key], walking the prototype chain. Missing properties
// yield undefined. A throwing getter panics with *ScriptError.
func (c *Context) GetProp(obj *Handle, key string) *Handle {
	o := c.object("GetProp", obj)
	var out goja.Value
	c.guard(func() {
		out = o.Get(key)
	})
	return c.newHandle(out)
}

// GetPropKey is GetProp with a key held in a handle (string, number or symbol).
func (c *Context) GetPropKey(obj, key *Handle) *Handle {
	o := c.object("GetPropKey", obj)
	kv := c.value("GetPropKey", key)
	var out goja.Value
	c.guard(func() {
		if sym, ok := kv.(*goja.Symbol); ok {
			out = o.GetSymbol(sym)
			return
		}
		out = o.Get(kv.String())
	})
	return c.newHandle(out)
}

// SetProp assigns obj[key] = val with ordinary assignment semantics: an
// inherited property is shadowed on obj, setters run.
func (c *Context) SetProp(obj *Handle, key string, val *Handle) {
	o := c.object("SetProp", obj)
	v := c.value("SetProp", val)
	var err error
	c.guard(func() {
		err = o.Set(key, v)
	})
	if err != nil {
		panic(c.scriptError(c.exceptionValue(err)))
	}
}

// SetPropKey is SetProp with a key held in a handle.
func (c *Context) SetPropKey(obj, key, val *Handle) {
	o := c.object("SetPropKey", obj)
	kv := c.value("SetPropKey", key)
	v := c.value("SetPropKey", val)
	var err error
	c.guard(func() {
		if sym, ok := kv.(*goja.Symbol); ok {
			err = o.SetSymbol(sym, v)
			return
		}
		err = o.Set(kv.String(), v)
	})
	if err != nil {
		panic(c.scriptError(c.exceptionValue(err)))
	}
}

// DefineProp defines an own property on obj from desc.
func (c *Context) DefineProp(obj *Handle, key string, desc PropertyDescriptor) {
	o := c.object("DefineProp", obj)

	var err error
	if desc.Get != nil || desc.Set != nil {
		var getter, setter goja.Value
		if desc.Get != nil {
			getter = c.value("DefineProp", desc.Get)
		}
		if desc.Set != nil {
			setter = c.value("DefineProp", desc.Set)
		}
		err = o.DefineAccessorProperty(key, getter, setter, flag(desc.Configurable), flag(desc.Enumerable))
	} else {
		value := goja.Undefined()
		if desc.Value != nil {
			value = c.value("DefineProp", desc.Value)
		}
		err = o.DefineDataProperty(key, value, flag(desc.Writable), flag(desc.Configurable), flag(desc.Enumerable))
	}
	if err != nil {
		panic(c.scriptError(c.exceptionValue(err)))
	}
}

// object resolves obj as a property receiver. Primitives other than null and
// undefined are boxed.
func (c *Context) object(op string, obj *Handle) *goja.Object {
	v := c.value(op, obj)
	if goja.IsUndefined(v) || goja.IsNull(v) {
		misuse(op, ErrNotObject)
	}
	if o, ok := v.(*goja.Object); ok {
		return o
	}
	return v.ToObject(c.rt)
}

func flag(b bool) goja.Flag {
	if b {
		return goja.FLAG_TRUE
	}
	return goja.FLAG_FALSE
}
