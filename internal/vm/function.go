package vm

import (
	"errors"
	"fmt"

	"github.com/dop251/goja"
	"go.uber.org/zap"
)

// HostFunction is Go code callable from scripts.
//
// this and args are borrowed: the bridge releases them once the function
// returns, so keep a Dup of anything needed later. The returned handle is
// consumed by the bridge; nil means undefined. A returned error is thrown into
// the script as an Error carrying err.Error() as its message, or as the value
// given to Throw.
type HostFunction func(this *Handle, args ...*Handle) (*Handle, error)

// NewFunction wraps fn as a callable engine function with the given name.
func (c *Context) NewFunction(name string, fn HostFunction) *Handle {
	c.checkAlive("NewFunction")

	native := func(call goja.FunctionCall) goja.Value {
		return c.invokeHost(name, fn, call)
	}
	f := c.rt.ToValue(native).(*goja.Object)
	_ = f.DefineDataProperty("name", c.rt.ToValue(name), goja.FLAG_FALSE, goja.FLAG_TRUE, goja.FLAG_FALSE)
	return c.newHandle(f)
}

func (c *Context) invokeHost(name string, fn HostFunction, call goja.FunctionCall) goja.Value {
	this := c.newHandle(call.This)
	args := make([]*Handle, len(call.Arguments))
	for i, a := range call.Arguments {
		args[i] = c.newHandle(a)
	}
	defer func() {
		if this.Alive() {
			this.Dispose()
		}
		for _, a := range args {
			if a.Alive() {
				a.Dispose()
			}
		}
	}()

	ret, err := runHost(fn, this, args)
	if err != nil {
		c.logger.Debug("Host function failed", zap.String("function", name), zap.Error(err))
		panic(c.hostException(err, this, args))
	}
	if ret == nil {
		return goja.Undefined()
	}
	v := c.value(name, ret)
	consume(ret, this, args)
	return v
}

// runHost calls fn, turning Go panics into errors. Usage errors and engine
// throws keep unwinding.
func runHost(fn HostFunction, this *Handle, args []*Handle) (ret *Handle, err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		switch x := r.(type) {
		case *UsageError, goja.Value, *goja.Exception, *goja.InterruptedError:
			panic(x)
		case error:
			ret, err = nil, x
		default:
			ret, err = nil, fmt.Errorf("%v", x)
		}
	}()
	return fn(this, args...)
}

func (c *Context) hostException(err error, this *Handle, args []*Handle) goja.Value {
	var thrown *thrownError
	if errors.As(err, &thrown) {
		v := c.value("Throw", thrown.handle)
		consume(thrown.handle, this, args)
		return v
	}
	var se *ScriptError
	if errors.As(err, &se) && se.Name != "" {
		return c.newError(se.Name, se.Message)
	}
	return c.newError("Error", err.Error())
}

// consume disposes a handle handed back to the bridge unless it is a sentinel
// or one of the borrowed call handles.
func consume(h *Handle, this *Handle, args []*Handle) {
	if h.static != nil || h == this {
		return
	}
	for _, a := range args {
		if h == a {
			return
		}
	}
	if h.Alive() {
		h.Dispose()
	}
}

// CallFunction calls fn with the given receiver and arguments. A nil this is
// undefined. Exceptions, including calling a non-function, are reported in
// the Error field of the result.
func (c *Context) CallFunction(fn, this *Handle, args ...*Handle) CallResult {
	fv := c.value("CallFunction", fn)
	tv := goja.Undefined()
	if this != nil {
		tv = c.value("CallFunction", this)
	}
	argv := make([]goja.Value, len(args))
	for i, a := range args {
		argv[i] = c.value("CallFunction", a)
	}

	callable, ok := goja.AssertFunction(fv)
	if !ok {
		return c.failure(c.newError("TypeError", c.typeOf(fv)+" is not a function"))
	}
	res, err := callable(tv, argv...)
	if err != nil {
		return c.failure(c.exceptionValue(err))
	}
	return c.success(res)
}
