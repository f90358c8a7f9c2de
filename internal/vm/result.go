package vm

import "github.com/dop251/goja"

// CallResult is the outcome of EvalCode or CallFunction: exactly one of
// Value and Error is set, and the caller owns it.
type CallResult struct {
	Value *Handle
	Error *Handle
}

// Failed reports whether the call threw.
func (r CallResult) Failed() bool {
	return r.Error != nil
}

// Dispose releases whichever handle the result carries.
func (r CallResult) Dispose() {
	if r.Value != nil {
		r.Value.Dispose()
	}
	if r.Error != nil {
		r.Error.Dispose()
	}
}

func (c *Context) success(v goja.Value) CallResult {
	return CallResult{Value: c.newHandle(v)}
}

func (c *Context) failure(v goja.Value) CallResult {
	return CallResult{Error: c.newHandle(v)}
}

// UnwrapResult returns the success handle of r unchanged, or a *ScriptError
// built from the dumped exception. The error handle stays owned by the
// caller. A result carrying both or neither handle panics with
// ErrMalformedResult.
func (c *Context) UnwrapResult(r CallResult) (*Handle, error) {
	c.checkAlive("UnwrapResult")
	switch {
	case r.Value != nil && r.Error == nil:
		c.value("UnwrapResult", r.Value)
		return r.Value, nil
	case r.Error != nil && r.Value == nil:
		return nil, c.scriptError(c.value("UnwrapResult", r.Error))
	}
	misuse("UnwrapResult", ErrMalformedResult)
	return nil, nil
}

// MustUnwrap is UnwrapResult that panics with the *ScriptError. The error
// handle is released first.
func (c *Context) MustUnwrap(r CallResult) *Handle {
	h, err := c.UnwrapResult(r)
	if err != nil {
		r.Error.Dispose()
		panic(err)
	}
	return h
}
