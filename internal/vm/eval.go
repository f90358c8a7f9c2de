package vm

import (
	"context"
)

// EvalCode runs source as a global script. Top-level var and function
// declarations land on the global object. The completion value of the script
// is the result value.
func (c *Context) EvalCode(source string) CallResult {
	c.checkAlive("EvalCode")
	v, err := c.rt.RunScript(c.config.Filename, source)
	if err != nil {
		return c.failure(c.exceptionValue(err))
	}
	return c.success(v)
}

// EvalCodeContext is EvalCode bounded by ctx. When ctx ends first the script
// is interrupted and the result carries an InternalError with the message
// "interrupted".
func (c *Context) EvalCodeContext(ctx context.Context, source string) CallResult {
	c.checkAlive("EvalCodeContext")
	return c.bounded(ctx, func() CallResult {
		return c.EvalCode(source)
	})
}

// CallFunctionContext is CallFunction bounded by ctx.
func (c *Context) CallFunctionContext(ctx context.Context, fn, this *Handle, args ...*Handle) CallResult {
	c.checkAlive("CallFunctionContext")
	return c.bounded(ctx, func() CallResult {
		return c.CallFunction(fn, this, args...)
	})
}

// DumpContext is Dump bounded by ctx. Getters, proxy traps and toJSON
// methods still running when ctx ends fail with an InternalError
// "interrupted" *ScriptError.
func (c *Context) DumpContext(ctx context.Context, h *Handle) (out any, err error) {
	v := c.value("DumpContext", h)
	if ctx.Err() != nil {
		return nil, interruptedError()
	}
	c.interruptible(ctx, func() {
		out, err = c.dumpValue(v)
	})
	return out, err
}

// UnwrapResultContext is UnwrapResult with the exception dump bounded by ctx.
func (c *Context) UnwrapResultContext(ctx context.Context, r CallResult) (h *Handle, err error) {
	c.checkAlive("UnwrapResultContext")
	if r.Value != nil || r.Error == nil {
		return c.UnwrapResult(r)
	}
	if ctx.Err() != nil {
		c.value("UnwrapResultContext", r.Error)
		return nil, interruptedError()
	}
	c.interruptible(ctx, func() {
		h, err = c.UnwrapResult(r)
	})
	return h, err
}

func (c *Context) bounded(ctx context.Context, run func() CallResult) CallResult {
	if ctx.Err() != nil {
		return c.failure(c.newError("InternalError", "interrupted"))
	}

	var res CallResult
	c.interruptible(ctx, func() {
		res = run()
	})
	return res
}

// interruptible runs fn with the engine interrupted once ctx ends. The
// interrupt flag is cleared before it returns.
func (c *Context) interruptible(ctx context.Context, fn func()) {
	rt := c.rt
	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		select {
		case <-ctx.Done():
			rt.Interrupt(ctx.Err())
		case <-done:
		}
	}()
	defer func() {
		close(done)
		<-stopped
		rt.ClearInterrupt()
	}()

	fn()
}
