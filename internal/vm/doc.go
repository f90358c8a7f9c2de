/*
Package vm is the handle-based boundary between Go host code and an embedded
goja JavaScript engine.

# Overview

Every engine value the host can see is reached through a *Handle. A Handle is
one entry in its Context's heap table: it stays valid until it is disposed or
until the Context itself is disposed. Handles are not copied implicitly;
Handle.Dup adds a second reference to the same engine value.

	ctx, err := vm.New(vm.DefaultConfig())
	if err != nil {
		return err
	}
	defer ctx.Dispose()

	res := ctx.EvalCode(`["a", "b"].join(" ")`)
	h, err := ctx.UnwrapResult(res)
	if err != nil {
		res.Dispose()
		return err
	}
	defer h.Dispose()

	fmt.Println(ctx.GetString(h)) // a b

# Ownership

Operations that create a handle return an owned handle; the caller disposes it
exactly once. The sentinels returned by Undefined, Null, True, False and Global
belong to the Context and are never disposed by the holder (Dispose on them is
a no-op).

Inside a HostFunction the this/args handles are borrowed and released by the
bridge once the function returns. The returned handle is consumed by the bridge.

# Failures

Script-level failures (syntax errors, thrown exceptions) never panic: EvalCode
and CallFunction report them as CallResult.Error. UnwrapResult is the single
place that turns such a result into a Go error (*ScriptError).

Violations of the handle discipline (use after dispose, double dispose, foreign
handles, reading a handle as the wrong primitive type) panic with *UsageError.

# Concurrency

A Context is not safe for concurrent use. The only exception is the interrupt
armed by EvalCodeContext, which goja delivers from another goroutine.
*/
package vm
