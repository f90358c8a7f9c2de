package vm

import (
	"fmt"

	"github.com/dop251/goja"
)

// Handle is a host-side reference to a value living in a Context heap.
// Handles are compared by identity; use Dup for a second reference.
type Handle struct {
	ctx    *Context
	id     uint32
	gen    uint32
	static goja.Value
}

// Context returns the context the handle is rooted in.
func (h *Handle) Context() *Context {
	return h.ctx
}

// Static reports whether h is one of the context-owned sentinels.
func (h *Handle) Static() bool {
	return h.static != nil
}

// Alive reports whether h can still be used.
func (h *Handle) Alive() bool {
	if h == nil || h.ctx == nil || h.ctx.disposed {
		return false
	}
	if h.static != nil {
		return true
	}
	_, ok := h.ctx.heap.get(h.id, h.gen)
	return ok
}

// Dispose releases this reference. Disposing twice panics with ErrHandleDisposed;
// disposing a sentinel does nothing.
func (h *Handle) Dispose() {
	if h == nil {
		misuse("Dispose", ErrNilHandle)
	}
	h.ctx.checkAlive("Dispose")
	if h.static != nil {
		return
	}
	if !h.ctx.heap.release(h.id, h.gen) {
		misuse("Dispose", ErrHandleDisposed)
	}
}

// Dup returns a new owned handle to the same engine value.
func (h *Handle) Dup() *Handle {
	if h == nil {
		misuse("Dup", ErrNilHandle)
	}
	return h.ctx.newHandle(h.ctx.value("Dup", h))
}

func (h *Handle) String() string {
	if h == nil {
		return "Handle(nil)"
	}
	if h.static != nil {
		return "Handle(static)"
	}
	return fmt.Sprintf("Handle(%d#%d)", h.id, h.gen)
}
