package vm

import (
	"errors"
	"fmt"

	"github.com/dop251/goja"
	"go.uber.org/zap"
)

const (
	defaultMaxDumpDepth    = 256
	defaultMaxDumpElements = 1 << 20
	defaultFilename     = "eval.js"
)

// Config configures a Context.
type Config struct {
	Logger *zap.Logger

	// MaxCallStackSize bounds script recursion. Zero keeps the goja default.
	MaxCallStackSize int

	// MaxDumpDepth bounds nesting for Dump and FromNative.
	MaxDumpDepth int

	// MaxDumpElements bounds the array elements and object members a single
	// Dump may visit.
	MaxDumpElements int

	// Filename is the script name reported in stack traces of EvalCode.
	Filename string
}

// DefaultConfig returns the configuration used by the tests and the sandbox.
func DefaultConfig() Config {
	return Config{
		Logger:          zap.NewNop(),
		MaxDumpDepth:    defaultMaxDumpDepth,
		MaxDumpElements: defaultMaxDumpElements,
		Filename:        defaultFilename,
	}
}

// Context is one isolated engine instance together with its handle heap.
type Context struct {
	rt       *goja.Runtime
	heap     *heap
	config   Config
	logger   *zap.Logger
	disposed bool

	typeofFn goja.Callable
	ctors    map[string]*goja.Object

	undefined *Handle
	null      *Handle
	yes       *Handle
	no        *Handle
	global    *Handle
}

// intrinsic error constructors captured before any script can shadow them
var errorCtorNames = []string{"Error", "TypeError", "RangeError", "SyntaxError", "ReferenceError"}

// New creates a fresh Context.
func New(cfg Config) (*Context, error) {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.MaxDumpDepth <= 0 {
		cfg.MaxDumpDepth = defaultMaxDumpDepth
	}
	if cfg.MaxDumpElements <= 0 {
		cfg.MaxDumpElements = defaultMaxDumpElements
	}
	if cfg.Filename == "" {
		cfg.Filename = defaultFilename
	}

	rt := goja.New()
	if cfg.MaxCallStackSize > 0 {
		rt.SetMaxCallStackSize(cfg.MaxCallStackSize)
	}

	c := &Context{
		rt:     rt,
		heap:   newHeap(),
		config: cfg,
		logger: cfg.Logger,
		ctors:  make(map[string]*goja.Object, len(errorCtorNames)),
	}

	helper, err := rt.RunString(`(function (v) { return typeof v; })`)
	if err != nil {
		return nil, fmt.Errorf("failed to compile typeof helper: %w", err)
	}
	fn, ok := goja.AssertFunction(helper)
	if !ok {
		return nil, errors.New("typeof helper is not callable")
	}
	c.typeofFn = fn

	for _, name := range errorCtorNames {
		ctor, ok := rt.Get(name).(*goja.Object)
		if !ok {
			return nil, fmt.Errorf("missing intrinsic %s", name)
		}
		c.ctors[name] = ctor
	}

	c.undefined = c.staticHandle(goja.Undefined())
	c.null = c.staticHandle(goja.Null())
	c.yes = c.staticHandle(rt.ToValue(true))
	c.no = c.staticHandle(rt.ToValue(false))
	c.global = c.staticHandle(rt.GlobalObject())

	c.logger.Debug("Context created",
		zap.Int("max_call_stack", cfg.MaxCallStackSize),
		zap.Int("max_dump_depth", cfg.MaxDumpDepth),
		zap.Int("max_dump_elements", cfg.MaxDumpElements))
	return c, nil
}

// Dispose tears the context down. Every handle rooted in it becomes unusable.
// Disposing twice is a no-op.
func (c *Context) Dispose() {
	if c.disposed {
		return
	}
	if n := c.heap.live; n > 0 {
		c.logger.Warn("Context disposed with live handles", zap.Int("handles", n))
	}
	c.heap.clear()
	c.disposed = true
	c.typeofFn = nil
	c.ctors = nil
	c.rt = nil
	c.logger.Debug("Context disposed")
}

// Disposed reports whether Dispose has run.
func (c *Context) Disposed() bool {
	return c.disposed
}

// LiveHandles returns the number of owned handles not yet disposed.
func (c *Context) LiveHandles() int {
	if c.disposed {
		return 0
	}
	return c.heap.live
}

func (c *Context) Undefined() *Handle { return c.undefined }
func (c *Context) Null() *Handle      { return c.null }
func (c *Context) True() *Handle      { return c.yes }
func (c *Context) False() *Handle     { return c.no }

// Global returns the context's global object.
func (c *Context) Global() *Handle { return c.global }

func (c *Context) checkAlive(op string) {
	if c == nil || c.disposed {
		misuse(op, ErrContextDisposed)
	}
}

func (c *Context) staticHandle(v goja.Value) *Handle {
	return &Handle{ctx: c, static: v}
}

func (c *Context) newHandle(v goja.Value) *Handle {
	if v == nil {
		v = goja.Undefined()
	}
	id, gen := c.heap.insert(v)
	return &Handle{ctx: c, id: id, gen: gen}
}

// value resolves h to its engine value, enforcing the handle contract.
func (c *Context) value(op string, h *Handle) goja.Value {
	c.checkAlive(op)
	if h == nil {
		misuse(op, ErrNilHandle)
	}
	if h.ctx != c {
		misuse(op, ErrForeignHandle)
	}
	if h.static != nil {
		return h.static
	}
	v, ok := c.heap.get(h.id, h.gen)
	if !ok {
		misuse(op, ErrHandleDisposed)
	}
	return v
}

func (c *Context) typeOf(v goja.Value) string {
	if v == nil {
		return "undefined"
	}
	res, err := c.typeofFn(goja.Undefined(), v)
	if err != nil {
		// typeof never throws
		panic(err)
	}
	return res.String()
}

// newError builds an error object through the intrinsic constructors. Names
// without an intrinsic get a plain Error with an own non-enumerable name.
func (c *Context) newError(name, message string) goja.Value {
	ctor, known := c.ctors[name]
	if !known {
		ctor = c.ctors["Error"]
	}
	obj, err := c.rt.New(ctor, c.rt.ToValue(message))
	if err != nil {
		obj = c.rt.NewObject()
		_ = obj.Set("message", message)
		known = false
	}
	if !known {
		_ = obj.DefineDataProperty("name", c.rt.ToValue(name), goja.FLAG_TRUE, goja.FLAG_TRUE, goja.FLAG_FALSE)
	}
	return obj
}

// exceptionValue maps a goja run error to the engine value that was thrown.
func (c *Context) exceptionValue(err error) goja.Value {
	var ex *goja.Exception
	if errors.As(err, &ex) && ex.Value() != nil {
		return ex.Value()
	}
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		return c.newError("InternalError", "interrupted")
	}
	var syntax *goja.CompilerSyntaxError
	if errors.As(err, &syntax) {
		return c.newError("SyntaxError", syntax.Error())
	}
	return c.newError("InternalError", err.Error())
}

// scriptError dumps a thrown value into a *ScriptError, falling back to its
// string form when the value cannot be dumped.
func (c *Context) scriptError(v goja.Value) *ScriptError {
	dumped, err := c.dumpValue(v)
	if se, ok := err.(*ScriptError); ok && se.interrupted() {
		return se
	}
	if err != nil {
		return newScriptError(c.describe(v))
	}
	return newScriptError(dumped)
}

func (c *Context) describe(v goja.Value) (s string) {
	const unprintable = "[unprintable value]"
	if v == nil {
		return "undefined"
	}
	defer func() {
		if recover() != nil {
			s = unprintable
		}
	}()
	if ex := c.rt.Try(func() { s = v.String() }); ex != nil {
		return unprintable
	}
	return s
}

// guard runs fn and turns a script exception escaping from it into a
// *ScriptError panic.
func (c *Context) guard(fn func()) {
	if ex := c.rt.Try(fn); ex != nil {
		panic(c.scriptError(ex.Value()))
	}
}
