package sandbox

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/jsvm/internal/hostapi"
	"github.com/GriffinCanCode/jsvm/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/jsvm/internal/vm"
)

// globals removed from every runtime
var blockedGlobals = []string{"require", "process", "module", "exports"}

// Runtime wraps a vm.Context with timeouts and host APIs.
type Runtime struct {
	mu      sync.Mutex
	vc      *vm.Context
	console *hostapi.Console
	config  Config
	logger  *zap.Logger
	metrics *monitoring.Metrics

	// context of the evaluation in progress, read by fetchText
	runCtx context.Context
}

var _ Sandbox = (*Runtime)(nil)

// New creates a new sandboxed runtime
func New(config Config) (*Runtime, error) {
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.Source == "" {
		config.Source = "sandbox"
	}

	r := &Runtime{
		config:  config,
		logger:  config.Logger.Named("sandbox"),
		metrics: config.Metrics,
		runCtx:  context.Background(),
	}
	if err := r.init(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Runtime) init() error {
	vc, err := vm.New(vm.Config{
		Logger:           r.logger,
		MaxCallStackSize: r.config.MaxCallStackSize,
		MaxDumpDepth:     r.config.MaxDumpDepth,
		MaxDumpElements:  r.config.MaxDumpElements,
		Filename:         "sandbox.js",
	})
	if err != nil {
		return fmt.Errorf("failed to create context: %w", err)
	}
	r.vc = vc
	r.setupGlobals()
	r.metrics.IncContexts()
	return nil
}

// setupGlobals configures global objects and security
func (r *Runtime) setupGlobals() {
	global := r.vc.Global()
	for _, name := range blockedGlobals {
		r.vc.SetProp(global, name, r.vc.Undefined())
	}

	if r.config.EnableConsole {
		r.console = hostapi.NewConsole(r.logger, r.metrics, r.config.ConsoleLimit)
		r.console.Install(r.vc)
	}

	if r.config.EnableHelpers {
		hostapi.InstallStats(r.vc, r.metrics)
		hostapi.InstallDigest(r.vc, r.metrics)
	}

	if r.config.Fetcher != nil {
		hostapi.InstallFetch(r.vc, r.config.Fetcher, func() context.Context { return r.runCtx })
	}

	// Timers never fire
	noop := func(this *vm.Handle, args ...*vm.Handle) (*vm.Handle, error) {
		return nil, nil
	}
	for _, name := range []string{"setTimeout", "setInterval", "clearTimeout", "clearInterval"} {
		fn := r.vc.NewFunction(name, noop)
		r.vc.SetProp(global, name, fn)
		fn.Dispose()
	}
}

// Execute runs script with the configured timeout. Script failures are
// returned both as the error and in Result.Error.
func (r *Runtime) Execute(ctx context.Context, script string) (*Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.vc == nil {
		return nil, ErrClosed
	}
	return r.run(ctx, func(ctx context.Context) vm.CallResult {
		return r.vc.EvalCodeContext(ctx, script)
	})
}

// Call invokes the global function name with args converted by
// vm.FromNative.
func (r *Runtime) Call(ctx context.Context, name string, args ...any) (*Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.vc == nil {
		return nil, ErrClosed
	}

	argv := make([]*vm.Handle, 0, len(args))
	defer func() {
		for _, h := range argv {
			h.Dispose()
		}
	}()
	for i, arg := range args {
		h, err := r.vc.FromNative(arg)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		argv = append(argv, h)
	}

	fn := r.vc.GetProp(r.vc.Global(), name)
	defer fn.Dispose()

	return r.run(ctx, func(ctx context.Context) vm.CallResult {
		return r.vc.CallFunctionContext(ctx, fn, nil, argv...)
	})
}

// SetGlobal stores a Go value as a global variable.
func (r *Runtime) SetGlobal(name string, value any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.vc == nil {
		return ErrClosed
	}
	h, err := r.vc.FromNative(value)
	if err != nil {
		return fmt.Errorf("global %q: %w", name, err)
	}
	defer h.Dispose()
	r.vc.SetProp(r.vc.Global(), name, h)
	return nil
}

func (r *Runtime) run(ctx context.Context, call func(context.Context) vm.CallResult) (*Result, error) {
	if r.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.Timeout)
		defer cancel()
	}
	r.runCtx = ctx
	defer func() { r.runCtx = context.Background() }()

	timer := monitoring.NewTimer(r.metrics, r.config.Source)
	result := &Result{}

	res := call(ctx)
	h, err := r.vc.UnwrapResultContext(ctx, res)
	if err == nil {
		result.Value, err = r.vc.DumpContext(ctx, h)
	}
	res.Dispose()
	if err != nil {
		result.Error = r.classify(ctx, err)
	}

	if r.console != nil {
		result.Console = r.console.Drain()
	} else {
		result.Console = []hostapi.LogEntry{}
	}

	status := monitoring.StatusOK
	switch {
	case errors.Is(result.Error, ErrExecutionTimeout):
		status = monitoring.StatusTimeout
	case result.Error != nil:
		status = monitoring.StatusError
	}
	result.Duration = timer.Stop(status)

	if live := r.vc.LiveHandles(); live > 0 {
		r.logger.Warn("Handles leaked by execution", zap.Int("live", live))
	}
	return result, result.Error
}

// classify maps an interrupted script to the reason its context ended.
func (r *Runtime) classify(ctx context.Context, err error) error {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w after %s", ErrExecutionTimeout, r.config.Timeout)
	case errors.Is(ctx.Err(), context.Canceled):
		return ctx.Err()
	}
	return err
}

// Reset clears the runtime state
func (r *Runtime) Reset() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.vc == nil {
		return ErrClosed
	}
	r.dispose()
	return r.init()
}

// Close releases resources
func (r *Runtime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.vc != nil {
		r.dispose()
	}
	return nil
}

func (r *Runtime) dispose() {
	r.vc.Dispose()
	r.vc = nil
	r.console = nil
	r.metrics.DecContexts()
}
