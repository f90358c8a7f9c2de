package sandbox

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	ErrPoolClosed = errors.New("sandbox pool is closed")
	ErrTimeout    = errors.New("sandbox acquisition timeout")
)

// DefaultAcquireTimeout bounds how long Acquire waits for a free runtime.
const DefaultAcquireTimeout = 5 * time.Second

// PoolStats describes pool occupancy.
type PoolStats struct {
	Size      int  `json:"size"`
	Available int  `json:"available"`
	InUse     int  `json:"in_use"`
	Closed    bool `json:"closed"`
}

// Pool manages a pool of reusable sandboxes. Each runtime is reset before it
// goes back into the pool, so executions never observe each other's globals.
type Pool struct {
	config         Config
	sandboxes      chan *Runtime
	size           int
	acquireTimeout time.Duration
	mu             sync.RWMutex
	closed         bool
}

// NewPool creates a sandbox pool
func NewPool(config Config, size int) (*Pool, error) {
	if size <= 0 {
		size = 4
	}
	if config.Source == "" {
		config.Source = "pool"
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	pool := &Pool{
		config:         config,
		sandboxes:      make(chan *Runtime, size),
		size:           size,
		acquireTimeout: DefaultAcquireTimeout,
	}

	// Pre-create sandboxes
	for i := 0; i < size; i++ {
		sandbox, err := New(config)
		if err != nil {
			pool.Close()
			return nil, err
		}
		pool.sandboxes <- sandbox
	}

	return pool, nil
}

// Acquire gets a sandbox from pool with timeout
func (p *Pool) Acquire(ctx context.Context) (*Runtime, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return nil, ErrPoolClosed
	}

	timer := time.NewTimer(p.acquireTimeout)
	defer timer.Stop()

	select {
	case sandbox := <-p.sandboxes:
		return sandbox, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, ErrTimeout
	}
}

// Release returns sandbox to pool
func (p *Pool) Release(sandbox *Runtime) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return sandbox.Close()
	}

	// Reset sandbox state
	if err := sandbox.Reset(); err != nil {
		sandbox.Close()
		// Create new sandbox
		if newSandbox, err := New(p.config); err == nil {
			p.sandboxes <- newSandbox
		} else {
			p.config.Logger.Error("Failed to replace sandbox", zap.Error(err))
		}
		return err
	}

	select {
	case p.sandboxes <- sandbox:
		return nil
	default:
		// Pool full, close sandbox
		return sandbox.Close()
	}
}

// Execute runs script using pool
func (p *Pool) Execute(ctx context.Context, script string) (*Result, error) {
	sandbox, err := p.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer p.Release(sandbox)

	return sandbox.Execute(ctx, script)
}

// Close closes pool and all sandboxes
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}

	p.closed = true
	close(p.sandboxes)

	// Close all sandboxes
	for sandbox := range p.sandboxes {
		sandbox.Close()
	}

	return nil
}

// Stats returns pool statistics
func (p *Pool) Stats() PoolStats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	available := len(p.sandboxes)
	return PoolStats{
		Size:      p.size,
		Available: available,
		InUse:     p.size - available,
		Closed:    p.closed,
	}
}
