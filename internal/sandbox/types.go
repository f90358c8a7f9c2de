package sandbox

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/jsvm/internal/hostapi"
	"github.com/GriffinCanCode/jsvm/internal/infrastructure/monitoring"
)

var (
	ErrClosed           = errors.New("sandbox is closed")
	ErrExecutionTimeout = errors.New("execution timeout exceeded")
)

// Config defines sandbox configuration
type Config struct {
	MaxCallStackSize int           // Script recursion limit
	MaxDumpDepth     int           // Nesting limit for returned values
	MaxDumpElements  int           // Array elements and object members a returned value may hold
	Timeout          time.Duration // Execution timeout, zero disables it
	EnableConsole    bool          // Install console.log/info/warn/error/debug
	EnableHelpers    bool          // Install the stats object and digest()
	ConsoleLimit     int           // Entries kept per execution, zero keeps all
	Source           string        // Metrics label for evaluations, "sandbox" when empty

	// Fetcher backs fetchText. Nil leaves it undefined.
	Fetcher *hostapi.Fetcher

	Logger  *zap.Logger
	Metrics *monitoring.Metrics
}

// Result holds execution result
type Result struct {
	Value    any                // Dumped completion value
	Console  []hostapi.LogEntry // Console output
	Duration time.Duration      // Execution time
	Error    error              // Execution error
}

// Sandbox defines the JavaScript execution interface
type Sandbox interface {
	Execute(ctx context.Context, script string) (*Result, error)
	Reset() error
	Close() error
}

// DefaultConfig returns the configuration used when none is given.
func DefaultConfig() Config {
	return Config{
		MaxCallStackSize: 1024,
		MaxDumpDepth:     256,
		MaxDumpElements:  1 << 20,
		Timeout:          5 * time.Second,
		EnableConsole:    true,
		EnableHelpers:    true,
		ConsoleLimit:     1000,
	}
}
