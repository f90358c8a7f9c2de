package hostapi

import (
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/jsvm/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/jsvm/internal/vm"
)

// LogEntry represents console output
type LogEntry struct {
	Level   string    `json:"level"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

var consoleLevels = []string{"log", "info", "warn", "error", "debug"}

// Console captures console output of a script.
type Console struct {
	logger  *zap.Logger
	metrics *monitoring.Metrics
	limit   int

	mu      sync.Mutex
	entries []LogEntry
	dropped int
}

// NewConsole creates a console keeping at most limit entries between drains.
// A limit of zero keeps everything.
func NewConsole(logger *zap.Logger, metrics *monitoring.Metrics, limit int) *Console {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Console{
		logger:  logger.Named("script"),
		metrics: metrics,
		limit:   limit,
	}
}

// Install defines the console object on the global of vc.
func (c *Console) Install(vc *vm.Context) {
	obj := vc.NewObject()
	defer obj.Dispose()

	for _, level := range consoleLevels {
		fn := vc.NewFunction(level, c.method(vc, level))
		vc.SetProp(obj, level, fn)
		fn.Dispose()
	}
	vc.SetProp(vc.Global(), "console", obj)
}

func (c *Console) method(vc *vm.Context, level string) vm.HostFunction {
	return func(this *vm.Handle, args ...*vm.Handle) (*vm.Handle, error) {
		parts := make([]string, len(args))
		for i, arg := range args {
			parts[i] = Format(vc, arg)
		}
		c.record(level, strings.Join(parts, " "))
		c.metrics.RecordHostCall("console."+level, monitoring.StatusOK)
		return nil, nil
	}
}

func (c *Console) record(level, msg string) {
	switch level {
	case "error":
		c.logger.Error(msg)
	case "warn":
		c.logger.Warn(msg)
	case "debug":
		c.logger.Debug(msg)
	default:
		c.logger.Info(msg)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.limit > 0 && len(c.entries) >= c.limit {
		c.dropped++
		return
	}
	c.entries = append(c.entries, LogEntry{
		Level:   level,
		Message: msg,
		Time:    time.Now(),
	})
}

// Drain returns the captured entries and clears the buffer.
func (c *Console) Drain() []LogEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := c.entries
	c.entries = nil
	c.dropped = 0
	if out == nil {
		out = []LogEntry{}
	}
	return out
}

// Dropped returns how many entries were discarded since the last drain.
func (c *Console) Dropped() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}

// Format renders a value the way console methods print it: strings as is,
// numbers in JS notation, plain data as JSON.
func Format(vc *vm.Context, h *vm.Handle) string {
	switch vc.Typeof(h) {
	case "string":
		return vc.GetString(h)
	case "undefined":
		return "undefined"
	case "function":
		return "[Function]"
	case "symbol":
		return "[Symbol]"
	case "number":
		return FormatNumber(vc.GetNumber(h))
	}

	dumped, err := vc.Dump(h)
	if err != nil {
		return "[" + err.Error() + "]"
	}
	if b, ok := dumped.(bool); ok {
		return strconv.FormatBool(b)
	}
	out, err := sonic.MarshalString(vm.JSONSafe(dumped))
	if err != nil {
		return "[unserializable]"
	}
	return out
}

// FormatNumber prints n like Number.prototype.toString: the shortest
// round-tripping digits, in decimal notation for exponents in (-7, 21) and
// in exponential notation otherwise.
func FormatNumber(n float64) string {
	switch {
	case math.IsNaN(n):
		return "NaN"
	case math.IsInf(n, 1):
		return "Infinity"
	case math.IsInf(n, -1):
		return "-Infinity"
	case n == 0:
		return "0"
	}

	sign := ""
	if n < 0 {
		sign, n = "-", -n
	}

	// d.ddde±XX
	sci := strconv.FormatFloat(n, 'e', -1, 64)
	mantissa, exp, _ := strings.Cut(sci, "e")
	digits := strings.Replace(mantissa, ".", "", 1)
	e, _ := strconv.Atoi(exp)
	k, point := len(digits), e+1

	switch {
	case k <= point && point <= 21:
		return sign + digits + strings.Repeat("0", point-k)
	case 0 < point && point <= 21:
		return sign + digits[:point] + "." + digits[point:]
	case -6 < point && point <= 0:
		return sign + "0." + strings.Repeat("0", -point) + digits
	}

	expSign := "+"
	if e < 0 {
		expSign, e = "-", -e
	}
	out := digits[:1]
	if k > 1 {
		out += "." + digits[1:]
	}
	return sign + out + "e" + expSign + strconv.Itoa(e)
}
