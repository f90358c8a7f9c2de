package hostapi

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/GriffinCanCode/jsvm/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/jsvm/internal/vm"
)

type statsFunc struct {
	name  string
	arity int // number of array arguments
	min   int // minimum array length
	fn    func(vc *vm.Context, arrays [][]float64, args []*vm.Handle) (float64, error)
}

var statsFuncs = []statsFunc{
	{"sum", 1, 0, func(_ *vm.Context, a [][]float64, _ []*vm.Handle) (float64, error) {
		return floats.Sum(a[0]), nil
	}},
	{"min", 1, 1, func(_ *vm.Context, a [][]float64, _ []*vm.Handle) (float64, error) {
		return floats.Min(a[0]), nil
	}},
	{"max", 1, 1, func(_ *vm.Context, a [][]float64, _ []*vm.Handle) (float64, error) {
		return floats.Max(a[0]), nil
	}},
	{"mean", 1, 1, func(_ *vm.Context, a [][]float64, _ []*vm.Handle) (float64, error) {
		return stat.Mean(a[0], nil), nil
	}},
	{"median", 1, 1, func(_ *vm.Context, a [][]float64, _ []*vm.Handle) (float64, error) {
		return quantile(a[0], 0.5), nil
	}},
	{"variance", 1, 2, func(_ *vm.Context, a [][]float64, _ []*vm.Handle) (float64, error) {
		return stat.Variance(a[0], nil), nil
	}},
	{"stdev", 1, 2, func(_ *vm.Context, a [][]float64, _ []*vm.Handle) (float64, error) {
		return stat.StdDev(a[0], nil), nil
	}},
	{"correlation", 2, 2, func(_ *vm.Context, a [][]float64, _ []*vm.Handle) (float64, error) {
		if len(a[0]) != len(a[1]) {
			return 0, fmt.Errorf("arrays differ in length: %d and %d", len(a[0]), len(a[1]))
		}
		return stat.Correlation(a[0], a[1], nil), nil
	}},
	{"quantile", 1, 1, func(vc *vm.Context, a [][]float64, args []*vm.Handle) (float64, error) {
		if len(args) < 2 || vc.Typeof(args[1]) != "number" {
			return 0, typeError("stats.quantile expects a probability")
		}
		p := vc.GetNumber(args[1])
		if p < 0 || p > 1 {
			return 0, rangeError(fmt.Sprintf("probability %v outside [0, 1]", p))
		}
		return quantile(a[0], p), nil
	}},
}

// InstallStats defines a stats object on the global of vc with numeric
// helpers over arrays of numbers: sum, min, max, mean, median, variance,
// stdev (sample), correlation (Pearson) and quantile(xs, p).
func InstallStats(vc *vm.Context, metrics *monitoring.Metrics) {
	obj := vc.NewObject()
	defer obj.Dispose()

	for _, sf := range statsFuncs {
		sf := sf
		fn := vc.NewFunction(sf.name, func(this *vm.Handle, args ...*vm.Handle) (*vm.Handle, error) {
			result, err := sf.call(vc, args)
			if err != nil {
				metrics.RecordHostCall("stats."+sf.name, monitoring.StatusError)
				return nil, throwError(vc, err)
			}
			metrics.RecordHostCall("stats."+sf.name, monitoring.StatusOK)
			return vc.NewNumber(result), nil
		})
		vc.SetProp(obj, sf.name, fn)
		fn.Dispose()
	}
	vc.SetProp(vc.Global(), "stats", obj)
}

func (sf statsFunc) call(vc *vm.Context, args []*vm.Handle) (float64, error) {
	if len(args) < sf.arity {
		return 0, typeError(fmt.Sprintf("stats.%s expects %d array argument(s)", sf.name, sf.arity))
	}
	arrays := make([][]float64, sf.arity)
	for i := range arrays {
		xs, err := numbers(vc, args[i])
		if err != nil {
			return 0, typeError(fmt.Sprintf("stats.%s: %v", sf.name, err))
		}
		if len(xs) < sf.min {
			return 0, rangeError(fmt.Sprintf("stats.%s needs at least %d value(s)", sf.name, sf.min))
		}
		arrays[i] = xs
	}
	v, err := sf.fn(vc, arrays, args)
	var je *jsError
	if err != nil && !errors.As(err, &je) {
		return 0, rangeError(fmt.Sprintf("stats.%s: %v", sf.name, err))
	}
	return v, err
}

// jsError is thrown into the script as an error of the given name.
type jsError struct {
	name    string
	message string
}

func (e *jsError) Error() string { return e.name + ": " + e.message }

func typeError(msg string) error  { return &jsError{"TypeError", msg} }
func rangeError(msg string) error { return &jsError{"RangeError", msg} }

// throwError converts a jsError into an engine exception. Other errors are
// left to the bridge, which throws them as plain Error.
func throwError(vc *vm.Context, err error) error {
	var je *jsError
	if errors.As(err, &je) {
		return vm.Throw(vc.NewError(je.name, je.message))
	}
	return err
}

// numbers reads an array of numbers out of the engine.
func numbers(vc *vm.Context, h *vm.Handle) ([]float64, error) {
	dumped, err := vc.Dump(h)
	if err != nil {
		return nil, err
	}
	items, ok := dumped.([]any)
	if !ok {
		return nil, fmt.Errorf("expected an array of numbers")
	}
	out := make([]float64, len(items))
	for i, item := range items {
		n, ok := item.(float64)
		if !ok {
			return nil, fmt.Errorf("element %d is not a number", i)
		}
		out[i] = n
	}
	return out, nil
}

func quantile(xs []float64, p float64) float64 {
	sorted := make([]float64, len(xs))
	copy(sorted, xs)
	sort.Float64s(sorted)
	return stat.Quantile(p, stat.Empirical, sorted, nil)
}
