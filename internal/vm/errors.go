package vm

import (
	"errors"
	"fmt"
)

var (
	ErrHandleDisposed  = errors.New("handle already disposed")
	ErrContextDisposed = errors.New("context disposed")
	ErrForeignHandle   = errors.New("handle belongs to another context")
	ErrNilHandle       = errors.New("nil handle")
	ErrTypeMismatch    = errors.New("handle holds a different type")
	ErrNotObject       = errors.New("value is null or undefined")
	ErrMalformedResult = errors.New("call result must carry exactly one of value or error")
)

var (
	ErrCyclicValue     = errors.New("cyclic value cannot be dumped")
	ErrDumpTooDeep     = errors.New("value nesting exceeds dump depth")
	ErrDumpTooLarge    = errors.New("value exceeds dump element budget")
	ErrUnsupportedType = errors.New("unsupported host type")
)

// UsageError reports a broken handle contract. It is only ever raised with
// panic.
type UsageError struct {
	Op  string
	Err error
}

func (e *UsageError) Error() string {
	return fmt.Sprintf("vm: %s: %v", e.Op, e.Err)
}

func (e *UsageError) Unwrap() error {
	return e.Err
}

func misuse(op string, err error) {
	panic(&UsageError{Op: op, Err: err})
}

// ScriptError is an engine exception converted into a Go error. Value holds
// the dumped exception; Name, Message and Stack are filled in when the thrown
// value is an object carrying them.
type ScriptError struct {
	Value   any
	Name    string
	Message string
	Stack   string
}

func newScriptError(v any) *ScriptError {
	se := &ScriptError{Value: v}
	if m, ok := v.(*OrderedMap); ok {
		se.Name = m.stringField("name")
		se.Message = m.stringField("message")
		se.Stack = m.stringField("stack")
	}
	return se
}

// interruptedError is what a bounded operation reports once its context ends.
func interruptedError() *ScriptError {
	m := NewOrderedMap()
	m.Set("name", "InternalError")
	m.Set("message", "interrupted")
	return newScriptError(m)
}

func (e *ScriptError) interrupted() bool {
	return e.Name == "InternalError" && e.Message == "interrupted"
}

func (e *ScriptError) Error() string {
	switch {
	case e.Name != "" && e.Message != "":
		return e.Name + ": " + e.Message
	case e.Name != "":
		return e.Name
	case e.Message != "":
		return e.Message
	}
	if s, ok := e.Value.(string); ok {
		return s
	}
	return fmt.Sprint(Plain(e.Value))
}

// thrownError asks the function bridge to throw an engine value as is.
type thrownError struct {
	handle *Handle
}

func (e *thrownError) Error() string {
	return "vm: host threw " + e.handle.String()
}

// Throw returns an error that, when returned from a HostFunction, throws the
// value held by h inside the engine. The bridge consumes h like a return value.
func Throw(h *Handle) error {
	return &thrownError{handle: h}
}
