package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/GriffinCanCode/jsvm/internal/hostapi"
	"github.com/GriffinCanCode/jsvm/internal/sandbox"
	"github.com/GriffinCanCode/jsvm/internal/session"
	"github.com/GriffinCanCode/jsvm/internal/vm"
)

// EvalRequest is the body of POST /eval and POST /sessions/:id/eval.
type EvalRequest struct {
	Script string `json:"script" binding:"required"`
}

// CallRequest is the body of POST /sessions/:id/call.
type CallRequest struct {
	Function string `json:"function" binding:"required"`
	Args     []any  `json:"args"`
}

// GlobalRequest is the body of PUT /sessions/:id/globals/:name.
type GlobalRequest struct {
	Value any `json:"value"`
}

// ErrorBody describes a failed evaluation.
type ErrorBody struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
}

// EvalResponse is returned for every completed evaluation.
type EvalResponse struct {
	Value      any                `json:"value"`
	Console    []hostapi.LogEntry `json:"console"`
	DurationMS float64            `json:"duration_ms"`
	Error      *ErrorBody         `json:"error,omitempty"`
}

func newEvalResponse(result *sandbox.Result) EvalResponse {
	resp := EvalResponse{
		Value:      vm.JSONSafe(result.Value),
		Console:    result.Console,
		DurationMS: float64(result.Duration) / float64(time.Millisecond),
	}
	if result.Error != nil {
		_, body := describeError(result.Error)
		resp.Error = &body
		resp.Value = nil
	}
	return resp
}

// describeError maps an execution error to a status code and body.
func describeError(err error) (int, ErrorBody) {
	var se *vm.ScriptError
	switch {
	case errors.As(err, &se):
		msg := se.Message
		if msg == "" {
			msg = se.Error()
		}
		return http.StatusUnprocessableEntity, ErrorBody{Name: nameOr(se.Name), Message: msg, Stack: se.Stack}
	case errors.Is(err, sandbox.ErrExecutionTimeout):
		return http.StatusRequestTimeout, ErrorBody{Name: "TimeoutError", Message: err.Error()}
	case errors.Is(err, vm.ErrCyclicValue), errors.Is(err, vm.ErrDumpTooDeep),
		errors.Is(err, vm.ErrDumpTooLarge), errors.Is(err, vm.ErrUnsupportedType):
		return http.StatusUnprocessableEntity, ErrorBody{Name: "ConversionError", Message: err.Error()}
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound, ErrorBody{Name: "NotFound", Message: err.Error()}
	case errors.Is(err, session.ErrTooManySessions):
		return http.StatusTooManyRequests, ErrorBody{Name: "LimitExceeded", Message: err.Error()}
	case errors.Is(err, sandbox.ErrTimeout), errors.Is(err, sandbox.ErrPoolClosed),
		errors.Is(err, sandbox.ErrClosed), errors.Is(err, session.ErrClosed):
		return http.StatusServiceUnavailable, ErrorBody{Name: "Unavailable", Message: err.Error()}
	}
	return http.StatusInternalServerError, ErrorBody{Name: "Error", Message: err.Error()}
}

func nameOr(name string) string {
	if name == "" {
		return "Error"
	}
	return name
}
