package vm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestContext(t *testing.T) *Context {
	t.Helper()
	c, err := New(DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(c.Dispose)
	return c
}

// requireUsage asserts that fn panics with a *UsageError wrapping target.
func requireUsage(t *testing.T, target error, fn func()) {
	t.Helper()
	defer func() {
		t.Helper()
		r := recover()
		require.NotNil(t, r, "expected a usage panic")
		err, ok := r.(error)
		require.True(t, ok, "panic value %v is not an error", r)
		var ue *UsageError
		require.True(t, errors.As(err, &ue), "panic %v is not a usage error", err)
		assert.ErrorIs(t, err, target)
	}()
	fn()
}

func evalValue(t *testing.T, c *Context, src string) *Handle {
	t.Helper()
	res := c.EvalCode(src)
	h, err := c.UnwrapResult(res)
	require.NoError(t, err, "eval %q", src)
	return h
}
