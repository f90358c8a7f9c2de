package vm

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNumberRoundTrip(t *testing.T) {
	c := newTestContext(t)

	tests := []struct {
		name string
		in   float64
	}{
		{"zero", 0},
		{"integer", 42},
		{"negative", -17},
		{"fraction", 3.14159},
		{"large", 1e300},
		{"max", math.MaxFloat64},
		{"smallest", math.SmallestNonzeroFloat64},
		{"positive infinity", math.Inf(1)},
		{"negative infinity", math.Inf(-1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := c.NewNumber(tt.in)
			defer h.Dispose()
			assert.Equal(t, "number", c.Typeof(h))
			assert.Equal(t, tt.in, c.GetNumber(h))
		})
	}

	nan := c.NewNumber(math.NaN())
	defer nan.Dispose()
	assert.True(t, math.IsNaN(c.GetNumber(nan)))
}

func TestStringRoundTrip(t *testing.T) {
	c := newTestContext(t)

	tests := []string{
		"",
		"hello world",
		"an example 🤔 string with unicode 🎉",
		"日本語テキスト",
		"line\nbreak\ttab",
	}

	for _, s := range tests {
		h := c.NewString(s)
		assert.Equal(t, "string", c.Typeof(h))
		assert.Equal(t, s, c.GetString(h))
		h.Dispose()
	}
	assert.Equal(t, 0, c.LiveHandles())
}

func TestGetterTypeMismatch(t *testing.T) {
	c := newTestContext(t)

	str := c.NewString("42")
	defer str.Dispose()
	num := c.NewNumber(42)
	defer num.Dispose()

	requireUsage(t, ErrTypeMismatch, func() { c.GetNumber(str) })
	requireUsage(t, ErrTypeMismatch, func() { c.GetString(num) })
	requireUsage(t, ErrTypeMismatch, func() { c.GetBool(num) })
	requireUsage(t, ErrTypeMismatch, func() { c.GetString(c.Null()) })
}

func TestTypeof(t *testing.T) {
	c := newTestContext(t)

	tests := []struct {
		src  string
		want string
	}{
		{"(1)", "number"},
		{`("hi")`, "string"},
		{"(true)", "boolean"},
		{"(undefined)", "undefined"},
		{"(null)", "object"},
		{"({})", "object"},
		{"([1, 2])", "object"},
		{"(function () {})", "function"},
		{"Symbol('x')", "symbol"},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			h := evalValue(t, c, tt.src)
			defer h.Dispose()
			assert.Equal(t, tt.want, c.Typeof(h))
		})
	}
}

func TestSetAndGetProp(t *testing.T) {
	c := newTestContext(t)

	obj := c.NewObject()
	defer obj.Dispose()

	val := c.NewString("bar")
	c.SetProp(obj, "foo", val)
	val.Dispose()

	got := c.GetProp(obj, "foo")
	assert.Equal(t, "bar", c.GetString(got))
	got.Dispose()

	missing := c.GetProp(obj, "nope")
	assert.Equal(t, "undefined", c.Typeof(missing))
	missing.Dispose()

	key := c.NewString("byHandle")
	num := c.NewNumber(7)
	c.SetPropKey(obj, key, num)
	byName := c.GetProp(obj, "byHandle")
	assert.Equal(t, float64(7), c.GetNumber(byName))
	byKey := c.GetPropKey(obj, key)
	assert.Equal(t, float64(7), c.GetNumber(byKey))

	for _, h := range []*Handle{key, num, byName, byKey} {
		h.Dispose()
	}
	assert.Equal(t, 1, c.LiveHandles())
}

func TestSymbolKeys(t *testing.T) {
	c := newTestContext(t)

	obj := c.NewObject()
	defer obj.Dispose()
	sym := evalValue(t, c, "Symbol('secret')")
	defer sym.Dispose()

	c.SetPropKey(obj, sym, c.True())
	got := c.GetPropKey(obj, sym)
	defer got.Dispose()
	assert.True(t, c.GetBool(got))

	plain := c.GetProp(obj, "secret")
	defer plain.Dispose()
	assert.Equal(t, "undefined", c.Typeof(plain))
}

func TestPrototypeShadowing(t *testing.T) {
	c := newTestContext(t)

	proto := c.NewObject()
	defer proto.Dispose()
	greeting := c.NewString("SUP DAWG")
	c.SetProp(proto, "greeting", greeting)
	greeting.Dispose()

	greeter := c.NewObjectWithProto(proto)
	defer greeter.Dispose()

	inherited := c.GetProp(greeter, "greeting")
	assert.Equal(t, "SUP DAWG", c.GetString(inherited))
	inherited.Dispose()

	polite := c.NewString("How do you do?")
	c.SetProp(greeter, "greeting", polite)
	polite.Dispose()

	own := c.GetProp(greeter, "greeting")
	assert.Equal(t, "How do you do?", c.GetString(own))
	own.Dispose()

	original := c.GetProp(proto, "greeting")
	assert.Equal(t, "SUP DAWG", c.GetString(original))
	original.Dispose()
}

func TestObjectWithNullProto(t *testing.T) {
	c := newTestContext(t)

	obj := c.NewObjectWithProto(c.Null())
	defer obj.Dispose()

	toString := c.GetProp(obj, "toString")
	defer toString.Dispose()
	assert.Equal(t, "undefined", c.Typeof(toString))
}

func TestPropOnNullish(t *testing.T) {
	c := newTestContext(t)

	requireUsage(t, ErrNotObject, func() { c.GetProp(c.Undefined(), "x") })
	requireUsage(t, ErrNotObject, func() { c.SetProp(c.Null(), "x", c.True()) })
}

func TestPropOnPrimitive(t *testing.T) {
	c := newTestContext(t)

	s := c.NewString("four")
	defer s.Dispose()
	length := c.GetProp(s, "length")
	defer length.Dispose()
	assert.Equal(t, float64(4), c.GetNumber(length))
}

func TestNewArray(t *testing.T) {
	c := newTestContext(t)

	one := c.NewNumber(1)
	two := c.NewString("two")
	arr := c.NewArray(one, two, c.Null())
	one.Dispose()
	two.Dispose()
	defer arr.Dispose()

	dumped, err := c.Dump(arr)
	require.NoError(t, err)
	assert.Equal(t, []any{float64(1), "two", nil}, dumped)
}

func TestNewError(t *testing.T) {
	c := newTestContext(t)

	tests := []struct {
		name string
	}{
		{"Error"},
		{"TypeError"},
		{"CustomError"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := c.NewError(tt.name, "went wrong")
			defer h.Dispose()

			dumped, err := c.Dump(h)
			require.NoError(t, err)
			m, ok := dumped.(*OrderedMap)
			require.True(t, ok)

			name, _ := m.Get("name")
			message, _ := m.Get("message")
			assert.Equal(t, tt.name, name)
			assert.Equal(t, "went wrong", message)
		})
	}
}

func TestDefineProp(t *testing.T) {
	c := newTestContext(t)

	obj := c.NewObject()
	defer obj.Dispose()

	hidden := c.NewNumber(1)
	c.DefineProp(obj, "hidden", PropertyDescriptor{Value: hidden})
	hidden.Dispose()

	getter := c.NewFunction("get", func(this *Handle, args ...*Handle) (*Handle, error) {
		return c.NewNumber(7), nil
	})
	c.DefineProp(obj, "computed", PropertyDescriptor{Get: getter, Enumerable: true})
	getter.Dispose()

	got := c.GetProp(obj, "computed")
	assert.Equal(t, float64(7), c.GetNumber(got))
	got.Dispose()

	h := c.GetProp(obj, "hidden")
	assert.Equal(t, float64(1), c.GetNumber(h))
	h.Dispose()

	dumped, err := c.Dump(obj)
	require.NoError(t, err)
	assert.Equal(t, []string{"computed"}, dumped.(*OrderedMap).Keys())

	// non-writable properties ignore assignment from sloppy code
	res := c.EvalCode("this.touch = function (o) { o.hidden = 2; return o.hidden; }; undefined")
	res.Dispose()
	touch := c.GetProp(c.Global(), "touch")
	defer touch.Dispose()
	call := c.CallFunction(touch, c.Undefined(), obj)
	out, err := c.UnwrapResult(call)
	require.NoError(t, err)
	assert.Equal(t, float64(1), c.GetNumber(out))
	out.Dispose()
}

func TestFromNative(t *testing.T) {
	c := newTestContext(t)

	in := map[string]any{
		"b":     []any{"x", true, nil},
		"a":     1,
		"small": uint8(3),
		"nested": map[string]string{
			"k": "v",
		},
	}

	h, err := c.FromNative(in)
	require.NoError(t, err)
	defer h.Dispose()

	dumped, err := c.Dump(h)
	require.NoError(t, err)
	m := dumped.(*OrderedMap)
	assert.Equal(t, []string{"a", "b", "nested", "small"}, m.Keys())
	assert.Equal(t, map[string]any{
		"a":      float64(1),
		"b":      []any{"x", true, nil},
		"nested": map[string]any{"k": "v"},
		"small":  float64(3),
	}, m.Map())
}

func TestFromNativeUnsupported(t *testing.T) {
	c := newTestContext(t)

	_, err := c.FromNative(make(chan int))
	assert.ErrorIs(t, err, ErrUnsupportedType)

	_, err = c.FromNative(map[int]string{1: "x"})
	assert.ErrorIs(t, err, ErrUnsupportedType)
	assert.Equal(t, 0, c.LiveHandles())
}

func TestFromNativeEmbedsHandles(t *testing.T) {
	c := newTestContext(t)

	inner := c.NewString("inside")
	defer inner.Dispose()

	h, err := c.FromNative([]any{inner, Undefined})
	require.NoError(t, err)
	defer h.Dispose()

	first := c.GetProp(h, "0")
	defer first.Dispose()
	assert.Equal(t, "inside", c.GetString(first))

	second := c.GetProp(h, "1")
	defer second.Dispose()
	assert.Equal(t, "undefined", c.Typeof(second))
}
