package workspace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feedline-ml/feedline/internal/tensor"
)

func TestArgRoundTrip(t *testing.T) {
	ws := New(nil, nil)
	ws.Reset(1)

	SetArg(ws, "brightness", []float32{1, 2, 3})
	SetArg(ws, "frames", []int{4, 5})

	assert.Equal(t, []float32{1, 2, 3}, Arg[float32](ws, "brightness"))
	assert.Equal(t, []int{4, 5}, Arg[int](ws, "frames"))
	assert.True(t, ws.HasArg("brightness"))
	assert.False(t, ws.HasArg("contrast"))
}

func TestResetClearsArguments(t *testing.T) {
	ws := New(nil, nil)
	ws.Reset(1)
	SetArg(ws, "brightness", []float32{1})
	require.True(t, ws.HasArg("brightness"))

	ws.Reset(2)

	assert.Equal(t, uint64(2), ws.Iteration())
	assert.False(t, ws.HasArg("brightness"))
	assert.Panics(t, func() { Arg[float32](ws, "brightness") })
}

func TestArgPanicsOnWrongType(t *testing.T) {
	ws := New(nil, nil)
	ws.Reset(1)
	SetArg(ws, "contrast", []float32{1})

	assert.Panics(t, func() { Arg[int](ws, "contrast") })
}

func TestBindingsSurviveReset(t *testing.T) {
	alloc := tensor.NewAllocator(0)
	in := tensor.NewTensorList(alloc)
	out := tensor.NewTensorList(alloc)

	ws := New(nil, nil)
	ws.BindInputs(in)
	ws.BindOutputs(out)
	ws.Reset(7)

	require.Equal(t, 1, ws.NumInputs())
	require.Equal(t, 1, ws.NumOutputs())
	assert.Same(t, in, ws.Input(0))
	assert.Same(t, out, ws.Output(0))
}

func TestRebindReplaces(t *testing.T) {
	alloc := tensor.NewAllocator(0)
	a := tensor.NewTensorList(alloc)
	b := tensor.NewTensorList(alloc)

	ws := New(nil, nil)
	ws.BindInputs(a, b)
	require.Equal(t, 2, ws.NumInputs())

	ws.BindInputs(b)
	require.Equal(t, 1, ws.NumInputs())
	assert.Same(t, b, ws.Input(0))
}
