package ops

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feedline-ml/feedline/internal/tensor"
)

func TestMakeContiguousPassthrough(t *testing.T) {
	in := hostBatch(t, tensor.Shape{1, 2, 2}, tensor.HWC,
		[]uint8{1, 2, 3, 4},
		[]uint8{5, 6, 7, 8})
	in.SetSourceInfo(1, "rec-1")

	op := mustOp(t, OpSpec{Op: "make_contiguous"})
	out := runOp(t, op, in)[0]

	require.True(t, out.IsContiguous())
	assert.Equal(t, tensor.HWC, out.Layout())
	assert.Equal(t, "rec-1", out.SourceInfo(1))

	// A contiguous input passes through without a copy, so writes to the
	// input show up in the output.
	tensor.Data[uint8](in.View(0))[0] = 99
	assert.Equal(t, uint8(99), tensor.Data[uint8](out.View(0))[0])
}

func TestMakeContiguousCompactsScattered(t *testing.T) {
	shapes, err := tensor.NewShapeList(
		tensor.Shape{2, 1, 1},
		tensor.Shape{4, 1, 1},
		tensor.Shape{1, 1, 1},
	)
	require.NoError(t, err)

	in := tensor.NewScatteredList(tensor.NewAllocator(0))
	require.NoError(t, in.Resize(shapes, tensor.Uint8))
	copy(tensor.Data[uint8](in.View(0)), []uint8{1, 2})
	copy(tensor.Data[uint8](in.View(1)), []uint8{3, 4, 5, 6})
	copy(tensor.Data[uint8](in.View(2)), []uint8{7})
	in.SetSourceInfo(2, "rec-7")
	require.False(t, in.IsContiguous())

	op := mustOp(t, OpSpec{Op: "make_contiguous"})
	out := runOp(t, op, in)[0]

	require.True(t, out.IsContiguous())
	assert.Equal(t, []uint8{1, 2}, tensor.Data[uint8](out.View(0)))
	assert.Equal(t, []uint8{3, 4, 5, 6}, tensor.Data[uint8](out.View(1)))
	assert.Equal(t, []uint8{7}, tensor.Data[uint8](out.View(2)))
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7}, out.ContiguousBytes())
	assert.Equal(t, "rec-7", out.SourceInfo(2))

	// The copy detached the output from the input's backing.
	tensor.Data[uint8](in.View(0))[0] = 99
	assert.Equal(t, uint8(1), tensor.Data[uint8](out.View(0))[0])
}

func TestMakeContiguousScatteredFloat(t *testing.T) {
	in := scatteredBatch(t, tensor.Shape{1, 1, 3}, tensor.HWC,
		[]float32{0.5, -1, 3.25},
		[]float32{2, 4, 8})
	require.False(t, in.IsContiguous())

	op := mustOp(t, OpSpec{Op: "make_contiguous"})
	out := runOp(t, op, in)[0]

	require.True(t, out.IsContiguous())
	assert.Equal(t, []float32{0.5, -1, 3.25}, tensor.Data[float32](out.View(0)))
	assert.Equal(t, []float32{2, 4, 8}, tensor.Data[float32](out.View(1)))
}
