package ops

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feedline-ml/feedline/internal/kernels/pointwise"
	"github.com/feedline-ml/feedline/internal/tensor"
)

func luma(r, g, b float32) float32 {
	return 0.299*r + 0.587*g + 0.114*b
}

func TestHueZeroIsIdentity(t *testing.T) {
	in := hostBatch(t, tensor.Shape{1, 2, 3}, tensor.HWC,
		[]uint8{12, 200, 34, 255, 0, 77})

	op := mustOp(t, OpSpec{Op: "hue", Args: map[string]any{"hue": 0.0}})
	out := runOp(t, op, in)[0]

	assert.Equal(t, tensor.Data[uint8](in.View(0)), tensor.Data[uint8](out.View(0)))
}

func TestHueFullTurnMatchesIdentity(t *testing.T) {
	in := hostBatch(t, tensor.Shape{1, 2, 3}, tensor.HWC,
		[]uint8{12, 200, 34, 255, 0, 77})

	op := mustOp(t, OpSpec{Op: "hue", Args: map[string]any{"hue": 360.0}})
	out := runOp(t, op, in)[0]

	assert.Equal(t, tensor.Data[uint8](in.View(0)), tensor.Data[uint8](out.View(0)))
}

func TestSaturationOneIsIdentity(t *testing.T) {
	in := hostBatch(t, tensor.Shape{1, 2, 3}, tensor.HWC,
		[]uint8{12, 200, 34, 255, 0, 77})

	op := mustOp(t, OpSpec{Op: "saturation", Args: map[string]any{"saturation": 1.0}})
	out := runOp(t, op, in)[0]

	assert.Equal(t, tensor.Data[uint8](in.View(0)), tensor.Data[uint8](out.View(0)))
}

func TestSaturationZeroIsGrayscale(t *testing.T) {
	in := hostBatch(t, tensor.Shape{1, 2, 3}, tensor.HWC,
		[]float32{0.2, 0.5, 0.9, 1, 0, 0})

	op := mustOp(t, OpSpec{Op: "saturation", Args: map[string]any{"saturation": 0.0}})
	out := runOp(t, op, in)[0]

	px := tensor.Data[float32](out.View(0))
	for p := 0; p < 2; p++ {
		r, g, b := px[3*p], px[3*p+1], px[3*p+2]
		want := luma(in.View(0).AsFloat32()[3*p], in.View(0).AsFloat32()[3*p+1], in.View(0).AsFloat32()[3*p+2])
		assert.InDelta(t, want, r, 0.01, "pixel %d red", p)
		assert.InDelta(t, want, g, 0.01, "pixel %d green", p)
		assert.InDelta(t, want, b, 0.01, "pixel %d blue", p)
	}
}

func TestHueRotationPreservesLuma(t *testing.T) {
	in := hostBatch(t, tensor.Shape{1, 2, 3}, tensor.HWC,
		[]float32{0.2, 0.5, 0.9, 1, 0, 0})

	op := mustOp(t, OpSpec{Op: "hue", Args: map[string]any{"hue": 123.0}})
	out := runOp(t, op, in)[0]

	src := tensor.Data[float32](in.View(0))
	dst := tensor.Data[float32](out.View(0))
	for p := 0; p < 2; p++ {
		want := luma(src[3*p], src[3*p+1], src[3*p+2])
		got := luma(dst[3*p], dst[3*p+1], dst[3*p+2])
		assert.InDelta(t, want, got, 1e-3, "pixel %d", p)
	}
	assert.NotEqual(t, src, dst)
}

func TestColorTwistZeroContrastCollapsesToCenter(t *testing.T) {
	in := hostBatch(t, tensor.Shape{1, 2, 3}, tensor.HWC,
		[]uint8{12, 200, 34, 255, 0, 77})

	op := mustOp(t, OpSpec{Op: "color_twist", Args: map[string]any{"contrast": 0.0}})
	out := runOp(t, op, in)[0]
	assert.Equal(t, []uint8{128, 128, 128, 128, 128, 128}, tensor.Data[uint8](out.View(0)))

	op = mustOp(t, OpSpec{Op: "color_twist", Args: map[string]any{
		"contrast":   0.0,
		"brightness": 2.0,
	}})
	out = runOp(t, op, in)[0]
	assert.Equal(t, []uint8{255, 255, 255, 255, 255, 255}, tensor.Data[uint8](out.View(0)))
}

func TestHuePerSampleArguments(t *testing.T) {
	in := hostBatch(t, tensor.Shape{1, 1, 3}, tensor.HWC,
		[]uint8{255, 0, 0},
		[]uint8{255, 0, 0})

	op := mustOp(t, OpSpec{Op: "hue", Args: map[string]any{"hue": []float64{0, 120}}})
	out := runOp(t, op, in)[0]

	assert.Equal(t, []uint8{255, 0, 0}, tensor.Data[uint8](out.View(0)))
	assert.NotEqual(t, []uint8{255, 0, 0}, tensor.Data[uint8](out.View(1)))
}

func TestColorTwistRequiresThreeChannels(t *testing.T) {
	in := hostBatch(t, tensor.Shape{2, 2, 4}, "",
		[]uint8{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0})

	op := mustOp(t, OpSpec{Op: "color_twist"})
	require.ErrorIs(t, setupErr(t, op, in), ErrInvalidInput)
}

func TestColorTwistMatrixComposition(t *testing.T) {
	id := pointwise.Identity3()

	m := colorTwistMatrix(1, 1, 0, 1)
	assert.InDeltaSlice(t, id[:], m[:], 1e-5)

	m = colorTwistMatrix(1, 1, 360, 1)
	assert.InDeltaSlice(t, id[:], m[:], 1e-5)

	m = colorTwistMatrix(2, 1, 0, 1)
	for i := range m {
		assert.InDelta(t, 2*id[i], m[i], 1e-5, "element %d", i)
	}
}
