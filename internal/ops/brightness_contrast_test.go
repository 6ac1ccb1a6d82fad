package ops

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feedline-ml/feedline/internal/tensor"
)

func TestBrightnessContrastIdentityDefaults(t *testing.T) {
	in := hostBatch(t, tensor.Shape{2, 2, 3}, tensor.HWC,
		[]uint8{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 255})
	in.SetSourceInfo(0, "cat.jpg")

	op := mustOp(t, OpSpec{Op: "brightness_contrast"})
	out := runOp(t, op, in)[0]

	assert.Equal(t, tensor.Data[uint8](in.View(0)), tensor.Data[uint8](out.View(0)))
	assert.Equal(t, tensor.HWC, out.Layout())
	assert.Equal(t, "cat.jpg", out.SourceInfo(0))
}

func TestBrightnessScalesAndSaturates(t *testing.T) {
	in := hostBatch(t, tensor.Shape{1, 7, 1}, tensor.HWC,
		[]uint8{0, 1, 100, 127, 128, 200, 255})

	op := mustOp(t, OpSpec{Op: "brightness", Args: map[string]any{"brightness": 2.0}})
	out := runOp(t, op, in)[0]

	assert.Equal(t, []uint8{0, 2, 200, 254, 255, 255, 255}, tensor.Data[uint8](out.View(0)))
}

func TestContrastPivotsAroundHalfRange(t *testing.T) {
	in := hostBatch(t, tensor.Shape{1, 3, 1}, tensor.HWC, []uint8{0, 128, 255})

	op := mustOp(t, OpSpec{Op: "contrast", Args: map[string]any{"contrast": 0.5}})
	out := runOp(t, op, in)[0]

	// 255*0.5+64 lands on 191.5 and rounds half away from zero.
	assert.Equal(t, []uint8{64, 128, 192}, tensor.Data[uint8](out.View(0)))
}

func TestBrightnessShiftUsesOutputRange(t *testing.T) {
	in := hostBatch(t, tensor.Shape{1, 3, 1}, tensor.HWC, []uint8{0, 100, 200})

	op := mustOp(t, OpSpec{Op: "brightness", Args: map[string]any{"brightness_shift": 0.5}})
	out := runOp(t, op, in)[0]

	assert.Equal(t, []uint8{128, 228, 255}, tensor.Data[uint8](out.View(0)))
}

func TestContrastCenterOverride(t *testing.T) {
	in := hostBatch(t, tensor.Shape{1, 4, 1}, tensor.HWC, []uint8{0, 32, 64, 100})

	op := mustOp(t, OpSpec{Op: "contrast", Args: map[string]any{
		"contrast":        2.0,
		"contrast_center": 64,
	}})
	out := runOp(t, op, in)[0]

	assert.Equal(t, []uint8{0, 0, 64, 136}, tensor.Data[uint8](out.View(0)))
}

func TestBrightnessFloatOutputUnclamped(t *testing.T) {
	in := hostBatch(t, tensor.Shape{1, 3, 1}, tensor.HWC, []uint8{0, 100, 200})

	op := mustOp(t, OpSpec{Op: "brightness", Args: map[string]any{
		"brightness": 2.0,
		"dtype":      "float32",
	}})
	out := runOp(t, op, in)[0]

	require.Equal(t, tensor.Float32, out.DType())
	assert.Equal(t, []float32{0, 200, 400}, tensor.Data[float32](out.View(0)))
}

func TestContrastInt16Center(t *testing.T) {
	in := hostBatch(t, tensor.Shape{1, 4, 1}, tensor.HWC,
		[]int16{0, 16384, -16384, 30000})

	op := mustOp(t, OpSpec{Op: "contrast", Args: map[string]any{"contrast": 2.0}})
	out := runOp(t, op, in)[0]

	// The int16 half range is 16384; doubling pivots around it and
	// saturates at both ends.
	assert.Equal(t, []int16{-16384, 16384, -32768, 32767}, tensor.Data[int16](out.View(0)))
}

func TestBrightnessPerSampleArguments(t *testing.T) {
	in := hostBatch(t, tensor.Shape{1, 2, 2}, tensor.HWC,
		[]uint8{10, 20, 30, 40},
		[]uint8{10, 20, 30, 40})

	op := mustOp(t, OpSpec{Op: "brightness", Args: map[string]any{
		"brightness": []float64{1, 2},
	}})
	out := runOp(t, op, in)[0]

	assert.Equal(t, []uint8{10, 20, 30, 40}, tensor.Data[uint8](out.View(0)))
	assert.Equal(t, []uint8{20, 40, 60, 80}, tensor.Data[uint8](out.View(1)))
}

func TestBrightnessVideoFrames(t *testing.T) {
	in := hostBatch(t, tensor.Shape{2, 1, 2, 1}, tensor.FHWC, []uint8{1, 2, 3, 4})

	op := mustOp(t, OpSpec{Op: "brightness", Args: map[string]any{"brightness": 3.0}})
	out := runOp(t, op, in)[0]

	assert.Equal(t, []uint8{3, 6, 9, 12}, tensor.Data[uint8](out.View(0)))
	assert.Equal(t, tensor.FHWC, out.Layout())
}

func TestBrightnessEmptyBatch(t *testing.T) {
	in := hostBatch[uint8](t, tensor.Shape{4, 4, 3}, "")

	op := mustOp(t, OpSpec{Op: "brightness", Args: map[string]any{"brightness": 2.0}})
	out := runOp(t, op, in)[0]

	assert.Equal(t, 0, out.NumSamples())
}

func TestBrightnessArgumentLengthMismatch(t *testing.T) {
	in := hostBatch(t, tensor.Shape{1, 1, 1}, tensor.HWC, []uint8{1}, []uint8{2})

	op := mustOp(t, OpSpec{Op: "brightness", Args: map[string]any{
		"brightness": []float64{1, 2, 3},
	}})
	require.ErrorIs(t, setupErr(t, op, in), ErrInvalidInput)
}

func TestBrightnessRejectsRank2(t *testing.T) {
	in := hostBatch(t, tensor.Shape{4, 3}, "", []uint8{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0})

	op := mustOp(t, OpSpec{Op: "brightness"})
	require.ErrorIs(t, setupErr(t, op, in), ErrInvalidInput)
}

func TestBrightnessRejectsChannelFirstLayout(t *testing.T) {
	in := hostBatch(t, tensor.Shape{3, 2, 2}, tensor.CHW,
		[]uint8{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0})

	op := mustOp(t, OpSpec{Op: "brightness"})
	require.ErrorIs(t, setupErr(t, op, in), ErrInvalidInput)
}

func TestBrightnessContrastRejectsBadDType(t *testing.T) {
	_, err := New(OpSpec{Op: "brightness_contrast", Args: map[string]any{"dtype": "png"}}, 4)
	require.ErrorIs(t, err, ErrInvalidConfiguration)
}
