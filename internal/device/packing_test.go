package device

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"

	"github.com/feedline-ml/feedline/internal/tensor"
)

func TestPackHalfRoundTrip(t *testing.T) {
	src := []float32{0, 1, -1, 0.5, -2.25, 65504, 1.0 / 3.0, float32(math.Pi)}

	packed := packHalf(src)
	require.Len(t, packed, 2*len(src))

	got := unpackHalf(packed, len(src))
	for i, v := range src {
		want := float16.Fromfloat32(v).Float32()
		assert.Equal(t, want, got[i], "value %g", v)
	}
}

func TestPackHalfExactValues(t *testing.T) {
	// Everything representable in half precision must survive untouched.
	src := []float32{0, 1, -1, 0.5, 2048, -240.125}
	got := unpackHalf(packHalf(src), len(src))
	assert.Equal(t, src, got)
}

func TestStageInt16RoundTrip(t *testing.T) {
	vals := make([]int16, 0, 1<<16)
	for v := math.MinInt16; v <= math.MaxInt16; v++ {
		vals = append(vals, int16(v))
	}
	raw := make([]byte, 2*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint16(raw[2*i:], uint16(v))
	}

	staged := stageFloat32(raw, tensor.Int16)
	require.Len(t, staged, 4*len(vals))

	back := unstageFloat32(staged, tensor.Int16)
	assert.Equal(t, raw, back)
}

func TestStageInt32RoundTrip(t *testing.T) {
	// Limited to values float32 represents exactly; MaxInt32 rounds up in
	// float32 and comes back through saturation.
	vals := []int32{0, 1, -1, 1 << 20, -(1 << 20), 1 << 24, math.MinInt32, math.MaxInt32}
	raw := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(raw[4*i:], uint32(v))
	}

	back := unstageFloat32(stageFloat32(raw, tensor.Int32), tensor.Int32)

	got := make([]int32, len(vals))
	for i := range got {
		got[i] = int32(binary.LittleEndian.Uint32(back[4*i:]))
	}
	assert.Equal(t, vals, got)
}

func TestStageRejectsUnsupported(t *testing.T) {
	assert.Panics(t, func() { stageFloat32(make([]byte, 4), tensor.Uint8) })
	assert.Panics(t, func() { unstageFloat32(make([]byte, 4), tensor.Float32) })
}

func TestSampleOffsetTable(t *testing.T) {
	shapes := tensor.ShapeList{
		{2, 3},
		{4},
		{0},
		{5},
	}

	packed := packSampleOffsets(shapes)
	require.Len(t, packed, 4*5)

	want := []uint32{0, 6, 10, 10, 15}
	for i, w := range want {
		assert.Equal(t, w, binary.LittleEndian.Uint32(packed[4*i:]), "offset %d", i)
	}
}

func TestMultiplyAddCoeffLayout(t *testing.T) {
	args := []MultiplyAddArgs{
		{Mul: 1.5, Add: -3},
		{Mul: 0.25, Add: 128},
	}

	packed := packMultiplyAddCoeffs(args)
	require.Len(t, packed, 16)

	at := func(i int) float32 {
		return math.Float32frombits(binary.LittleEndian.Uint32(packed[4*i:]))
	}
	assert.Equal(t, float32(1.5), at(0))
	assert.Equal(t, float32(-3), at(1))
	assert.Equal(t, float32(0.25), at(2))
	assert.Equal(t, float32(128), at(3))
}

func TestLinearTransformCoeffLayout(t *testing.T) {
	args := []LinearTransformArgs{
		{Matrix: [9]float32{1, 2, 3, 4, 5, 6, 7, 8, 9}, Offset: [3]float32{10, 11, 12}},
		{Matrix: [9]float32{-1, 0, 0, 0, -1, 0, 0, 0, -1}, Offset: [3]float32{255, 255, 255}},
	}

	packed := packLinearTransformCoeffs(args)
	require.Len(t, packed, 96)

	at := func(i int) float32 {
		return math.Float32frombits(binary.LittleEndian.Uint32(packed[4*i:]))
	}
	for j := 0; j < 9; j++ {
		assert.Equal(t, args[0].Matrix[j], at(j), "sample 0 matrix %d", j)
		assert.Equal(t, args[1].Matrix[j], at(12+j), "sample 1 matrix %d", j)
	}
	for j := 0; j < 3; j++ {
		assert.Equal(t, args[0].Offset[j], at(9+j), "sample 0 offset %d", j)
		assert.Equal(t, args[1].Offset[j], at(12+9+j), "sample 1 offset %d", j)
	}
}

func TestLaunchParamsLayout(t *testing.T) {
	packed := packLaunchParams(1000, 4, 250, 333)
	require.Len(t, packed, 16)
	assert.Equal(t, uint32(1000), binary.LittleEndian.Uint32(packed[0:]))
	assert.Equal(t, uint32(4), binary.LittleEndian.Uint32(packed[4:]))
	assert.Equal(t, uint32(250), binary.LittleEndian.Uint32(packed[8:]))
	assert.Equal(t, uint32(333), binary.LittleEndian.Uint32(packed[12:]))
}

func TestPaddedSize(t *testing.T) {
	cases := map[int]uint64{0: 0, 1: 4, 3: 4, 4: 4, 5: 8, 1023: 1024}
	for in, want := range cases {
		assert.Equal(t, want, paddedSize(in), "size %d", in)
	}
}

func TestFloat32View(t *testing.T) {
	raw := make([]byte, 8)
	binary.LittleEndian.PutUint32(raw[0:], math.Float32bits(1.5))
	binary.LittleEndian.PutUint32(raw[4:], math.Float32bits(-2))

	view := float32View(raw)
	assert.Equal(t, []float32{1.5, -2}, view)
}

func TestDispatchWorkgroups(t *testing.T) {
	assert.Equal(t, uint32(0), dispatchWorkgroups(0))
	assert.Equal(t, uint32(1), dispatchWorkgroups(1))
	assert.Equal(t, uint32(1), dispatchWorkgroups(256))
	assert.Equal(t, uint32(2), dispatchWorkgroups(257))
}
