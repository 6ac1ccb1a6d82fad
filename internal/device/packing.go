package device

import (
	"encoding/binary"
	"fmt"
	"math"
	"unsafe"

	"github.com/x448/float16"

	"github.com/feedline-ml/feedline/internal/tensor"
)

// paddedSize rounds a byte length up to the 4-byte granularity wgpu
// requires for buffer sizes and copies.
func paddedSize(n int) uint64 {
	return uint64((n + 3) &^ 3)
}

// float32View reinterprets little-endian float32 bytes in place.
func float32View(raw []byte) []float32 {
	return unsafe.Slice((*float32)(unsafe.Pointer(unsafe.SliceData(raw))), len(raw)/4) //nolint:gosec
}

// packHalf converts float32 values to IEEE half-precision bits,
// little-endian, two bytes per value.
func packHalf(src []float32) []byte {
	out := make([]byte, 2*len(src))
	for i, v := range src {
		binary.LittleEndian.PutUint16(out[2*i:], float16.Fromfloat32(v).Bits())
	}
	return out
}

// unpackHalf widens n half-precision values back to float32.
func unpackHalf(data []byte, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float16.Frombits(binary.LittleEndian.Uint16(data[2*i:])).Float32()
	}
	return out
}

// stageFloat32 widens an Int16 or Int32 payload to float32 bytes for
// device storage. Integral types have no native storage-buffer layout
// that the batched shaders address uniformly, so they ride as f32 and
// narrow again on download.
func stageFloat32(raw []byte, dt tensor.DataType) []byte {
	switch dt {
	case tensor.Int16:
		n := len(raw) / 2
		src := unsafe.Slice((*int16)(unsafe.Pointer(unsafe.SliceData(raw))), n) //nolint:gosec
		out := make([]byte, 4*n)
		dst := unsafe.Slice((*float32)(unsafe.Pointer(unsafe.SliceData(out))), n) //nolint:gosec
		for i, v := range src {
			dst[i] = float32(v)
		}
		return out
	case tensor.Int32:
		n := len(raw) / 4
		src := unsafe.Slice((*int32)(unsafe.Pointer(unsafe.SliceData(raw))), n) //nolint:gosec
		out := make([]byte, 4*n)
		dst := unsafe.Slice((*float32)(unsafe.Pointer(unsafe.SliceData(out))), n) //nolint:gosec
		for i, v := range src {
			dst[i] = float32(v)
		}
		return out
	default:
		panic(fmt.Sprintf("stageFloat32: cannot stage %s", dt))
	}
}

// unstageFloat32 narrows staged float32 bytes back to the logical
// integral type with saturating round-to-nearest conversion.
func unstageFloat32(raw []byte, dt tensor.DataType) []byte {
	n := len(raw) / 4
	src := unsafe.Slice((*float32)(unsafe.Pointer(unsafe.SliceData(raw))), n) //nolint:gosec
	switch dt {
	case tensor.Int16:
		out := make([]byte, 2*n)
		dst := unsafe.Slice((*int16)(unsafe.Pointer(unsafe.SliceData(out))), n) //nolint:gosec
		for i, v := range src {
			dst[i] = tensor.ConvertSat[int16](float64(v))
		}
		return out
	case tensor.Int32:
		out := make([]byte, 4*n)
		dst := unsafe.Slice((*int32)(unsafe.Pointer(unsafe.SliceData(out))), n) //nolint:gosec
		for i, v := range src {
			dst[i] = tensor.ConvertSat[int32](float64(v))
		}
		return out
	default:
		panic(fmt.Sprintf("unstageFloat32: cannot narrow to %s", dt))
	}
}

// packSampleOffsets lays out the inclusive-exclusive element offset table
// the shaders binary-search to map a flat element index to its sample.
// The table has NumSamples+1 entries; the last one is the total count.
func packSampleOffsets(shapes tensor.ShapeList) []byte {
	out := make([]byte, 4*(len(shapes)+1))
	off := uint32(0)
	for i, s := range shapes {
		binary.LittleEndian.PutUint32(out[4*i:], off)
		off += uint32(s.NumElements())
	}
	binary.LittleEndian.PutUint32(out[4*len(shapes):], off)
	return out
}

// packMultiplyAddCoeffs flattens per-sample coefficients as [mul, add]
// pairs, matching the stride the multiply-add shaders index with.
func packMultiplyAddCoeffs(args []MultiplyAddArgs) []byte {
	out := make([]byte, 8*len(args))
	for i, a := range args {
		binary.LittleEndian.PutUint32(out[8*i:], math.Float32bits(a.Mul))
		binary.LittleEndian.PutUint32(out[8*i+4:], math.Float32bits(a.Add))
	}
	return out
}

// packLinearTransformCoeffs flattens per-sample transforms as 12 floats:
// the row-major 3x3 matrix followed by the offset vector.
func packLinearTransformCoeffs(args []LinearTransformArgs) []byte {
	out := make([]byte, 48*len(args))
	for i, a := range args {
		base := 48 * i
		for j, m := range a.Matrix {
			binary.LittleEndian.PutUint32(out[base+4*j:], math.Float32bits(m))
		}
		for j, o := range a.Offset {
			binary.LittleEndian.PutUint32(out[base+36+4*j:], math.Float32bits(o))
		}
	}
	return out
}

// packLaunchParams encodes the uniform block shared by all shaders:
// total element count, sample count, packed word count and pixel count,
// already 16 bytes so no tail padding is needed.
func packLaunchParams(size, samples, words, pixels uint32) []byte {
	out := make([]byte, 16)
	binary.LittleEndian.PutUint32(out[0:], size)
	binary.LittleEndian.PutUint32(out[4:], samples)
	binary.LittleEndian.PutUint32(out[8:], words)
	binary.LittleEndian.PutUint32(out[12:], pixels)
	return out
}
