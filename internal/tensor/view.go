package tensor

import (
	"fmt"
	"unsafe"
)

// Tensor is a non-owning view of one sample: raw bytes plus shape and
// element type. Views are dense row-major and must not outlive the Resize
// or Release of the list that produced them.
type Tensor struct {
	data  []byte
	shape Shape
	dtype DataType
}

// ViewOf wraps raw bytes as a sample view. data must cover the shape.
func ViewOf(data []byte, shape Shape, dtype DataType) Tensor {
	need := shape.NumElements() * dtype.Size()
	if len(data) < need {
		panic(fmt.Sprintf("view of %d bytes cannot hold shape %v of %s (%d bytes)",
			len(data), shape, dtype, need))
	}
	return Tensor{data: data[:need], shape: shape, dtype: dtype}
}

// Shape returns the view's shape.
func (t Tensor) Shape() Shape {
	return t.shape
}

// DType returns the view's element type.
func (t Tensor) DType() DataType {
	return t.dtype
}

// NumElements returns the total number of elements.
func (t Tensor) NumElements() int {
	return t.shape.NumElements()
}

// ByteSize returns the total memory size in bytes.
func (t Tensor) ByteSize() int {
	return t.NumElements() * t.dtype.Size()
}

// Bytes returns the raw byte slice backing the view.
func (t Tensor) Bytes() []byte {
	return t.data
}

// Frame views one frame of a sequence sample as a tensor of rank one less,
// without copying. The frame axis must be the leading axis.
func (t Tensor) Frame(i int) Tensor {
	if len(t.shape) == 0 {
		panic("cannot take a frame of a scalar")
	}
	if i < 0 || i >= t.shape[0] {
		panic(fmt.Sprintf("frame %d out of range [0,%d)", i, t.shape[0]))
	}
	sub := t.shape[1:].Clone()
	size := sub.NumElements() * t.dtype.Size()
	return Tensor{data: t.data[i*size : (i+1)*size], shape: sub, dtype: t.dtype}
}

// AsUint8 interprets the data as []uint8.
// Panics if the view's dtype is not Uint8.
func (t Tensor) AsUint8() []uint8 {
	if t.dtype != Uint8 {
		panic(fmt.Sprintf("tensor dtype is %s, not uint8", t.dtype))
	}
	return t.data // Already []byte = []uint8
}

// AsInt16 interprets the data as []int16.
// Panics if the view's dtype is not Int16.
func (t Tensor) AsInt16() []int16 {
	if t.dtype != Int16 {
		panic(fmt.Sprintf("tensor dtype is %s, not int16", t.dtype))
	}
	if len(t.data) == 0 {
		return nil
	}
	//nolint:gosec // unsafe.Slice for zero-copy access, bounds checked by NumElements()
	return unsafe.Slice((*int16)(unsafe.Pointer(&t.data[0])), t.NumElements())
}

// AsInt32 interprets the data as []int32.
// Panics if the view's dtype is not Int32.
func (t Tensor) AsInt32() []int32 {
	if t.dtype != Int32 {
		panic(fmt.Sprintf("tensor dtype is %s, not int32", t.dtype))
	}
	if len(t.data) == 0 {
		return nil
	}
	//nolint:gosec // unsafe.Slice for zero-copy access, bounds checked by NumElements()
	return unsafe.Slice((*int32)(unsafe.Pointer(&t.data[0])), t.NumElements())
}

// AsFloat32 interprets the data as []float32.
// Panics if the view's dtype is not Float32.
func (t Tensor) AsFloat32() []float32 {
	if t.dtype != Float32 {
		panic(fmt.Sprintf("tensor dtype is %s, not float32", t.dtype))
	}
	if len(t.data) == 0 {
		return nil
	}
	//nolint:gosec // unsafe.Slice for zero-copy access, bounds checked by NumElements()
	return unsafe.Slice((*float32)(unsafe.Pointer(&t.data[0])), t.NumElements())
}

// Data returns the typed element slice of a view. Panics if T does not match
// the view's dtype. Generic counterpart of the As* accessors for kernels
// parameterized over element types.
func Data[T Element](t Tensor) []T {
	if want := DataTypeOf[T](); t.dtype != want {
		panic(fmt.Sprintf("tensor dtype is %s, not %s", t.dtype, want))
	}
	if len(t.data) == 0 {
		return nil
	}
	//nolint:gosec // unsafe.Slice for zero-copy access, bounds checked by NumElements()
	return unsafe.Slice((*T)(unsafe.Pointer(&t.data[0])), t.NumElements())
}
