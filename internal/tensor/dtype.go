// Package tensor provides the batched data containers for the pipeline:
// TensorList batches, per-sample views, element types, and the pooled
// allocator backing them.
package tensor

import "math"

// Element is a constraint over the element types CPU kernels operate on.
type Element interface {
	~uint8 | ~int16 | ~int32 | ~float32
}

// DataType represents runtime element type information for tensors.
type DataType int

// Supported element types. Float16 is a device storage format only: batches
// may be packed to half precision for transfer, no CPU kernel accepts it.
const (
	Uint8 DataType = iota
	Int16
	Int32
	Float32
	Float16
)

// Size returns the byte size of one element.
func (dt DataType) Size() int {
	switch dt {
	case Uint8:
		return 1
	case Int16, Float16:
		return 2
	case Int32, Float32:
		return 4
	default:
		panic("unknown data type")
	}
}

// String returns a human-readable name for the data type.
func (dt DataType) String() string {
	switch dt {
	case Uint8:
		return "uint8"
	case Int16:
		return "int16"
	case Int32:
		return "int32"
	case Float32:
		return "float32"
	case Float16:
		return "float16"
	default:
		return "unknown"
	}
}

// IsFloat reports whether the type is a floating-point format.
func (dt DataType) IsFloat() bool {
	return dt == Float32 || dt == Float16
}

// FullRange returns the value scale of the type: the largest positive
// representable value for integral types, 1.0 for floating-point types.
// Brightness shifts are expressed as fractions of this scale.
func (dt DataType) FullRange() float64 {
	switch dt {
	case Uint8:
		return math.MaxUint8
	case Int16:
		return math.MaxInt16
	case Int32:
		return math.MaxInt32
	default:
		return 1.0
	}
}

// HalfRange returns the midpoint of the type's dynamic range: 2^(bits-1) for
// unsigned and 2^(bits-2) for signed integrals, 0.5 for floating-point types.
// This is the default pivot for contrast adjustment.
func (dt DataType) HalfRange() float64 {
	switch dt {
	case Uint8:
		return 1 << 7
	case Int16:
		return 1 << 14
	case Int32:
		return 1 << 30
	default:
		return 0.5
	}
}

// DataTypeOf returns the runtime tag for a compile-time element type.
func DataTypeOf[T Element]() DataType {
	var zero T
	switch any(zero).(type) {
	case uint8:
		return Uint8
	case int16:
		return Int16
	case int32:
		return Int32
	case float32:
		return Float32
	default:
		panic("unsupported element type")
	}
}
