package tensor

import "fmt"

// Shape represents the dimensions of one sample.
type Shape []int

// NumElements returns the total number of elements. A rank-0 shape is a
// scalar with one element.
func (s Shape) NumElements() int {
	n := 1
	for _, dim := range s {
		n *= dim
	}
	return n
}

// Validate checks that all dimensions are non-negative. Zero extents
// are legal and describe an empty sample, e.g. an annotation list with
// every object filtered out.
func (s Shape) Validate() error {
	for i, dim := range s {
		if dim < 0 {
			return fmt.Errorf("invalid dimension at index %d: %d (must be >= 0)", i, dim)
		}
	}
	return nil
}

// Equal checks if two shapes are equal.
func (s Shape) Equal(other Shape) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy of the shape.
func (s Shape) Clone() Shape {
	clone := make(Shape, len(s))
	copy(clone, s)
	return clone
}

// ShapeList holds one shape per sample of a batch. All shapes in a list
// share a single rank; per-sample extents may differ.
type ShapeList []Shape

// NewShapeList builds a list from the given shapes, enforcing uniform rank
// and positive dimensions.
func NewShapeList(shapes ...Shape) (ShapeList, error) {
	sl := ShapeList(shapes)
	if err := sl.Validate(); err != nil {
		return nil, err
	}
	return sl, nil
}

// UniformShapeList returns a list of n copies of shape.
func UniformShapeList(n int, shape Shape) ShapeList {
	sl := make(ShapeList, n)
	for i := range sl {
		sl[i] = shape.Clone()
	}
	return sl
}

// NumSamples returns the number of samples in the list.
func (sl ShapeList) NumSamples() int {
	return len(sl)
}

// Rank returns the shared rank of the samples, 0 for an empty list.
func (sl ShapeList) Rank() int {
	if len(sl) == 0 {
		return 0
	}
	return len(sl[0])
}

// Validate checks that every shape is valid and all ranks agree.
func (sl ShapeList) Validate() error {
	for i, s := range sl {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("sample %d: %w", i, err)
		}
		if len(s) != sl.Rank() {
			return fmt.Errorf("sample %d: rank %d does not match rank %d of sample 0", i, len(s), sl.Rank())
		}
	}
	return nil
}

// TotalElements returns the summed element count over all samples.
func (sl ShapeList) TotalElements() int {
	n := 0
	for _, s := range sl {
		n += s.NumElements()
	}
	return n
}

// MaxElements returns the largest per-sample element count, 0 when empty.
func (sl ShapeList) MaxElements() int {
	m := 0
	for _, s := range sl {
		if n := s.NumElements(); n > m {
			m = n
		}
	}
	return m
}

// Equal checks if two shape lists are sample-wise equal.
func (sl ShapeList) Equal(other ShapeList) bool {
	if len(sl) != len(other) {
		return false
	}
	for i := range sl {
		if !sl[i].Equal(other[i]) {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the list.
func (sl ShapeList) Clone() ShapeList {
	clone := make(ShapeList, len(sl))
	for i, s := range sl {
		clone[i] = s.Clone()
	}
	return clone
}

// Uniform reports whether all samples share one shape.
func (sl ShapeList) Uniform() bool {
	if len(sl) == 0 {
		return true
	}
	for _, s := range sl[1:] {
		if !s.Equal(sl[0]) {
			return false
		}
	}
	return true
}
