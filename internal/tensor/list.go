package tensor

import "fmt"

// TensorList is an ordered batch of samples sharing one element type and one
// layout. The backing is either a single contiguous allocation with
// per-sample offsets, or one independent allocation per sample.
type TensorList struct {
	alloc  *Allocator
	dtype  DataType
	layout Layout
	shapes ShapeList

	contiguous bool
	buf        *Buffer   // contiguous backing
	offsets    []int     // len(shapes)+1 byte offsets into buf
	samples    []*Buffer // scattered backing

	srcInfo []string
}

// NewTensorList returns an empty contiguous-mode list drawing its backing
// from alloc.
func NewTensorList(alloc *Allocator) *TensorList {
	return &TensorList{alloc: alloc, contiguous: true}
}

// NewScatteredList returns an empty list that allocates each sample
// independently.
func NewScatteredList(alloc *Allocator) *TensorList {
	return &TensorList{alloc: alloc}
}

// NumSamples returns the number of samples in the batch.
func (tl *TensorList) NumSamples() int {
	return len(tl.shapes)
}

// DType returns the shared element type.
func (tl *TensorList) DType() DataType {
	return tl.dtype
}

// Layout returns the shared axis layout.
func (tl *TensorList) Layout() Layout {
	return tl.layout
}

// SetLayout tags the batch with an axis layout. The layout rank must match
// the sample rank when both are known.
func (tl *TensorList) SetLayout(l Layout) {
	if l != "" && len(tl.shapes) > 0 && l.Rank() != tl.shapes.Rank() {
		panic(fmt.Sprintf("layout %q has rank %d, samples have rank %d", l, l.Rank(), tl.shapes.Rank()))
	}
	tl.layout = l
}

// Shapes returns the per-sample shapes.
func (tl *TensorList) Shapes() ShapeList {
	return tl.shapes
}

// Shape returns the shape of sample i.
func (tl *TensorList) Shape(i int) Shape {
	return tl.shapes[i]
}

// IsContiguous reports whether the batch lives in one allocation.
func (tl *TensorList) IsContiguous() bool {
	return tl.contiguous
}

// SetContiguous switches the backing mode for subsequent Resize calls.
// Panics if called while a backing is live.
func (tl *TensorList) SetContiguous(c bool) {
	if tl.buf != nil || len(tl.samples) > 0 {
		panic("cannot change backing mode of an allocated tensor list")
	}
	tl.contiguous = c
}

// TotalBytes returns the byte size of the whole batch.
func (tl *TensorList) TotalBytes() int {
	return tl.shapes.TotalElements() * tl.dtype.Size()
}

// Resize releases the current backing and allocates for the given shapes and
// element type. All previously obtained views become invalid.
func (tl *TensorList) Resize(shapes ShapeList, dtype DataType) error {
	if err := shapes.Validate(); err != nil {
		return fmt.Errorf("resize: %w", err)
	}
	tl.releaseBacking()
	tl.shapes = shapes.Clone()
	tl.dtype = dtype
	tl.layout = ""
	tl.srcInfo = make([]string, len(shapes))

	if tl.contiguous {
		tl.offsets = make([]int, len(shapes)+1)
		off := 0
		for i, s := range tl.shapes {
			tl.offsets[i] = off
			off += s.NumElements() * dtype.Size()
		}
		tl.offsets[len(tl.shapes)] = off

		buf, err := tl.alloc.Get(off)
		if err != nil {
			return fmt.Errorf("resize to %d samples: %w", len(shapes), err)
		}
		tl.buf = buf
		return nil
	}

	tl.samples = make([]*Buffer, len(shapes))
	for i, s := range tl.shapes {
		b, err := tl.alloc.Get(s.NumElements() * dtype.Size())
		if err != nil {
			tl.releaseBacking()
			tl.shapes = nil
			tl.srcInfo = nil
			return fmt.Errorf("resize sample %d: %w", i, err)
		}
		tl.samples[i] = b
	}
	return nil
}

// View returns the sample i view. The view aliases the backing memory.
func (tl *TensorList) View(i int) Tensor {
	s := tl.shapes[i]
	if tl.contiguous {
		return Tensor{
			data:  tl.buf.Bytes()[tl.offsets[i]:tl.offsets[i+1]],
			shape: s,
			dtype: tl.dtype,
		}
	}
	size := s.NumElements() * tl.dtype.Size()
	return Tensor{data: tl.samples[i].Bytes()[:size], shape: s, dtype: tl.dtype}
}

// ContiguousBytes returns the whole batch as one byte slice.
// Panics when the list is not contiguous.
func (tl *TensorList) ContiguousBytes() []byte {
	if !tl.contiguous {
		panic("tensor list is not contiguous")
	}
	if tl.buf == nil {
		return nil
	}
	return tl.buf.Bytes()[:tl.offsets[len(tl.shapes)]]
}

// SampleOffset returns the byte offset of sample i within the contiguous
// backing. Panics when the list is not contiguous.
func (tl *TensorList) SampleOffset(i int) int {
	if !tl.contiguous {
		panic("tensor list is not contiguous")
	}
	return tl.offsets[i]
}

// ShareData makes tl an alias of src: same backing buffers, shapes, element
// type, layout, and source info. Both lists release the shared backing
// independently.
func (tl *TensorList) ShareData(src *TensorList) {
	tl.releaseBacking()
	tl.dtype = src.dtype
	tl.layout = src.layout
	tl.shapes = src.shapes.Clone()
	tl.contiguous = src.contiguous
	tl.srcInfo = append([]string(nil), src.srcInfo...)

	if src.contiguous {
		if src.buf != nil {
			src.buf.Retain()
		}
		tl.buf = src.buf
		tl.offsets = append([]int(nil), src.offsets...)
		return
	}
	tl.samples = make([]*Buffer, len(src.samples))
	for i, b := range src.samples {
		b.Retain()
		tl.samples[i] = b
	}
}

// SourceInfo returns the provenance string of sample i.
func (tl *TensorList) SourceInfo(i int) string {
	return tl.srcInfo[i]
}

// SetSourceInfo records the provenance of sample i, typically the record or
// file the sample was decoded from.
func (tl *TensorList) SetSourceInfo(i int, info string) {
	tl.srcInfo[i] = info
}

// PropagateMeta copies the layout and per-sample source info from src.
// Operators call this so provenance survives each transform.
func (tl *TensorList) PropagateMeta(src *TensorList) {
	tl.layout = src.layout
	tl.srcInfo = append(tl.srcInfo[:0], src.srcInfo...)
}

// Release returns the backing buffers to the allocator and empties the list.
// The list may be resized again afterwards.
func (tl *TensorList) Release() {
	tl.releaseBacking()
	tl.shapes = nil
	tl.offsets = nil
	tl.srcInfo = nil
	tl.layout = ""
}

func (tl *TensorList) releaseBacking() {
	if tl.buf != nil {
		tl.buf.Release()
		tl.buf = nil
	}
	for _, b := range tl.samples {
		b.Release()
	}
	tl.samples = nil
}
