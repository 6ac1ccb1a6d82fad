// Copyright 2025 The Feedline Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the public API for feedline's batched data
// containers: TensorList batches with contiguous or per-sample backing,
// non-owning sample views, element types, axis layouts and the pooled
// allocator behind them.
package tensor

import (
	"github.com/feedline-ml/feedline/internal/tensor"
)

// Element constrains the element types CPU kernels operate on.
type Element = tensor.Element

// DataType represents the runtime element type of a batch.
type DataType = tensor.DataType

// Element type constants. Float16 is a device transfer format only.
const (
	Uint8   DataType = tensor.Uint8
	Int16   DataType = tensor.Int16
	Int32   DataType = tensor.Int32
	Float32 DataType = tensor.Float32
	Float16 DataType = tensor.Float16
)

// Layout tags each axis of a sample shape with its meaning.
type Layout = tensor.Layout

// Common layouts for image and video samples.
const (
	HWC  Layout = tensor.HWC
	FHWC Layout = tensor.FHWC
	CHW  Layout = tensor.CHW
)

// Shape represents the dimensions of one sample.
type Shape = tensor.Shape

// ShapeList holds one shape per sample of a batch.
type ShapeList = tensor.ShapeList

// Tensor is a non-owning view of one sample.
type Tensor = tensor.Tensor

// TensorList is an ordered batch of samples sharing one element type
// and layout.
type TensorList = tensor.TensorList

// OutputDesc declares the shapes and element type of one operator
// output.
type OutputDesc = tensor.OutputDesc

// Allocator hands out pooled, reference-counted backings for batches.
type Allocator = tensor.Allocator

// AllocatorStats reports pool usage counters.
type AllocatorStats = tensor.AllocatorStats

// ErrResourceExhaustion indicates an allocation exceeded the
// allocator's byte budget.
var ErrResourceExhaustion = tensor.ErrResourceExhaustion

// NewAllocator creates an allocator with the given byte budget, 0 for
// unbounded.
func NewAllocator(budget int64) *Allocator {
	return tensor.NewAllocator(budget)
}

// NewTensorList returns an empty contiguous-mode batch drawing its
// backing from alloc.
func NewTensorList(alloc *Allocator) *TensorList {
	return tensor.NewTensorList(alloc)
}

// NewScatteredList returns an empty batch that allocates each sample
// independently.
func NewScatteredList(alloc *Allocator) *TensorList {
	return tensor.NewScatteredList(alloc)
}

// NewShapeList builds a list from the given shapes, enforcing uniform
// rank.
func NewShapeList(shapes ...Shape) (ShapeList, error) {
	return tensor.NewShapeList(shapes...)
}

// UniformShapeList returns a list of n copies of shape.
func UniformShapeList(n int, shape Shape) ShapeList {
	return tensor.UniformShapeList(n, shape)
}

// ViewOf wraps raw bytes as a sample view.
func ViewOf(data []byte, shape Shape, dtype DataType) Tensor {
	return tensor.ViewOf(data, shape, dtype)
}

// Data returns the typed element slice of a view.
func Data[T Element](t Tensor) []T {
	return tensor.Data[T](t)
}

// DataTypeOf returns the runtime tag for a compile-time element type.
func DataTypeOf[T Element]() DataType {
	return tensor.DataTypeOf[T]()
}
