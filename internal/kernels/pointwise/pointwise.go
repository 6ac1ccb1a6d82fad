// Package pointwise implements the per-element CPU kernels behind the color
// operators: MultiplyAdd for scalar affine transforms and LinearTransform
// for per-pixel channel mixing. Both families register every
// (uint8,int16,int32,float32) input/output pair at init; dispatch happens
// through the closed tables below.
package pointwise

import (
	"github.com/feedline-ml/feedline/internal/kernels"
	"github.com/feedline-ml/feedline/internal/tensor"
)

// Mat3 is a row-major 3x3 channel mixing matrix.
type Mat3 [9]float32

// Vec3 is a per-channel offset.
type Vec3 [3]float32

// Identity3 returns the identity mixing matrix.
func Identity3() Mat3 {
	return Mat3{1, 0, 0, 0, 1, 0, 0, 0, 1}
}

// MultiplyAddKernel computes out[i] = sat(in[i]*mul + add) over a sample
// view. Implementations keep per-instance state and must only be shared
// through manager worker slots.
type MultiplyAddKernel interface {
	Run(out, in tensor.Tensor, mul, add float32)
}

// LinearTransformKernel computes out[p] = sat(M*in[p] + off) for every
// 3-channel pixel p of a channel-last sample view.
type LinearTransformKernel interface {
	Run(out, in tensor.Tensor, m Mat3, off Vec3)
}

// MultiplyAdd dispatches the multiply-add family.
var MultiplyAdd = kernels.NewTable[MultiplyAddKernel]("multiply-add")

// LinearTransform dispatches the linear-transform family.
var LinearTransform = kernels.NewTable[LinearTransformKernel]("linear-transform")

func init() {
	registerIn[uint8]()
	registerIn[int16]()
	registerIn[int32]()
	registerIn[float32]()
}

func registerIn[In tensor.Element]() {
	registerPair[In, uint8]()
	registerPair[In, int16]()
	registerPair[In, int32]()
	registerPair[In, float32]()
}

func registerPair[In, Out tensor.Element]() {
	sig := kernels.Sig(tensor.DataTypeOf[In](), tensor.DataTypeOf[Out]())
	MultiplyAdd.Register(sig, func() MultiplyAddKernel { return &multiplyAdd[In, Out]{} })
	LinearTransform.Register(sig, func() LinearTransformKernel { return &linearTransform[In, Out]{} })
}
