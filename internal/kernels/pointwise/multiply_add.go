package pointwise

import (
	"fmt"

	"github.com/feedline-ml/feedline/internal/tensor"
)

// multiplyAdd is the generic multiply-add kernel. For uint8 input it builds
// a 256-entry lookup table per (mul, add) pair; the table lives in the
// instance, so reuse across samples and iterations is free and confined to
// one worker slot.
type multiplyAdd[In, Out tensor.Element] struct {
	lut    []Out
	lutMul float32
	lutAdd float32
}

func (k *multiplyAdd[In, Out]) Run(out, in tensor.Tensor, mul, add float32) {
	src := tensor.Data[In](in)
	dst := tensor.Data[Out](out)
	if len(src) != len(dst) {
		panic(fmt.Sprintf("multiply-add: input has %d elements, output %d", len(src), len(dst)))
	}

	if tensor.DataTypeOf[In]() == tensor.Uint8 {
		k.runLUT(dst, src, mul, add)
		return
	}
	for i, v := range src {
		dst[i] = tensor.ConvertSat[Out](float64(mul*float32(v) + add))
	}
}

func (k *multiplyAdd[In, Out]) runLUT(dst []Out, src []In, mul, add float32) {
	if k.lut == nil || k.lutMul != mul || k.lutAdd != add {
		if k.lut == nil {
			k.lut = make([]Out, 256)
		}
		for v := 0; v < 256; v++ {
			k.lut[v] = tensor.ConvertSat[Out](float64(mul*float32(v) + add))
		}
		k.lutMul, k.lutAdd = mul, add
	}
	for i, v := range src {
		dst[i] = k.lut[uint8(v)]
	}
}
