package pointwise

import (
	"fmt"

	"github.com/feedline-ml/feedline/internal/tensor"
)

// linearTransform is the generic per-pixel channel mixing kernel. The input
// must be channel-last with 3 channels.
type linearTransform[In, Out tensor.Element] struct{}

func (k *linearTransform[In, Out]) Run(out, in tensor.Tensor, m Mat3, off Vec3) {
	src := tensor.Data[In](in)
	dst := tensor.Data[Out](out)
	if len(src) != len(dst) {
		panic(fmt.Sprintf("linear-transform: input has %d elements, output %d", len(src), len(dst)))
	}
	if len(src)%3 != 0 {
		panic(fmt.Sprintf("linear-transform: %d elements do not split into 3-channel pixels", len(src)))
	}

	for p := 0; p+2 < len(src); p += 3 {
		c0 := float32(src[p])
		c1 := float32(src[p+1])
		c2 := float32(src[p+2])
		dst[p] = tensor.ConvertSat[Out](float64(m[0]*c0 + m[1]*c1 + m[2]*c2 + off[0]))
		dst[p+1] = tensor.ConvertSat[Out](float64(m[3]*c0 + m[4]*c1 + m[5]*c2 + off[1]))
		dst[p+2] = tensor.ConvertSat[Out](float64(m[6]*c0 + m[7]*c1 + m[8]*c2 + off[2]))
	}
}
