package device

// MultiplyAddArgs holds the per-sample coefficients of a fused
// multiply-add launch: out = in*Mul + Add for every element.
type MultiplyAddArgs struct {
	Mul float32
	Add float32
}

// LinearTransformArgs holds the per-sample 3x3 matrix and offset of a
// channel-space transform over channel-last pixels.
type LinearTransformArgs struct {
	Matrix [9]float32
	Offset [3]float32
}
