package tensor

// OutputDesc declares the per-sample shapes and element type of one operator
// output. Setup produces descriptors; the executor allocates from them
// before the run phase.
type OutputDesc struct {
	Shapes ShapeList
	DType  DataType
}
