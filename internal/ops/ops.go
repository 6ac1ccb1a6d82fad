// Package ops implements the pipeline operators: the two-phase
// Setup/Run contract, operator construction from declarative specs, and
// the built-in operator set (brightness/contrast, color twist, batch
// compaction, record readers, external sources).
//
// Setup reads the current iteration's shapes, types and arguments and
// declares output descriptors; Run transforms data into pre-allocated
// outputs. Operators keep no per-iteration state outside the workspace,
// so a failed iteration leaves nothing to unwind.
package ops

import (
	"errors"
	"fmt"
	"sort"

	"github.com/feedline-ml/feedline/internal/tensor"
	"github.com/feedline-ml/feedline/internal/workspace"
)

var (
	// ErrInvalidConfiguration marks a malformed operator spec. Fatal at
	// pipeline build time.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrInvalidInput marks a shape, type or layout violation detected
	// in Setup. Aborts the iteration, not the pipeline.
	ErrInvalidInput = errors.New("invalid input")
)

// Operator is the two-phase contract every pipeline stage implements.
// Setup validates this iteration's inputs, resolves arguments into the
// workspace and declares outputs; Run fills them. When Setup returns
// alloc=false the operator manages its own output storage and the
// executor leaves the bound output lists untouched.
type Operator interface {
	Name() string
	NumInputs() int
	NumOutputs() int
	Setup(ws *workspace.Workspace) (descs []tensor.OutputDesc, alloc bool, err error)
	Run(ws *workspace.Workspace) error
}

// DeviceOperator is implemented by operators that can execute on the
// device stream. Setup is shared; RunDevice issues launches over the
// workspace's device bindings instead of writing host outputs.
type DeviceOperator interface {
	Operator
	RunDevice(ws *workspace.Workspace) error
}

// OpSpec describes one operator instance in a pipeline definition: the
// registered operator name, named arguments, and optional placement on
// the device stream.
type OpSpec struct {
	Op     string         `mapstructure:"op"`
	Device bool           `mapstructure:"device"`
	Args   map[string]any `mapstructure:"args"`
}

// Factory builds an operator from its spec. batchSize is the pipeline's
// declared batch size, available for preallocation.
type Factory func(spec OpSpec, batchSize int) (Operator, error)

var registry = make(map[string]Factory)

// Register makes an operator constructible by name. Panics on duplicate
// registration; operator names are a closed, compile-time set.
func Register(name string, factory Factory) {
	if _, ok := registry[name]; ok {
		panic("ops: operator already registered: " + name)
	}
	registry[name] = factory
}

// New builds the operator named by spec.
func New(spec OpSpec, batchSize int) (Operator, error) {
	factory, ok := registry[spec.Op]
	if !ok {
		return nil, fmt.Errorf("%w: unknown operator %q", ErrInvalidConfiguration, spec.Op)
	}
	return factory(spec, batchSize)
}

// Registered returns the sorted names of all registered operators.
func Registered() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// inputMeta reads the shape, type and layout of the primary input,
// wherever it is bound this iteration.
func inputMeta(ws *workspace.Workspace) (tensor.ShapeList, tensor.DataType, tensor.Layout, error) {
	if ws.NumInputs() > 0 {
		in := ws.Input(0)
		return in.Shapes(), in.DType(), in.Layout(), nil
	}
	if ws.NumDeviceInputs() > 0 {
		in := ws.DeviceInput(0)
		return in.Shapes(), in.DType(), in.Layout(), nil
	}
	return nil, 0, "", fmt.Errorf("%w: no input bound", ErrInvalidInput)
}

// checkImageInput enforces the shared constraints of the pixel
// operators: rank 3 or 4, supported element type, channel-last or empty
// layout. Rank 4 layouts must mark the leading axis as frames.
func checkImageInput(name string, shapes tensor.ShapeList, dtype tensor.DataType, layout tensor.Layout) error {
	if shapes.NumSamples() == 0 {
		return nil
	}
	rank := shapes.Rank()
	if rank < 3 || rank > 4 {
		return fmt.Errorf("%w: %s: only 3 and 4 dimensional inputs are supported, got rank %d",
			ErrInvalidInput, name, rank)
	}
	if layout != "" {
		if layout.Rank() != rank {
			return fmt.Errorf("%w: %s: layout %q does not match rank %d",
				ErrInvalidInput, name, layout, rank)
		}
		frame := layout
		if layout.HasFrames() {
			if layout.FrameDim() != 0 {
				return fmt.Errorf("%w: %s: frame axis must lead in layout %q",
					ErrInvalidInput, name, layout)
			}
			frame = layout.DropFrames()
		} else if rank == 4 {
			return fmt.Errorf("%w: %s: rank 4 layout %q has no frame axis",
				ErrInvalidInput, name, layout)
		}
		if !frame.IsChannelLast() {
			return fmt.Errorf("%w: %s: only channel-last or empty layouts are supported, got %q",
				ErrInvalidInput, name, layout)
		}
	}
	switch dtype {
	case tensor.Uint8, tensor.Int16, tensor.Int32, tensor.Float32:
		return nil
	default:
		return fmt.Errorf("%w: %s: unsupported input type %s", ErrInvalidInput, name, dtype)
	}
}

// isSequence reports whether samples split into leading-axis frames for
// kernel submission. Unlabeled rank 4 shapes are treated as sequences.
func isSequence(layout tensor.Layout, sh tensor.Shape) bool {
	return layout.HasFrames() || (layout == "" && len(sh) == 4)
}
