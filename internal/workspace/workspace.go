// Package workspace carries the per-iteration execution state handed to
// operators: bound inputs and outputs, resolved per-sample argument
// vectors, and the worker pool or device stream the operator runs on.
//
// Bindings persist across iterations; argument vectors do not. Reset
// drops them wholesale so a value resolved for iteration k can never
// leak into iteration k+1.
package workspace

import (
	"fmt"

	"github.com/feedline-ml/feedline/internal/device"
	"github.com/feedline-ml/feedline/internal/pool"
	"github.com/feedline-ml/feedline/internal/tensor"
)

// Workspace binds one operator's inputs, outputs and arguments for the
// current iteration.
type Workspace struct {
	inputs  []*tensor.TensorList
	outputs []*tensor.TensorList
	devIn   []*device.Batch
	devOut  []*device.Batch

	pool   *pool.Pool
	stream *device.Stream

	iter uint64
	args map[string]any
}

// New returns a workspace carrying the given execution handles. Either
// handle may be nil when the corresponding backend is absent.
func New(p *pool.Pool, s *device.Stream) *Workspace {
	return &Workspace{pool: p, stream: s, args: make(map[string]any)}
}

// Reset advances the workspace to a new iteration. Bindings stay;
// argument vectors are dropped.
func (ws *Workspace) Reset(iter uint64) {
	ws.iter = iter
	clear(ws.args)
}

// Iteration returns the current iteration sequence number.
func (ws *Workspace) Iteration() uint64 { return ws.iter }

// ThreadPool returns the CPU worker pool, nil for device-only execution.
func (ws *Workspace) ThreadPool() *pool.Pool { return ws.pool }

// Stream returns the device stream, nil for CPU-only execution.
func (ws *Workspace) Stream() *device.Stream { return ws.stream }

// BindInputs replaces the host input bindings.
func (ws *Workspace) BindInputs(in ...*tensor.TensorList) {
	ws.inputs = append(ws.inputs[:0], in...)
}

// BindOutputs replaces the host output bindings.
func (ws *Workspace) BindOutputs(out ...*tensor.TensorList) {
	ws.outputs = append(ws.outputs[:0], out...)
}

func (ws *Workspace) NumInputs() int  { return len(ws.inputs) }
func (ws *Workspace) NumOutputs() int { return len(ws.outputs) }

// Input returns the i-th host input. Panics when unbound.
func (ws *Workspace) Input(i int) *tensor.TensorList { return ws.inputs[i] }

// Output returns the i-th host output. Panics when unbound.
func (ws *Workspace) Output(i int) *tensor.TensorList { return ws.outputs[i] }

// BindDeviceInputs replaces the device input bindings.
func (ws *Workspace) BindDeviceInputs(in ...*device.Batch) {
	ws.devIn = append(ws.devIn[:0], in...)
}

// BindDeviceOutputs replaces the device output bindings.
func (ws *Workspace) BindDeviceOutputs(out ...*device.Batch) {
	ws.devOut = append(ws.devOut[:0], out...)
}

func (ws *Workspace) NumDeviceInputs() int  { return len(ws.devIn) }
func (ws *Workspace) NumDeviceOutputs() int { return len(ws.devOut) }

func (ws *Workspace) DeviceInput(i int) *device.Batch  { return ws.devIn[i] }
func (ws *Workspace) DeviceOutput(i int) *device.Batch { return ws.devOut[i] }

// HasArg reports whether an argument vector was set this iteration.
func (ws *Workspace) HasArg(name string) bool {
	_, ok := ws.args[name]
	return ok
}

// SetArg stores a per-sample argument vector for the current iteration.
// Setup resolves arguments through here; Run reads them back with Arg.
func SetArg[T any](ws *Workspace, name string, vals []T) {
	ws.args[name] = vals
}

// Arg returns the argument vector stored under name. Panics when the
// argument was not set this iteration or was set with another type;
// both are operator bugs, not data errors.
func Arg[T any](ws *Workspace, name string) []T {
	v, ok := ws.args[name]
	if !ok {
		panic(fmt.Sprintf("workspace: argument %q not set this iteration", name))
	}
	vals, ok := v.([]T)
	if !ok {
		panic(fmt.Sprintf("workspace: argument %q holds %T", name, v))
	}
	return vals
}
