// Package pipeline assembles operators into an executable chain and
// drives it iteration by iteration: Setup, output allocation, Run,
// device boundary transfers, and commit or discard of the results.
//
// A pipeline owns its worker pool, its allocator and, when requested,
// one device stream. Iterations either complete wholly or leave nothing
// visible: outputs are handed to the caller only after every stage
// succeeded.
package pipeline

import (
	"fmt"
	"log/slog"
	"runtime"
	"sync/atomic"

	"github.com/feedline-ml/feedline/internal/device"
	"github.com/feedline-ml/feedline/internal/ops"
	"github.com/feedline-ml/feedline/internal/pool"
	"github.com/feedline-ml/feedline/internal/tensor"
	"github.com/feedline-ml/feedline/internal/workspace"
)

// Definition declares a pipeline: its batch geometry, execution
// resources and the operator chain. Each stage consumes the leading
// entries of the flowing output set; unconsumed trailing entries pass
// through behind the stage's own outputs. The first stage must be a
// source.
type Definition struct {
	// BatchSize is the number of samples per iteration.
	BatchSize int `mapstructure:"batch_size"`
	// Workers sets the CPU worker count, defaulting to GOMAXPROCS.
	Workers int `mapstructure:"workers"`
	// Prefetch is how many iterations Start runs ahead of Next.
	// Defaults to 2.
	Prefetch int `mapstructure:"prefetch"`
	// Device enables the device stream; operators marked with the
	// device placement run on it.
	Device bool `mapstructure:"device"`
	// HalfTransfer uploads float32 batches as packed half precision.
	HalfTransfer bool `mapstructure:"half_transfer"`
	// MemoryBudget caps host allocations in bytes, 0 for unbounded.
	MemoryBudget int64 `mapstructure:"memory_budget"`
	// Ops is the operator chain, sources first.
	Ops []ops.OpSpec `mapstructure:"ops"`
}

// stage pairs one operator with its persistent execution state: the
// workspace carrying bindings and arguments, and the host output lists
// reused across iterations.
type stage struct {
	op  ops.Operator
	dev ops.DeviceOperator // non-nil for device-placed stages
	ws  *workspace.Workspace

	outs    []*tensor.TensorList
	devOuts []*device.Batch // rebuilt every iteration
}

// Pipeline is a built operator chain ready to run. Run and the
// Start/Next pair are mutually exclusive ways to drive it; neither is
// safe to call from more than one goroutine.
type Pipeline struct {
	def    Definition
	alloc  *tensor.Allocator
	pool   *pool.Pool
	dev    *device.Device
	stream *device.Stream

	stages     []*stage
	sources    map[string]*ops.ExternalSource
	numOutputs int

	iter atomic.Uint64

	prefetch *prefetcher
	closed   bool
}

// New validates def, constructs its operators and returns a runnable
// pipeline. Configuration problems report ops.ErrInvalidConfiguration.
func New(def Definition) (*Pipeline, error) {
	if def.BatchSize <= 0 {
		return nil, fmt.Errorf("%w: batch size %d", ops.ErrInvalidConfiguration, def.BatchSize)
	}
	if len(def.Ops) == 0 {
		return nil, fmt.Errorf("%w: pipeline has no operators", ops.ErrInvalidConfiguration)
	}
	if def.Workers <= 0 {
		def.Workers = runtime.GOMAXPROCS(0)
	}
	if def.Prefetch <= 0 {
		def.Prefetch = 2
	}
	if def.Workers > def.BatchSize {
		slog.Warn("worker count exceeds batch size, some workers will idle",
			"workers", def.Workers, "batch_size", def.BatchSize)
	}

	p := &Pipeline{
		def:     def,
		alloc:   tensor.NewAllocator(def.MemoryBudget),
		sources: make(map[string]*ops.ExternalSource),
	}

	if def.Device {
		dev, err := device.NewDevice()
		if err != nil {
			return nil, fmt.Errorf("%w: device pipeline: %v", ops.ErrInvalidConfiguration, err)
		}
		p.dev = dev
		p.stream = dev.NewStream()
	}
	p.pool = pool.New(def.Workers)

	if err := p.buildStages(def); err != nil {
		p.pool.Close()
		if p.dev != nil {
			p.dev.Close()
		}
		return nil, err
	}

	slog.Debug("pipeline built",
		"stages", len(p.stages), "batch_size", def.BatchSize,
		"workers", def.Workers, "device", def.Device)
	return p, nil
}

func (p *Pipeline) buildStages(def Definition) error {
	flowing := 0
	for i, spec := range def.Ops {
		op, err := ops.New(spec, def.BatchSize)
		if err != nil {
			return err
		}
		if i == 0 && op.NumInputs() != 0 {
			return fmt.Errorf("%w: first operator %q is not a source", ops.ErrInvalidConfiguration, op.Name())
		}
		if i > 0 && op.NumInputs() > flowing {
			return fmt.Errorf("%w: operator %q needs %d inputs, only %d are flowing",
				ops.ErrInvalidConfiguration, op.Name(), op.NumInputs(), flowing)
		}

		// Operators dispatch on the workspace handles: a pool means CPU
		// execution, a stream alone means device execution.
		st := &stage{op: op, ws: workspace.New(p.pool, nil)}
		if spec.Device {
			st.ws = workspace.New(nil, p.stream)
			if !def.Device {
				return fmt.Errorf("%w: operator %q placed on device in a host-only pipeline",
					ops.ErrInvalidConfiguration, op.Name())
			}
			dev, ok := op.(ops.DeviceOperator)
			if !ok {
				return fmt.Errorf("%w: operator %q cannot run on device", ops.ErrInvalidConfiguration, op.Name())
			}
			if op.NumInputs() == 0 {
				return fmt.Errorf("%w: source %q cannot run on device", ops.ErrInvalidConfiguration, op.Name())
			}
			st.dev = dev
		} else {
			st.outs = make([]*tensor.TensorList, op.NumOutputs())
			for j := range st.outs {
				st.outs[j] = tensor.NewTensorList(p.alloc)
			}
		}
		if src, ok := op.(*ops.ExternalSource); ok {
			if _, dup := p.sources[src.SourceName()]; dup {
				return fmt.Errorf("%w: duplicate external source %q",
					ops.ErrInvalidConfiguration, src.SourceName())
			}
			p.sources[src.SourceName()] = src
		}
		p.stages = append(p.stages, st)
		flowing += op.NumOutputs() - op.NumInputs()
	}
	p.numOutputs = flowing
	return nil
}

// Feed hands a batch to the named external source, transferring
// ownership. Blocks while the source's queue is full.
func (p *Pipeline) Feed(source string, tl *tensor.TensorList) error {
	src, ok := p.sources[source]
	if !ok {
		return fmt.Errorf("%w: no external source %q", ops.ErrInvalidConfiguration, source)
	}
	src.Feed(tl)
	return nil
}

// Allocator returns the pipeline's host allocator, for building batches
// to feed into external sources.
func (p *Pipeline) Allocator() *tensor.Allocator {
	return p.alloc
}

// NumOutputs returns how many lists each iteration delivers: the last
// stage's outputs plus everything that flowed past it unconsumed.
func (p *Pipeline) NumOutputs() int {
	return p.numOutputs
}

// Stats reports resource usage over the pipeline lifetime.
type Stats struct {
	Iterations uint64
	Allocator  tensor.AllocatorStats
	Device     device.DeviceStats
}

// Stats returns a snapshot of the pipeline's counters.
func (p *Pipeline) Stats() Stats {
	s := Stats{Iterations: p.iter.Load(), Allocator: p.alloc.Stats()}
	if p.dev != nil {
		s.Device = p.dev.Stats()
	}
	return s
}

// Close stops prefetching, the worker pool and the device, and drops
// pooled host buffers. The pipeline must not be used afterwards.
func (p *Pipeline) Close() {
	if p.closed {
		return
	}
	p.closed = true
	if p.prefetch != nil {
		p.prefetch.stop()
	}
	p.pool.Close()
	if p.dev != nil {
		p.dev.Close()
	}
	p.alloc.Trim()
	slog.Debug("pipeline closed", "iterations", p.iter.Load())
}
