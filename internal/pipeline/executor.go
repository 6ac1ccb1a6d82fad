package pipeline

import (
	"fmt"

	"github.com/feedline-ml/feedline/internal/device"
	"github.com/feedline-ml/feedline/internal/ops"
	"github.com/feedline-ml/feedline/internal/tensor"
)

// Outputs holds the committed results of one iteration. The lists share
// the produced backing buffers; Release returns them to the pipeline's
// allocator once the caller is done.
type Outputs struct {
	iter  uint64
	lists []*tensor.TensorList
}

// Iteration returns the sequence number of the iteration that produced
// these outputs.
func (o *Outputs) Iteration() uint64 { return o.iter }

// NumOutputs returns the number of output lists.
func (o *Outputs) NumOutputs() int { return len(o.lists) }

// Output returns the i-th output list.
func (o *Outputs) Output(i int) *tensor.TensorList { return o.lists[i] }

// Release returns the output backings to the allocator. The lists must
// not be used afterwards.
func (o *Outputs) Release() {
	for _, l := range o.lists {
		l.Release()
	}
	o.lists = nil
}

// Run executes one iteration synchronously and commits its outputs.
// A returned error means the iteration was discarded; the pipeline
// stays usable when the error is an ops.ErrInvalidInput condition.
func (p *Pipeline) Run() (*Outputs, error) {
	if p.prefetch != nil {
		panic("pipeline: Run called while prefetching")
	}
	return p.runOnce()
}

// iterScratch tracks per-iteration temporaries: device batches and the
// host lists materialized at device boundaries. All of it is released
// when the iteration ends, committed or not; committed outputs survive
// through their retained buffer references.
type iterScratch struct {
	temps   []*tensor.TensorList
	batches []*device.Batch
}

func (sc *iterScratch) release() {
	for _, tl := range sc.temps {
		tl.Release()
	}
	for _, b := range sc.batches {
		b.Release()
	}
}

func (p *Pipeline) runOnce() (*Outputs, error) {
	iter := p.iter.Add(1)
	var sc iterScratch
	defer sc.release()

	// The flowing output set: each stage consumes its leading entries and
	// unconsumed trailing entries pass through behind the stage's own
	// outputs. While a device segment runs, hostTail carries the lists
	// that stayed host resident across the boundary.
	var hostIn []*tensor.TensorList
	var hostTail []*tensor.TensorList
	var devIn []*device.Batch
	onDevice := false

	for _, st := range p.stages {
		st.ws.Reset(iter)
		need := st.op.NumInputs()

		if st.dev != nil {
			if !onDevice {
				up, err := p.upload(&sc, hostIn[:need])
				if err != nil {
					return nil, iterErr(iter, st, err)
				}
				devIn = up
				hostTail = hostIn[need:]
				onDevice = true
			} else if need > len(devIn) {
				extra := need - len(devIn)
				up, err := p.upload(&sc, hostTail[:extra])
				if err != nil {
					return nil, iterErr(iter, st, err)
				}
				devIn = append(devIn, up...)
				hostTail = hostTail[extra:]
			}
			if err := p.runDeviceStage(&sc, st, devIn); err != nil {
				return nil, iterErr(iter, st, err)
			}
			rest := devIn[need:]
			devIn = make([]*device.Batch, 0, len(st.devOuts)+len(rest))
			devIn = append(append(devIn, st.devOuts...), rest...)
			continue
		}

		if onDevice {
			down, err := p.download(&sc, devIn)
			if err != nil {
				return nil, iterErr(iter, st, err)
			}
			hostIn = append(down, hostTail...)
			hostTail = nil
			onDevice = false
		}
		if err := p.runHostStage(st, hostIn); err != nil {
			return nil, iterErr(iter, st, err)
		}
		rest := hostIn[need:]
		next := make([]*tensor.TensorList, 0, len(st.outs)+len(rest))
		hostIn = append(append(next, st.outs...), rest...)
	}

	if onDevice {
		down, err := p.download(&sc, devIn)
		if err != nil {
			return nil, fmt.Errorf("iteration %d: %w", iter, err)
		}
		if err := p.stream.Synchronize(); err != nil {
			return nil, fmt.Errorf("iteration %d: %w", iter, err)
		}
		hostIn = append(down, hostTail...)
	}

	// Commit: hand the caller lists sharing the final backings, so the
	// stages can be resized next iteration without invalidating them.
	out := &Outputs{iter: iter, lists: make([]*tensor.TensorList, len(hostIn))}
	for i, l := range hostIn {
		out.lists[i] = tensor.NewTensorList(p.alloc)
		out.lists[i].ShareData(l)
	}
	return out, nil
}

func iterErr(iter uint64, st *stage, err error) error {
	return fmt.Errorf("iteration %d: operator %s: %w", iter, st.op.Name(), err)
}

// runHostStage drives one CPU stage: bind, setup, allocate declared
// outputs, run.
func (p *Pipeline) runHostStage(st *stage, in []*tensor.TensorList) error {
	st.ws.BindInputs(in[:st.op.NumInputs()]...)
	st.ws.BindOutputs(st.outs...)

	descs, alloc, err := st.op.Setup(st.ws)
	if err != nil {
		return err
	}
	if alloc {
		if len(descs) != len(st.outs) {
			return fmt.Errorf("declared %d outputs, operator has %d", len(descs), len(st.outs))
		}
		for j, desc := range descs {
			if err := st.outs[j].Resize(desc.Shapes, desc.DType); err != nil {
				return fmt.Errorf("output %d: %w", j, err)
			}
		}
	}
	return st.op.Run(st.ws)
}

// runDeviceStage drives one device stage. Output batches are always
// executor allocated, matching the input storage encoding.
func (p *Pipeline) runDeviceStage(sc *iterScratch, st *stage, in []*device.Batch) error {
	st.ws.BindDeviceInputs(in[:st.op.NumInputs()]...)

	descs, _, err := st.op.Setup(st.ws)
	if err != nil {
		return err
	}
	src := in[0]
	st.devOuts = st.devOuts[:0]
	for _, desc := range descs {
		b := p.dev.NewBatch(desc.Shapes, desc.DType, src.Layout(), src.Storage())
		sc.batches = append(sc.batches, b)
		st.devOuts = append(st.devOuts, b)
	}
	st.ws.BindDeviceOutputs(st.devOuts...)
	return st.dev.RunDevice(st.ws)
}

// upload moves host lists across the host to device boundary. Inputs
// must be contiguous; a make_contiguous stage upstream guarantees that.
func (p *Pipeline) upload(sc *iterScratch, in []*tensor.TensorList) ([]*device.Batch, error) {
	out := make([]*device.Batch, len(in))
	for i, tl := range in {
		b, err := p.dev.Upload(tl, p.def.HalfTransfer)
		if err != nil {
			return nil, fmt.Errorf("%w: upload input %d: %v", ops.ErrInvalidInput, i, err)
		}
		sc.batches = append(sc.batches, b)
		out[i] = b
	}
	return out, nil
}

// download materializes device batches on the host. Download flushes
// the stream and blocks on the readback, so every launch feeding these
// batches has completed when it returns.
func (p *Pipeline) download(sc *iterScratch, in []*device.Batch) ([]*tensor.TensorList, error) {
	out := make([]*tensor.TensorList, len(in))
	for i, b := range in {
		tl := tensor.NewTensorList(p.alloc)
		sc.temps = append(sc.temps, tl)
		if err := p.dev.Download(p.stream, b, tl); err != nil {
			return nil, fmt.Errorf("download output %d: %w", i, err)
		}
		out[i] = tl
	}
	return out, nil
}
