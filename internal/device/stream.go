//go:build windows

package device

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-webgpu/webgpu/wgpu"

	"github.com/feedline-ml/feedline/internal/tensor"
)

// maxPending caps how many command buffers a stream accumulates before
// it submits them on its own.
const maxPending = 64

// Stream accumulates command buffers and submits them to the device
// queue in issue order. Work on one stream is ordered; synchronization
// happens only at Synchronize or Download.
type Stream struct {
	dev *Device

	mu      sync.Mutex
	pending []*wgpu.CommandBuffer

	occupancyWarned bool
}

// NewStream returns an independent submission stream on this device.
func (d *Device) NewStream() *Stream {
	return &Stream{dev: d}
}

func (s *Stream) enqueue(cmd *wgpu.CommandBuffer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending = append(s.pending, cmd)
	if len(s.pending) >= maxPending {
		s.flushLocked()
	}
}

// Flush submits all pending command buffers without waiting for them.
func (s *Stream) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushLocked()
}

func (s *Stream) flushLocked() {
	if len(s.pending) == 0 {
		return
	}
	s.dev.queue.Submit(s.pending...)
	s.pending = s.pending[:0]
}

// Synchronize flushes pending work and blocks until the queue has
// executed it, by round-tripping the device fence through a readback.
func (s *Stream) Synchronize() error {
	s.Flush()
	if _, err := s.dev.readBuffer(s.dev.fence, 4); err != nil {
		return fmt.Errorf("stream synchronize: %w", err)
	}
	return nil
}

// MultiplyAdd launches out = in*mul + add over the whole batch with
// per-sample coefficients. Saturation for uint8 happens in the shader;
// integral logical types staged as float32 saturate on download.
func (s *Stream) MultiplyAdd(dst, src *Batch, args []MultiplyAddArgs) error {
	if len(args) != src.NumSamples() {
		return fmt.Errorf("multiply-add: %d coefficient sets for %d samples", len(args), src.NumSamples())
	}
	if dst.storage != src.storage || !dst.shapes.Equal(src.shapes) {
		return fmt.Errorf("multiply-add: output batch does not match input")
	}

	total := src.TotalElements()
	if total == 0 {
		return nil
	}

	var name, code string
	var threads int
	params := launchGeometry{size: total, samples: src.NumSamples()}
	switch src.storage {
	case tensor.Float32:
		name, code = "multiply_add_f32", multiplyAddFloatShader
		threads = total
	case tensor.Uint8:
		name, code = "multiply_add_u8", multiplyAddByteShader
		params.words = (total + 3) / 4
		threads = params.words
	case tensor.Float16:
		name, code = "multiply_add_f16", multiplyAddHalfShader
		params.words = (total + 1) / 2
		threads = params.words
	default:
		return fmt.Errorf("multiply-add: unsupported storage %s", src.storage)
	}

	return s.launch(name, code, src, dst, packMultiplyAddCoeffs(args), params, threads)
}

// LinearTransform launches a per-pixel 3x3 matrix plus offset over
// channel-last three-channel data with per-sample transforms.
func (s *Stream) LinearTransform(dst, src *Batch, args []LinearTransformArgs) error {
	if len(args) != src.NumSamples() {
		return fmt.Errorf("linear-transform: %d transforms for %d samples", len(args), src.NumSamples())
	}
	if dst.storage != src.storage || !dst.shapes.Equal(src.shapes) {
		return fmt.Errorf("linear-transform: output batch does not match input")
	}
	for i, sh := range src.shapes {
		if sh.NumElements()%3 != 0 {
			return fmt.Errorf("linear-transform: sample %d is not three-channel", i)
		}
	}

	total := src.TotalElements()
	if total == 0 {
		return nil
	}

	var name, code string
	var threads int
	params := launchGeometry{size: total, samples: src.NumSamples(), pixels: total / 3}
	switch src.storage {
	case tensor.Float32:
		name, code = "linear_transform_f32", linearTransformFloatShader
		threads = params.pixels
	case tensor.Uint8:
		name, code = "linear_transform_u8", linearTransformByteShader
		params.words = (total + 3) / 4
		threads = params.words
	case tensor.Float16:
		name, code = "linear_transform_f16", linearTransformHalfShader
		params.words = (total + 1) / 2
		threads = params.words
	default:
		return fmt.Errorf("linear-transform: unsupported storage %s", src.storage)
	}

	return s.launch(name, code, src, dst, packLinearTransformCoeffs(args), params, threads)
}

type launchGeometry struct {
	size    int
	samples int
	words   int
	pixels  int
}

// launch records one compute dispatch covering the batch and enqueues
// it on the stream.
func (s *Stream) launch(name, code string, src, dst *Batch, coeffs []byte, geom launchGeometry, threads int) error {
	d := s.dev
	pipeline := d.pipeline(name, code)

	offsetsBuf := d.uploadBuffer(packSampleOffsets(src.shapes), wgpu.BufferUsageStorage)
	defer offsetsBuf.Release()
	coeffsBuf := d.uploadBuffer(coeffs, wgpu.BufferUsageStorage)
	defer coeffsBuf.Release()
	//nolint:gosec // G115: counts are non-negative
	paramsBuf := d.uniformBuffer(packLaunchParams(uint32(geom.size), uint32(geom.samples), uint32(geom.words), uint32(geom.pixels)))
	defer paramsBuf.Release()

	bindGroupLayout := pipeline.GetBindGroupLayout(0)
	bindGroup := d.device.CreateBindGroupSimple(bindGroupLayout, []wgpu.BindGroupEntry{
		wgpu.BufferBindingEntry(0, src.buf, 0, paddedSize(src.payload)),
		wgpu.BufferBindingEntry(1, dst.buf, 0, paddedSize(dst.payload)),
		wgpu.BufferBindingEntry(2, offsetsBuf, 0, uint64(4*(len(src.shapes)+1))),
		wgpu.BufferBindingEntry(3, coeffsBuf, 0, paddedSize(len(coeffs))),
		wgpu.BufferBindingEntry(4, paramsBuf, 0, 16),
	})
	defer bindGroup.Release()

	encoder := d.device.CreateCommandEncoder(nil)
	computePass := encoder.BeginComputePass(nil)

	computePass.SetPipeline(pipeline)
	computePass.SetBindGroup(0, bindGroup, nil)

	workgroups := dispatchWorkgroups(threads)
	s.noteOccupancy(name, workgroups)
	computePass.DispatchWorkgroups(workgroups, 1, 1)
	computePass.End()

	s.enqueue(encoder.Finish(nil))
	return nil
}

// noteOccupancy logs once per stream when dispatches are too small to
// keep the adapter busy. Advisory only.
func (s *Stream) noteOccupancy(name string, workgroups uint32) {
	if workgroups >= minWorkgroups {
		return
	}
	s.mu.Lock()
	warned := s.occupancyWarned
	s.occupancyWarned = true
	s.mu.Unlock()
	if !warned {
		slog.Warn("device dispatch underutilizes adapter",
			"kernel", name, "workgroups", workgroups, "advised", minWorkgroups)
	}
}
