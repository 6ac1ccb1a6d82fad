//go:build windows

package device

import (
	"fmt"

	"github.com/go-webgpu/webgpu/wgpu"

	"github.com/feedline-ml/feedline/internal/tensor"
)

const batchUsage = wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst

// Batch is a device-resident sample batch: one contiguous buffer holding
// every sample back to back in its storage encoding, plus the host-side
// metadata needed to launch kernels and decode results.
//
// The storage encoding can differ from the logical element type: uint8
// rides raw, float32 rides raw or as packed half precision, and the
// integral types ride as float32 and narrow again on download.
type Batch struct {
	dev *Device

	buf     *wgpu.Buffer
	size    uint64 // allocation size, padded
	payload int    // meaningful bytes in storage encoding

	dtype   tensor.DataType
	storage tensor.DataType
	layout  tensor.Layout
	shapes  tensor.ShapeList
	pooled  bool
}

func (b *Batch) Shapes() tensor.ShapeList  { return b.shapes }
func (b *Batch) DType() tensor.DataType    { return b.dtype }
func (b *Batch) Storage() tensor.DataType  { return b.storage }
func (b *Batch) Layout() tensor.Layout     { return b.layout }
func (b *Batch) NumSamples() int           { return b.shapes.NumSamples() }
func (b *Batch) TotalElements() int        { return b.shapes.TotalElements() }
func (b *Batch) SetLayout(l tensor.Layout) { b.layout = l }

// Release returns the backing buffer to the device pool, or destroys it
// when the batch owns a one-off upload buffer.
func (b *Batch) Release() {
	if b.buf == nil {
		return
	}
	if b.pooled {
		b.dev.pool.Release(b.buf, b.size, batchUsage)
	} else {
		b.buf.Release()
	}
	b.buf = nil
}

// storageEncoding picks the device encoding for a logical type.
func storageEncoding(dt tensor.DataType, half bool) (tensor.DataType, error) {
	switch dt {
	case tensor.Uint8:
		return tensor.Uint8, nil
	case tensor.Float32:
		if half {
			return tensor.Float16, nil
		}
		return tensor.Float32, nil
	case tensor.Int16, tensor.Int32:
		return tensor.Float32, nil
	default:
		return 0, fmt.Errorf("no device storage for %s", dt)
	}
}

func storageBytes(elements int, storage tensor.DataType) int {
	return elements * storage.Size()
}

// Upload copies a contiguous host batch into device memory. When half
// is set, float32 data rides as packed half precision, halving transfer
// and storage cost at reduced precision.
func (d *Device) Upload(tl *tensor.TensorList, half bool) (*Batch, error) {
	if !tl.IsContiguous() {
		return nil, fmt.Errorf("device upload requires a contiguous batch")
	}

	storage, err := storageEncoding(tl.DType(), half)
	if err != nil {
		return nil, err
	}

	b := &Batch{
		dev:     d,
		dtype:   tl.DType(),
		storage: storage,
		layout:  tl.Layout(),
		shapes:  tl.Shapes().Clone(),
	}

	raw := tl.ContiguousBytes()
	if len(raw) == 0 {
		return b, nil
	}

	var payload []byte
	switch {
	case storage == tl.DType():
		payload = raw
	case storage == tensor.Float16:
		payload = packHalf(float32View(raw))
	default:
		payload = stageFloat32(raw, tl.DType())
	}

	b.payload = len(payload)
	b.size = paddedSize(b.payload)
	b.buf = d.uploadBuffer(payload, batchUsage)
	return b, nil
}

// NewBatch allocates an uninitialized device batch for kernel output,
// reusing pooled buffers when one fits.
func (d *Device) NewBatch(shapes tensor.ShapeList, dtype tensor.DataType, layout tensor.Layout, storage tensor.DataType) *Batch {
	b := &Batch{
		dev:     d,
		dtype:   dtype,
		storage: storage,
		layout:  layout,
		shapes:  shapes.Clone(),
		pooled:  true,
	}
	b.payload = storageBytes(shapes.TotalElements(), storage)
	if b.payload == 0 {
		return b
	}
	b.size = paddedSize(b.payload)
	b.buf = d.pool.Acquire(b.size, batchUsage)
	return b
}

// Download flushes the stream, reads the batch back and decodes it into
// tl with the batch's logical type, shapes and layout.
func (d *Device) Download(s *Stream, b *Batch, tl *tensor.TensorList) error {
	s.Flush()

	if err := tl.Resize(b.shapes, b.dtype); err != nil {
		return err
	}
	if b.layout != "" {
		tl.SetLayout(b.layout)
	}
	if b.payload == 0 {
		return nil
	}

	raw, err := d.readBuffer(b.buf, paddedSize(b.payload))
	if err != nil {
		return err
	}
	raw = raw[:b.payload]

	dst := tl.ContiguousBytes()
	switch {
	case b.storage == b.dtype:
		copy(dst, raw)
	case b.storage == tensor.Float16:
		copy(float32View(dst), unpackHalf(raw, b.TotalElements()))
	default:
		copy(dst, unstageFloat32(raw, b.dtype))
	}
	return nil
}
